package main

import (
	"html/template"
	"net/url"
	"strconv"
	"time"
)

const (
	displayTimestampLayout  = "2006-01-02 15:04"
	templateCitizenPath     = "templates/citizen.tmpl"
	templateAdminPath       = "templates/admin.tmpl"
	templateConfirmPath     = "templates/confirm.tmpl"
	statusActionLabelPrefix = "action_mark_"
)

var uiTranslations = map[string]string{
	"app_title":                 "Civic Reports",
	"nav_report":                "Report an issue",
	"nav_admin":                 "Admin dashboard",
	"page_title_citizen":        "Report an issue",
	"page_title_admin":          "Admin dashboard",
	"page_title_confirm":        "Please confirm",
	"form_category":             "Category",
	"form_category_placeholder": "Choose a category",
	"form_title":                "Title",
	"form_description":          "Description",
	"form_photo":                "Photo (optional)",
	"form_location":             "Location",
	"form_capture_location":     "Capture location",
	"form_submit":               "Submit report",
	"location_not_captured":     "Not captured",
	"location_unavailable":      "Denied or unavailable",
	"location_pending":          "Locating...",
	"history_title":             "Your reports",
	"history_empty":             "No reports yet.",
	"admin_filter_category":     "Category",
	"admin_filter_all":          "All",
	"admin_filter_apply":        "Filter",
	"admin_stats_total":         "Total",
	"admin_table_empty":         "No reports",
	"admin_clear_all":           "Clear all",
	"admin_export_csv":          "Export CSV",
	"admin_export_pdf":          "Export PDF",
	"col_id":                    "ID",
	"col_category":              "Category",
	"col_title":                 "Title",
	"col_location":              "Location",
	"col_photo":                 "Photo",
	"col_status":                "Status",
	"col_actions":               "Actions",
	"col_created":               "Created",
	"action_mark_Assigned":      "Assign",
	"action_mark_Closed":        "Close",
	"action_delete":             "Delete",
	"confirm_yes":               "Yes, continue",
	"confirm_no":                "Cancel",
	"confirm_delete_prompt":     "Delete this report?",
	"confirm_clear_prompt":      "Clear all reports from the store? This cannot be undone.",
	"notice_report_submitted":   "Report submitted locally. Open Admin Dashboard to view.",
	"notice_photo_skipped":      "The photo was skipped: %s.",
	"notice_status_updated":     "Status updated.",
	"notice_report_deleted":     "Report deleted.",
	"notice_reports_cleared":    "All reports cleared.",
	"notice_action_cancelled":   "Nothing was changed.",
	"error_confirmation":        "Confirmation expired or invalid. Nothing was changed.",
	"error_reports_load_failed": "Reports could not be loaded.",
	"error_report_not_found":    "Report not found.",
	"error_export_format":       "Unsupported export format.",
	"error_export_failed":       "Export could not be generated.",
	"common_dash":               "—",
}

func uiText(key string) string {
	if value, ok := uiTranslations[key]; ok {
		return value
	}
	return key
}

type pageBaseViewData struct {
	Title         string
	Text          map[string]string
	ActiveNav     string
	CurrentPath   string
	ErrorMessage  string
	NoticeMessage string
}

type citizenFormView struct {
	Category    string
	Title       string
	Description string
}

type reportHistoryView struct {
	ID            string
	Title         string
	Category      string
	Description   string
	CreatedAt     string
	LocationLabel string
	Status        string
	PhotoURL      template.URL
}

type citizenViewData struct {
	pageBaseViewData
	Categories        []string
	Form              citizenFormView
	LocationTimeoutMs int64
	MaxPhotoBytes     int64
	History           []reportHistoryView
}

type statusActionView struct {
	Status string
	Label  string
	Next   string
}

type adminReportRowView struct {
	ID            string
	Category      string
	Title         string
	LocationLabel string
	PhotoURL      template.URL
	Status        string
	CreatedAt     string
	StatusActions []statusActionView
	DeleteURL     string
}

type adminViewData struct {
	pageBaseViewData
	CategoryOptions  []string
	SelectedCategory string
	Stats            ReportStats
	Rows             []adminReportRowView
	ClearURL         string
	ExportCSVURL     string
	ExportPDFURL     string
}

type confirmViewData struct {
	pageBaseViewData
	Prompt     string
	FormAction string
	Token      string
	Next       string
}

func (a *App) displayLocation() *time.Location {
	if a.loc != nil {
		return a.loc
	}
	return time.UTC
}

func (a *App) formatTimestamp(createdAtMs int64) string {
	return time.UnixMilli(createdAtMs).In(a.displayLocation()).Format(displayTimestampLayout)
}

func formatLocation(location *ReportLocation, missing string) string {
	if location == nil {
		return missing
	}
	return strconv.FormatFloat(location.Lat, 'f', 4, 64) + ", " + strconv.FormatFloat(location.Lon, 'f', 4, 64)
}

// safePhotoURL marks a stored data URL as safe for an img src. Anything
// that fails validation renders as no photo.
func safePhotoURL(dataURL string, maxBytes int64) template.URL {
	if dataURL == "" || validatePhotoDataURL(dataURL, maxBytes) != nil {
		return ""
	}
	return template.URL(dataURL)
}

func buildStatusActions(currentStatus, next string) []statusActionView {
	allowed := statusTransitions[currentStatus]
	actions := make([]statusActionView, 0, len(allowed))
	for _, candidate := range allowed {
		actions = append(actions, statusActionView{
			Status: candidate,
			Label:  uiText(statusActionLabelPrefix + candidate),
			Next:   next,
		})
	}
	return actions
}

func (a *App) historyViews(reports []Report) []reportHistoryView {
	views := make([]reportHistoryView, 0, len(reports))
	for _, report := range newestFirst(reports) {
		views = append(views, reportHistoryView{
			ID:            report.ID,
			Title:         report.Title,
			Category:      report.Category,
			Description:   report.Description,
			CreatedAt:     a.formatTimestamp(report.CreatedAt),
			LocationLabel: formatLocation(report.Location, uiText("location_not_captured")),
			Status:        report.EffectiveStatus(),
			PhotoURL:      safePhotoURL(report.PhotoDataURL, a.cfg.MaxPhotoBytes),
		})
	}
	return views
}

func (a *App) adminRowViews(reports []Report, currentURL string) []adminReportRowView {
	dash := uiText("common_dash")
	rows := make([]adminReportRowView, 0, len(reports))
	for _, report := range reports {
		rows = append(rows, adminReportRowView{
			ID:            report.ID,
			Category:      report.Category,
			Title:         report.Title,
			LocationLabel: formatLocation(report.Location, dash),
			PhotoURL:      safePhotoURL(report.PhotoDataURL, a.cfg.MaxPhotoBytes),
			Status:        report.EffectiveStatus(),
			CreatedAt:     a.formatTimestamp(report.CreatedAt),
			StatusActions: buildStatusActions(report.EffectiveStatus(), currentURL),
			DeleteURL:     "/admin/reports/" + url.PathEscape(report.ID) + "/delete?next=" + url.QueryEscape(currentURL),
		})
	}
	return rows
}
