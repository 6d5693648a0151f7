package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	msgRequiredFields  = "Please fill required fields."
	msgInvalidCategory = "Please choose a valid category."
)

func validateReportInput(input ReportInput) (ReportInput, error) {
	input.Category = strings.TrimSpace(input.Category)
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	if input.Category == "" || input.Title == "" {
		return input, &apiError{Status: http.StatusBadRequest, Code: "missing_required_fields", Message: msgRequiredFields}
	}
	if !containsString(reportCategories, input.Category) {
		return input, &apiError{Status: http.StatusBadRequest, Code: "invalid_category", Message: msgInvalidCategory}
	}
	if len(input.Title) > maxTitleLength {
		return input, &apiError{Status: http.StatusBadRequest, Code: "title_too_long", Message: fmt.Sprintf("Title must be at most %d characters.", maxTitleLength)}
	}
	if len(input.Description) > maxDescriptionLength {
		return input, &apiError{Status: http.StatusBadRequest, Code: "description_too_long", Message: fmt.Sprintf("Description must be at most %d characters.", maxDescriptionLength)}
	}
	if input.Location != nil && !isValidLocation(input.Location.Lat, input.Location.Lon) {
		input.Location = nil
	}
	return input, nil
}

func (a *App) storageUnavailable(op string, err error) error {
	a.log.Error("report storage failed", "op", op, "err", err)
	return &apiError{Status: http.StatusServiceUnavailable, Code: "storage_unavailable", Message: "Report storage is unavailable"}
}

// createReport validates the input and appends a new Open report.
func (a *App) createReport(ctx context.Context, input ReportInput) (Report, error) {
	input, err := validateReportInput(input)
	if err != nil {
		return Report{}, err
	}

	existing, err := a.reports.Load(ctx)
	if err != nil {
		return Report{}, a.storageUnavailable("load", err)
	}
	id, err := a.uniqueReportID(existing)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ID:           id,
		Category:     input.Category,
		Title:        input.Title,
		Description:  input.Description,
		PhotoDataURL: input.PhotoDataURL,
		Location:     input.Location,
		Status:       StatusOpen,
		CreatedAt:    a.now().UnixMilli(),
	}
	if err := a.reports.Upsert(ctx, report); err != nil {
		return Report{}, a.storageUnavailable("upsert", err)
	}

	a.log.Info("report created", "id", report.ID, "category", report.Category, "has_photo", report.PhotoDataURL != "", "has_location", report.Location != nil)
	a.notifyNewReport(report)
	return report, nil
}

func (a *App) uniqueReportID(existing []Report) (string, error) {
	for range reportIDMaxAttempts {
		candidate := a.newReportID()
		if indexOfReport(existing, candidate) < 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unable to generate unique report id")
}

// listReports returns stored reports, restricted to one category when set.
func (a *App) listReports(ctx context.Context, category string) ([]Report, error) {
	reports, err := a.reports.Load(ctx)
	if err != nil {
		return nil, a.storageUnavailable("load", err)
	}
	return filterReportsByCategory(reports, category), nil
}

// loadReportsForView degrades storage failures to an empty list so pages
// still render.
func (a *App) loadReportsForView(ctx context.Context) []Report {
	reports, err := a.reports.Load(ctx)
	if err != nil {
		a.log.Error("failed to load reports for view", "err", err)
		return []Report{}
	}
	return reports
}

func (a *App) updateReportStatus(ctx context.Context, id string, next string) (Report, error) {
	next = strings.TrimSpace(next)
	if _, ok := statusTransitions[next]; !ok {
		return Report{}, &apiError{Status: http.StatusBadRequest, Code: "invalid_status", Message: "Status must be Open, Assigned or Closed"}
	}

	report, current, err := a.reports.UpdateStatus(ctx, id, next)
	var transitionErr *statusTransitionError
	switch {
	case errors.Is(err, errReportNotFound):
		return Report{}, &apiError{Status: http.StatusNotFound, Code: "report_not_found", Message: "Report not found"}
	case errors.As(err, &transitionErr):
		return Report{}, &apiError{
			Status:  http.StatusConflict,
			Code:    "invalid_status_transition",
			Message: fmt.Sprintf("Cannot change status from %s to %s", transitionErr.From, transitionErr.To),
		}
	case err != nil:
		return Report{}, a.storageUnavailable("update_status", err)
	}

	a.log.Info("report status changed", "id", id, "from", current, "to", next)
	return report, nil
}

func (a *App) deleteReport(ctx context.Context, id string) error {
	deleted, err := a.reports.Delete(ctx, id)
	if err != nil {
		return a.storageUnavailable("delete", err)
	}
	if !deleted {
		return &apiError{Status: http.StatusNotFound, Code: "report_not_found", Message: "Report not found"}
	}
	a.log.Info("report deleted", "id", id)
	return nil
}

func (a *App) clearReports(ctx context.Context) error {
	if err := a.reports.Clear(ctx); err != nil {
		return a.storageUnavailable("clear", err)
	}
	a.log.Info("all reports cleared")
	return nil
}

// categoryOptions returns the sorted distinct categories present in reports.
func categoryOptions(reports []Report) []string {
	seen := make(map[string]struct{}, len(reports))
	out := make([]string, 0, len(reports))
	for _, report := range reports {
		if _, ok := seen[report.Category]; ok {
			continue
		}
		seen[report.Category] = struct{}{}
		out = append(out, report.Category)
	}
	sort.Strings(out)
	return out
}

// computeReportStats counts per category in first-appearance order.
func computeReportStats(reports []Report) ReportStats {
	stats := ReportStats{Total: len(reports), ByCategory: []CategoryCount{}}
	positions := make(map[string]int)
	for _, report := range reports {
		pos, ok := positions[report.Category]
		if !ok {
			positions[report.Category] = len(stats.ByCategory)
			stats.ByCategory = append(stats.ByCategory, CategoryCount{Category: report.Category, Count: 1})
			continue
		}
		stats.ByCategory[pos].Count++
	}
	return stats
}

func filterReportsByCategory(reports []Report, category string) []Report {
	out := make([]Report, 0, len(reports))
	for _, report := range reports {
		if category == "" || report.Category == category {
			out = append(out, report)
		}
	}
	return out
}

// resolveCategoryFilter drops a selection that is no longer present.
func resolveCategoryFilter(options []string, selected string) string {
	selected = strings.TrimSpace(selected)
	if selected == "" || !containsString(options, selected) {
		return ""
	}
	return selected
}

// newestFirst returns reports in reverse storage order.
func newestFirst(reports []Report) []Report {
	out := make([]Report, len(reports))
	for idx, report := range reports {
		out[len(reports)-1-idx] = report
	}
	return out
}
