package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminRoot = "/admin"

func (a *App) registerAdminRoutes(r *gin.Engine) {
	admin := r.Group(adminRoot)
	{
		admin.GET("", a.adminPageHandler)
		admin.GET("/", a.adminPageHandler)
		admin.POST("/reports/:id/status", a.adminReportStatusSubmitHandler)
		admin.GET("/reports/:id/delete", a.adminDeleteConfirmPageHandler)
		admin.POST("/reports/:id/delete", a.adminDeleteSubmitHandler)
		admin.GET("/clear", a.adminClearConfirmPageHandler)
		admin.POST("/clear", a.adminClearSubmitHandler)
		admin.GET("/export", a.adminExportHandler)
	}
}

func adminFilterURL(category string) string {
	if category == "" {
		return adminRoot
	}
	return adminRoot + "?category=" + url.QueryEscape(category)
}

func adminExportURL(format, category string) string {
	query := url.Values{}
	query.Set("format", format)
	if category != "" {
		query.Set("category", category)
	}
	return adminRoot + "/export?" + query.Encode()
}

func (a *App) adminPageHandler(c *gin.Context) {
	reports := a.loadReportsForView(c.Request.Context())
	options := categoryOptions(reports)
	selected := resolveCategoryFilter(options, c.Query("category"))
	currentURL := adminFilterURL(selected)

	data := adminViewData{
		pageBaseViewData: a.pageBaseData(c, "page_title_admin", "admin"),
		CategoryOptions:  options,
		SelectedCategory: selected,
		Stats:            computeReportStats(reports),
		Rows:             a.adminRowViews(filterReportsByCategory(reports, selected), currentURL),
		ClearURL:         adminRoot + "/clear?next=" + url.QueryEscape(currentURL),
		ExportCSVURL:     adminExportURL(exportFormatCSV, selected),
		ExportPDFURL:     adminExportURL(exportFormatPDF, selected),
	}
	a.renderPage(c, http.StatusOK, templateAdminPath, data)
}

func (a *App) adminReportStatusSubmitHandler(c *gin.Context) {
	next := sanitizeRedirectTarget(c.PostForm("next"), adminRoot)
	status := strings.TrimSpace(c.PostForm("status"))

	if _, err := a.updateReportStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		redirectWithMessage(c, next, adminRoot, "error", userFacingMessage(err, uiText("error_reports_load_failed")))
		return
	}
	redirectWithMessage(c, next, adminRoot, "notice", uiText("notice_status_updated"))
}

func (a *App) adminDeleteConfirmPageHandler(c *gin.Context) {
	next := sanitizeRedirectTarget(c.Query("next"), adminRoot)
	reportID := c.Param("id")

	reports := a.loadReportsForView(c.Request.Context())
	if indexOfReport(reports, reportID) < 0 {
		redirectWithMessage(c, next, adminRoot, "error", uiText("error_report_not_found"))
		return
	}

	token, err := a.createConfirmationToken(confirmActionDelete, reportID)
	if err != nil {
		a.log.Error("create confirmation token failed", "action", confirmActionDelete, "error", err)
		redirectWithMessage(c, next, adminRoot, "error", uiText("error_confirmation"))
		return
	}

	a.renderPage(c, http.StatusOK, templateConfirmPath, confirmViewData{
		pageBaseViewData: a.pageBaseData(c, "page_title_confirm", "admin"),
		Prompt:           uiText("confirm_delete_prompt"),
		FormAction:       adminRoot + "/reports/" + url.PathEscape(reportID) + "/delete",
		Token:            token,
		Next:             next,
	})
}

func (a *App) adminDeleteSubmitHandler(c *gin.Context) {
	next := sanitizeRedirectTarget(c.PostForm("next"), adminRoot)
	reportID := c.Param("id")

	if c.PostForm("decision") == "cancel" {
		redirectWithMessage(c, next, adminRoot, "notice", uiText("notice_action_cancelled"))
		return
	}
	if err := a.verifyConfirmationToken(c.PostForm("confirm_token"), confirmActionDelete, reportID); err != nil {
		a.log.Warn("delete confirmation rejected", "id", reportID, "error", err)
		redirectWithMessage(c, next, adminRoot, "error", uiText("error_confirmation"))
		return
	}
	if err := a.deleteReport(c.Request.Context(), reportID); err != nil {
		redirectWithMessage(c, next, adminRoot, "error", userFacingMessage(err, uiText("error_reports_load_failed")))
		return
	}
	redirectWithMessage(c, next, adminRoot, "notice", uiText("notice_report_deleted"))
}

func (a *App) adminClearConfirmPageHandler(c *gin.Context) {
	next := sanitizeRedirectTarget(c.Query("next"), adminRoot)

	token, err := a.createConfirmationToken(confirmActionClear, "")
	if err != nil {
		a.log.Error("create confirmation token failed", "action", confirmActionClear, "error", err)
		redirectWithMessage(c, next, adminRoot, "error", uiText("error_confirmation"))
		return
	}

	a.renderPage(c, http.StatusOK, templateConfirmPath, confirmViewData{
		pageBaseViewData: a.pageBaseData(c, "page_title_confirm", "admin"),
		Prompt:           uiText("confirm_clear_prompt"),
		FormAction:       adminRoot + "/clear",
		Token:            token,
		Next:             next,
	})
}

func (a *App) adminClearSubmitHandler(c *gin.Context) {
	if c.PostForm("decision") == "cancel" {
		next := sanitizeRedirectTarget(c.PostForm("next"), adminRoot)
		redirectWithMessage(c, next, adminRoot, "notice", uiText("notice_action_cancelled"))
		return
	}
	if err := a.verifyConfirmationToken(c.PostForm("confirm_token"), confirmActionClear, ""); err != nil {
		a.log.Warn("clear confirmation rejected", "error", err)
		redirectWithMessage(c, c.PostForm("next"), adminRoot, "error", uiText("error_confirmation"))
		return
	}
	if err := a.clearReports(c.Request.Context()); err != nil {
		redirectWithMessage(c, adminRoot, adminRoot, "error", userFacingMessage(err, uiText("error_reports_load_failed")))
		return
	}
	// The previous filter no longer matches anything.
	redirectWithMessage(c, adminRoot, adminRoot, "notice", uiText("notice_reports_cleared"))
}

func (a *App) adminExportHandler(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", exportFormatCSV)))
	if !containsString(exportFormats, format) {
		redirectWithMessage(c, adminRoot, adminRoot, "error", uiText("error_export_format"))
		return
	}

	reports, err := a.reports.Load(c.Request.Context())
	if err != nil {
		a.log.Error("export load failed", "error", err)
		redirectWithMessage(c, adminRoot, adminRoot, "error", uiText("error_reports_load_failed"))
		return
	}
	selected := resolveCategoryFilter(categoryOptions(reports), c.Query("category"))

	export, err := buildReportExport(filterReportsByCategory(reports, selected), format, selected, a.displayLocation(), a.now())
	if err != nil {
		a.log.Error("export generation failed", "format", format, "error", err)
		redirectWithMessage(c, adminFilterURL(selected), adminRoot, "error", uiText("error_export_failed"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Data(http.StatusOK, export.ContentType, export.Body)
}
