package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type reportCreateBody struct {
	Category     string          `json:"category"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	PhotoDataURL string          `json:"photoDataUrl"`
	Location     *ReportLocation `json:"location"`
}

type statusUpdateBody struct {
	Status string `json:"status"`
}

type confirmationBody struct {
	Action   string `json:"action"`
	ReportID string `json:"reportId"`
}

func (a *App) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/reports", a.apiListReportsHandler)
		api.POST("/reports", a.apiCreateReportHandler)
		api.DELETE("/reports", a.apiClearReportsHandler)
		api.POST("/reports/:id/status", a.apiReportStatusHandler)
		api.DELETE("/reports/:id", a.apiDeleteReportHandler)
		api.GET("/categories", a.apiCategoriesHandler)
		api.GET("/stats", a.apiStatsHandler)
		api.POST("/confirmations", a.apiCreateConfirmationHandler)
	}
}

func (a *App) apiListReportsHandler(c *gin.Context) {
	reports, err := a.listReports(c.Request.Context(), strings.TrimSpace(c.Query("category")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "total": len(reports)})
}

// apiCreateReportHandler accepts JSON or a multipart form. A photo that
// cannot be used is dropped and reported in photoSkipped.
func (a *App) apiCreateReportHandler(c *gin.Context) {
	var (
		input    ReportInput
		photoErr error
	)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body reportCreateBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_json", Message: "Invalid JSON body"})
			return
		}
		input = ReportInput{
			Category:     body.Category,
			Title:        body.Title,
			Description:  body.Description,
			PhotoDataURL: body.PhotoDataURL,
			Location:     body.Location,
		}
		if err := validatePhotoDataURL(input.PhotoDataURL, a.cfg.MaxPhotoBytes); err != nil {
			a.log.Warn("photo skipped", "err", err)
			input.PhotoDataURL = ""
			photoErr = err
		}
	} else {
		input, photoErr = a.parseReportForm(c)
	}

	report, err := a.createReport(c.Request.Context(), input)
	if err != nil {
		writeAPIError(c, err)
		return
	}

	response := gin.H{"report": report, "message": uiText("notice_report_submitted")}
	if photoErr != nil {
		response["photoSkipped"] = a.photoSkipReason(photoErr)
	}
	c.JSON(http.StatusCreated, response)
}

func (a *App) apiReportStatusHandler(c *gin.Context) {
	var body statusUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_json", Message: "Invalid JSON body"})
		return
	}
	report, err := a.updateReportStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *App) apiCategoriesHandler(c *gin.Context) {
	reports, err := a.listReports(c.Request.Context(), "")
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"categories": reportCategories,
		"present":    categoryOptions(reports),
	})
}

func (a *App) apiStatsHandler(c *gin.Context) {
	reports, err := a.listReports(c.Request.Context(), "")
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, computeReportStats(reports))
}

func (a *App) apiCreateConfirmationHandler(c *gin.Context) {
	var body confirmationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_json", Message: "Invalid JSON body"})
		return
	}
	action := strings.TrimSpace(body.Action)
	reportID := strings.TrimSpace(body.ReportID)
	if !containsString(confirmActions, action) {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_action", Message: "Action must be delete or clear"})
		return
	}

	switch action {
	case confirmActionDelete:
		reports, err := a.listReports(c.Request.Context(), "")
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if indexOfReport(reports, reportID) < 0 {
			writeAPIError(c, &apiError{Status: http.StatusNotFound, Code: "report_not_found", Message: "Report not found"})
			return
		}
	case confirmActionClear:
		reportID = ""
	}

	token, err := a.createConfirmationToken(action, reportID)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":     token,
		"action":    action,
		"reportId":  reportID,
		"expiresAt": a.now().Add(confirmationTokenTTL).UTC().Format(time.RFC3339),
	})
}

func (a *App) apiDeleteReportHandler(c *gin.Context) {
	reportID := c.Param("id")
	if err := a.requireConfirmation(c, confirmActionDelete, reportID); err != nil {
		writeAPIError(c, err)
		return
	}
	if err := a.deleteReport(c.Request.Context(), reportID); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": reportID})
}

func (a *App) apiClearReportsHandler(c *gin.Context) {
	if err := a.requireConfirmation(c, confirmActionClear, ""); err != nil {
		writeAPIError(c, err)
		return
	}
	if err := a.clearReports(c.Request.Context()); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (a *App) requireConfirmation(c *gin.Context, action, reportID string) error {
	token := strings.TrimSpace(c.Query("confirm_token"))
	if token == "" {
		token = strings.TrimSpace(c.GetHeader("X-Confirm-Token"))
	}
	if err := a.verifyConfirmationToken(token, action, reportID); err != nil {
		a.log.Warn("confirmation rejected", "action", action, "id", reportID, "error", err)
		return &apiError{Status: http.StatusForbidden, Code: "confirmation_required", Message: "A valid confirmation token is required"}
	}
	return nil
}
