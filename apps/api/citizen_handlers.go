package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const citizenRoot = "/"

func (a *App) registerCitizenRoutes(r *gin.Engine) {
	r.GET("/", a.citizenPageHandler)
	r.POST("/reports", a.citizenSubmitHandler)
}

func (a *App) citizenPageHandler(c *gin.Context) {
	reports := a.loadReportsForView(c.Request.Context())
	a.renderPage(c, http.StatusOK, templateCitizenPath, a.citizenViewData(c, reports, citizenFormView{}))
}

func (a *App) citizenViewData(c *gin.Context, reports []Report, form citizenFormView) citizenViewData {
	return citizenViewData{
		pageBaseViewData:  a.pageBaseData(c, "page_title_citizen", "citizen"),
		Categories:        reportCategories,
		Form:              form,
		LocationTimeoutMs: a.cfg.LocationTimeout.Milliseconds(),
		MaxPhotoBytes:     a.cfg.MaxPhotoBytes,
		History:           a.historyViews(reports),
	}
}

func (a *App) citizenSubmitHandler(c *gin.Context) {
	input, photoErr := a.parseReportForm(c)

	if _, err := a.createReport(c.Request.Context(), input); err != nil {
		status := http.StatusInternalServerError
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			status = apiErr.Status
		}
		data := a.citizenViewData(c, a.loadReportsForView(c.Request.Context()), citizenFormView{
			Category:    input.Category,
			Title:       input.Title,
			Description: input.Description,
		})
		data.NoticeMessage = ""
		data.ErrorMessage = userFacingMessage(err, uiText("error_reports_load_failed"))
		a.renderPage(c, status, templateCitizenPath, data)
		return
	}

	notice := uiText("notice_report_submitted")
	if photoErr != nil {
		notice += " " + fmt.Sprintf(uiText("notice_photo_skipped"), a.photoSkipReason(photoErr))
	}
	redirectWithMessage(c, citizenRoot, citizenRoot, "notice", notice)
}

// parseReportForm reads a form submission. The photo is converted before
// the input is returned; a photo that cannot be used is dropped and its
// error returned alongside the input.
func (a *App) parseReportForm(c *gin.Context) (ReportInput, error) {
	input := ReportInput{
		Category:    c.PostForm("category"),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Location:    parseLocationFields(c.PostForm("lat"), c.PostForm("lon")),
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return input, nil
	}
	dataURL, err := photoDataURLFromUpload(fileHeader, a.cfg.MaxPhotoBytes)
	if err != nil {
		a.log.Warn("photo skipped", "filename", fileHeader.Filename, "size", fileHeader.Size, "err", err)
		return input, err
	}
	input.PhotoDataURL = dataURL
	return input, nil
}

func (a *App) photoSkipReason(err error) string {
	switch {
	case errors.Is(err, errPhotoTooLarge):
		return fmt.Sprintf("it is larger than %s", formatByteSize(a.cfg.MaxPhotoBytes))
	case errors.Is(err, errPhotoUnsupported):
		return "only JPEG, PNG, WebP or GIF images are accepted"
	default:
		return "it could not be read"
	}
}

func formatByteSize(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit && n%(unit*unit) == 0:
		return fmt.Sprintf("%d MiB", n/(unit*unit))
	case n >= unit*unit:
		return fmt.Sprintf("%.1f MiB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%d KiB", n/unit)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
