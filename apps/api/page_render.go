package main

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

func (a *App) renderPage(c *gin.Context, status int, contentTemplatePath string, data any) {
	templates, err := a.templates.templatesForRender(contentTemplatePath)
	if err != nil {
		c.String(http.StatusInternalServerError, "template error: %v", err)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if executeErr := templates.ExecuteTemplate(c.Writer, "layout", data); executeErr != nil {
		a.log.Error("render template failed", "template", contentTemplatePath, "error", executeErr)
		if !c.Writer.Written() {
			c.String(http.StatusInternalServerError, "render failure")
		}
	}
}

func (a *App) pageBaseData(c *gin.Context, titleKey, activeNav string) pageBaseViewData {
	return pageBaseViewData{
		Title:         uiText(titleKey),
		Text:          uiTranslations,
		ActiveNav:     activeNav,
		CurrentPath:   c.Request.URL.RequestURI(),
		ErrorMessage:  strings.TrimSpace(c.Query("error")),
		NoticeMessage: strings.TrimSpace(c.Query("notice")),
	}
}

// sanitizeRedirectTarget keeps redirects on this host and under root.
// Anything else falls back to root.
func sanitizeRedirectTarget(raw, root string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return root
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return root
	}
	if parsed.IsAbs() || parsed.Host != "" {
		return root
	}
	if strings.HasPrefix(parsed.Path, "//") {
		return root
	}
	if parsed.Path != root && !strings.HasPrefix(parsed.Path, strings.TrimSuffix(root, "/")+"/") {
		return root
	}

	target := parsed.Path
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return target
}

func redirectWithMessage(c *gin.Context, target, root, key, value string) {
	parsed, err := url.Parse(sanitizeRedirectTarget(target, root))
	if err != nil {
		c.Redirect(http.StatusSeeOther, root)
		return
	}
	query := parsed.Query()
	query.Del("error")
	query.Del("notice")
	query.Set(key, value)
	parsed.RawQuery = query.Encode()

	redirectURL := parsed.Path
	if parsed.RawQuery != "" {
		redirectURL += "?" + parsed.RawQuery
	}
	c.Redirect(http.StatusSeeOther, redirectURL)
}

func userFacingMessage(err error, fallback string) string {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		return apiErr.Message
	}
	return fallback
}
