package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const testSigningSecret = "0123456789abcdef"

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *Config {
	return &Config{
		Addr:             ":0",
		Env:              "test",
		StoreBackend:     storeBackendMemory,
		StorageKey:       defaultStorageKey,
		AppSigningSecret: testSigningSecret,
		PublicBaseURL:    "http://localhost:8080",
		MaxPhotoBytes:    defaultMaxPhotoBytes,
		LocationTimeout:  defaultLocationTimeout,
		DisplayTimeZone:  "UTC",
		MailerFromAddresses: map[string]string{
			"log": "noreply@civicreports.test",
		},
	}
}

func sequentialReportIDs() func() string {
	next := 0
	return func() string {
		next++
		return fmt.Sprintf("%s%07d", reportIDPrefix, next)
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := newApp(context.Background(), testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	app.now = func() time.Time { return testNow }
	app.newReportID = sequentialReportIDs()
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func newTestServer(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app := newTestApp(t)
	router, err := app.routes()
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	return app, router
}

func seedTestReports(t *testing.T, app *App) []Report {
	t.Helper()
	if _, err := seedIfEmpty(context.Background(), app.reports, app.now(), app.newReportID); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return mustLoadReports(t, app)
}

func mustLoadReports(t *testing.T, app *App) []Report {
	t.Helper()
	reports, err := app.reports.Load(context.Background())
	if err != nil {
		t.Fatalf("load reports: %v", err)
	}
	return reports
}

func findReport(reports []Report, id string) (Report, bool) {
	idx := indexOfReport(reports, id)
	if idx < 0 {
		return Report{}, false
	}
	return reports[idx], true
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func getPath(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// redirectQuery returns the query of a redirect response's Location.
func redirectQuery(t *testing.T, w *httptest.ResponseRecorder) (string, url.Values) {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 redirect, got %d: %s", w.Code, w.Body.String())
	}
	parsed, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	return parsed.Path, parsed.Query()
}

// failingItemStore simulates an unreachable backend.
type failingItemStore struct{}

func (failingItemStore) GetItem(context.Context, string) (string, bool, error) {
	return "", false, fmt.Errorf("connection refused")
}

func (failingItemStore) SetItem(context.Context, string, string) error {
	return fmt.Errorf("connection refused")
}
