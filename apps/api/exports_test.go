package main

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReportsCSV(t *testing.T) {
	reports := sampleTestReports()
	reports = append(reports, Report{
		ID:           "r_0000003",
		Category:     "Other",
		Title:        "Comma, \"quoted\"",
		PhotoDataURL: "data:image/png;base64,AAAA",
		CreatedAt:    testNow.UnixMilli(),
	})

	body, err := buildReportsCSV(reports, time.UTC)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"id", "category", "title", "description", "status", "lat", "lon", "has_photo", "created_at"}, records[0])
	assert.Equal(t, []string{"r_0000001", "Garbage", "Overflowing bin", "Garbage spilling near market", "Open", "19.076000", "72.877700", "false", "2024-02-29T12:00:00Z"}, records[1])
	assert.Equal(t, "Assigned", records[2][4])
	assert.Equal(t, []string{"r_0000003", "Other", "Comma, \"quoted\"", "", "Open", "", "", "true", "2024-03-01T12:00:00Z"}, records[3])
}

func TestBuildReportsCSVNeutralisesFormulas(t *testing.T) {
	reports := []Report{{
		ID:          "r_0000004",
		Category:    "Other",
		Title:       `=HYPERLINK("http://evil.example","click")`,
		Description: "@SUM(A1:A9)",
		CreatedAt:   testNow.UnixMilli(),
	}, {
		ID:          "r_0000005",
		Category:    "Other",
		Title:       "+31 20 555 0100",
		Description: "-5 degrees\tnear the bridge",
		CreatedAt:   testNow.UnixMilli(),
	}}

	body, err := buildReportsCSV(reports, time.UTC)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, `'=HYPERLINK("http://evil.example","click")`, records[1][2])
	assert.Equal(t, "'@SUM(A1:A9)", records[1][3])
	assert.Equal(t, "'+31 20 555 0100", records[2][2])
	assert.Equal(t, "'-5 degrees\tnear the bridge", records[2][3])
}

func TestCSVSafeCell(t *testing.T) {
	assert.Equal(t, "", csvSafeCell(""))
	assert.Equal(t, "Pothole", csvSafeCell("Pothole"))
	assert.Equal(t, "a=b", csvSafeCell("a=b"))
	assert.Equal(t, "'\tcmd", csvSafeCell("\tcmd"))
	assert.Equal(t, "'\r=1", csvSafeCell("\r=1"))
}

func TestBuildReportsCSVUsesDisplayZone(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	body, err := buildReportsCSV([]Report{{ID: "r_1", Category: "Other", Title: "x", CreatedAt: testNow.UnixMilli()}}, loc)
	require.NoError(t, err)
	assert.Contains(t, body, "2024-03-01T13:00:00+01:00")
}

func TestBuildReportExport(t *testing.T) {
	reports := sampleTestReports()

	csvExport, err := buildReportExport(reports, exportFormatCSV, "", time.UTC, testNow)
	require.NoError(t, err)
	assert.Equal(t, "reports-20240301-1200.csv", csvExport.FileName)
	assert.Equal(t, "text/csv; charset=utf-8", csvExport.ContentType)

	pdfExport, err := buildReportExport(reports, exportFormatPDF, "Pothole", time.UTC, testNow)
	require.NoError(t, err)
	assert.Equal(t, "reports-20240301-1200.pdf", pdfExport.FileName)
	assert.Equal(t, "application/pdf", pdfExport.ContentType)
	assert.True(t, strings.HasPrefix(string(pdfExport.Body), "%PDF"))

	_, err = buildReportExport(reports, "xlsx", "", time.UTC, testNow)
	assert.Error(t, err)
}

func TestBuildReportsPDFEmpty(t *testing.T) {
	body, err := buildReportsPDF(nil, "Civic reports", time.UTC, testNow)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "%PDF"))
}

func TestTruncateForCell(t *testing.T) {
	assert.Equal(t, "short", truncateForCell("short", 10))
	assert.Equal(t, "abcdefg...", truncateForCell("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", truncateForCell(strings.Repeat("é", 20), 10))
}
