package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	exportFormatCSV = "csv"
	exportFormatPDF = "pdf"
)

var exportFormats = []string{exportFormatCSV, exportFormatPDF}

type reportExport struct {
	ContentType string
	FileName    string
	Body        []byte
}

func buildReportExport(reports []Report, format, category string, loc *time.Location, generatedAt time.Time) (reportExport, error) {
	stamp := generatedAt.In(loc).Format("20060102-1504")
	switch format {
	case exportFormatCSV:
		body, err := buildReportsCSV(reports, loc)
		if err != nil {
			return reportExport{}, err
		}
		return reportExport{ContentType: "text/csv; charset=utf-8", FileName: "reports-" + stamp + ".csv", Body: []byte(body)}, nil
	case exportFormatPDF:
		title := "Civic reports"
		if category != "" {
			title = "Civic reports: " + category
		}
		body, err := buildReportsPDF(reports, title, loc, generatedAt)
		if err != nil {
			return reportExport{}, err
		}
		return reportExport{ContentType: "application/pdf", FileName: "reports-" + stamp + ".pdf", Body: body}, nil
	default:
		return reportExport{}, fmt.Errorf("unsupported export format %q", format)
	}
}

func buildReportsCSV(reports []Report, loc *time.Location) (string, error) {
	buffer := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buffer)
	headers := []string{"id", "category", "title", "description", "status", "lat", "lon", "has_photo", "created_at"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}
	for _, report := range reports {
		lat, lon := "", ""
		if report.Location != nil {
			lat = strconv.FormatFloat(report.Location.Lat, 'f', 6, 64)
			lon = strconv.FormatFloat(report.Location.Lon, 'f', 6, 64)
		}
		row := []string{
			report.ID,
			csvSafeCell(report.Category),
			csvSafeCell(report.Title),
			csvSafeCell(report.Description),
			report.EffectiveStatus(),
			lat,
			lon,
			strconv.FormatBool(report.PhotoDataURL != ""),
			report.CreatedTime().In(loc).Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// csvSafeCell quotes user text that a spreadsheet would evaluate as a formula.
func csvSafeCell(value string) string {
	if value != "" && strings.ContainsRune("=+-@\t\r", rune(value[0])) {
		return "'" + value
	}
	return value
}

func buildReportsPDF(reports []Report, title string, loc *time.Location, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, tr(title))

	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generatedAt.In(loc).Format("2006-01-02 15:04 MST")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total reports: %d", len(reports)))
	pdf.Ln(10)

	stats := computeReportStats(reports)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "By category")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, entry := range stats.ByCategory {
		pdf.Cell(0, 6, tr(fmt.Sprintf("- %s: %d", entry.Category, entry.Count)))
		pdf.Ln(6)
	}

	statusCounts := map[string]int{}
	for _, report := range reports {
		statusCounts[report.EffectiveStatus()]++
	}
	statusKeys := make([]string, 0, len(statusCounts))
	for key := range statusCounts {
		statusKeys = append(statusKeys, key)
	}
	sort.Slice(statusKeys, func(i, j int) bool {
		if statusCounts[statusKeys[i]] == statusCounts[statusKeys[j]] {
			return statusKeys[i] < statusKeys[j]
		}
		return statusCounts[statusKeys[i]] > statusCounts[statusKeys[j]]
	})

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Status distribution")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, key := range statusKeys {
		pdf.Cell(0, 6, fmt.Sprintf("- %s: %d", key, statusCounts[key]))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 9)
	widths := []float64{24, 28, 70, 22, 46}
	headers := []string{"ID", "Category", "Title", "Status", "Created"}
	for idx, header := range headers {
		pdf.CellFormat(widths[idx], 7, header, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, report := range reports {
		cells := []string{
			report.ID,
			report.Category,
			truncateForCell(report.Title, 42),
			report.EffectiveStatus(),
			report.CreatedTime().In(loc).Format("2006-01-02 15:04"),
		}
		for idx, cell := range cells {
			pdf.CellFormat(widths[idx], 6, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buffer := bytes.NewBuffer(nil)
	if err := pdf.Output(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func truncateForCell(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
