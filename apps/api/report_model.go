package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen     = "Open"
	StatusAssigned = "Assigned"
	StatusClosed   = "Closed"
)

type ReportLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Report is one citizen-submitted issue. The JSON shape is the persisted
// format of the item-backed store and must stay stable.
type Report struct {
	ID           string          `json:"id"`
	Category     string          `json:"category"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	PhotoDataURL string          `json:"photoDataUrl"`
	Location     *ReportLocation `json:"location"`
	Status       string          `json:"status"`
	CreatedAt    int64           `json:"createdAt"`
}

// EffectiveStatus treats records stored without a status as Open.
func (r Report) EffectiveStatus() string {
	if strings.TrimSpace(r.Status) == "" {
		return StatusOpen
	}
	return r.Status
}

func (r Report) CreatedTime() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type ReportStats struct {
	Total      int             `json:"total"`
	ByCategory []CategoryCount `json:"byCategory"`
}

type ReportInput struct {
	Category     string
	Title        string
	Description  string
	PhotoDataURL string
	Location     *ReportLocation
}

type sampleReport struct {
	Category    string
	Title       string
	Description string
	Location    ReportLocation
	Status      string
	Age         time.Duration
}

var sampleReportTemplates = []sampleReport{
	{
		Category:    "Garbage",
		Title:       "Overflowing bin",
		Description: "Garbage spilling near market",
		Location:    ReportLocation{Lat: 19.0760, Lon: 72.8777},
		Status:      StatusOpen,
		Age:         24 * time.Hour,
	},
	{
		Category:    "Pothole",
		Title:       "Large pothole",
		Description: "Bus route damaged",
		Location:    ReportLocation{Lat: 19.075, Lon: 72.88},
		Status:      StatusAssigned,
		Age:         5 * time.Hour,
	},
}

func sampleReports(now time.Time, newID func() string) []Report {
	out := make([]Report, 0, len(sampleReportTemplates))
	for _, sample := range sampleReportTemplates {
		location := sample.Location
		out = append(out, Report{
			ID:           newID(),
			Category:     sample.Category,
			Title:        sample.Title,
			Description:  sample.Description,
			PhotoDataURL: "",
			Location:     &location,
			Status:       sample.Status,
			CreatedAt:    now.Add(-sample.Age).UnixMilli(),
		})
	}
	return out
}

func generateReportID() string {
	return reportIDPrefix + strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", "")[:reportIDLength])
}

func canTransitionStatus(current, next string) bool {
	for _, candidate := range statusTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func isValidLocation(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
