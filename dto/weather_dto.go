package dto

import "time"

// Forecast is the opaque value object handed to us by the upstream
// weather integration. Only the fields the post builder needs.
type Forecast struct {
	Condition   string `json:"condition"`
	Temperature string `json:"temperature"`
	Narrative   string `json:"narrative"`
}

// Alert severities as reported upstream.
const (
	SeverityExtreme  = "Extreme"
	SeveritySevere   = "Severe"
	SeverityModerate = "Moderate"
	SeverityMinor    = "Minor"
)

// Alert is an active weather alert for a location.
type Alert struct {
	Id          string    `json:"id"`
	Event       string    `json:"event"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Onset       time.Time `json:"onset"`
	Ends        time.Time `json:"ends"`
}
