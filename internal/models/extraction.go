package models

import "strings"

// ExtractionMethod labels which path produced a record's extraction result
type ExtractionMethod string

const (
	MethodAuthenticated ExtractionMethod = "authenticated"
	MethodFallback      ExtractionMethod = "fallback"
	MethodSkipped       ExtractionMethod = "skipped"
)

// HiringManager is one entry of a posting's hiring team
type HiringManager struct {
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	Company    string `json:"company,omitempty"`
}

// ExtractionResult is the outcome of extracting the hiring team for one job record
type ExtractionResult struct {
	Success        bool             `json:"success"`
	HiringManagers []HiringManager  `json:"hiring_managers"`
	Method         ExtractionMethod `json:"method"`
	Error          string           `json:"error,omitempty"`
	Attempts       int              `json:"attempts,omitempty"`
}

// Output column names written onto augmented records
const (
	ColumnManagersCount    = "hiring_managers_count"
	ColumnManagersNames    = "hiring_managers_names"
	ColumnManagersTitles   = "hiring_managers_titles"
	ColumnManagersProfiles = "hiring_managers_profiles"
	ColumnFetchSuccess     = "hiring_manager_fetch_success"
	ColumnMethod           = "hiring_manager_method"
	ColumnError            = "hiring_manager_error"
)

// ColumnNames lists the extraction columns in output order
var ColumnNames = []string{
	ColumnManagersCount,
	ColumnManagersNames,
	ColumnManagersTitles,
	ColumnManagersProfiles,
	ColumnFetchSuccess,
	ColumnMethod,
	ColumnError,
}

const columnSeparator = " | "

// Columns flattens the result into the per-record output fields
func (r *ExtractionResult) Columns() map[string]interface{} {
	names := make([]string, 0, len(r.HiringManagers))
	titles := make([]string, 0, len(r.HiringManagers))
	profiles := make([]string, 0, len(r.HiringManagers))
	for _, m := range r.HiringManagers {
		names = append(names, m.Name)
		titles = append(titles, m.Title)
		profiles = append(profiles, m.ProfileURL)
	}

	return map[string]interface{}{
		ColumnManagersCount:    len(r.HiringManagers),
		ColumnManagersNames:    strings.Join(names, columnSeparator),
		ColumnManagersTitles:   strings.Join(titles, columnSeparator),
		ColumnManagersProfiles: strings.Join(profiles, columnSeparator),
		ColumnFetchSuccess:     r.Success,
		ColumnMethod:           string(r.Method),
		ColumnError:            r.Error,
	}
}

// BatchOutcome aggregates counters for one pipeline run
type BatchOutcome struct {
	Total              int `json:"total"`
	Attempted          int `json:"attempted"`
	Succeeded          int `json:"succeeded"`
	AuthenticatedCount int `json:"authenticated_count"`
	FallbackCount      int `json:"fallback_count"`
	SkippedCount       int `json:"skipped_count"`
	JobsWithManagers   int `json:"jobs_with_managers"`
	TotalManagersFound int `json:"total_managers_found"`
}

// Add folds one record's result into the outcome
func (o *BatchOutcome) Add(result *ExtractionResult) {
	o.Total++
	if result == nil || result.Method == MethodSkipped {
		o.SkippedCount++
		return
	}

	o.Attempted++
	switch result.Method {
	case MethodAuthenticated:
		o.AuthenticatedCount++
	case MethodFallback:
		o.FallbackCount++
	}
	if result.Success {
		o.Succeeded++
	}
	if n := len(result.HiringManagers); n > 0 {
		o.JobsWithManagers++
		o.TotalManagersFound += n
	}
}

// SuccessRate is the percentage of attempted records that yielded at least one manager
func (o BatchOutcome) SuccessRate() float64 {
	if o.Attempted == 0 {
		return 0
	}
	return float64(o.JobsWithManagers) / float64(o.Attempted) * 100
}

// AvgManagersPerJob averages over records that had a hiring team
func (o BatchOutcome) AvgManagersPerJob() float64 {
	if o.JobsWithManagers == 0 {
		return 0
	}
	return float64(o.TotalManagersFound) / float64(o.JobsWithManagers)
}
