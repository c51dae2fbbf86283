package model

import "time"

// Incident is a row of the incidents table.
//
// LastUpdated is the caller-supplied time of the reported event;
// CreatedAt is when the row was written. Only Status changes after insert.
//
// The text columns are nullable in the schema because bulk loads may leave
// them empty; NULL is read back as "".
type Incident struct {
	ID           int64     `json:"id"           yaml:"id"`
	LastUpdated  time.Time `json:"lastUpdated"  yaml:"lastUpdated"`
	IncidentType string    `json:"incidentType" yaml:"incidentType"`
	Severity     string    `json:"severity"     yaml:"severity"`
	Status       string    `json:"status"       yaml:"status"`
	Description  string    `json:"description"  yaml:"description"`
	ReportedBy   string    `json:"reportedBy"   yaml:"reportedBy"`
	CreatedAt    time.Time `json:"createdAt"    yaml:"createdAt"`
}

// NewIncident carries the caller-supplied fields of an insert.
type NewIncident struct {
	LastUpdated  time.Time
	IncidentType string
	Severity     string
	Status       string
	Description  string
	ReportedBy   string
}

// TypeCount is one row of the by-type aggregate.
type TypeCount struct {
	IncidentType string `json:"incidentType" yaml:"incidentType"`
	Count        int    `json:"count"        yaml:"count"`
}
