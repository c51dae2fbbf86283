package model

import "time"

// Ingestion kinds recorded in the ingest_runs ledger.
const (
	IngestLegacyCredentials = "legacy_credentials"
	IngestBulkAppend        = "bulk_append"
)

// LegacyCredential is one well-formed line of a legacy users file.
// Line is the 1-based line number, kept for logging.
type LegacyCredential struct {
	Username     string
	PasswordHash string
	Line         int
}

// TabularBatch is a parsed header-described file ready to append to Table.
// Lines[i] is the file line Rows[i] started on; when Lines is nil, rows are
// assumed to follow the header one per line (line 2 onwards).
type TabularBatch struct {
	Source string
	Table  string
	Header []string
	Rows   [][]string
	Lines  []int
}

// LoadResult describes the outcome of one migration or bulk load call.
//
// Missing is set when the source file did not exist; that is a soft no-op,
// so Rows is 0 and no error is returned. Skipped counts malformed lines that
// were tolerated (legacy credentials only; bulk loads never skip).
type LoadResult struct {
	Source  string `json:"source"  yaml:"source"`
	Table   string `json:"table"   yaml:"table"`
	Rows    int    `json:"rows"    yaml:"rows"`
	Skipped int    `json:"skipped" yaml:"skipped"`
	Missing bool   `json:"missing" yaml:"missing"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// IngestRun is a row of the ingest_runs ledger. A run is recorded only when
// the call actually changed data, so re-running an unchanged migration leaves
// the ledger untouched.
type IngestRun struct {
	ID          string    `json:"id"          yaml:"id"`
	Kind        string    `json:"kind"        yaml:"kind"`
	Source      string    `json:"source"      yaml:"source"`
	TargetTable string    `json:"targetTable" yaml:"targetTable"`
	Rows        int       `json:"rows"        yaml:"rows"`
	Skipped     int       `json:"skipped"     yaml:"skipped"`
	StartedAt   time.Time `json:"startedAt"   yaml:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"  yaml:"finishedAt"`
}

// SetupReport is the outcome of a full setup: schema, users, bulk files.
type SetupReport struct {
	Users LoadResult   `json:"users" yaml:"users"`
	Loads []LoadResult `json:"loads" yaml:"loads"`
}

// Failed reports whether any step recorded an error.
func (r SetupReport) Failed() bool {
	if r.Users.Error != "" {
		return true
	}
	for _, l := range r.Loads {
		if l.Error != "" {
			return true
		}
	}
	return false
}
