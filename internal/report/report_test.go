package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sakif/intelligence-platform/internal/model"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func render(t *testing.T, format string, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, New(format, &buf).Render(v))
	return buf.Bytes()
}

func sampleIncidents() []model.Incident {
	return []model.Incident{
		{
			ID:           1,
			LastUpdated:  time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
			IncidentType: "Phishing",
			Severity:     "High",
			Status:       "Open",
			Description:  "Suspicious email",
			ReportedBy:   "alice",
			CreatedAt:    time.Date(2024, 11, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:           2,
			LastUpdated:  time.Date(2024, 11, 2, 14, 30, 0, 0, time.UTC),
			IncidentType: "Malware",
			Severity:     "Low",
			Description:  "USB stick found in lobby",
			CreatedAt:    time.Date(2024, 11, 3, 9, 1, 0, 0, time.UTC),
		},
	}
}

func sampleSetup() model.SetupReport {
	return model.SetupReport{
		Users: model.LoadResult{Source: "DATA/users.txt", Table: "users", Rows: 2, Skipped: 1},
		Loads: []model.LoadResult{
			{
				Source: "DATA/it_tickets.csv",
				Table:  "it_tickets",
				Error:  `DATA/it_tickets.csv:3: expected 5 fields, got 4`,
			},
			{Source: "DATA/incidents.csv", Table: "incidents", Missing: true},
			{Source: "DATA/dataset_metadata.csv", Table: "dataset_metadata", Rows: 1},
		},
	}
}

// =============================================================================
// TEXT (golden)
// =============================================================================

func TestRender_Text_Incidents(t *testing.T) {
	newGoldie(t).Assert(t, "incidents_text", render(t, "text", sampleIncidents()))
}

func TestRender_Text_TypeCounts(t *testing.T) {
	counts := []model.TypeCount{
		{IncidentType: "Phishing", Count: 3},
		{IncidentType: "", Count: 1},
		{IncidentType: "Malware", Count: 1},
	}
	newGoldie(t).Assert(t, "type_counts_text", render(t, "text", counts))
}

func TestRender_Text_Setup(t *testing.T) {
	newGoldie(t).Assert(t, "setup_text", render(t, "text", sampleSetup()))
}

func TestRender_Text_Runs(t *testing.T) {
	runs := []model.IngestRun{
		{
			ID:          "cs9a1m2p0000000000a0",
			Kind:        model.IngestBulkAppend,
			Source:      "DATA/it_tickets.csv",
			TargetTable: "it_tickets",
			Rows:        12,
			FinishedAt:  time.Date(2024, 11, 3, 9, 15, 0, 0, time.UTC),
		},
		{
			ID:          "cs9a1m2p0000000000b0",
			Kind:        model.IngestLegacyCredentials,
			Source:      "DATA/users.txt",
			TargetTable: "users",
			Rows:        3,
			Skipped:     1,
			FinishedAt:  time.Date(2024, 11, 3, 9, 14, 59, 0, time.UTC),
		},
	}
	newGoldie(t).Assert(t, "runs_text", render(t, "text", runs))
}

func TestRender_Text_SingleLines(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"message", Messagef("incident %d deleted", 7), "incident 7 deleted\n"},
		{"user", &model.User{ID: 3, Username: "alice", Role: "admin"}, "registered alice (id 3, role admin)\n"},
		{"empty incidents", []model.Incident{}, "no incidents\n"},
		{"empty counts", []model.TypeCount{}, "no incidents\n"},
		{"empty runs", []model.IngestRun{}, "no ingest runs\n"},
		{
			"load rows singular",
			model.LoadResult{Source: "a.csv", Table: "t", Rows: 1},
			"a.csv -> t: 1 row\n",
		},
		{
			"load nothing new",
			model.LoadResult{Source: "users.txt", Table: "users"},
			"users.txt -> users: 0 rows\n",
		},
		{
			"load skipped plural",
			model.LoadResult{Source: "users.txt", Table: "users", Rows: 4, Skipped: 2},
			"users.txt -> users: 4 rows, 2 malformed lines skipped\n",
		},
		{
			"clean setup",
			model.SetupReport{Users: model.LoadResult{Source: "u", Table: "users", Rows: 1}},
			"u -> users: 1 row\nsetup complete\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(render(t, "text", tt.v)))
		})
	}
}

func TestRender_Text_Steps(t *testing.T) {
	steps := []Step{
		{Name: "register alice", Result: "ok (id 1)"},
		{Name: "login with wrong password", Result: "rejected"},
	}
	want := "STEP                       RESULT\n" +
		"register alice             ok (id 1)\n" +
		"login with wrong password  rejected\n"
	assert.Equal(t, want, string(render(t, "text", steps)))
}

func TestRender_Text_SingleIncident(t *testing.T) {
	inc := sampleIncidents()[0]
	out := string(render(t, "text", &inc))

	assert.Contains(t, out, "LAST UPDATED")
	assert.Contains(t, out, "Suspicious email")
	assert.NotContains(t, out, "USB stick")
}

// =============================================================================
// STRUCTURED
// =============================================================================

func TestRender_JSON_Incidents(t *testing.T) {
	out := render(t, "json", sampleIncidents())

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got, 2)

	assert.Equal(t, float64(1), got[0]["id"])
	assert.Equal(t, "2024-11-01T00:00:00Z", got[0]["lastUpdated"])
	assert.Equal(t, "Phishing", got[0]["incidentType"])
	assert.Equal(t, "", got[1]["status"])
}

func TestRender_JSON_UserOmitsHash(t *testing.T) {
	user := &model.User{ID: 1, Username: "alice", PasswordHash: "$2a$12$secret", Role: "user"}
	out := string(render(t, "json", user))

	assert.Contains(t, out, `"username": "alice"`)
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "password")
}

func TestRender_JSON_Message(t *testing.T) {
	out := render(t, "json", Messagef("login successful"))
	assert.JSONEq(t, `{"message": "login successful"}`, string(out))
}

func TestRender_YAML_Setup(t *testing.T) {
	out := render(t, "yaml", sampleSetup())

	var got model.SetupReport
	require.NoError(t, yaml.Unmarshal(out, &got))
	assert.Equal(t, sampleSetup(), got)
	assert.Contains(t, string(out), "missing: true")
}

func TestRender_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := New("xml", &buf).Render(Messagef("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestValidFormat(t *testing.T) {
	for _, f := range Formats {
		assert.True(t, ValidFormat(f), f)
	}
	assert.False(t, ValidFormat("xml"))
	assert.False(t, ValidFormat(""))
}
