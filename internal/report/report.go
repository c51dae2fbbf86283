// Package report renders service results for the terminal.
//
// Three formats are supported. "json" and "yaml" encode the value as is
// (field names come from the model struct tags), so scripts get a stable
// shape. "text" is for people: tables for lists, one line for single
// results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/intelligence-platform/internal/model"
)

// Formats lists the accepted --format values.
var Formats = []string{"text", "json", "yaml"}

// ValidFormat reports whether format is one of Formats.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Message is a plain status line. It renders as {"message": ...} in the
// structured formats.
type Message struct {
	Text string `json:"message" yaml:"message"`
}

// Step is one line of a scripted walkthrough such as the demo command.
type Step struct {
	Name   string `json:"step"   yaml:"step"`
	Result string `json:"result" yaml:"result"`
}

// Messagef builds a Message.
func Messagef(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...)}
}

type Renderer struct {
	Format string
	W      io.Writer
}

func New(format string, w io.Writer) *Renderer {
	return &Renderer{Format: format, W: w}
}

// Render writes v in the renderer's format.
func (r *Renderer) Render(v any) error {
	switch r.Format {
	case "json":
		enc := json.NewEncoder(r.W)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(r.W)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		return r.text(v)
	default:
		return fmt.Errorf("report: unknown format %q", r.Format)
	}
}

func (r *Renderer) text(v any) error {
	switch v := v.(type) {
	case Message:
		_, err := fmt.Fprintln(r.W, v.Text)
		return err
	case *model.User:
		_, err := fmt.Fprintf(r.W, "registered %s (id %d, role %s)\n", v.Username, v.ID, v.Role)
		return err
	case *model.Incident:
		return r.incidents([]model.Incident{*v})
	case []model.Incident:
		return r.incidents(v)
	case []model.TypeCount:
		return r.typeCounts(v)
	case model.LoadResult:
		_, err := fmt.Fprintln(r.W, loadLine(v))
		return err
	case model.SetupReport:
		return r.setup(v)
	case []model.IngestRun:
		return r.runs(v)
	case []Step:
		return r.steps(v)
	default:
		_, err := fmt.Fprintf(r.W, "%v\n", v)
		return err
	}
}

func (r *Renderer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.W, 0, 0, 2, ' ', 0)
}

func (r *Renderer) incidents(list []model.Incident) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(r.W, "no incidents")
		return err
	}
	tw := r.table()
	fmt.Fprintln(tw, "ID\tLAST UPDATED\tTYPE\tSEVERITY\tSTATUS\tREPORTED BY\tDESCRIPTION")
	for _, inc := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inc.ID,
			eventTime(inc.LastUpdated),
			dash(inc.IncidentType),
			dash(inc.Severity),
			dash(inc.Status),
			dash(inc.ReportedBy),
			inc.Description,
		)
	}
	return tw.Flush()
}

func (r *Renderer) typeCounts(counts []model.TypeCount) error {
	if len(counts) == 0 {
		_, err := fmt.Fprintln(r.W, "no incidents")
		return err
	}
	tw := r.table()
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", dash(c.IncidentType), c.Count)
	}
	return tw.Flush()
}

func (r *Renderer) setup(rep model.SetupReport) error {
	fmt.Fprintln(r.W, loadLine(rep.Users))
	for _, l := range rep.Loads {
		fmt.Fprintln(r.W, loadLine(l))
	}
	status := "setup complete"
	if rep.Failed() {
		status = "setup finished with errors"
	}
	_, err := fmt.Fprintln(r.W, status)
	return err
}

func (r *Renderer) runs(runs []model.IngestRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(r.W, "no ingest runs")
		return err
	}
	tw := r.table()
	fmt.Fprintln(tw, "ID\tKIND\tTABLE\tROWS\tSKIPPED\tFINISHED\tSOURCE")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			run.ID,
			run.Kind,
			run.TargetTable,
			run.Rows,
			run.Skipped,
			run.FinishedAt.UTC().Format(time.DateTime),
			run.Source,
		)
	}
	return tw.Flush()
}

func (r *Renderer) steps(steps []Step) error {
	tw := r.table()
	fmt.Fprintln(tw, "STEP\tRESULT")
	for _, st := range steps {
		fmt.Fprintf(tw, "%s\t%s\n", st.Name, st.Result)
	}
	return tw.Flush()
}

// loadLine summarises one load in a single line.
func loadLine(l model.LoadResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s: ", l.Source, l.Table)
	switch {
	case l.Error != "":
		fmt.Fprintf(&b, "FAILED (%s)", l.Error)
	case l.Missing:
		b.WriteString("file not found, skipped")
	default:
		fmt.Fprintf(&b, "%d %s", l.Rows, plural(l.Rows, "row", "rows"))
		if l.Skipped > 0 {
			fmt.Fprintf(&b, ", %d malformed %s skipped", l.Skipped, plural(l.Skipped, "line", "lines"))
		}
	}
	return b.String()
}

// eventTime prints a bare date when the time of day is midnight.
func eventTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
