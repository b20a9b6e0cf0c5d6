// Package report renders queue state and screening results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/queue"
)

const (
	GroupFailed     = "FAILED"
	GroupInProgress = "IN PROGRESS"

	messageWidth = 60
	noValue      = "-"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)

	bandStyles = map[api.ScoreBand]lipgloss.Style{
		api.BandStrong:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787")),
		api.BandModerate: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
		api.BandWeak:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F")),
	}
)

// Score renders the score coloured by its band.
func Score(c *api.Candidate) string {
	if c == nil {
		return noValue
	}
	return bandStyles[c.ScoreBand()].Render(strconv.Itoa(c.Score))
}

// ByVerdict groups items by verdict. Failed items are grouped under
// GroupFailed and unfinished ones under GroupInProgress.
func ByVerdict(items []queue.Item) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range items {
		key := GroupInProgress
		entry := map[string]string{
			"file":    item.FileName(),
			"status":  string(item.Status),
			"message": item.Message,
		}

		switch {
		case item.Status == queue.StatusSuccess && item.Result != nil:
			key = string(item.Result.Status)
			entry["candidate_id"] = item.CandidateID
			entry["score"] = strconv.Itoa(item.Result.Score)
			entry["band"] = string(item.Result.ScoreBand())
			entry["summary"] = strings.Join(item.Result.Summary, "; ")
			if item.Result.Name != "" {
				entry["name"] = item.Result.Name
			}
		case item.Status == queue.StatusError:
			key = GroupFailed
			if item.CandidateID != "" {
				entry["candidate_id"] = item.CandidateID
			}
		}

		report[key] = append(report[key], entry)
	}
	return report
}

// Totals summarises the queue as "N items: 2 success, 1 error".
func Totals(items []queue.Item) string {
	counts := make(map[queue.Status]int)
	for _, item := range items {
		counts[item.Status]++
	}

	order := []queue.Status{queue.StatusPending, queue.StatusUploading, queue.StatusPolling, queue.StatusSuccess, queue.StatusError}
	parts := make([]string, 0, len(order))
	for _, st := range order {
		if counts[st] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[st], st))
		}
	}

	if len(parts) == 0 {
		return "0 items"
	}
	return fmt.Sprintf("%d items: %s", len(items), strings.Join(parts, ", "))
}

// Table writes the queue as a table in insertion order.
func Table(w io.Writer, items []queue.Item) error {
	t := newTable("#", "FILE", "STATUS", "SCORE", "VERDICT", "MESSAGE")
	for i, item := range items {
		score, verdict := noValue, noValue
		if item.Result != nil {
			score = Score(item.Result)
			verdict = string(item.Result.Status)
		}
		t.Row(
			strconv.Itoa(i+1),
			item.FileName(),
			string(item.Status),
			score,
			verdict,
			logger.TruncateForLog(item.Message, messageWidth),
		)
	}

	return render(w, t)
}

// Candidates writes the dashboard list.
func Candidates(w io.Writer, list []*api.Candidate) error {
	t := newTable("CANDIDATE", "NAME", "SCORE", "VERDICT", "PROCESSED")
	for _, c := range list {
		t.Row(
			c.CandidateID,
			valueOr(c.Name),
			Score(c),
			string(c.Status),
			timestamp(c.ProcessingTimestamp),
		)
	}

	return render(w, t)
}

// Candidate writes the detail view of one result.
func Candidate(w io.Writer, c *api.Candidate) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Candidate:"), c.CandidateID)
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Name:"), valueOr(c.Name))
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Email:"), valueOr(c.Email))
	fmt.Fprintf(&b, "%s %s (%s)\n", headerStyle.Render("Score:"), Score(c), c.ScoreBand())
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Verdict:"), c.Status)
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Processed:"), timestamp(c.ProcessingTimestamp))

	b.WriteString("\n" + headerStyle.Render("Summary:") + "\n")
	for _, line := range c.Summary {
		fmt.Fprintf(&b, "  - %s\n", line)
	}

	if c.JobDescription != "" {
		b.WriteString("\n" + headerStyle.Render("Job description:") + "\n")
		b.WriteString(strings.TrimSpace(c.JobDescription) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// DumpToTmpFile writes v as indented JSON to a new temporary file and returns its name.
func DumpToTmpFile(v any) (string, error) {
	file, err := os.CreateTemp("", "screening_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func render(w io.Writer, t *table.Table) error {
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func valueOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return noValue
	}
	return s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return noValue
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
