package commands

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
	"syscall"
	"time"

	"bugtracker/internal/models"
	contextutils "bugtracker/internal/utils"

	"golang.org/x/term"
)

// isTerminal reports whether stdin is interactive; replaced in tests
var isTerminal = func() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// maskDatabaseURL hides credentials in a connection URL. SQLite paths pass through.
func maskDatabaseURL(raw string) string {
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword("***", "***")
	}
	return u.String()
}

// confirm asks a yes/no question on an interactive terminal. Non-interactive
// callers must pass --yes instead.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if !isTerminal() {
		return false, contextutils.ErrorWithContextf("stdin is not a terminal; pass --yes to confirm")
	}
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, contextutils.WrapError(err, "failed to read confirmation")
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// printBugTable writes one line per bug in a fixed width layout
func printBugTable(w io.Writer, bugs []models.BugSummary) {
	if len(bugs) == 0 {
		fmt.Fprintln(w, "No bugs found")
		return
	}
	fmt.Fprintf(w, "%-36s  %-13s  %-9s  %-12s  %-14s  %-16s  %s\n", "ID", "Status", "Severity", "Category", "Assignee", "Reported", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 140))
	for _, b := range bugs {
		fmt.Fprintf(w, "%-36s  %-13s  %-9s  %-12s  %-14s  %-16s  %s\n",
			b.ID, b.Status, orDash(b.Severity), orDash(b.Category), truncate(orDash(b.AssignedTo), 14),
			formatTime(b.ReportedAt), truncate(b.Title, 50))
	}
	fmt.Fprintf(w, "\n%d bug(s)\n", len(bugs))
}

// printBatchResult writes the outcome of a bulk operation
func printBatchResult(w io.Writer, result *models.BatchResult) {
	fmt.Fprintf(w, "Applied: %d  Unchanged: %d  Errors: %d\n", len(result.AppliedIDs), len(result.Unchanged), len(result.Errors))
	for _, a := range result.Applied {
		fmt.Fprintf(w, "  ✓ %s\n", a)
	}
	for _, id := range result.Unchanged {
		fmt.Fprintf(w, "  = %s (already in requested state)\n", id)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  ✗ %s: %s (%s)\n", e.BugID, e.Error, e.Code)
	}
}
