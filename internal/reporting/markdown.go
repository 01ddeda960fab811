package reporting

import (
	"fmt"
	"strings"
	"time"

	"tradestream/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Validation Activity Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n", windowBound(r.WindowStart), windowBound(r.WindowEnd)))

	// Outcome Totals
	sb.WriteString("## Outcome Totals\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Processed | %d |\n", r.Processed()))
	sb.WriteString(fmt.Sprintf("| Accepted | %d |\n", r.Accepted))
	sb.WriteString(fmt.Sprintf("| Rejected | %d |\n", r.Rejected))
	sb.WriteString(fmt.Sprintf("| Acceptance Rate | %.2f%% |\n", r.AcceptanceRate()*100))
	sb.WriteString("\n")

	// Rejection Reasons
	sb.WriteString("## Rejection Reasons\n\n")
	if len(r.TopReasons) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, reason := range r.TopReasons {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", reason.Reason, reason.Count))
		}
	} else {
		sb.WriteString("No rejections recorded.\n")
	}
	sb.WriteString("\n")

	// Daily Activity
	sb.WriteString("## Daily Activity\n\n")
	if len(r.DailyActivity) > 0 {
		sb.WriteString("| Day | Accepted | Rejected |\n")
		sb.WriteString("|-----|----------|----------|\n")
		for _, day := range r.DailyActivity {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n",
				domain.FormatDate(day.Day), day.Accepted, day.Rejected))
		}
	} else {
		sb.WriteString("No activity recorded.\n")
	}
	sb.WriteString("\n")

	// Busiest Books
	sb.WriteString("## Busiest Books\n\n")
	if len(r.BusiestBooks) > 0 {
		sb.WriteString("| Book | Candidates |\n")
		sb.WriteString("|------|------------|\n")
		for _, book := range r.BusiestBooks {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", book.BookID, book.Count))
		}
	} else {
		sb.WriteString("No book activity recorded.\n")
	}
	sb.WriteString("\n")

	// Projection State
	sb.WriteString("## Projection State\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.Projection.Trades))
	sb.WriteString(fmt.Sprintf("| Accepted Versions | %d |\n", r.Projection.Rows))
	sb.WriteString(fmt.Sprintf("| Active | %d |\n", r.Projection.Active))
	sb.WriteString(fmt.Sprintf("| Expired | %d |\n", r.Projection.Expired))
	sb.WriteString(fmt.Sprintf("| Exceptions | %d |\n", r.Exceptions))
	sb.WriteString("\n")

	return sb.String()
}

// windowBound renders a window edge; a zero start means an unbounded window.
func windowBound(t time.Time) string {
	if t.IsZero() {
		return "beginning"
	}
	return t.Format(time.RFC3339)
}
