package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage/memory"
)

var (
	day1 = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
)

func seedTrade(tradeID string, version int, bookID string) *domain.Trade {
	maturity := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	return &domain.Trade{
		TradeID:        tradeID,
		Version:        version,
		CounterPartyID: "CP-1",
		BookID:         bookID,
		MaturityDate:   &maturity,
		CreatedDate:    day1,
		ExpiredFlag:    domain.StatusActive,
		RequestID:      "req-1",
	}
}

func setupTestData(t *testing.T) (*memory.OutcomeStore, *memory.ProjectionStore, *memory.ExceptionStore) {
	ctx := context.Background()

	outcomeStore := memory.NewOutcomeStore()
	projectionStore := memory.NewProjectionStore()
	exceptionStore := memory.NewExceptionStore()

	// Audit rows: day1 has two accepts, day2 has one accept and three rejects.
	outcomes := []*domain.OutcomeRecord{
		domain.NewOutcomeRecord(seedTrade("T-1", 1, "B-1"), domain.OutcomeAccepted, "", day1.Add(9*time.Hour)),
		domain.NewOutcomeRecord(seedTrade("T-2", 1, "B-2"), domain.OutcomeAccepted, "", day1.Add(10*time.Hour)),
		domain.NewOutcomeRecord(seedTrade("T-1", 2, "B-1"), domain.OutcomeAccepted, "", day2.Add(9*time.Hour)),
		domain.NewOutcomeRecord(seedTrade("T-3", 1, "B-1"), domain.OutcomeRejected, "missing maturity date", day2.Add(10*time.Hour)),
		domain.NewOutcomeRecord(seedTrade("T-4", 1, "B-2"), domain.OutcomeRejected, "maturity date in past: 2026-03-10", day2.Add(11*time.Hour)),
		domain.NewOutcomeRecord(seedTrade("T-5", 1, "B-1"), domain.OutcomeRejected, "missing maturity date", day2.Add(11*time.Hour+30*time.Minute)),
	}
	if err := outcomeStore.Append(ctx, outcomes); err != nil {
		t.Fatalf("Append outcomes failed: %v", err)
	}

	// Projection rows: T-1 carries two active versions, T-2 is expired.
	expired := seedTrade("T-2", 1, "B-2")
	expired.ExpiredFlag = domain.StatusExpired
	projections := []*domain.Trade{
		seedTrade("T-1", 1, "B-1"),
		seedTrade("T-1", 2, "B-1"),
		expired,
	}
	for _, tr := range projections {
		if err := projectionStore.Upsert(ctx, tr); err != nil {
			t.Fatalf("Upsert projection failed: %v", err)
		}
	}

	// Exception rows for the rejected candidates.
	exceptions := []*domain.ExceptionRecord{
		domain.NewExceptionRecord(seedTrade("T-3", 1, "B-1"), "missing maturity date", day2.Add(10*time.Hour)),
		domain.NewExceptionRecord(seedTrade("T-4", 1, "B-2"), "maturity date in past: 2026-03-10", day2.Add(11*time.Hour)),
	}
	for _, rec := range exceptions {
		if err := exceptionStore.Append(ctx, rec); err != nil {
			t.Fatalf("Append exception failed: %v", err)
		}
	}

	return outcomeStore, projectionStore, exceptionStore
}

func TestGenerate_Totals(t *testing.T) {
	ctx := context.Background()
	outcomeStore, projectionStore, exceptionStore := setupTestData(t)

	fixedTime := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	generator := NewGenerator(outcomeStore, projectionStore, exceptionStore).WithClock(func() time.Time {
		return fixedTime
	})

	report, err := generator.Generate(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.Accepted != 3 {
		t.Errorf("Expected 3 accepted, got %d", report.Accepted)
	}
	if report.Rejected != 3 {
		t.Errorf("Expected 3 rejected, got %d", report.Rejected)
	}
	if report.Processed() != 6 {
		t.Errorf("Expected 6 processed, got %d", report.Processed())
	}
	if report.AcceptanceRate() != 0.5 {
		t.Errorf("Expected acceptance rate 0.5, got %.4f", report.AcceptanceRate())
	}

	// Reasons ranked by count, alphabetical on ties.
	if len(report.TopReasons) != 2 {
		t.Fatalf("Expected 2 reasons, got %d", len(report.TopReasons))
	}
	if report.TopReasons[0].Reason != "missing maturity date" || report.TopReasons[0].Count != 2 {
		t.Errorf("Unexpected top reason: %+v", report.TopReasons[0])
	}

	// Daily activity ordered oldest first.
	if len(report.DailyActivity) != 2 {
		t.Fatalf("Expected 2 days, got %d", len(report.DailyActivity))
	}
	if !report.DailyActivity[0].Day.Equal(day1) {
		t.Errorf("Expected first day %v, got %v", day1, report.DailyActivity[0].Day)
	}
	if report.DailyActivity[0].Accepted != 2 || report.DailyActivity[0].Rejected != 0 {
		t.Errorf("Unexpected day1 activity: %+v", report.DailyActivity[0])
	}
	if report.DailyActivity[1].Accepted != 1 || report.DailyActivity[1].Rejected != 3 {
		t.Errorf("Unexpected day2 activity: %+v", report.DailyActivity[1])
	}

	// Books ranked by processed candidates.
	if len(report.BusiestBooks) != 2 {
		t.Fatalf("Expected 2 books, got %d", len(report.BusiestBooks))
	}
	if report.BusiestBooks[0].BookID != "B-1" || report.BusiestBooks[0].Count != 4 {
		t.Errorf("Unexpected busiest book: %+v", report.BusiestBooks[0])
	}

	// Projection and exception state.
	if report.Projection.Trades != 2 {
		t.Errorf("Expected 2 trades, got %d", report.Projection.Trades)
	}
	if report.Projection.Rows != 3 {
		t.Errorf("Expected 3 rows, got %d", report.Projection.Rows)
	}
	if report.Projection.Active != 2 || report.Projection.Expired != 1 {
		t.Errorf("Unexpected projection stats: %+v", report.Projection)
	}
	if report.Exceptions != 2 {
		t.Errorf("Expected 2 exceptions, got %d", report.Exceptions)
	}
}

func TestGenerate_WindowFiltersActivity(t *testing.T) {
	ctx := context.Background()
	outcomeStore, projectionStore, exceptionStore := setupTestData(t)
	generator := NewGenerator(outcomeStore, projectionStore, exceptionStore)

	report, err := generator.Generate(ctx, day2, day2.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.Accepted != 1 {
		t.Errorf("Expected 1 accepted in window, got %d", report.Accepted)
	}
	if report.Rejected != 3 {
		t.Errorf("Expected 3 rejected in window, got %d", report.Rejected)
	}
	if len(report.DailyActivity) != 1 {
		t.Fatalf("Expected 1 day in window, got %d", len(report.DailyActivity))
	}
	if !report.DailyActivity[0].Day.Equal(day2) {
		t.Errorf("Expected day %v, got %v", day2, report.DailyActivity[0].Day)
	}

	// Projection state is current, not window-scoped.
	if report.Projection.Rows != 3 {
		t.Errorf("Expected 3 projection rows, got %d", report.Projection.Rows)
	}
}

func TestGenerate_WithClock(t *testing.T) {
	ctx := context.Background()
	outcomeStore, projectionStore, exceptionStore := setupTestData(t)

	fixedTime := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	generator := NewGenerator(outcomeStore, projectionStore, exceptionStore).WithClock(func() time.Time {
		return fixedTime
	})

	report, err := generator.Generate(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
	// A zero end closes the window at the clock.
	if !report.WindowEnd.Equal(fixedTime) {
		t.Errorf("Expected WindowEnd %v, got %v", fixedTime, report.WindowEnd)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()

	fixedTime := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fixedClock := func() time.Time { return fixedTime }

	// Run multiple times and verify same output
	var first *Report
	for run := 0; run < 5; run++ {
		outcomeStore, projectionStore, exceptionStore := setupTestData(t)
		generator := NewGenerator(outcomeStore, projectionStore, exceptionStore).WithClock(fixedClock)

		report, err := generator.Generate(ctx, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("Run %d: Generate failed: %v", run, err)
		}

		if first == nil {
			first = report
			continue
		}

		if !report.GeneratedAt.Equal(first.GeneratedAt) {
			t.Errorf("Run %d: GeneratedAt mismatch: got %v, want %v", run, report.GeneratedAt, first.GeneratedAt)
		}
		if report.Accepted != first.Accepted || report.Rejected != first.Rejected {
			t.Errorf("Run %d: totals mismatch", run)
		}
		for i := range report.TopReasons {
			if report.TopReasons[i] != first.TopReasons[i] {
				t.Errorf("Run %d: TopReasons[%d] mismatch", run, i)
			}
		}
		for i := range report.BusiestBooks {
			if report.BusiestBooks[i] != first.BusiestBooks[i] {
				t.Errorf("Run %d: BusiestBooks[%d] mismatch", run, i)
			}
		}
		for i := range report.DailyActivity {
			if !report.DailyActivity[i].Day.Equal(first.DailyActivity[i].Day) {
				t.Errorf("Run %d: DailyActivity[%d] day mismatch", run, i)
			}
		}
	}
}

func TestRenderMarkdown_Format(t *testing.T) {
	ctx := context.Background()
	outcomeStore, projectionStore, exceptionStore := setupTestData(t)
	generator := NewGenerator(outcomeStore, projectionStore, exceptionStore)

	report, err := generator.Generate(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	// Verify required sections are in markdown
	requiredSections := []string{
		"# Validation Activity Report",
		"## Outcome Totals",
		"## Rejection Reasons",
		"## Daily Activity",
		"## Busiest Books",
		"## Projection State",
	}

	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing section: %s", section)
		}
	}

	// Verify tables are present (pipe characters)
	if !strings.Contains(md, "|") {
		t.Error("Markdown should contain tables with pipe characters")
	}
	if !strings.Contains(md, "| missing maturity date | 2 |") {
		t.Error("Markdown missing ranked reason row")
	}
	if !strings.Contains(md, "| 2026-03-14 | 2 | 0 |") {
		t.Error("Markdown missing daily activity row")
	}
}

func TestRenderMarkdown_EmptySections(t *testing.T) {
	ctx := context.Background()
	generator := NewGenerator(memory.NewOutcomeStore(), memory.NewProjectionStore(), memory.NewExceptionStore())

	report, err := generator.Generate(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	for _, fallback := range []string{
		"No rejections recorded.",
		"No activity recorded.",
		"No book activity recorded.",
	} {
		if !strings.Contains(md, fallback) {
			t.Errorf("Markdown missing fallback line: %s", fallback)
		}
	}
}

func TestRenderCSV_DailyActivity(t *testing.T) {
	ctx := context.Background()
	outcomeStore, projectionStore, exceptionStore := setupTestData(t)
	generator := NewGenerator(outcomeStore, projectionStore, exceptionStore)

	report, err := generator.Generate(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	csv := RenderCSV(report.DailyActivity)
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")

	if len(lines) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "day,accepted,rejected,processed" {
		t.Errorf("CSV header is incorrect: %s", lines[0])
	}
	if lines[1] != "2026-03-14,2,0,2" {
		t.Errorf("Expected first row for 2026-03-14, got: %s", lines[1])
	}
	if lines[2] != "2026-03-15,1,3,4" {
		t.Errorf("Expected second row for 2026-03-15, got: %s", lines[2])
	}
}
