// Package cli renders scheduling state and runs interactive study sessions in the terminal.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/at-ishikawa/recall/internal/datasync"
	"github.com/at-ishikawa/recall/internal/scheduler"
	"github.com/at-ishikawa/recall/internal/statistics"
)

// Printer writes human readable output.
type Printer struct {
	w      io.Writer
	bold   *color.Color
	green  *color.Color
	red    *color.Color
	yellow *color.Color
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:      w,
		bold:   color.New(color.Bold),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
	}
}

func (p *Printer) printf(format string, args ...any) error {
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// Review prints the outcome of one review.
func (p *Printer) Review(rec *scheduler.Record) error {
	last := rec.History[len(rec.History)-1]
	c := p.green
	if !last.Quality.Passed() {
		c = p.red
	}
	return p.printf("%s %s: next review in %s (%s), ease %.2f\n",
		p.bold.Sprint(rec.CardID),
		c.Sprint(last.Rating),
		days(rec.IntervalDays),
		rec.NextReviewAt.Format(time.DateOnly),
		rec.EaseFactor,
	)
}

// Record prints the full scheduling state of a card.
func (p *Printer) Record(rec *scheduler.Record, now time.Time) error {
	status := p.green.Sprint("scheduled")
	if scheduler.IsDue(rec, now) {
		status = p.yellow.Sprint("due")
	}
	next := "now"
	if rec.NextReviewAt != nil {
		next = rec.NextReviewAt.Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", p.bold.Sprint(rec.Key()), status)
	fmt.Fprintf(&b, "  category:     %s\n", scheduler.CategoryOf(rec.IntervalDays))
	fmt.Fprintf(&b, "  ease factor:  %.2f\n", rec.EaseFactor)
	fmt.Fprintf(&b, "  repetitions:  %d\n", rec.Repetitions)
	fmt.Fprintf(&b, "  interval:     %s\n", days(rec.IntervalDays))
	fmt.Fprintf(&b, "  next review:  %s\n", next)
	fmt.Fprintf(&b, "  reviews:      %d\n", rec.TimesReviewed)
	for _, h := range rec.History {
		c := p.green
		if !h.Quality.Passed() {
			c = p.red
		}
		fmt.Fprintf(&b, "    #%d %s %s (q%d)\n", h.Seq, h.ReviewedAt.Format(time.RFC3339), c.Sprint(h.Rating), int(h.Quality))
	}
	return p.printf("%s", b.String())
}

// DueCards prints the due cards of a set.
func (p *Printer) DueCards(due []string, total int) error {
	if len(due) == 0 {
		return p.printf("%s\n", p.green.Sprintf("Nothing due (%d cards)", total))
	}
	if err := p.printf("%s\n", p.yellow.Sprintf("%d of %d cards due", len(due), total)); err != nil {
		return err
	}
	for _, id := range due {
		if err := p.printf("  %s\n", id); err != nil {
			return err
		}
	}
	return nil
}

// Progress prints the progress summary of a set.
func (p *Printer) Progress(progress statistics.SetProgress) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.bold.Sprint("Progress"))
	fmt.Fprintf(&b, "  studied:  %d/%d\n", progress.Studied, progress.Total)
	fmt.Fprintf(&b, "  due:      %d\n", progress.Due)
	fmt.Fprintf(&b, "  reviews:  %d\n", progress.TotalReviews)
	fmt.Fprintf(&b, "  streak:   %s\n", days(progress.StreakDays))
	if progress.LastStudiedAt != nil {
		fmt.Fprintf(&b, "  last:     %s\n", progress.LastStudiedAt.Format(time.RFC3339))
	}
	for _, c := range scheduler.Categories() {
		fmt.Fprintf(&b, "  %-9s %d\n", string(c)+":", progress.Categories[c])
	}
	return p.printf("%s", b.String())
}

// Statistics prints monthly review activity, newest month first.
func (p *Printer) Statistics(result statistics.StatisticsResult) error {
	if len(result.Periods) == 0 {
		return p.printf("No reviews recorded\n")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %8s %8s %8s\n", "Period", "Learned", "Reviews", "Lapses")
	for _, s := range result.Periods {
		fmt.Fprintf(&b, "%-8s %8d %8d %8d\n", s.Period, s.LearnedCount, s.ReviewCount, s.LapseCount)
	}
	a := result.Aggregate
	fmt.Fprintf(&b, "%-8s %8d %8d %8d\n", p.bold.Sprint("Total"), a.LearnedCount, a.ReviewCount, a.LapseCount)
	fmt.Fprintf(&b, "Unique cards: %d learned, %d reviewed\n", a.LearnedUnique, a.ReviewUnique)
	return p.printf("%s", b.String())
}

// SyncSummary prints the result of a store sync.
func (p *Printer) SyncSummary(result *datasync.SyncResult, dryRun bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", p.bold.Sprint("Sync Summary:"))
	if dryRun {
		fmt.Fprintf(&b, "  (dry-run mode, no changes made)\n")
	}
	fmt.Fprintf(&b, "  Records:  %d new, %d skipped, %d updated\n", result.RecordsNew, result.RecordsSkipped, result.RecordsUpdated)
	fmt.Fprintf(&b, "  History:  %d entries copied\n", result.HistoryCopied)
	return p.printf("%s", b.String())
}
