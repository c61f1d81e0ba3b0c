// Package report renders an estimate as aligned text and appends it to a
// semicolon-terminated log file.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// Renderer writes human readable reports
type Renderer struct {
	out   io.Writer
	good  func(a ...interface{}) string
	bad   func(a ...interface{}) string
	faint func(a ...interface{}) string
}

// NewRenderer creates a renderer writing to w. Colors are dropped when noColor is set.
func NewRenderer(w io.Writer, noColor bool) *Renderer {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)
	if noColor {
		green.DisableColor()
		red.DisableColor()
		faint.DisableColor()
	}

	return &Renderer{
		out:   w,
		good:  green.SprintFunc(),
		bad:   red.SprintFunc(),
		faint: faint.SprintFunc(),
	}
}

func (r *Renderer) line(label, format string, args ...interface{}) {
	fmt.Fprintf(r.out, "%-27s: %s\n", label, fmt.Sprintf(format, args...))
}

func (r *Renderer) blank() {
	fmt.Fprintln(r.out)
}

// highlight colors s green when ok and red otherwise
func (r *Renderer) highlight(ok bool, s string) string {
	if ok {
		return r.good(s)
	}
	return r.bad(s)
}

// Render writes the full report
func (r *Renderer) Render(rep *estimate.Report) error {
	r.line("Total netspace", "%s", util.FormatBytes(rep.TotalSpace))
	r.line("Pool space", "%s", util.FormatBytes(rep.PoolSpace))
	r.line("Period", "%s UTC (%s elapsed of %s)",
		rep.PeriodStart.Format("2006-01-02 15:04"), rep.Elapsed.Round(time.Second), rep.PeriodLength)
	r.blank()

	r.line("Expected blocks this period", "%8.2f", rep.ExpectedBlocksPeriod)
	r.line("Expected blocks until now", "%8.2f", rep.ExpectedBlocksElapsed)
	r.line("Actual blocks until now", "%8d", rep.ActualBlocks)

	state := "behind"
	if rep.Ahead() {
		state = "ahead"
	}
	r.line("Blocks ahead / behind", "%8.2f (%s)", rep.AheadBehind, r.highlight(rep.Ahead(), state))
	r.blank()

	r.line("Points", "%8d", rep.Points)
	r.line("Estimated member netspace", "%s", util.FormatBytes(rep.MemberNetspace))
	r.line("Poolshare", "%8.6f %%", rep.PoolShare*100)
	r.blank()

	r.line("Current price", "%8.2f USD / XCH (%s)", rep.Price, rep.PriceSource)
	r.line("Payout until now", "%8.6f XCH (%.2f USD)", rep.PayoutToDate, rep.PayoutToDateFiat())
	r.line("Expected payout this period", "%8.6f XCH (%.2f USD)", rep.ProjectedTotal, rep.ProjectedTotalFiat())
	r.blank()

	if rep.ProfitabilityKnown {
		r.line("Profitability", "%8.6f XCH / TiB / day", rep.Profitability)
	} else {
		r.line("Profitability", "%8s", "n/a")
	}
	r.line("Reference yield", "%8.6f XCH / TiB / day (%s)",
		rep.YieldPerUnit, rep.YieldDate.Format("2006-01-02"))
	if rep.ReferenceSpace > 0 {
		r.line("Reference netspace", "%s", util.FormatBytes(rep.ReferenceSpace))
		r.line("Reference payout / period", "%8.6f XCH", rep.ExpectedPayoutPerPeriod)
	}

	if rep.Earnings.Days > 0 {
		r.blank()
		return r.renderEarnings(rep.Earnings)
	}
	return nil
}

func (r *Renderer) renderEarnings(s estimate.EarningsSummary) error {
	fmt.Fprintf(r.out, "Earnings, last %d days (%d of %d periods)\n", s.Days, s.Count, s.Periods)
	if s.Count == 0 {
		fmt.Fprintln(r.out, r.faint("  no earnings recorded"))
		return nil
	}

	table := tablewriter.NewWriter(r.out)
	table.Header("#", "Amount", "State", "Transaction", "% of expected")

	for i, rec := range s.Records {
		pct := "n/a"
		if s.Compared {
			pct = r.highlight(rec.Percent >= 100, fmt.Sprintf("%.1f %%", rec.Percent))
		}
		tx := util.ShortID(rec.TransactionID, 12)
		if tx == "" {
			tx = "-"
		}
		if err := table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.6f XCH", rec.XCH),
			string(rec.State),
			tx,
			pct,
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	total := fmt.Sprintf("%.6f XCH", s.Total)
	if s.Compared {
		r.line("Total earnings", "%s of %.6f XCH expected (%s)", total, s.Expected,
			r.highlight(s.Percent >= 100, fmt.Sprintf("%.1f %%", s.Percent)))
	} else {
		r.line("Total earnings", "%s", total)
	}
	return nil
}
