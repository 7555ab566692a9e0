package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Options Screening Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.SnapshotDate.IsZero() {
		sb.WriteString("Snapshot: no data\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("Snapshot: %s\n\n", r.SnapshotDate.Format("2006-01-02")))
	}

	// Coverage
	c := r.Coverage
	sb.WriteString("## Coverage\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Contracts | %s |\n", humanize.Comma(int64(c.Contracts))))
	sb.WriteString(fmt.Sprintf("| Symbols | %d |\n", c.Symbols))
	sb.WriteString(fmt.Sprintf("| With Yahoo | %s |\n", share(c.WithYahoo, c.Contracts)))
	sb.WriteString(fmt.Sprintf("| With Barchart | %s |\n", share(c.WithBarchart, c.Contracts)))
	sb.WriteString(fmt.Sprintf("| With Underlying Price | %s |\n", share(c.WithUnderlying, c.Contracts)))
	sb.WriteString(fmt.Sprintf("| Negative Extrinsic | %d |\n", c.ExtrinsicAnomalies))
	sb.WriteString("\n")

	// Married puts
	sb.WriteString("## Married Puts\n\n")
	if len(r.MarriedPuts) > 0 {
		sb.WriteString("| Symbol | Rank | Contract | Strike | Spot | Put | DTE | ROI % | Max Loss % |\n")
		sb.WriteString("|--------|------|----------|--------|------|-----|-----|-------|------------|\n")
		for _, m := range r.MarriedPuts {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %.2f | %.2f | %.2f | %d | %.2f | %.2f |\n",
				m.Symbol, m.SymbolOptionRank, m.ContractID, m.Strike, m.UnderlyingPrice,
				m.PutPrice, m.DaysToExpiration, m.AnnualizedROI, m.MaxLossPct))
		}
	} else {
		sb.WriteString("No married-put candidates.\n")
	}
	sb.WriteString("\n")

	// IV
	sb.WriteString("## IV Rank Leaders\n\n")
	if len(r.IVLeaders) > 0 {
		sb.WriteString("| Symbol | ATM IV | Rank | Percentile | Window |\n")
		sb.WriteString("|--------|--------|------|------------|--------|\n")
		for _, s := range r.IVLeaders {
			sb.WriteString(fmt.Sprintf("| %s | %.2f%% | %.1f | %.1f | %d |\n",
				s.Symbol, s.ATMIV*100, s.Rank, s.Percentile, s.WindowDays))
		}
	} else {
		sb.WriteString("No symbols pass the IV filter.\n")
	}
	sb.WriteString("\n")

	// Dividend streaks
	sb.WriteString("## Dividend Streaks\n\n")
	if len(r.Streaks) > 0 {
		sb.WriteString("| Symbol | Years | Class | Through |\n")
		sb.WriteString("|--------|-------|-------|---------|\n")
		for _, s := range r.Streaks {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %d |\n",
				s.Symbol, s.Years, s.Classification, s.ReferenceYear))
		}
	} else {
		sb.WriteString("No classified dividend streaks.\n")
	}
	sb.WriteString("\n")

	// Changes
	sb.WriteString("## Data Changes\n\n")
	if len(r.Changes) > 0 {
		sb.WriteString("| Operation | Table | Entries | Rows |\n")
		sb.WriteString("|-----------|-------|---------|------|\n")
		for _, ch := range r.Changes {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
				ch.OperationType, ch.TableName, ch.Entries, humanize.Comma(ch.AffectedRows)))
		}
	} else {
		sb.WriteString("No changes recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func share(n, total int) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.1f%%)", n, float64(n)*100/float64(total))
}
