package reporting

import (
	"fmt"
	"strings"
)

// RenderMarriedPutsCSV renders married-put candidates as CSV string.
func RenderMarriedPutsCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("symbol,contract_id,expiration,strike,underlying_price,put_price,dte,open_interest,")
	sb.WriteString("total_investment,minimum_potential_profit,max_loss_pct,protection_floor_pct,")
	sb.WriteString("cost_of_protection_pct,annualized_roi,symbol_option_rank\n")

	// Rows
	for _, c := range r.MarriedPuts {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.2f,%.2f,%.2f,%d,%d,%.2f,%.2f,%.4f,%.4f,%.4f,%.4f,%d\n",
			c.Symbol,
			c.ContractID,
			c.Expiration.Format("2006-01-02"),
			c.Strike,
			c.UnderlyingPrice,
			c.PutPrice,
			c.DaysToExpiration,
			c.OpenInterest,
			c.TotalInvestment,
			c.MinimumPotentialProfit,
			c.MaxLossPct,
			c.ProtectionFloorPct,
			c.CostOfProtectionPct,
			c.AnnualizedROI,
			c.SymbolOptionRank,
		))
	}

	return sb.String()
}

// RenderIVCSV renders the IV leaders as CSV string.
func RenderIVCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("symbol,date,expiration,atm_iv,iv_low,iv_high,iv_rank,iv_percentile,window_days\n")
	for _, s := range r.IVLeaders {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.6f,%.6f,%.6f,%.2f,%.2f,%d\n",
			s.Symbol,
			s.Date.Format("2006-01-02"),
			s.Expiration.Format("2006-01-02"),
			s.ATMIV, s.Low, s.High, s.Rank, s.Percentile, s.WindowDays,
		))
	}

	return sb.String()
}

// RenderStreaksCSV renders dividend streaks as CSV string.
func RenderStreaksCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("symbol,years,classification,reference_year,excluded_payouts\n")
	for _, s := range r.Streaks {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%d,%d\n",
			s.Symbol, s.Years, s.Classification, s.ReferenceYear, s.ExcludedPayouts))
	}

	return sb.String()
}
