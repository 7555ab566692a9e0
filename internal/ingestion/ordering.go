package ingestion

import (
	"sort"

	"options-data-lab/internal/domain"
)

// SortQuotes orders quotes by (contract_id ASC, provider ASC).
func SortQuotes(quotes []*domain.OptionQuote) {
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].ContractID != quotes[j].ContractID {
			return quotes[i].ContractID < quotes[j].ContractID
		}
		return quotes[i].Provider < quotes[j].Provider
	})
}

// SortStocks orders snapshots by (symbol ASC, snapshot_date ASC).
func SortStocks(snapshots []*domain.StockSnapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].Symbol != snapshots[j].Symbol {
			return snapshots[i].Symbol < snapshots[j].Symbol
		}
		return snapshots[i].SnapshotDate.Before(snapshots[j].SnapshotDate)
	})
}

// DuplicateKeys returns the contract ids that occur more than once, sorted.
func DuplicateKeys(quotes []*domain.OptionQuote) []string {
	counts := make(map[string]int, len(quotes))
	for _, q := range quotes {
		counts[q.ContractID]++
	}
	var out []string
	for id, n := range counts {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
