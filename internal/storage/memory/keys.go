package memory

import (
	"fmt"
	"time"

	"options-data-lab/internal/domain"
)

const dayLayout = "2006-01-02"

func dayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// quoteKey generates the history key (snapshot_date, provider, contract_id).
func quoteKey(q *domain.OptionQuote) string {
	return fmt.Sprintf("%s|%s|%s", dayKey(q.SnapshotDate), q.Provider, q.ContractID)
}

// stockKey generates the history key (snapshot_date, symbol).
func stockKey(s *domain.StockSnapshot) string {
	return fmt.Sprintf("%s|%s", dayKey(s.SnapshotDate), s.Symbol)
}

func symbolDateKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, dayKey(date))
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
