// Package pipeline runs one collector invocation: migrations, ingestion,
// historization, the merged-view quality check and metric derivation.
package pipeline

import (
	"fmt"
	"strings"

	"options-data-lab/internal/ingestion"
)

// Mode selects what a collector run does.
type Mode string

const (
	ModeOptionData     Mode = "option_data"
	ModeStockDataDaily Mode = "stock_data_daily"
	ModeAll            Mode = "all"
	ModeMigrationsOnly Mode = "only_run_migrations"
)

// Modes lists every valid mode.
var Modes = []Mode{ModeOptionData, ModeStockDataDaily, ModeAll, ModeMigrationsOnly}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Modes {
		if m == v {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want one of %v)", s, Modes)
}

// Tables returns the source tables collected in this mode.
func (m Mode) Tables() []string {
	switch m {
	case ModeOptionData:
		return []string{
			ingestion.TableOptions, ingestion.TableFundamentals, ingestion.TableDividends,
			ingestion.TableAnalystTargets, ingestion.TableEarnings,
		}
	case ModeStockDataDaily:
		return []string{ingestion.TableStocks}
	case ModeAll:
		return append(ModeOptionData.Tables(), ingestion.TableStocks)
	}
	return nil
}

func (m Mode) options() bool { return m == ModeOptionData || m == ModeAll }
func (m Mode) stocks() bool  { return m == ModeStockDataDaily || m == ModeAll }
