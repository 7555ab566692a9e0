package ingestion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
)

// ErrInvalidRow is returned when a cell cannot be decoded.
// Like schema drift it rejects the whole table for the cycle.
var ErrInvalidRow = errors.New("invalid row")

func (c Columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isNull(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "none", "null", "n/a", "-":
		return true
	}
	return false
}

// parseFloat decodes a nullable number. A trailing % divides by 100 and
// thousands separators are dropped.
func parseFloat(s string) (*float64, error) {
	if isNull(s) {
		return nil, nil
	}
	pct := strings.HasSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSuffix(s, "%"), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	if pct {
		v /= 100
	}
	return &v, nil
}

// parseInt decodes a nullable integer; "12.0" is accepted.
func parseInt(s string) (*int64, error) {
	f, err := parseFloat(s)
	if err != nil || f == nil {
		return nil, err
	}
	v := int64(math.Round(*f))
	return &v, nil
}

type rowDecoder struct {
	b    *Batch
	cols Columns
	row  []string
	n    int
	err  error
}

func (d *rowDecoder) float(name string) *float64 {
	if d.err != nil {
		return nil
	}
	v, err := parseFloat(d.cols.get(d.row, name))
	if err != nil {
		d.err = fmt.Errorf("%s.%s row %d column %s: %v: %w", d.b.Source, d.b.Table, d.n, name, err, ErrInvalidRow)
	}
	return v
}

func (d *rowDecoder) integer(name string) *int64 {
	if d.err != nil {
		return nil
	}
	v, err := parseInt(d.cols.get(d.row, name))
	if err != nil {
		d.err = fmt.Errorf("%s.%s row %d column %s: %v: %w", d.b.Source, d.b.Table, d.n, name, err, ErrInvalidRow)
	}
	return v
}

func (d *rowDecoder) date(name string) time.Time {
	if d.err != nil {
		return time.Time{}
	}
	v, err := osi.ParseDate(d.cols.get(d.row, name))
	if err != nil {
		d.err = fmt.Errorf("%s.%s row %d column %s: %v: %w", d.b.Source, d.b.Table, d.n, name, err, ErrInvalidRow)
	}
	return v
}

func (d *rowDecoder) symbol() string {
	s := strings.ToUpper(d.cols.get(d.row, "symbol"))
	if s == "" && d.err == nil {
		d.err = fmt.Errorf("%s.%s row %d: empty symbol: %w", d.b.Source, d.b.Table, d.n, ErrInvalidRow)
	}
	return s
}

func (d *rowDecoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%s.%s row %d: %s: %w", d.b.Source, d.b.Table, d.n, fmt.Sprintf(format, args...), ErrInvalidRow)
	}
}

// DecodeOptions turns an options batch into quotes of provider stamped with
// snapshot. Contract ids are canonicalized and type labels normalized.
func DecodeOptions(b *Batch, provider domain.Provider, snapshot time.Time) ([]*domain.OptionQuote, error) {
	cols, err := Validate(b)
	if err != nil {
		return nil, err
	}
	day := osi.Day(snapshot)
	out := make([]*domain.OptionQuote, 0, len(b.Rows))
	for i, row := range b.Rows {
		d := &rowDecoder{b: b, cols: cols, row: row, n: i + 1}
		q := &domain.OptionQuote{
			Provider:     provider,
			SnapshotDate: day,
			Symbol:       d.symbol(),
			Expiration:   d.date("expiration_date"),
		}
		typ, err := osi.NormalizeType(cols.get(row, "option_type"))
		if err != nil {
			d.fail("%v", err)
		}
		q.Type = typ
		if strike := d.float("strike"); strike != nil {
			q.Strike = *strike
		} else {
			d.fail("missing strike")
		}

		q.Bid = d.float("bid")
		q.Ask = d.float("ask")
		q.Last = d.float("last")
		q.Theoretical = d.float("theoretical")
		q.Volume = d.integer("volume")
		q.OpenInterest = d.integer("open_interest")
		q.Delta = d.float("delta")
		q.Gamma = d.float("gamma")
		q.Theta = d.float("theta")
		q.Vega = d.float("vega")
		q.Rho = d.float("rho")
		q.ImpliedVolatility = d.float("implied_volatility")
		if d.err != nil {
			return nil, d.err
		}

		id, err := osi.Canonicalize(cols.get(row, "contract_id"), q.Symbol, q.Expiration, q.Type, q.Strike)
		if err != nil {
			d.fail("contract id: %v", err)
			return nil, d.err
		}
		q.ContractID = id
		out = append(out, q)
	}
	SortQuotes(out)
	return out, nil
}

// DecodeStocks turns a stock batch into snapshots stamped with snapshot.
// capturedAt records when the live price was read.
func DecodeStocks(b *Batch, snapshot, capturedAt time.Time) ([]*domain.StockSnapshot, error) {
	cols, err := Validate(b)
	if err != nil {
		return nil, err
	}
	day := osi.Day(snapshot)
	out := make([]*domain.StockSnapshot, 0, len(b.Rows))
	for i, row := range b.Rows {
		d := &rowDecoder{b: b, cols: cols, row: row, n: i + 1}
		s := &domain.StockSnapshot{
			Symbol:       d.symbol(),
			SnapshotDate: day,
			Open:         d.float("open"),
			High:         d.float("high"),
			Low:          d.float("low"),
			Close:        d.float("close"),
			Volume:       d.integer("volume"),
			Dividends:    d.float("dividends"),
			StockSplits:  d.float("stock_splits"),
			LivePrice:    d.float("live_price"),
			PriceSource:  cols.get(row, "price_source"),
			CapturedAt:   capturedAt.UTC(),
		}
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, s)
	}
	SortStocks(out)
	return out, nil
}

// DecodeFundamentals reads every non-symbol column as a named metric.
// Cells that are not numbers are treated as missing.
func DecodeFundamentals(b *Batch, snapshot time.Time) ([]*domain.FundamentalRecord, error) {
	cols, err := Validate(b)
	if err != nil {
		return nil, err
	}
	day := osi.Day(snapshot)
	out := make([]*domain.FundamentalRecord, 0, len(b.Rows))
	for i, row := range b.Rows {
		d := &rowDecoder{b: b, cols: cols, row: row, n: i + 1}
		r := &domain.FundamentalRecord{Symbol: d.symbol(), SnapshotDate: day, Metrics: make(map[string]float64)}
		if d.err != nil {
			return nil, d.err
		}
		for name, idx := range cols {
			if name == "symbol" {
				continue
			}
			if v, err := parseFloat(strings.TrimSpace(row[idx])); err == nil && v != nil {
				r.Metrics[name] = *v
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeDividends turns a dividend batch into payouts.
func DecodeDividends(b *Batch) ([]*domain.DividendPayout, error) {
	cols, err := Validate(b)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.DividendPayout, 0, len(b.Rows))
	for i, row := range b.Rows {
		d := &rowDecoder{b: b, cols: cols, row: row, n: i + 1}
		p := &domain.DividendPayout{Symbol: d.symbol(), ExDate: d.date("ex_date")}
		if amount := d.float("amount"); amount != nil {
			p.Amount = *amount
		}
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeAnalystTargets turns an analyst target batch into targets stamped with snapshot.
func DecodeAnalystTargets(b *Batch, snapshot time.Time) ([]*domain.AnalystTarget, error) {
	cols, err := Validate(b)
	if err != nil {
		return nil, err
	}
	day := osi.Day(snapshot)
	out := make([]*domain.AnalystTarget, 0, len(b.Rows))
	for i, row := range b.Rows {
		d := &rowDecoder{b: b, cols: cols, row: row, n: i + 1}
		t := &domain.AnalystTarget{
			Symbol:       d.symbol(),
			SnapshotDate: day,
			Low:          d.float("low"),
			Mean:         d.float("mean"),
			Median:       d.float("median"),
			High:         d.float("high"),
		}
		if n := d.integer("analysts"); n != nil {
			t.Analysts = int(*n)
		}
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, t)
	}
	return out, nil
}

// DecodeEarnings turns an earnings batch into next-earnings dates.
func DecodeEarnings(b *Batch) ([]*domain.EarningsDate, error) {
	cols, err := Validate(b)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.EarningsDate, 0, len(b.Rows))
	for i, row := range b.Rows {
		d := &rowDecoder{b: b, cols: cols, row: row, n: i + 1}
		e := &domain.EarningsDate{Symbol: d.symbol(), NextEarnings: d.date("earnings_date")}
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, e)
	}
	return out, nil
}
