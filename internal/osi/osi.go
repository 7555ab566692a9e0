// Package osi builds and parses canonical option contract identifiers.
//
// The canonical form is the compact OSI symbology:
//
//	ROOT + YYMMDD + C|P + strike*1000 zero-padded to 8 digits
//	AAPL260116C00150000
//
// Every provider row is normalized to this form at ingestion time so that all
// downstream joins use a single key.
package osi

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"options-data-lab/internal/domain"
)

// Errors returned by parsing functions.
var (
	ErrInvalidIdentifier = errors.New("invalid option identifier")
	ErrInvalidType       = errors.New("invalid contract type")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidStrike     = errors.New("invalid strike")
)

const maxStrikeMillis = 99999999

// Contract is the decomposed form of a canonical identifier.
type Contract struct {
	Symbol     string
	Expiration time.Time
	Type       domain.ContractType
	Strike     float64
}

// ID returns the canonical identifier of c.
func (c Contract) ID() string {
	id, _ := Build(c.Symbol, c.Expiration, c.Type, c.Strike)
	return id
}

// Build computes the canonical identifier from contract components.
func Build(symbol string, expiration time.Time, t domain.ContractType, strike float64) (string, error) {
	root := strings.ToUpper(strings.TrimSpace(symbol))
	if root == "" || len(root) > 6 {
		return "", fmt.Errorf("%w: symbol %q", ErrInvalidIdentifier, symbol)
	}
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	millis := math.Round(strike * 1000)
	if strike <= 0 || millis > maxStrikeMillis {
		return "", fmt.Errorf("%w: %v", ErrInvalidStrike, strike)
	}
	if expiration.IsZero() {
		return "", fmt.Errorf("%w: zero expiration", ErrInvalidDate)
	}

	letter := "C"
	if t == domain.ContractTypePut {
		letter = "P"
	}
	return fmt.Sprintf("%s%s%s%08d", root, expiration.UTC().Format("060102"), letter, int64(millis)), nil
}

// Parse decodes an OSI identifier. Accepted variants:
//   - compact:          AAPL260116C00150000
//   - space padded:     "AAPL  260116C00150000"
//   - provider prefixed: O:AAPL260116C00150000
func Parse(id string) (*Contract, error) {
	s := strings.ToUpper(strings.TrimSpace(id))
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, " ", "")

	// 6 date + 1 type + 8 strike
	if len(s) < 16 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	tail := s[len(s)-15:]
	root := s[:len(s)-15]
	if root == "" || len(root) > 6 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	exp, err := time.Parse("060102", tail[:6])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	var t domain.ContractType
	switch tail[6] {
	case 'C':
		t = domain.ContractTypeCall
	case 'P':
		t = domain.ContractTypePut
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	millis, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil || millis <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	return &Contract{
		Symbol:     root,
		Expiration: exp.UTC(),
		Type:       t,
		Strike:     float64(millis) / 1000,
	}, nil
}

// Canonicalize returns the canonical identifier for a provider row.
// The provider identifier is preferred; when it is empty or in an unknown
// format the identifier is composed from the row's components.
func Canonicalize(rawID, symbol string, expiration time.Time, t domain.ContractType, strike float64) (string, error) {
	if rawID != "" {
		if c, err := Parse(rawID); err == nil {
			return c.ID(), nil
		}
		if c, err := ParseBarchart(rawID); err == nil {
			return c.ID(), nil
		}
	}
	return Build(symbol, expiration, t, strike)
}

// ParseBarchart decodes the pipe-delimited Barchart form: AAPL|20260116|150.00C
func ParseBarchart(id string) (*Contract, error) {
	parts := strings.Split(strings.TrimSpace(id), "|")
	if len(parts) != 3 || len(parts[2]) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	exp, err := ParseDate(parts[1])
	if err != nil {
		return nil, err
	}
	strikePart := parts[2][:len(parts[2])-1]
	t, err := NormalizeType(parts[2][len(parts[2])-1:])
	if err != nil {
		return nil, err
	}
	strike, err := strconv.ParseFloat(strikePart, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrike, strikePart)
	}
	return &Contract{
		Symbol:     strings.ToUpper(parts[0]),
		Expiration: exp,
		Type:       t,
		Strike:     strike,
	}, nil
}

// NormalizeType maps provider type labels ("call", "calls", "C", "Put", ...)
// to a ContractType.
func NormalizeType(label string) (domain.ContractType, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "c", "call", "calls":
		return domain.ContractTypeCall, nil
	case "p", "put", "puts":
		return domain.ContractTypePut, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, label)
}

// ParseDate accepts the date encodings seen across providers:
// YYYYMMDD integers, ISO dates and RFC3339 timestamps. The result is UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{"20060102", "2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	// Some providers emit the integer form as a float: 20260116.0
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		if t, err := time.Parse("20060102", strconv.FormatInt(int64(f), 10)); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
