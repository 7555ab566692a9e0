// Package screening selects and pairs options for strategy construction
// from the priced, merged option view.
package screening

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"options-data-lab/internal/domain"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// MarriedPutParams filters married-put candidates.
type MarriedPutParams struct {
	Symbol          string  `validate:"omitempty,max=6,uppercase"`
	MinOpenInterest int64   `validate:"gte=0"`
	MinDTE          int     `validate:"gte=0"`
	MinStrikeRatio  float64 `validate:"gt=0"`
	MaxStrikeRatio  float64 `validate:"gtefield=MinStrikeRatio"`
	TopN            int     `validate:"gte=1,lte=50"`
}

// DefaultMarriedPutParams returns the defaults used by the dashboard.
func DefaultMarriedPutParams() MarriedPutParams {
	return MarriedPutParams{
		MinOpenInterest: 100,
		MinDTE:          30,
		MinStrikeRatio:  1.0,
		MaxStrikeRatio:  1.2,
		TopN:            3,
	}
}

// Validate checks types and ranges before the parameters are used.
func (p MarriedPutParams) Validate() error {
	if err := validatorInstance().Struct(p); err != nil {
		return fmt.Errorf("married put params: %w", err)
	}
	return nil
}

// SpreadParams filters and pairs vertical credit spreads.
type SpreadParams struct {
	Symbol          string              `validate:"omitempty,max=6,uppercase"`
	ExpirationDate  time.Time           `validate:"required"`
	OptionType      domain.ContractType `validate:"required,oneof=call put"`
	DeltaTarget     float64             `validate:"gt=0,lt=1"`
	SpreadWidth     float64             `validate:"gt=0"`
	MinOpenInterest int64               `validate:"gte=0"`
	MinDayVolume    int64               `validate:"gte=0"`
	MinIVRank       float64             `validate:"gte=0,lte=100"`
	MinIVPercentile float64             `validate:"gte=0,lte=100"`
}

// Validate checks types and ranges before the parameters are used.
func (p SpreadParams) Validate() error {
	if err := validatorInstance().Struct(p); err != nil {
		return fmt.Errorf("spread params: %w", err)
	}
	return nil
}

// IVFilterParams selects symbols by their latest IV rank and percentile.
type IVFilterParams struct {
	MinIVRank       float64 `validate:"gte=0,lte=100"`
	MinIVPercentile float64 `validate:"gte=0,lte=100"`
}

// Validate checks ranges.
func (p IVFilterParams) Validate() error {
	if err := validatorInstance().Struct(p); err != nil {
		return fmt.Errorf("iv filter params: %w", err)
	}
	return nil
}
