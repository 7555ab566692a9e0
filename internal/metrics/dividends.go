package metrics

import (
	"math"
	"time"

	"options-data-lab/internal/domain"
)

// OutlierDeviation is the relative distance from the symbol-year median
// beyond which a payout is excluded.
const OutlierDeviation = 0.25

// Streak classification thresholds in years.
const (
	ChampionYears   = 25
	ContenderYears  = 10
	ChallengerYears = 5
)

// Classify maps an unbroken increase count to a streak class.
func Classify(years int) domain.StreakClass {
	switch {
	case years >= ChampionYears:
		return domain.StreakChampion
	case years >= ContenderYears:
		return domain.StreakContender
	case years >= ChallengerYears:
		return domain.StreakChallenger
	}
	return domain.StreakNone
}

// YearlyAverages groups payouts by calendar year, drops outliers and averages
// the remaining amounts. Returns averages by year and the number excluded.
// When every payout of a year would be excluded the year keeps all of them.
func YearlyAverages(payouts []*domain.DividendPayout) (map[int]float64, int) {
	byYear := make(map[int][]float64)
	for _, p := range payouts {
		if p.Amount <= 0 {
			continue
		}
		y := p.ExDate.Year()
		byYear[y] = append(byYear[y], p.Amount)
	}

	excluded := 0
	out := make(map[int]float64, len(byYear))
	for y, amounts := range byYear {
		median := computeMedian(amounts)
		kept := make([]float64, 0, len(amounts))
		for _, a := range amounts {
			if math.Abs(a-median)/median <= OutlierDeviation {
				kept = append(kept, a)
			}
		}
		if len(kept) == 0 {
			kept = amounts
		} else {
			excluded += len(amounts) - len(kept)
		}
		out[y] = round(computeMean(kept), 6)
	}
	return out, excluded
}

// Streak counts unbroken year-over-year increases of the yearly average,
// walking back from the last complete year before asOf. A flat or lower
// year ends the run; a missing year ends it too.
func Streak(symbol string, payouts []*domain.DividendPayout, asOf time.Time) *domain.DividendStreak {
	avgs, excluded := YearlyAverages(payouts)
	ref := asOf.Year() - 1

	years := 0
	for y := ref; ; y-- {
		cur, ok := avgs[y]
		if !ok {
			break
		}
		prev, ok := avgs[y-1]
		if !ok || cur <= prev {
			break
		}
		years++
	}

	return &domain.DividendStreak{
		Symbol:          symbol,
		Years:           years,
		Classification:  Classify(years),
		ReferenceYear:   ref,
		ExcludedPayouts: excluded,
	}
}
