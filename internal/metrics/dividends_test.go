package metrics

import (
	"testing"
	"time"

	"options-data-lab/internal/domain"
)

// quarterly returns four equal payouts in year.
func quarterly(symbol string, year int, amount float64) []*domain.DividendPayout {
	var out []*domain.DividendPayout
	for _, m := range []time.Month{time.February, time.May, time.August, time.November} {
		out = append(out, &domain.DividendPayout{
			Symbol: symbol,
			ExDate: time.Date(year, m, 10, 0, 0, 0, 0, time.UTC),
			Amount: amount,
		})
	}
	return out
}

func TestStreak_ChampionWithOutlier(t *testing.T) {
	var payouts []*domain.DividendPayout
	first := 1999
	for i := 0; i <= 26; i++ {
		year := first + i
		ps := quarterly("DIV", year, 0.50+0.02*float64(i))
		if i == 13 {
			ps[2].Amount = 3.00 // special dividend glitch
		}
		payouts = append(payouts, ps...)
	}
	asOf := time.Date(first+27, 3, 1, 0, 0, 0, 0, time.UTC)

	s := Streak("DIV", payouts, asOf)
	if s.Years != 26 {
		t.Errorf("expected 26 consecutive increases, got %d", s.Years)
	}
	if s.Classification != domain.StreakChampion {
		t.Errorf("expected %s, got %s", domain.StreakChampion, s.Classification)
	}
	if s.ExcludedPayouts != 1 {
		t.Errorf("expected 1 excluded payout, got %d", s.ExcludedPayouts)
	}
	if s.ReferenceYear != first+26 {
		t.Errorf("expected reference year %d, got %d", first+26, s.ReferenceYear)
	}
}

func TestStreak_BrokenByDecrease(t *testing.T) {
	var payouts []*domain.DividendPayout
	amounts := []float64{1.0, 1.1, 1.2, 1.0, 1.1, 1.2, 1.3, 1.4, 1.5}
	for i, a := range amounts {
		payouts = append(payouts, quarterly("CUT", 2015+i, a)...)
	}
	s := Streak("CUT", payouts, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if s.Years != 5 || s.Classification != domain.StreakChallenger {
		t.Errorf("expected 5 years Challenger, got %d %s", s.Years, s.Classification)
	}
}

func TestStreak_FlatYearBreaks(t *testing.T) {
	var payouts []*domain.DividendPayout
	for i, a := range []float64{1.0, 1.0, 1.1} {
		payouts = append(payouts, quarterly("FLAT", 2021+i, a)...)
	}
	s := Streak("FLAT", payouts, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if s.Years != 1 {
		t.Errorf("expected 1, got %d", s.Years)
	}
}

func TestStreak_NoPayouts(t *testing.T) {
	s := Streak("NONE", nil, snap)
	if s.Years != 0 || s.Classification != domain.StreakNone {
		t.Errorf("expected no streak, got %+v", s)
	}
}

func TestClassify(t *testing.T) {
	cases := map[int]domain.StreakClass{
		0: domain.StreakNone, 4: domain.StreakNone, 5: domain.StreakChallenger,
		9: domain.StreakChallenger, 10: domain.StreakContender, 24: domain.StreakContender,
		25: domain.StreakChampion, 40: domain.StreakChampion,
	}
	for years, want := range cases {
		if got := Classify(years); got != want {
			t.Errorf("Classify(%d) = %s, want %s", years, got, want)
		}
	}
}
