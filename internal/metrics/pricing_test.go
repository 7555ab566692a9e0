package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"options-data-lab/internal/domain"
)

func f(v float64) *float64 { return &v }

var snap = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func TestDaysToExpiration_UsesSnapshotDate(t *testing.T) {
	exp := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	if got := DaysToExpiration(snap, exp); got != 46 {
		t.Errorf("expected 46, got %d", got)
	}
	// Intraday timestamps collapse to the day.
	if got := DaysToExpiration(snap.Add(23*time.Hour), exp); got != 46 {
		t.Errorf("expected 46 for intraday snapshot, got %d", got)
	}
	if got := DaysToExpiration(exp.AddDate(0, 0, 1), exp); got != -1 {
		t.Errorf("expected -1 after expiration, got %d", got)
	}
}

func TestIntrinsic_NeverNegative(t *testing.T) {
	for _, tc := range []struct {
		typ        domain.ContractType
		spot, k    float64
		wantResult float64
	}{
		{domain.ContractTypeCall, 110, 100, 10},
		{domain.ContractTypeCall, 90, 100, 0},
		{domain.ContractTypePut, 90, 100, 10},
		{domain.ContractTypePut, 110, 100, 0},
	} {
		got := Intrinsic(tc.typ, tc.spot, tc.k)
		if got < 0 {
			t.Errorf("intrinsic %s spot=%v strike=%v negative: %v", tc.typ, tc.spot, tc.k, got)
		}
		if got != tc.wantResult {
			t.Errorf("intrinsic %s spot=%v strike=%v: expected %v, got %v", tc.typ, tc.spot, tc.k, tc.wantResult, got)
		}
	}
}

func TestPrice_PremiumFallback(t *testing.T) {
	m := &domain.MergedOption{
		SnapshotDate:    snap,
		Type:            domain.ContractTypeCall,
		Strike:          100,
		Expiration:      snap.AddDate(0, 0, 30),
		Bid:             f(11),
		Ask:             f(12),
		UnderlyingPrice: f(110),
	}
	p := Price(m)
	if p.Premium == nil || *p.Premium != 11.5 {
		t.Fatalf("expected midpoint premium 11.5, got %v", p.Premium)
	}
	if *p.Intrinsic != 10 || *p.Extrinsic != 1.5 || p.ExtrinsicAnomaly {
		t.Errorf("unexpected pricing: intrinsic=%v extrinsic=%v anomaly=%v", *p.Intrinsic, *p.Extrinsic, p.ExtrinsicAnomaly)
	}

	m.Theoretical = f(10.8)
	p = Price(m)
	if *p.Premium != 10.8 {
		t.Errorf("expected theoretical premium, got %v", *p.Premium)
	}
}

func TestPrice_NullPremiumGivesNullExtrinsic(t *testing.T) {
	m := &domain.MergedOption{
		SnapshotDate:    snap,
		Type:            domain.ContractTypePut,
		Strike:          100,
		Expiration:      snap.AddDate(0, 0, 30),
		Bid:             f(1),
		UnderlyingPrice: f(95),
	}
	p := Price(m)
	if p.Premium != nil {
		t.Errorf("expected nil premium, got %v", *p.Premium)
	}
	if p.Extrinsic != nil {
		t.Errorf("expected nil extrinsic, got %v", *p.Extrinsic)
	}
	if p.Intrinsic == nil || *p.Intrinsic != 5 {
		t.Errorf("expected intrinsic 5, got %v", p.Intrinsic)
	}
}

func TestPrice_NegativeExtrinsicFlagged(t *testing.T) {
	m := &domain.MergedOption{
		SnapshotDate:    snap,
		Type:            domain.ContractTypeCall,
		Strike:          100,
		Expiration:      snap.AddDate(0, 0, 10),
		Theoretical:     f(8),
		UnderlyingPrice: f(110),
	}
	p := Price(m)
	if *p.Extrinsic != -2 {
		t.Errorf("expected extrinsic -2 (not clamped), got %v", *p.Extrinsic)
	}
	if !p.ExtrinsicAnomaly {
		t.Error("expected negative extrinsic to be flagged")
	}
}

func TestPrice_MissingUnderlying(t *testing.T) {
	p := Price(&domain.MergedOption{SnapshotDate: snap, Expiration: snap, Theoretical: f(1)})
	if p.Intrinsic != nil || p.Extrinsic != nil || p.ExpectedMove != nil {
		t.Error("expected nil derived values without an underlying price")
	}
}

func TestExpectedMove(t *testing.T) {
	want := math.Round(0.3*200*math.Sqrt(30.0/365)*100) / 100
	if got := ExpectedMove(0.3, 200, 30); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
	for _, tc := range [][3]float64{{0, 200, 30}, {0.3, 0, 30}, {0.3, 200, 0}, {-0.1, 200, 30}} {
		if got := ExpectedMove(tc[0], tc[1], int(tc[2])); got != 0 {
			t.Errorf("ExpectedMove(%v) expected 0, got %v", tc, got)
		}
	}
	if got := ExpectedMovePct(17.2, 200); got != 8.6 {
		t.Errorf("expected 8.6%%, got %v", got)
	}
}

type staticMerged struct {
	rows []*domain.MergedOption
	err  error
}

func (s staticMerged) GetMerged(_ context.Context, _ string) ([]*domain.MergedOption, error) {
	return s.rows, s.err
}

func TestPricedView(t *testing.T) {
	rows := []*domain.MergedOption{{
		SnapshotDate:    snap,
		ContractID:      "XYZ260220P00100000",
		Symbol:          "XYZ",
		Type:            domain.ContractTypePut,
		Strike:          100,
		Expiration:      time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		Bid:             f(9),
		Ask:             f(11),
		HasStock:        true,
		UnderlyingPrice: f(90),
	}}

	priced, err := PricedView{Merged: staticMerged{rows: rows}}.GetPriced(context.Background(), "")
	if err != nil {
		t.Fatalf("GetPriced failed: %v", err)
	}
	if len(priced) != 1 {
		t.Fatalf("expected 1 row, got %d", len(priced))
	}
	p := priced[0]
	if p.ContractID != "XYZ260220P00100000" || p.DaysToExpiration != 46 {
		t.Errorf("unexpected row: %s dte=%d", p.ContractID, p.DaysToExpiration)
	}
	if p.Premium == nil || *p.Premium != 10 || p.Intrinsic == nil || *p.Intrinsic != 10 {
		t.Errorf("unexpected premium/intrinsic: %v/%v", p.Premium, p.Intrinsic)
	}
	if p.Extrinsic == nil || *p.Extrinsic != 0 || p.ExtrinsicAnomaly {
		t.Errorf("unexpected extrinsic: %v anomaly=%v", p.Extrinsic, p.ExtrinsicAnomaly)
	}

	boom := errors.New("boom")
	if _, err := (PricedView{Merged: staticMerged{err: boom}}).GetPriced(context.Background(), ""); !errors.Is(err, boom) {
		t.Errorf("expected reader error, got %v", err)
	}
}
