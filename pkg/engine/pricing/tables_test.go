package pricing

import "testing"

func TestVolumeMonthly(t *testing.T) {
	p := Default()

	// 100GB gp3 at $0.08/GB-month.
	if got := p.VolumeMonthly("gp3", 100); got != 8.00 {
		t.Errorf("gp3 100GB: expected 8.00, got %.2f", got)
	}

	// Unknown tiers fall back to the cheapest rate, never zero.
	if got := p.VolumeMonthly("exotic-new-tier", 100); got != p.VolumeMonthly("standard", 100) {
		t.Errorf("unknown tier should use the magnetic rate, got %.2f", got)
	}
	if p.VolumeMonthly("exotic-new-tier", 100) <= 0 {
		t.Error("fallback rate must be positive")
	}
}

func TestSnapshotMonthly(t *testing.T) {
	p := Default()
	if got := p.SnapshotMonthly(50); got != 2.50 {
		t.Errorf("50GB snapshot: expected 2.50, got %.2f", got)
	}
}

func TestDatabaseMultiAZDoubles(t *testing.T) {
	p := Default()
	single := p.DatabaseMonthly("db.m5.large", false)
	multi := p.DatabaseMonthly("db.m5.large", true)
	if multi != single*2 {
		t.Errorf("multi-AZ should double the estimate: %.2f vs %.2f", multi, single)
	}
}

func TestGatewayMonthlyIncludesBaseRate(t *testing.T) {
	p := Default()
	base := p.GatewayMonthly(0)
	if base != 0.045*HoursPerMonth {
		t.Errorf("zero-traffic gateway should cost the hourly base: got %.2f", base)
	}
	const gb = 1024 * 1024 * 1024
	withTraffic := p.GatewayMonthly(100 * gb)
	if withTraffic <= base {
		t.Error("processed bytes must add to the estimate")
	}
}

func TestParsePriceFromJSON(t *testing.T) {
	doc := `{"terms":{"OnDemand":{"SKU1":{"priceDimensions":{"D1":{"pricePerUnit":{"USD":"0.0800000000"}}}}}}}`
	got, err := parsePriceFromJSON(doc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != 0.08 {
		t.Errorf("expected 0.08, got %v", got)
	}

	if _, err := parsePriceFromJSON(`{"terms":{}}`); err == nil {
		t.Error("expected error for missing OnDemand terms")
	}
}
