package positioning

import (
	"math"
	"testing"
)

func TestCRLBFiniteForDiverseGeometry(t *testing.T) {
	los := []unitLOS2D{
		{East: 1, North: 0, Variance: 100},
		{East: 0, North: 1, Variance: 100},
		{East: -0.7, North: -0.7, Variance: 100},
	}
	crlb, gdop := crlbAndGDOP(los)
	if math.IsInf(crlb, 1) || crlb < 0 {
		t.Errorf("crlb = %v, want finite non-negative", crlb)
	}
	if math.IsInf(gdop, 1) || gdop < 0 {
		t.Errorf("gdop = %v, want finite non-negative", gdop)
	}
}

func TestCRLBInfiniteForCollinearGeometry(t *testing.T) {
	los := []unitLOS2D{
		{East: 1, North: 0, Variance: 100},
		{East: 1, North: 0, Variance: 100},
	}
	crlb, gdop := crlbAndGDOP(los)
	if !math.IsInf(crlb, 1) {
		t.Errorf("crlb = %v, want +Inf for collinear geometry", crlb)
	}
	if !math.IsInf(gdop, 1) {
		t.Errorf("gdop = %v, want +Inf for collinear geometry", gdop)
	}
}

func TestCRLBInfiniteForNoMeasurements(t *testing.T) {
	crlb, gdop := crlbAndGDOP(nil)
	if !math.IsInf(crlb, 1) || !math.IsInf(gdop, 1) {
		t.Errorf("crlb=%v gdop=%v, want +Inf for empty geometry", crlb, gdop)
	}
}

func TestClampNormBounds(t *testing.T) {
	if n := clampNorm(0, 0, 10); n != 1 {
		t.Errorf("clampNorm(0,0,10) = %v, want 1", n)
	}
	if n := clampNorm(10, 0, 10); n != 0 {
		t.Errorf("clampNorm(10,0,10) = %v, want 0", n)
	}
	if n := clampNorm(math.Inf(1), 0, 10); n != 0 {
		t.Errorf("clampNorm(+Inf,...) = %v, want 0", n)
	}
}
