package tourn

import (
	"math"
	"testing"
)

func TestEloDiff(t *testing.T) {
	// Even score means no difference.
	e := NewElo(10, 10, 10)
	if d := e.Diff(); math.Abs(d) > 1e-9 {
		t.Errorf("expected diff 0 for an even score, got %f", d)
	}

	// 75% score is just under +191.
	e = NewElo(3, 1, 0)
	if d := e.Diff(); math.Abs(d-190.848) > 0.01 {
		t.Errorf("expected diff ~190.85 for 75%%, got %f", d)
	}

	// Symmetry
	if d := NewElo(1, 3, 0).Diff(); math.Abs(d+190.848) > 0.01 {
		t.Errorf("expected diff ~-190.85 for 25%%, got %f", d)
	}
}

func TestEloRatios(t *testing.T) {
	e := NewElo(4, 2, 4)
	if r := e.PointRatio(); math.Abs(r-0.6) > 1e-9 {
		t.Errorf("expected point ratio 0.6, got %f", r)
	}
	if r := e.DrawRatio(); math.Abs(r-0.4) > 1e-9 {
		t.Errorf("expected draw ratio 0.4, got %f", r)
	}
}

func TestEloErrorMarginShrinks(t *testing.T) {
	small := NewElo(30, 20, 10).ErrorMargin()
	large := NewElo(300, 200, 100).ErrorMargin()
	if large >= small {
		t.Errorf("error margin should shrink with more games: %f vs %f",
			small, large)
	}
	if small <= 0 {
		t.Errorf("error margin should be positive, got %f", small)
	}
}

func TestSprtNeedsAllOutcomeKinds(t *testing.T) {
	s := NewSprt(0, 5, 0.05, 0.05)
	for i := 0; i < 100; i++ {
		s.AddOutcome(Win)
	}
	if st := s.Status(); st.Result != Continue {
		t.Errorf("test must not decide without losses and draws, got %v", st.Result)
	}
}

func TestSprtAcceptsH1OnDominance(t *testing.T) {
	s := NewSprt(0, 5, 0.05, 0.05)

	decided := false
	for i := 0; i < 10000; i++ {
		// A strong engine: mostly wins, some draws, few losses.
		switch i % 10 {
		case 0:
			s.AddOutcome(Loss)
		case 1, 2, 3:
			s.AddOutcome(Draw)
		default:
			s.AddOutcome(Win)
		}
		if st := s.Status(); st.Result != Continue {
			if st.Result != AcceptH1 {
				t.Fatalf("expected H1 for a dominant engine, got H0 at game %d", i+1)
			}
			decided = true
			break
		}
	}
	if !decided {
		t.Fatal("test never decided")
	}
}

func TestSprtAcceptsH0OnEquality(t *testing.T) {
	s := NewSprt(0, 5, 0.05, 0.05)

	decided := false
	for i := 0; i < 200000; i++ {
		// Perfectly balanced with many draws.
		switch i % 4 {
		case 0:
			s.AddOutcome(Win)
		case 1:
			s.AddOutcome(Loss)
		default:
			s.AddOutcome(Draw)
		}
		if st := s.Status(); st.Result != Continue {
			if st.Result != AcceptH0 {
				t.Fatalf("expected H0 for equal engines, got H1 at game %d", i+1)
			}
			decided = true
			break
		}
	}
	if !decided {
		t.Fatal("test never decided")
	}
}

func TestSprtBounds(t *testing.T) {
	s := NewSprt(0, 5, 0.05, 0.05)
	st := s.Status()
	if math.Abs(st.LBound-math.Log(0.05/0.95)) > 1e-9 {
		t.Errorf("bad lower bound %f", st.LBound)
	}
	if math.Abs(st.UBound-math.Log(0.95/0.05)) > 1e-9 {
		t.Errorf("bad upper bound %f", st.UBound)
	}
}
