package adjudicate

import (
	"testing"

	cuteseal "go-cuteseal"
)

type fakePos struct {
	side       cuteseal.Side // side to move, i.e. opponent of the mover
	ply        int
	reversible int
}

func (p fakePos) SideToMove() cuteseal.Side { return p.side }
func (p fakePos) PlyCount() int             { return p.ply }
func (p fakePos) ReversibleMoves() int      { return p.reversible }

func eval(depth, score int) *cuteseal.MoveEvaluation {
	return &cuteseal.MoveEvaluation{Depth: depth, Score: score}
}

// feed plays alternating moves starting with white as the mover and
// reports the evaluation each mover gave.
func feed(a *Adjudicator, startPly int, scores []int) cuteseal.Result {
	side := cuteseal.Black // white moved, black to move
	for i, s := range scores {
		pos := fakePos{side: side, ply: startPly + i + 1, reversible: 5}
		a.AddEval(pos, eval(20, s))
		if r := a.Result(); !r.IsNone() {
			return r
		}
		side = side.Opposite()
	}
	return a.Result()
}

func TestDrawRule(t *testing.T) {
	a := New()
	a.SetDrawThreshold(40, 8, 10)

	// 16 quiet plies after move 40 trigger the draw.
	scores := make([]int, 16)
	for i := range scores {
		scores[i] = 5
	}
	r := feed(a, 80, scores)
	if r.Type != cuteseal.Adjudication || !r.IsDraw() {
		t.Fatalf("expected draw adjudication, got %s", r.VerboseString())
	}
}

func TestDrawRuleCounterReset(t *testing.T) {
	a := New()
	a.SetDrawThreshold(40, 8, 10)

	scores := make([]int, 16)
	for i := range scores {
		scores[i] = 5
	}
	scores[10] = 11 // one loud ply resets the counter

	if r := feed(a, 80, scores); !r.IsNone() {
		t.Fatalf("counter should have been reset, got %s", r.VerboseString())
	}

	// Another full window of quiet plies brings the draw back.
	quiet := make([]int, 16)
	if r := feed(a, 96, quiet); r.Type != cuteseal.Adjudication || !r.IsDraw() {
		t.Fatalf("expected draw after full quiet window, got %s", r.VerboseString())
	}
}

func TestDrawRuleMinimumMoveNumber(t *testing.T) {
	a := New()
	a.SetDrawThreshold(40, 8, 10)

	// Quiet plies before move 40 must not trigger.
	scores := make([]int, 16)
	if r := feed(a, 10, scores); !r.IsNone() {
		t.Fatalf("draw rule fired before minimum move number: %s", r.VerboseString())
	}
}

func TestResignRulePlain(t *testing.T) {
	a := New()
	a.SetResignThreshold(4, -500)

	// Scenario C: white reports -600 for four of its own moves.
	side := cuteseal.Black
	var r cuteseal.Result
	for ply := 1; ply <= 8; ply++ {
		score := -600
		if side == cuteseal.White {
			score = 600 // black (the winner) reports the mirror
		}
		a.AddEval(fakePos{side: side, ply: ply, reversible: 3}, eval(10, score))
		r = a.Result()
		if !r.IsNone() {
			if ply != 7 {
				t.Fatalf("resign fired at ply %d, expected 7 (white's 4th move)", ply)
			}
			break
		}
		side = side.Opposite()
	}
	if r.IsNone() {
		t.Fatal("resign rule never fired")
	}
	if r.Winner != cuteseal.Black || r.Type != cuteseal.Adjudication {
		t.Fatalf("expected black to win by adjudication, got %s", r.VerboseString())
	}
}

func TestResignRuleTcecNeedsBothSides(t *testing.T) {
	a := New()
	a.SetResignThreshold(3, -500)
	a.SetTcecAdjudication(true)

	// Only the loser is confident; the winner reports a balanced
	// score, so no adjudication.
	side := cuteseal.Black
	for ply := 1; ply <= 12; ply++ {
		score := -600
		if side == cuteseal.White {
			score = 0
		}
		a.AddEval(fakePos{side: side, ply: ply, reversible: 3}, eval(10, score))
		side = side.Opposite()
	}
	if r := a.Result(); !r.IsNone() {
		t.Fatalf("TCEC resign fired without agreement: %s", r.VerboseString())
	}

	// With both sides agreeing the rule fires.
	b := New()
	b.SetResignThreshold(3, -500)
	b.SetTcecAdjudication(true)
	side = cuteseal.Black
	r := cuteseal.MakeResult(cuteseal.NoResult, cuteseal.NoSide, "")
	for ply := 1; ply <= 12 && r.IsNone(); ply++ {
		score := -600
		if side == cuteseal.White {
			score = 700
		}
		b.AddEval(fakePos{side: side, ply: ply, reversible: 3}, eval(10, score))
		side = side.Opposite()
		r = b.Result()
	}
	if r.IsNone() || r.Winner != cuteseal.Black {
		t.Fatalf("expected TCEC win for black, got %s", r.VerboseString())
	}
}

func TestBookMovesResetCounters(t *testing.T) {
	a := New()
	a.SetResignThreshold(3, -500)

	side := cuteseal.Black
	for ply := 1; ply <= 4; ply++ {
		a.AddEval(fakePos{side: side, ply: ply, reversible: 3}, eval(10, -600))
		side = side.Opposite()
	}
	// A forced (depth 0) move by white resets white's counter; black
	// then reports a winning score, which resets black's.
	a.AddEval(fakePos{side: cuteseal.Black, ply: 5, reversible: 3}, eval(0, 0))
	a.AddEval(fakePos{side: cuteseal.White, ply: 6, reversible: 3}, eval(10, 600))
	a.AddEval(fakePos{side: cuteseal.Black, ply: 7, reversible: 3}, eval(10, -600))
	if r := a.Result(); !r.IsNone() {
		t.Fatalf("book move did not reset the counter: %s", r.VerboseString())
	}
}

func TestMaxGameLength(t *testing.T) {
	a := New()
	a.SetMaximumGameLength(50)

	a.AddEval(fakePos{side: cuteseal.Black, ply: 100, reversible: 7}, eval(12, 30))
	r := a.Result()
	if r.Type != cuteseal.Adjudication || !r.IsDraw() {
		t.Fatalf("expected max-length draw, got %s", r.VerboseString())
	}
}

func TestTablebaseAdjudication(t *testing.T) {
	a := New()
	a.SetTablebaseAdjudication(func(p Position) cuteseal.Result {
		if p.PlyCount() >= 60 {
			return cuteseal.MakeResult(cuteseal.Adjudication, cuteseal.White, "TB win")
		}
		return cuteseal.MakeResult(cuteseal.NoResult, cuteseal.NoSide, "")
	})

	a.AddEval(fakePos{side: cuteseal.Black, ply: 59}, eval(10, 0))
	if r := a.Result(); !r.IsNone() {
		t.Fatalf("tablebase fired early: %s", r.VerboseString())
	}
	a.AddEval(fakePos{side: cuteseal.White, ply: 60}, eval(10, 0))
	if r := a.Result(); r.Winner != cuteseal.White {
		t.Fatalf("expected tablebase win for white, got %s", r.VerboseString())
	}
}

func TestDrawClock(t *testing.T) {
	a := New()
	a.SetDrawThreshold(10, 4, 10)

	// Precondition unmet: negative clock.
	c := a.DrawClock(fakePos{side: cuteseal.Black, ply: 4, reversible: 3}, eval(15, 0))
	if c >= 0 {
		t.Errorf("expected negative clock before the minimum move number, got %d", c)
	}

	// Past the minimum, a quiet sample counts down from the limit.
	c = a.DrawClock(fakePos{side: cuteseal.Black, ply: 30, reversible: 3}, eval(15, 0))
	if c != 7 {
		t.Errorf("expected clock 7, got %d", c)
	}

	// Disabled rule
	b := New()
	if c := b.DrawClock(fakePos{}, eval(15, 0)); c != -1000 {
		t.Errorf("expected -1000 for a disabled rule, got %d", c)
	}
}

func TestResignClock(t *testing.T) {
	a := New()
	a.SetResignThreshold(4, -500)

	c := a.ResignClock(fakePos{side: cuteseal.Black, ply: 12, reversible: 3}, eval(15, -600))
	if c != 3 {
		t.Errorf("expected clock 3, got %d", c)
	}
	c = a.ResignClock(fakePos{side: cuteseal.Black, ply: 12, reversible: 3}, eval(15, 0))
	if c != 4 {
		t.Errorf("expected clock 4 after a reset sample, got %d", c)
	}
}
