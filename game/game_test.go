package game

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/notnil/chess"

	cuteseal "go-cuteseal"
	"go-cuteseal/adjudicate"
	"go-cuteseal/book"
	"go-cuteseal/pgn"
)

// stubPlayer plays the first legal move instantly.  Behavior knobs
// simulate misbehaving engines.
type stubPlayer struct {
	name string

	mu   sync.Mutex
	sink cuteseal.Sink
	game *chess.Game
	side cuteseal.Side
	eval cuteseal.MoveEvaluation

	// knobs
	score           func(ply int) int
	disconnectAtPly int  // 0: never
	moveOutOfTurn   bool // fire one move while waiting
	trusted         bool
	dead            bool

	plies int
}

func newStub(name string) *stubPlayer {
	return &stubPlayer{name: name, game: chess.NewGame()}
}

func (p *stubPlayer) Name() string   { return p.name }
func (p *stubPlayer) String() string { return p.name }

func (p *stubPlayer) SetSink(s cuteseal.Sink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

func (p *stubPlayer) Ready(ctx context.Context) error {
	if p.dead {
		return context.Canceled
	}
	return nil
}

func (p *stubPlayer) NewGame(side cuteseal.Side, fen string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.side = side
	p.plies = 0
	if fen == "" {
		p.game = chess.NewGame()
	} else {
		opt, err := chess.FEN(fen)
		if err != nil {
			return err
		}
		p.game = chess.NewGame(opt)
	}
	return nil
}

func (p *stubPlayer) apply(move string) error {
	var notation chess.UCINotation
	m, err := notation.Decode(p.game.Position(), move)
	if err != nil {
		return err
	}
	p.plies++
	return p.game.Move(m)
}

func (p *stubPlayer) MakeMove(move string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(move)
}

func (p *stubPlayer) MakeBookMove(move string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(move)
}

func (p *stubPlayer) Go(white, black *cuteseal.TimeControl) {
	go func() {
		p.mu.Lock()
		sink := p.sink
		ply := p.plies

		if p.disconnectAtPly > 0 && ply+1 >= p.disconnectAtPly {
			p.dead = true
			p.mu.Unlock()
			sink.Disconnected(p)
			return
		}

		moves := p.game.ValidMoves()
		if len(moves) == 0 {
			p.mu.Unlock()
			sink.Disconnected(p)
			return
		}
		var notation chess.UCINotation
		move := notation.Encode(p.game.Position(), moves[0])
		p.apply(move)

		score := 0
		if p.score != nil {
			score = p.score(ply)
		}
		eval := cuteseal.MoveEvaluation{Depth: 10, Score: score, Nodes: 1000}
		p.eval = eval
		p.mu.Unlock()

		if p.moveOutOfTurn {
			// An extra move on the opponent's turn.
			defer sink.MoveMade(p, move, &eval)
		}
		sink.MoveMade(p, move, &eval)
	}()
}

func (p *stubPlayer) Stop()                     {}
func (p *stubPlayer) StartPondering()           {}
func (p *stubPlayer) ClearPonderState()         {}
func (p *stubPlayer) EndGame(r cuteseal.Result) {}
func (p *stubPlayer) Kill()                     { p.dead = true }
func (p *stubPlayer) ClaimsValidated() bool     { return !p.trusted }
func (p *stubPlayer) Evaluation() *cuteseal.MoveEvaluation {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.eval
	return &e
}

func quickTC() *cuteseal.TimeControl {
	return &cuteseal.TimeControl{TimePerTC: 60_000, Increment: 100}
}

func testGame(white, black *stubPlayer, maxMoves int) *ChessGame {
	g := NewChessGame(pgn.NewGame())
	g.SetPlayer(cuteseal.White, white)
	g.SetPlayer(cuteseal.Black, black)
	g.SetTimeControl(cuteseal.White, quickTC())
	g.SetTimeControl(cuteseal.Black, quickTC())

	adj := adjudicate.New()
	if maxMoves > 0 {
		adj.SetMaximumGameLength(maxMoves)
	}
	g.SetAdjudicator(adj)
	return g
}

func TestGameEndsByMaxLength(t *testing.T) {
	// The stubs shuffle their rooks, so the limit must come before
	// the position after ply 4 occurs for the third time at ply 12.
	g := testGame(newStub("alpha"), newStub("beta"), 5)
	result := g.Run(context.Background())

	if result.Type != cuteseal.Adjudication || !result.IsDraw() {
		t.Fatalf("expected a max-length draw, got %s", result.VerboseString())
	}
	if got := g.Pgn().PlyCount(); got != 10 {
		t.Errorf("expected 10 recorded plies, got %d", got)
	}
}

func TestPgnFinalization(t *testing.T) {
	g := testGame(newStub("alpha"), newStub("beta"), 4)
	result := g.Run(context.Background())

	rec := g.Pgn()
	if rec.Result() != result {
		t.Errorf("PGN result %s does not match game result %s",
			rec.Result().String(), result.String())
	}
	if rec.Tag("PlyCount") != strconv.Itoa(rec.PlyCount()) {
		t.Errorf("PlyCount tag %q does not match %d recorded plies",
			rec.Tag("PlyCount"), rec.PlyCount())
	}
	if rec.Tag("TerminationDetails") == "" {
		t.Error("TerminationDetails tag missing")
	}
	if rec.White != "alpha" || rec.Black != "beta" {
		t.Errorf("player tags not set: %q vs %q", rec.White, rec.Black)
	}
}

func TestDisconnectionLosesTheGame(t *testing.T) {
	black := newStub("beta")
	black.disconnectAtPly = 4
	g := testGame(newStub("alpha"), black, 0)

	result := g.Run(context.Background())
	if result.Type != cuteseal.Disconnection {
		t.Fatalf("expected a disconnection, got %s", result.VerboseString())
	}
	if result.Winner != cuteseal.White {
		t.Errorf("expected white to win by disconnection, got %s", result.Winner)
	}
}

func TestOutOfTurnMoveIsIgnored(t *testing.T) {
	white := newStub("alpha")
	white.moveOutOfTurn = true
	g := testGame(white, newStub("beta"), 4)

	result := g.Run(context.Background())
	// The duplicate events must not corrupt the game.
	if result.Type != cuteseal.Adjudication || !result.IsDraw() {
		t.Fatalf("expected the game to finish normally, got %s", result.VerboseString())
	}
	if got := g.Pgn().PlyCount(); got != 8 {
		t.Errorf("expected 8 plies, got %d", got)
	}
}

func TestResignAdjudication(t *testing.T) {
	white := newStub("alpha")
	white.score = func(int) int { return -600 }
	black := newStub("beta")
	black.score = func(int) int { return 600 }

	g := NewChessGame(pgn.NewGame())
	g.SetPlayer(cuteseal.White, white)
	g.SetPlayer(cuteseal.Black, black)
	g.SetTimeControl(cuteseal.White, quickTC())
	g.SetTimeControl(cuteseal.Black, quickTC())
	adj := adjudicate.New()
	adj.SetResignThreshold(3, -500)
	g.SetAdjudicator(adj)

	result := g.Run(context.Background())
	if result.Type != cuteseal.Adjudication || result.Winner != cuteseal.Black {
		t.Fatalf("expected black to win by adjudication, got %s", result.VerboseString())
	}
}

func TestForcedOpeningPrefix(t *testing.T) {
	g := testGame(newStub("alpha"), newStub("beta"), 4)
	g.SetMoves([]string{"e2e4", "e7e5"})

	result := g.Run(context.Background())
	if result.IsNone() {
		t.Fatalf("game did not finish: %s", result.VerboseString())
	}

	moves := g.Pgn().Moves()
	if len(moves) < 2 {
		t.Fatalf("prefix not recorded, got %d plies", len(moves))
	}
	if moves[0].San != "e4" || moves[0].Comment != "book" {
		t.Errorf("expected e4 {book}, got %s {%s}", moves[0].San, moves[0].Comment)
	}
	if moves[1].San != "e5" || moves[1].Comment != "book" {
		t.Errorf("expected e5 {book}, got %s {%s}", moves[1].San, moves[1].Comment)
	}
}

func TestOpeningBookPath(t *testing.T) {
	b := book.NewMapBook()
	start := chess.NewGame().Position().String()
	b.Add(start, "d2d4", 1)

	g := testGame(newStub("alpha"), newStub("beta"), 4)
	g.SetOpeningBook(b, cuteseal.NoSide, 1)

	result := g.Run(context.Background())
	if result.IsNone() {
		t.Fatalf("game did not finish: %s", result.VerboseString())
	}
	moves := g.Pgn().Moves()
	if moves[0].San != "d4" || moves[0].Comment != "book" {
		t.Errorf("expected d4 {book}, got %s {%s}", moves[0].San, moves[0].Comment)
	}
}

func TestInvalidClaimForfeits(t *testing.T) {
	white := newStub("alpha")
	g := testGame(white, newStub("beta"), 0)

	// Hold the game at its first turn boundary; the stubs move
	// instantly and would otherwise end the game before the claim.
	g.Pause()
	done := make(chan cuteseal.Result, 1)
	go func() { done <- g.Run(context.Background()) }()

	// Claim a win for the sender: a validated claim that wins for
	// the claimant converts to a forfeit.
	time.Sleep(50 * time.Millisecond)
	g.ResultClaim(white, cuteseal.MakeResult(cuteseal.NormalResult,
		cuteseal.White, "checkmate"))
	g.Resume()

	select {
	case result := <-done:
		if result.Type != cuteseal.Adjudication || result.Winner != cuteseal.Black {
			t.Fatalf("expected a forfeit against the claimant, got %s",
				result.VerboseString())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("game did not finish after the claim")
	}
}

func TestManagerConcurrencyCeiling(t *testing.T) {
	m := NewManager(2)

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	results := make(chan cuteseal.Result, 4)

	for i := 0; i < 4; i++ {
		white := newStub("w" + strconv.Itoa(i))
		black := newStub("b" + strconv.Itoa(i))
		g := testGame(white, black, 3)
		g.OnStarted = func(*ChessGame) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
		}
		g.OnFinished = func(fg *ChessGame) {
			mu.Lock()
			running--
			mu.Unlock()
			results <- fg.Result()
		}

		err := m.Start(context.Background(), Request{
			Game:  g,
			White: stubBuilder{white},
			Black: stubBuilder{black},
			Mode:  Enqueue,
			Reuse: NewPlayers,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 4; i++ {
		select {
		case r := <-results:
			if r.IsNone() {
				t.Errorf("game %d did not finish", i)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("games did not finish")
		}
	}
	m.Shutdown()

	if peak > 2 {
		t.Errorf("concurrency ceiling exceeded: peak %d", peak)
	}
}

// stubBuilder hands out a fixed player.
type stubBuilder struct{ p *stubPlayer }

func (b stubBuilder) Name() string   { return b.p.name }
func (b stubBuilder) String() string { return b.p.name }
func (b stubBuilder) Build() (cuteseal.Player, error) {
	return b.p, nil
}
func (b stubBuilder) ConfigKey() string { return b.p.name }
func (b stubBuilder) Reusable() bool    { return true }
