package tourn

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/notnil/chess"

	cuteseal "go-cuteseal"
	"go-cuteseal/sched"
)

// patternBuilder produces players whose reported score follows a
// fixed per-game pattern, so outcomes can be scripted across a match.
type patternBuilder struct {
	name    string
	pattern []int
	sign    int
}

func (b patternBuilder) Name() string   { return b.name }
func (b patternBuilder) String() string { return b.name }
func (b patternBuilder) Build() (cuteseal.Player, error) {
	p := &patternPlayer{
		autoPlayer: autoPlayer{name: b.name},
		pattern:    b.pattern,
		sign:       b.sign,
	}
	p.self = p
	return p, nil
}
func (b patternBuilder) ConfigKey() string { return b.name }
func (b patternBuilder) Reusable() bool    { return true }

type patternPlayer struct {
	autoPlayer
	pattern []int
	sign    int
	games   int
}

func (p *patternPlayer) NewGame(side cuteseal.Side, fen string) error {
	p.mu.Lock()
	p.score = p.sign * p.pattern[p.games%len(p.pattern)]
	p.games++
	p.mu.Unlock()
	return p.autoPlayer.NewGame(side, fen)
}

// autoPlayer plays the first legal move instantly; outcomes are
// steered by the per-side score it reports.
type autoPlayer struct {
	name  string
	score int
	// self is the identity reported to the sink when the player is
	// wrapped by another type.
	self cuteseal.Player

	mu   sync.Mutex
	sink cuteseal.Sink
	game *chess.Game
	side cuteseal.Side
	eval cuteseal.MoveEvaluation
}

func (p *autoPlayer) ident() cuteseal.Player {
	if p.self != nil {
		return p.self
	}
	return p
}

func (p *autoPlayer) Name() string   { return p.name }
func (p *autoPlayer) String() string { return p.name }

func (p *autoPlayer) SetSink(s cuteseal.Sink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

func (p *autoPlayer) Ready(ctx context.Context) error { return nil }

func (p *autoPlayer) NewGame(side cuteseal.Side, fen string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.side = side
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

func (p *autoPlayer) apply(move string) error {
	var notation chess.UCINotation
	m, err := notation.Decode(p.game.Position(), move)
	if err != nil {
		return err
	}
	return p.game.Move(m)
}

func (p *autoPlayer) MakeMove(move string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(move)
}

func (p *autoPlayer) MakeBookMove(move string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(move)
}

func (p *autoPlayer) Go(white, black *cuteseal.TimeControl) {
	go func() {
		p.mu.Lock()
		sink := p.sink
		moves := p.game.ValidMoves()
		if len(moves) == 0 {
			p.mu.Unlock()
			sink.Disconnected(p.ident())
			return
		}
		var notation chess.UCINotation
		move := notation.Encode(p.game.Position(), moves[0])
		p.apply(move)
		eval := cuteseal.MoveEvaluation{Depth: 12, Score: p.score, Nodes: 64}
		p.eval = eval
		p.mu.Unlock()

		sink.MoveMade(p.ident(), move, &eval)
	}()
}

func (p *autoPlayer) Stop()                   {}
func (p *autoPlayer) StartPondering()         {}
func (p *autoPlayer) ClearPonderState()       {}
func (p *autoPlayer) EndGame(cuteseal.Result) {}
func (p *autoPlayer) Kill()                   {}
func (p *autoPlayer) ClaimsValidated() bool   { return true }
func (p *autoPlayer) Evaluation() *cuteseal.MoveEvaluation {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.eval
	return &e
}

type autoBuilder struct {
	name  string
	score int
}

func (b autoBuilder) Name() string   { return b.name }
func (b autoBuilder) String() string { return b.name }
func (b autoBuilder) Build() (cuteseal.Player, error) {
	return &autoPlayer{name: b.name, score: b.score}, nil
}
func (b autoBuilder) ConfigKey() string { return b.name }
func (b autoBuilder) Reusable() bool    { return true }

func testPlayers(scores map[string]int, names ...string) []*sched.Player {
	players := make([]*sched.Player, 0, len(names))
	for _, n := range names {
		players = append(players, &sched.Player{
			Name:    n,
			Builder: autoBuilder{name: n, score: scores[n]},
			TC:      &cuteseal.TimeControl{TimePerTC: 60_000},
		})
	}
	return players
}

// drawSettings adjudicate every game as an early draw.
func drawSettings() Settings {
	return Settings{
		Type:      "round-robin",
		Name:      "test event",
		SwapSides: true,
		Adjudication: AdjudicationSettings{
			MaxMoves: 4,
		},
	}
}

func TestRoundRobinBergerEndToEnd(t *testing.T) {
	settings := drawSettings()
	settings.BergerSchedule = true
	settings.GamesPerEncounter = 2
	settings.Concurrency = 1

	players := testPlayers(nil, "A", "B", "C", "D")
	tournament, err := New(settings, sched.NewBase(players))
	if err != nil {
		t.Fatal(err)
	}

	if err := tournament.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if tournament.FinalGameCount() != 12 {
		t.Errorf("expected 12 games, got %d", tournament.FinalGameCount())
	}
	if tournament.FinishedGameCount() != 12 {
		t.Errorf("expected 12 finished games, got %d", tournament.FinishedGameCount())
	}

	// Score conservation: 2 points per game.
	sum := 0
	for i := 0; i < tournament.PlayerCount(); i++ {
		sum += tournament.PlayerAt(i).Score
	}
	if sum != 24 {
		t.Errorf("expected a score sum of 24, got %d", sum)
	}

	// All draws: everyone finished 6 games with 6 points.
	for i := 0; i < tournament.PlayerCount(); i++ {
		p := tournament.PlayerAt(i)
		if p.GamesFinished != 6 || p.Score != 6 || p.Draws != 6 {
			t.Errorf("%s: games %d score %d draws %d", p.Name,
				p.GamesFinished, p.Score, p.Draws)
		}
	}
}

func TestScoreConservationWithDecisiveGames(t *testing.T) {
	settings := drawSettings()
	settings.Adjudication = AdjudicationSettings{
		ResignMoveCount: 2,
		ResignScore:     -400,
	}
	settings.GamesPerEncounter = 2
	settings.Concurrency = 1

	// Strong always reports winning scores, Weak losing ones: every
	// game is adjudicated in Strong's favor regardless of color.
	players := testPlayers(map[string]int{"Strong": 500, "Weak": -500},
		"Strong", "Weak")
	tournament, err := New(settings, sched.NewBase(players))
	if err != nil {
		t.Fatal(err)
	}
	if err := tournament.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	strong, weak := tournament.PlayerAt(0), tournament.PlayerAt(1)
	if strong.Wins != 2 || weak.Losses != 2 {
		t.Errorf("expected Strong to win both games, got %d-%d",
			strong.Wins, weak.Wins)
	}
	if strong.Score+weak.Score != 2*tournament.FinishedGameCount() {
		t.Errorf("score sum %d != %d", strong.Score+weak.Score,
			2*tournament.FinishedGameCount())
	}
}

func TestSprtStopsTheTournament(t *testing.T) {
	settings := drawSettings()
	settings.GamesPerEncounter = 2000
	settings.Concurrency = 1
	settings.Sprt = &SprtSettings{Elo0: 0, Elo1: 100, Alpha: 0.05, Beta: 0.05}
	settings.Adjudication = AdjudicationSettings{
		ResignMoveCount: 2,
		ResignScore:     -400,
		MaxMoves:        4,
	}

	// A win, a loss and two draws per four-game block: the engines
	// are equal, so the test accepts H0 long before the schedule
	// runs out.
	pattern := []int{500, -500, 0, 0}
	players := []*sched.Player{
		{
			Name:    "P0",
			Builder: patternBuilder{name: "P0", pattern: pattern, sign: 1},
			TC:      &cuteseal.TimeControl{TimePerTC: 60_000},
		},
		{
			Name:    "P1",
			Builder: patternBuilder{name: "P1", pattern: pattern, sign: -1},
			TC:      &cuteseal.TimeControl{TimePerTC: 60_000},
		},
	}
	tournament, err := New(settings, sched.NewBase(players))
	if err != nil {
		t.Fatal(err)
	}
	if err := tournament.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if tournament.FinishedGameCount() >= tournament.FinalGameCount() {
		t.Fatal("SPRT did not stop the tournament early")
	}
	if st := tournament.sprt.Status(); st.Result != AcceptH0 {
		t.Errorf("expected H0 for equal engines, got %v", st.Result)
	}
}

func TestCrosstableRanking(t *testing.T) {
	settings := drawSettings()
	settings.TournamentFile = filepath.Join(t.TempDir(), "tour.json")
	settings.Concurrency = 1
	settings.Adjudication = AdjudicationSettings{
		ResignMoveCount: 2,
		ResignScore:     -400,
	}

	players := testPlayers(map[string]int{
		"Best": 500, "Mid": -500, "Last": -500,
	}, "Best", "Mid", "Last")
	tournament, err := New(settings, sched.NewBase(players))
	if err != nil {
		t.Fatal(err)
	}
	if err := tournament.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := tournament.Crosstable()
	if len(rows) != 3 {
		t.Fatalf("expected 3 crosstable rows, got %d", len(rows))
	}
	if rows[0].Name != "Best" {
		t.Errorf("expected Best to rank first, got %s", rows[0].Name)
	}
	for i, r := range rows {
		if r.Rank != i+1 {
			t.Errorf("row %d has rank %d", i, r.Rank)
		}
	}
	if rows[0].Score <= rows[2].Score {
		t.Errorf("ranking not ordered by score: %v", rows)
	}
}

func TestResultsRendering(t *testing.T) {
	settings := drawSettings()
	settings.Concurrency = 1
	players := testPlayers(nil, "A", "B")
	tournament, err := New(settings, sched.NewBase(players))
	if err != nil {
		t.Fatal(err)
	}
	if err := tournament.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	out := tournament.Results()
	if !strings.Contains(out, "Elo difference:") {
		t.Fatalf("expected a two-player Elo difference line, got %q", out)
	}
}
