// Tournament controller
//
// Copyright (c) 2023, 2024  The go-cuteseal authors
//
// This file is part of go-cuteseal.
//
// go-cuteseal is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-cuteseal is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-cuteseal. If not, see
// <http://www.gnu.org/licenses/>

// Package tourn runs the tournament: it consumes the pairing stream,
// dispatches games, accumulates scores, runs the sequential test and
// writes every artifact.
package tourn

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	cuteseal "go-cuteseal"
	"go-cuteseal/adjudicate"
	"go-cuteseal/book"
	"go-cuteseal/game"
	"go-cuteseal/pgn"
	"go-cuteseal/sched"
)

// AdjudicationSettings configures the per-game adjudicator.
type AdjudicationSettings struct {
	DrawMoveNumber  int
	DrawMoveCount   int
	DrawScore       int
	ResignMoveCount int
	ResignScore     int
	MaxMoves        int
	Tcec            bool
	TB              adjudicate.Prober
}

func (a *AdjudicationSettings) new() *adjudicate.Adjudicator {
	adj := adjudicate.New()
	if a == nil {
		return adj
	}
	if a.DrawMoveNumber > 0 {
		adj.SetDrawThreshold(a.DrawMoveNumber, a.DrawMoveCount, a.DrawScore)
	}
	if a.ResignMoveCount > 0 {
		adj.SetResignThreshold(a.ResignMoveCount, a.ResignScore)
	}
	if a.MaxMoves > 0 {
		adj.SetMaximumGameLength(a.MaxMoves)
	}
	if a.TB != nil {
		adj.SetTablebaseAdjudication(a.TB)
	}
	adj.SetTcecAdjudication(a.Tcec)
	return adj
}

// SprtSettings configures early stopping.
type SprtSettings struct {
	Elo0, Elo1  float64
	Alpha, Beta float64
}

// Settings is everything the CLI decides about a tournament.
type Settings struct {
	Type      string // round-robin, swiss-tcec, knockout, gauntlet
	Name      string
	Site      string
	Variant   string
	EventDate string

	Concurrency        int
	GamesPerEncounter  int
	RoundMultiplier    int
	OpeningRepetitions int
	OpeningDepth       int
	SwapSides          bool
	BergerSchedule     bool
	Seeds              int
	StartDelay         time.Duration
	Strikes            int
	Recover            bool
	Srand              int64
	EloKfactor         float64
	RatingInterval     int

	Adjudication AdjudicationSettings
	Sprt         *SprtSettings

	Openings     *book.Suite
	OpeningsSpec string
	BookMode     string

	PgnOut             string
	PgnOutMode         pgn.Mode
	PgnWriteUnfinished bool
	PgnCleanup         bool
	EpdOut             string
	LivePgnOut         string
	LivePgnOutMode     pgn.Mode
	LivePgnFormat      bool
	LiveJsonFormat     bool

	TournamentFile   string
	ResumeGameNumber int
	SentinelFile     string

	TBPath     string
	TBPieces   int
	TBIgnore50 bool
}

type gameData struct {
	number     int
	whiteIndex int
	blackIndex int
}

type finishedGame struct {
	game *game.ChessGame
	data *gameData
}

// Tournament is the controller.  One goroutine runs the outer loop;
// game workers report back through the results channel.
type Tournament struct {
	Settings

	scheduler sched.Scheduler
	base      *sched.Base
	manager   *game.Manager
	sprt      *Sprt

	nextGameNumber    int
	finishedGameCount int
	savedGameCount    int
	finalGameCount    int

	stopping  bool
	finished  bool
	errorStr  string
	startTime time.Time

	pair     *sched.Pair
	gameData map[*game.ChessGame]*gameData
	results  chan finishedGame

	// opening repetition state
	startFen     string
	openingMoves []string
	repetitions  int
	cycleFens    []string
	cycleMoves   [][]string

	pgnGames map[int]*pgn.Game
	pgnFile  *os.File
	epdFile  *os.File

	progress       []ProgressEntry
	engineSettings interface{}

	// OnLiveUpdate is called after every recorded move of any
	// game, with the game holding the record.
	OnLiveUpdate func(*game.ChessGame, int)
}

// New assembles a tournament over the given player arena.
func New(settings Settings, base *sched.Base) (*Tournament, error) {
	t := &Tournament{
		Settings: settings,
		base:     base,
		gameData: make(map[*game.ChessGame]*gameData),
		pgnGames: make(map[int]*pgn.Game),
	}

	if t.Variant != "" && t.Variant != "standard" {
		return nil, fmt.Errorf("unsupported variant %q", t.Variant)
	}
	if t.Concurrency < 1 {
		t.Concurrency = 1
	}
	if t.GamesPerEncounter < 1 {
		t.GamesPerEncounter = 1
	}
	if t.RoundMultiplier < 1 {
		t.RoundMultiplier = 1
	}
	if t.OpeningRepetitions < 1 {
		t.OpeningRepetitions = 1
	}
	if t.OpeningDepth == 0 {
		t.OpeningDepth = 1024
	}
	if t.SentinelFile == "" {
		t.SentinelFile = "failed.txt"
	}

	base.GamesPerEncounter = t.GamesPerEncounter
	base.RoundMultiplier = t.RoundMultiplier
	base.SwapSides = t.SwapSides
	base.Berger = t.BergerSchedule
	base.SeedCount = t.Seeds
	base.Concurrency = t.Concurrency
	base.Strikes = t.Strikes
	base.GamesInProgress = t.gamesInProgress

	switch t.Type {
	case "", "round-robin":
		t.Type = "round-robin"
		t.scheduler = sched.NewRoundRobin(base)
	case "swiss-tcec":
		t.scheduler = sched.NewSwiss(base)
	case "knockout":
		t.scheduler = sched.NewKnockout(base)
	case "gauntlet":
		t.scheduler = sched.NewGauntlet(base)
	default:
		return nil, fmt.Errorf("unknown tournament type %q", t.Type)
	}

	if !t.scheduler.CanSetRoundMultiplier() && t.RoundMultiplier != 1 {
		return nil, fmt.Errorf("%s does not support -rounds", t.Type)
	}
	if t.Sprt != nil {
		t.sprt = NewSprt(t.Sprt.Elo0, t.Sprt.Elo1, t.Sprt.Alpha, t.Sprt.Beta)
	}

	t.manager = game.NewManager(t.Concurrency)
	t.results = make(chan finishedGame, t.Concurrency+1)
	return t, nil
}

func (t *Tournament) Scheduler() sched.Scheduler { return t.scheduler }

func (t *Tournament) PlayerCount() int { return t.base.PlayerCount() }

func (t *Tournament) PlayerAt(i int) *sched.Player { return t.base.PlayerAt(i) }

func (t *Tournament) FinishedGameCount() int { return t.finishedGameCount }

func (t *Tournament) FinalGameCount() int { return t.finalGameCount }

func (t *Tournament) ErrorString() string { return t.errorStr }

func (t *Tournament) gamesInProgress() int {
	return t.nextGameNumber - t.finishedGameCount
}

// logf prefixes operator-visible lines with the time of tournament.
func (t *Tournament) logf(format string, args ...interface{}) {
	log.Printf("%d %s", time.Since(t.startTime).Milliseconds(),
		fmt.Sprintf(format, args...))
}

// usesBerger reports whether the Berger cycle logic applies.
func (t *Tournament) usesBerger() bool {
	return t.BergerSchedule && t.Type == "round-robin"
}

// sentinelStops implements the operator stop file: its presence stops
// the tournament, unless it names a different next game number.
func (t *Tournament) sentinelStops() bool {
	file, err := os.Open(t.SentinelFile)
	if err != nil {
		return false
	}
	defer file.Close()

	gameNo := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if n, err := strconv.Atoi(strings.TrimSpace(scanner.Text())); err == nil {
			gameNo = n
		}
	}
	if gameNo != 0 && gameNo != t.finishedGameCount+1 {
		return false
	}

	t.logf("Stopped before game %d; look at %s",
		t.finishedGameCount+1, t.SentinelFile)
	return true
}

func (t *Tournament) areAllGamesFinished() bool {
	return t.scheduler.Over(t.finishedGameCount, t.finalGameCount) &&
		t.finishedGameCount >= t.finalGameCount
}

// shouldWeStopTour polls the sentinel and the schedule state.
func (t *Tournament) shouldWeStopTour() bool {
	if t.sentinelStops() {
		return true
	}
	return t.areAllGamesFinished()
}

// clearOpening drops the forced-opening repetition state.
func (t *Tournament) clearOpening() {
	t.startFen = ""
	t.openingMoves = nil
}

// prepareOpening seeds a game's starting position: from the cycle
// cache under a Berger schedule, otherwise from the repetition state
// and the opening suite.
func (t *Tournament) prepareOpening(g *game.ChessGame) {
	if t.usesBerger() {
		slot := t.nextGameNumber % t.scheduler.GamesPerCycle()
		if (t.nextGameNumber/t.scheduler.GamesPerCycle())%t.OpeningRepetitions != 0 {
			g.SetStartingFen(t.cycleFens[slot])
			g.SetMoves(t.cycleMoves[slot])
			g.GenerateOpening()
			return
		}

		if t.Openings != nil {
			o := t.Openings.Next(t.OpeningDepth)
			g.SetStartingFen(o.FEN)
			g.SetMoves(o.Moves)
		}
		g.GenerateOpening()
		t.cycleMoves[slot] = g.Moves()
		t.cycleFens[slot] = g.StartingFen()
		return
	}

	if t.startFen != "" || len(t.openingMoves) > 0 {
		g.SetStartingFen(t.startFen)
		g.SetMoves(t.openingMoves)
		t.clearOpening()
		t.repetitions++
	} else {
		t.repetitions = 1
		if t.Openings != nil {
			o := t.Openings.Next(t.OpeningDepth)
			g.SetStartingFen(o.FEN)
			g.SetMoves(o.Moves)
		}
	}

	g.GenerateOpening()
	if t.repetitions < t.OpeningRepetitions {
		t.startFen = g.StartingFen()
		t.openingMoves = g.Moves()
	}
}

// buildGame constructs the next game for a pair, shared by the start
// and skip paths.
func (t *Tournament) buildGame(pair *sched.Pair) *game.ChessGame {
	t.pair = pair
	pair.AddStartedGame()

	// Under a Berger schedule the scheduler already oriented the
	// pair for the cycle.
	white := t.base.PlayerAt(pair.First())
	black := t.base.PlayerAt(pair.Second())

	rec := pgn.NewGame()
	rec.Event = t.Name
	rec.Site = t.Site
	gpr := t.scheduler.GamesPerRound()
	if gpr > 0 {
		rec.Round = fmt.Sprintf("%d.%d", t.base.CurrentRound(),
			t.nextGameNumber%gpr+1)
	} else {
		rec.Round = strconv.Itoa(t.nextGameNumber + 1)
	}

	g := game.NewChessGame(rec)
	g.SetTimeControl(cuteseal.White,
		t.scheduler.AdjustTimeControl(pair, white.TC))
	g.SetTimeControl(cuteseal.Black,
		t.scheduler.AdjustTimeControl(pair, black.TC))
	g.SetOpeningBook(white.Book, cuteseal.White, white.BookDepth)
	g.SetOpeningBook(black.Book, cuteseal.Black, black.BookDepth)
	g.SetStartDelay(t.StartDelay)
	g.SetAdjudicator(t.Adjudication.new())

	t.prepareOpening(g)
	return g
}

// startGame launches a prepared game on the manager.
func (t *Tournament) startGame(ctx context.Context, pair *sched.Pair) error {
	g := t.buildGame(pair)

	data := &gameData{
		whiteIndex: pair.First(),
		blackIndex: pair.Second(),
	}
	t.nextGameNumber++
	data.number = t.nextGameNumber
	t.gameData[g] = data

	// Some formats need more games than precomputed.
	if t.nextGameNumber > t.finalGameCount {
		t.finalGameCount = t.nextGameNumber
	}

	// The next game of this pair starts with reversed colors.
	if t.SwapSides && !t.usesBerger() {
		pair.SwapPlayers()
	}

	white := t.base.PlayerAt(data.whiteIndex)
	black := t.base.PlayerAt(data.blackIndex)
	white.GamesStarted++
	black.GamesStarted++

	g.OnFinished = func(fg *game.ChessGame) {
		t.results <- finishedGame{game: fg, data: data}
	}
	number := data.number
	g.OnMove = func(fg *game.ChessGame) {
		t.writeLive(fg, number)
		if t.OnLiveUpdate != nil {
			t.OnLiveUpdate(fg, number)
		}
	}

	t.logf("Started game %d of %d (%s vs %s)",
		data.number, t.finalGameCount, white.Name, black.Name)
	t.recordGameStart(data.number, white.Name, black.Name)

	err := t.manager.Start(ctx, game.Request{
		Game:  g,
		White: white.Builder,
		Black: black.Builder,
		Mode:  game.Enqueue,
		Reuse: game.ReusePlayers,
	})
	if err != nil {
		delete(t.gameData, g)
		t.nextGameNumber--
	}
	return err
}

// skipGame advances every counter and the opening state without
// playing; it is also the resume replay path.
func (t *Tournament) skipGame(pair *sched.Pair) {
	t.buildGame(pair)

	t.nextGameNumber++
	t.finishedGameCount++
	t.savedGameCount++
	if t.nextGameNumber > t.finalGameCount {
		t.finalGameCount = t.nextGameNumber
	}
	if t.SwapSides && !t.usesBerger() {
		pair.SwapPlayers()
	}
}

// startNextGames fills the manager's free capacity.  It stops the
// tournament once the schedule is over or the sentinel file says so.
func (t *Tournament) startNextGames(ctx context.Context) {
	for !t.stopping {
		if t.gamesInProgress() >= t.Concurrency {
			return
		}
		if t.shouldWeStopTour() {
			t.stop()
			return
		}

		pair := t.scheduler.NextPair(t.nextGameNumber)
		if !pair.IsValid() {
			if t.shouldWeStopTour() {
				t.stop()
			}
			return
		}

		if t.scheduler.ResetBook(pair) ||
			(!pair.HasSamePlayers(t.pair) && t.base.PlayerCount() > 2) {
			t.clearOpening()
		}

		if t.Strikes > 0 {
			iWhite, iBlack := pair.First(), pair.Second()
			if t.base.PlayerAt(iWhite).TotalStrikes() >= t.Strikes ||
				t.base.PlayerAt(iBlack).TotalStrikes() >= t.Strikes {
				t.skipGame(pair)
				t.logf("Skipped game %d (%s vs %s)", t.nextGameNumber,
					t.base.PlayerAt(iWhite).Name, t.base.PlayerAt(iBlack).Name)
				t.recordGameSkip(t.nextGameNumber,
					t.base.PlayerAt(iWhite).Name, t.base.PlayerAt(iBlack).Name)
				continue
			}
		}

		if err := t.startGame(ctx, pair); err != nil {
			t.fail(err.Error())
			return
		}
	}
}

// onGameFinished accumulates the result of one game.
func (t *Tournament) onGameFinished(fin finishedGame) {
	g, data := fin.game, fin.data
	result := g.Result()
	t.finishedGameCount++
	delete(t.gameData, g)

	iWhite, iBlack := data.whiteIndex, data.blackIndex
	white := t.base.PlayerAt(iWhite)
	black := t.base.PlayerAt(iBlack)
	white.GamesFinished++
	black.GamesFinished++

	sprtOutcome := NoOutcome
	switch result.Winner {
	case cuteseal.White:
		t.scheduler.AddScore(iWhite, 2)
		white.Wins++
		black.Losses++
		switch result.Type {
		case cuteseal.Disconnection, cuteseal.StalledConnection:
			t.scheduler.AddScore(iBlack, -1)
		default:
			t.scheduler.AddScore(iBlack, 0)
		}
		if iWhite == 0 {
			sprtOutcome = Win
		} else {
			sprtOutcome = Loss
		}
	case cuteseal.Black:
		t.scheduler.AddScore(iBlack, 2)
		black.Wins++
		white.Losses++
		switch result.Type {
		case cuteseal.Disconnection, cuteseal.StalledConnection:
			t.scheduler.AddScore(iWhite, -1)
		default:
			t.scheduler.AddScore(iWhite, 0)
		}
		if iBlack == 0 {
			sprtOutcome = Win
		} else {
			sprtOutcome = Loss
		}
	default:
		if result.IsDraw() {
			t.scheduler.AddScore(iWhite, 1)
			t.scheduler.AddScore(iBlack, 1)
			white.Draws++
			black.Draws++
			sprtOutcome = Draw
		}
	}

	// Crashes count against the offender.
	crashed := result.Type == cuteseal.Disconnection ||
		result.Type == cuteseal.StalledConnection
	if crashed {
		offender := t.base.PlayerAt(t.playerIndex(data, result.Loser()))
		offender.Crashes++
	}

	// A game that never started stops the tournament up front.
	if result.IsNone() && g.ErrorString() != "" {
		t.fail(g.ErrorString())
	}

	t.logf("Finished game %d (%s vs %s): %s",
		data.number, white.Name, black.Name, result.VerboseString())

	t.writeEpd(g)
	t.writePgn(g.Pgn(), data.number)
	t.recordGameFinish(g, data)

	if crashed && !t.Recover {
		t.stop()
	}

	if !t.sprt.IsNull() && sprtOutcome != NoOutcome {
		t.sprt.AddOutcome(sprtOutcome)
		if t.sprt.Status().Result != Continue {
			t.stop()
		}
	}

	if t.base.PlayerCount() == 2 {
		fcp, scp := t.base.PlayerAt(0), t.base.PlayerAt(1)
		total := fcp.GamesFinished
		if total > 0 {
			t.logf("Score of %s vs %s: %d - %d - %d  [%.3f] %d",
				fcp.Name, scp.Name, fcp.Wins, scp.Wins, fcp.Draws,
				float64(fcp.Score)/float64(total*2), total)
		}
	}
	if t.RatingInterval != 0 && t.finishedGameCount%t.RatingInterval == 0 {
		log.Print(t.Results())
	}
}

func (t *Tournament) playerIndex(data *gameData, side cuteseal.Side) int {
	if side == cuteseal.White {
		return data.whiteIndex
	}
	return data.blackIndex
}

func (t *Tournament) stop() {
	if t.stopping {
		return
	}
	t.stopping = true
	for g := range t.gameData {
		g.Stop()
	}
}

func (t *Tournament) fail(msg string) {
	t.errorStr = msg
	t.stop()
}

// Start runs the tournament to completion.
func (t *Tournament) Start(ctx context.Context) error {
	if t.base.PlayerCount() < 2 {
		return fmt.Errorf("a tournament needs at least two players")
	}

	t.startTime = time.Now()
	t.base.SetCurrentRound(1)
	t.nextGameNumber = 0
	t.finishedGameCount = 0
	t.savedGameCount = 0
	t.stopping = false

	if err := t.scheduler.Initialize(); err != nil {
		return err
	}
	t.finalGameCount = t.scheduler.GamesPerCycle() *
		t.GamesPerEncounter * t.RoundMultiplier

	if t.usesBerger() {
		t.cycleFens = make([]string, t.scheduler.GamesPerCycle())
		t.cycleMoves = make([][]string, t.scheduler.GamesPerCycle())
	}

	if err := t.openOutputs(); err != nil {
		return err
	}
	defer t.closeOutputs()

	// Advance the scheduler through already-played games.
	for n := t.ResumeGameNumber; n > 0; n-- {
		pair := t.scheduler.NextPair(t.nextGameNumber)
		if !pair.IsValid() {
			break
		}
		if !pair.HasSamePlayers(t.pair) && t.base.PlayerCount() > 2 {
			t.clearOpening()
		}
		t.skipGame(pair)
	}

	t.startNextGames(ctx)
	for t.gamesInProgress() > 0 {
		select {
		case fin := <-t.results:
			t.onGameFinished(fin)
			if !t.areAllGamesFinished() && !(t.stopping && t.gamesInProgress() == 0) {
				t.startNextGames(ctx)
			}
		case <-ctx.Done():
			t.stop()
			for t.gamesInProgress() > 0 {
				fin := <-t.results
				t.onGameFinished(fin)
			}
		}
	}

	t.manager.Shutdown()
	t.finished = true
	log.Print(t.Results())

	if t.errorStr != "" {
		return fmt.Errorf("%s", t.errorStr)
	}
	return nil
}

// Results renders the ranking table, or the Elo difference for a
// two-player match, plus the test status.
func (t *Tournament) Results() string {
	var b strings.Builder

	type ranked struct {
		name   string
		games  int
		score  float64
		draws  float64
		margin float64
		diff   float64
	}

	if t.base.PlayerCount() == 2 {
		p := t.base.PlayerAt(0)
		elo := NewElo(p.Wins, p.Losses, p.Draws)
		fmt.Fprintf(&b, "Elo difference: %.2f +/- %.2f",
			elo.Diff(), elo.ErrorMargin())
	} else {
		var table []ranked
		for i := 0; i < t.base.PlayerCount(); i++ {
			p := t.base.PlayerAt(i)
			elo := NewElo(p.Wins, p.Losses, p.Draws)
			table = append(table, ranked{
				name:   p.Name,
				games:  p.GamesFinished,
				score:  elo.PointRatio(),
				draws:  elo.DrawRatio(),
				margin: elo.ErrorMargin(),
				diff:   elo.Diff(),
			})
		}
		for i := 0; i < len(table); i++ {
			for j := i + 1; j < len(table); j++ {
				if table[j].score > table[i].score {
					table[i], table[j] = table[j], table[i]
				}
			}
		}

		fmt.Fprintf(&b, "%4s %-25s %7s %7s %7s %7s %7s",
			"Rank", "Name", "Elo", "+/-", "Games", "Score", "Draws")
		for rank, r := range table {
			fmt.Fprintf(&b, "\n%4d %-25s %7.0f %7.0f %7d %6.1f%% %6.1f%%",
				rank+1, r.name, r.diff, r.margin, r.games,
				r.score*100, r.draws*100)
		}
	}

	if !t.sprt.IsNull() {
		st := t.sprt.Status()
		fmt.Fprintf(&b, "\nSPRT: llr %.3g, lbound %.3g, ubound %.3g",
			st.Llr, st.LBound, st.UBound)
		switch st.Result {
		case AcceptH0:
			b.WriteString(" - H0 was accepted")
		case AcceptH1:
			b.WriteString(" - H1 was accepted")
		}
	}
	return b.String()
}
