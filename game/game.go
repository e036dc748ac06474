// Game driver
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

// Package game runs a single game between two players and dispatches
// games to a bounded pool of workers.
package game

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"

	cuteseal "go-cuteseal"
	"go-cuteseal/adjudicate"
	"go-cuteseal/book"
	"go-cuteseal/pgn"
)

// event is what a player adapter can deliver asynchronously.
type event struct {
	player cuteseal.Player
	move   string
	eval   *cuteseal.MoveEvaluation
	claim  *cuteseal.Result
	// disconnect when neither move nor claim is set
}

// ChessGame drives one game between two players.  All pre-start
// setters must be called before Run; afterwards the state belongs to
// the driver goroutine and the event queue.
type ChessGame struct {
	mu sync.Mutex

	board *chess.Game
	rec   *pgn.Game

	players [2]cuteseal.Player
	tc      [2]*cuteseal.TimeControl
	books   [2]book.Book
	bookply [2]int
	ponder  [2]bool

	adjudicator *adjudicate.Adjudicator

	startFen   string
	moves      []string // forced opening prefix, UCI
	startDelay time.Duration

	seen map[string]int // position keys, for repetition checks
	fens []string       // FEN after each recorded ply

	lastEval [2]cuteseal.MoveEvaluation

	result     cuteseal.Result
	inProgress bool
	finished   bool
	paused     bool
	errorStr   string

	events chan event
	resume chan struct{}
	stopc  chan struct{}
	stop1  sync.Once

	// Controller hooks, all optional
	OnStarted  func(*ChessGame)
	OnFinished func(*ChessGame)
	OnMove     func(*ChessGame)
}

func NewChessGame(rec *pgn.Game) *ChessGame {
	return &ChessGame{
		board:       chess.NewGame(),
		rec:         rec,
		adjudicator: adjudicate.New(),
		seen:        make(map[string]int),
		events:      make(chan event, 8),
		resume:      make(chan struct{}, 1),
		stopc:       make(chan struct{}),
		result:      cuteseal.MakeResult(cuteseal.NoResult, cuteseal.NoSide, ""),
	}
}

func (g *ChessGame) Pgn() *pgn.Game { return g.rec }

func (g *ChessGame) Player(side cuteseal.Side) cuteseal.Player {
	return g.players[side]
}

func (g *ChessGame) SetPlayer(side cuteseal.Side, p cuteseal.Player) {
	g.players[side] = p
}

func (g *ChessGame) SetTimeControl(side cuteseal.Side, tc *cuteseal.TimeControl) {
	g.tc[side] = tc
}

func (g *ChessGame) TimeControl(side cuteseal.Side) *cuteseal.TimeControl {
	return g.tc[side]
}

func (g *ChessGame) SetPonder(side cuteseal.Side, enabled bool) {
	g.ponder[side] = enabled
}

func (g *ChessGame) SetAdjudicator(a *adjudicate.Adjudicator) {
	g.adjudicator = a
}

func (g *ChessGame) SetStartDelay(d time.Duration) {
	g.startDelay = d
}

// SetStartingFen is legal only before the game starts.
func (g *ChessGame) SetStartingFen(fen string) error {
	if g.inProgress {
		panic("starting FEN set on a running game")
	}
	if fen == "" {
		g.startFen = ""
		return nil
	}
	if _, err := chess.FEN(fen); err != nil {
		return fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	g.startFen = fen
	return nil
}

func (g *ChessGame) StartingFen() string { return g.startFen }

// SetMoves forces an opening prefix (UCI notation).
func (g *ChessGame) SetMoves(moves []string) {
	if g.inProgress {
		panic("opening prefix set on a running game")
	}
	g.moves = append([]string(nil), moves...)
}

func (g *ChessGame) Moves() []string { return g.moves }

// SetOpeningBook attaches a book for one side, or both when side is
// NoSide.  depth is in full moves.
func (g *ChessGame) SetOpeningBook(b book.Book, side cuteseal.Side, depth int) {
	if side.IsNull() {
		g.SetOpeningBook(b, cuteseal.White, depth)
		g.SetOpeningBook(b, cuteseal.Black, depth)
		return
	}
	g.books[side] = b
	g.bookply[side] = depth
}

// FinalFen returns the current position, which after Run is the final
// one.
func (g *ChessGame) FinalFen() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.Position().String()
}

func (g *ChessGame) Result() cuteseal.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

// LastEval returns the last engine evaluation one side reported.
func (g *ChessGame) LastEval(side cuteseal.Side) *cuteseal.MoveEvaluation {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.lastEval[side]
	return &e
}

// Fens lists the position after every recorded ply, in game order.
func (g *ChessGame) Fens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fens...)
}

func (g *ChessGame) ErrorString() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errorStr
}

// Pause defers the next turn until Resume.
func (g *ChessGame) Pause() {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
}

func (g *ChessGame) Resume() {
	g.mu.Lock()
	was := g.paused
	g.paused = false
	g.mu.Unlock()
	if was {
		select {
		case g.resume <- struct{}{}:
		default:
		}
	}
}

// Stop closes the game gracefully.  Idempotent; safe from any
// goroutine.
func (g *ChessGame) Stop() {
	g.stop1.Do(func() { close(g.stopc) })
}

// Kill kills both players first, then stops the game.
func (g *ChessGame) Kill() {
	for _, p := range g.players {
		if p != nil {
			p.Kill()
		}
	}
	g.Stop()
}

// Sink interface: the player adapters deliver into the event queue.

func (g *ChessGame) MoveMade(p cuteseal.Player, move string, eval *cuteseal.MoveEvaluation) {
	select {
	case g.events <- event{player: p, move: move, eval: eval}:
	case <-g.stopc:
	}
}

func (g *ChessGame) ResultClaim(p cuteseal.Player, r cuteseal.Result) {
	select {
	case g.events <- event{player: p, claim: &r}:
	case <-g.stopc:
	}
}

func (g *ChessGame) Disconnected(p cuteseal.Player) {
	select {
	case g.events <- event{player: p}:
	case <-g.stopc:
	}
}

func (g *ChessGame) side(p cuteseal.Player) cuteseal.Side {
	switch p {
	case g.players[cuteseal.White]:
		return cuteseal.White
	case g.players[cuteseal.Black]:
		return cuteseal.Black
	}
	return cuteseal.NoSide
}

func (g *ChessGame) sideToMove() cuteseal.Side {
	if g.board.Position().Turn() == chess.White {
		return cuteseal.White
	}
	return cuteseal.Black
}

func (g *ChessGame) playerToMove() cuteseal.Player {
	return g.players[g.sideToMove()]
}

// position key bookkeeping for repetition checks

func (g *ChessGame) notePosition() {
	g.seen[book.PositionKey(g.board.Position().String())]++
}

func (g *ChessGame) wouldRepeat(m *chess.Move) bool {
	next := g.board.Position().Update(m)
	return g.seen[book.PositionKey(next.String())] > 0
}

// resetBoard applies the starting FEN.
func (g *ChessGame) resetBoard() error {
	if g.startFen == "" {
		g.board = chess.NewGame()
	} else {
		opt, err := chess.FEN(g.startFen)
		if err != nil {
			return fmt.Errorf("invalid FEN %q: %w", g.startFen, err)
		}
		g.board = chess.NewGame(opt)
	}
	g.seen = make(map[string]int)
	g.fens = nil
	g.notePosition()
	return nil
}

// bookMove returns the side's book move for the current position, or
// the empty string.
func (g *ChessGame) bookMove(side cuteseal.Side) string {
	if g.books[side] == nil || g.rec.PlyCount() >= g.bookply[side]*2 {
		return ""
	}

	uciMove, ok := g.books[side].Move(g.board.Position().String())
	if !ok {
		return ""
	}

	var notation chess.UCINotation
	m, err := notation.Decode(g.board.Position(), uciMove)
	if err != nil {
		log.Printf("Illegal opening book move for %s: %s", side, uciMove)
		return ""
	}
	if g.wouldRepeat(m) {
		return ""
	}
	return uciMove
}

// GenerateOpening extends the forced prefix by walking both opening
// books from the starting position until either book runs dry.
func (g *ChessGame) GenerateOpening() error {
	if g.books[cuteseal.White] == nil || g.books[cuteseal.Black] == nil {
		return nil
	}
	if err := g.resetBoard(); err != nil {
		return err
	}

	// First play the moves that are already in the opening.
	var notation chess.UCINotation
	for _, uciMove := range g.moves {
		m, err := notation.Decode(g.board.Position(), uciMove)
		if err != nil {
			return fmt.Errorf("invalid prefix move %q: %w", uciMove, err)
		}
		if err := g.board.Move(m); err != nil {
			return fmt.Errorf("illegal prefix move %q: %w", uciMove, err)
		}
		g.notePosition()
		if g.board.Outcome() != chess.NoOutcome {
			return nil
		}
	}

	// Then append from the books.
	for {
		uciMove := g.bookMove(g.sideToMove())
		if uciMove == "" {
			break
		}
		m, _ := notation.Decode(g.board.Position(), uciMove)
		if err := g.board.Move(m); err != nil {
			break
		}
		g.notePosition()
		g.moves = append(g.moves, uciMove)
		if g.board.Outcome() != chess.NoOutcome {
			break
		}
	}
	return nil
}

// boardResult maps the board library's outcome onto a game result.
func (g *ChessGame) boardResult() cuteseal.Result {
	switch g.board.Outcome() {
	case chess.WhiteWon:
		return cuteseal.MakeResult(cuteseal.NormalResult, cuteseal.White, "White mates")
	case chess.BlackWon:
		return cuteseal.MakeResult(cuteseal.NormalResult, cuteseal.Black, "Black mates")
	case chess.Draw:
		return cuteseal.MakeResult(cuteseal.NormalResult, cuteseal.NoSide,
			drawDescription(g.board.Method()))
	}

	// Claimable draws end the game by rule.
	for _, m := range g.board.EligibleDraws() {
		switch m {
		case chess.ThreefoldRepetition, chess.FiftyMoveRule:
			if err := g.board.Draw(m); err == nil {
				return cuteseal.MakeResult(cuteseal.NormalResult,
					cuteseal.NoSide, drawDescription(m))
			}
		}
	}
	return cuteseal.MakeResult(cuteseal.NoResult, cuteseal.NoSide, "")
}

func drawDescription(m chess.Method) string {
	switch m {
	case chess.Stalemate:
		return "Stalemate"
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return "Draw by repetition"
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return "Draw by fifty moves rule"
	case chess.InsufficientMaterial:
		return "Draw by insufficient material"
	default:
		return "Drawn game"
	}
}

// adjudicatorPos adapts the board to the adjudicator's view.
type adjudicatorPos struct {
	side       cuteseal.Side
	ply        int
	reversible int
}

func (p adjudicatorPos) SideToMove() cuteseal.Side { return p.side }
func (p adjudicatorPos) PlyCount() int             { return p.ply }
func (p adjudicatorPos) ReversibleMoves() int      { return p.reversible }

func (g *ChessGame) adjudicatorView() adjudicatorPos {
	return adjudicatorPos{
		side:       g.sideToMove(),
		ply:        g.rec.PlyCount(),
		reversible: reversibleMoves(g.board.Position()),
	}
}

// reversibleMoves extracts the halfmove clock.
func reversibleMoves(pos *chess.Position) int {
	fields := strings.Fields(pos.String())
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}

// applyMove records and plays one move by side; comment is the PGN
// comment.  It returns the game result after the move (possibly
// none).
func (g *ChessGame) applyMove(side cuteseal.Side, m *chess.Move, comment string, eval *cuteseal.MoveEvaluation) cuteseal.Result {
	var notation chess.AlgebraicNotation
	san := notation.Encode(g.board.Position(), m)

	g.mu.Lock()
	g.rec.AddMove(pgn.MoveData{San: san, Comment: comment})
	if err := g.board.Move(m); err != nil {
		// Legality was checked by the caller.
		panic(fmt.Sprintf("vetted move %s rejected: %v", san, err))
	}
	g.notePosition()
	g.fens = append(g.fens, g.board.Position().String())
	if !eval.BookEval {
		g.lastEval[side] = *eval
	}
	result := g.boardResult()
	g.mu.Unlock()

	if result.IsNone() {
		if reversibleMoves(g.board.Position()) == 0 {
			g.adjudicator.ResetDrawMoveCount()
		}
		g.adjudicator.AddEval(g.adjudicatorView(), eval)
		result = g.adjudicator.Result()
	}

	if g.OnMove != nil {
		g.OnMove(g)
	}
	return result
}

func (g *ChessGame) setResult(r cuteseal.Result) {
	g.mu.Lock()
	g.result = r
	g.mu.Unlock()
}

// initRecord fills in the tags that are known at game start.
func (g *ChessGame) initRecord() {
	g.rec.White = g.players[cuteseal.White].Name()
	g.rec.Black = g.players[cuteseal.Black].Name()
	g.rec.Date = time.Now()
	g.rec.SetStartingFen(g.startFen)
	if g.tc[0].String() == g.tc[1].String() {
		g.rec.SetTag("TimeControl", g.tc[0].String())
	} else {
		g.rec.SetTag("WhiteTimeControl", g.tc[0].String())
		g.rec.SetTag("BlackTimeControl", g.tc[1].String())
	}
}

// finish finalizes the record and releases the players.
func (g *ChessGame) finish() {
	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return
	}
	g.finished = true
	g.inProgress = false
	result := g.result
	g.rec.SetResult(result)
	g.rec.SetTag("PlyCount", strconv.Itoa(g.rec.PlyCount()))
	g.rec.SetTag("TerminationDetails", result.Termination())
	g.rec.Finished = time.Now()
	g.mu.Unlock()

	// Unblock any late event producers.
	g.stop1.Do(func() { close(g.stopc) })

	for _, p := range g.players {
		if p != nil {
			p.EndGame(result)
		}
	}
	if g.OnFinished != nil {
		g.OnFinished(g)
	}
}

func (g *ChessGame) failStart(err error) {
	g.mu.Lock()
	g.errorStr = err.Error()
	g.mu.Unlock()
	g.setResult(cuteseal.MakeResult(cuteseal.NoResult, cuteseal.NoSide, err.Error()))
	g.finish()
}

// Run plays the game to completion in the calling goroutine and
// returns the result.
func (g *ChessGame) Run(ctx context.Context) cuteseal.Result {
	if g.startDelay > 0 {
		select {
		case <-time.After(g.startDelay):
		case <-ctx.Done():
		case <-g.stopc:
		}
	}

	// Synchronize readiness of both players.
	for _, p := range g.players {
		if p == nil {
			g.failStart(fmt.Errorf("game is missing a player"))
			return g.Result()
		}
		if err := p.Ready(ctx); err != nil {
			g.failStart(err)
			return g.Result()
		}
	}
	for side := cuteseal.White; side <= cuteseal.Black; side++ {
		if g.tc[side] == nil || !g.tc[side].IsValid() {
			g.failStart(fmt.Errorf("invalid time control for %s", side))
			return g.Result()
		}
	}

	if err := g.resetBoard(); err != nil {
		g.failStart(err)
		return g.Result()
	}

	for side := cuteseal.White; side <= cuteseal.Black; side++ {
		p := g.players[side]
		p.SetSink(g)
		g.tc[side].Reset()
		if err := p.NewGame(side, g.startFen); err != nil {
			g.failStart(err)
			return g.Result()
		}
	}

	g.mu.Lock()
	g.inProgress = true
	g.mu.Unlock()
	g.initRecord()
	g.rec.Started = time.Now()
	if g.OnStarted != nil {
		g.OnStarted(g)
	}

	// Play the forced opening moves first.
	var notation chess.UCINotation
	bookEval := &cuteseal.MoveEvaluation{BookEval: true}
	for _, uciMove := range g.moves {
		m, err := notation.Decode(g.board.Position(), uciMove)
		if err != nil {
			g.failStart(fmt.Errorf("illegal prefix move %q: %w", uciMove, err))
			return g.Result()
		}

		side := g.sideToMove()
		mover, waiter := g.playerToMove(), g.players[side.Opposite()]
		if err := mover.MakeBookMove(uciMove); err != nil {
			g.failStart(err)
			return g.Result()
		}
		if err := waiter.MakeMove(uciMove); err != nil {
			g.failStart(err)
			return g.Result()
		}

		if r := g.applyMove(side, m, "book", bookEval); !r.IsNone() {
			log.Print("Every move was played from the book")
			g.setResult(r)
			g.finish()
			return g.Result()
		}
	}

	g.loop(ctx)
	g.finish()
	return g.Result()
}

// loop runs the turn state machine until a result sticks.
func (g *ChessGame) loop(ctx context.Context) {
	var notation chess.UCINotation

	for {
		// Honor a cooperative pause on the turn boundary.
		g.mu.Lock()
		paused := g.paused
		g.mu.Unlock()
		if paused {
			select {
			case <-g.resume:
			case <-g.stopc:
				return
			case <-ctx.Done():
				return
			}
		}

		side := g.sideToMove()
		mover := g.players[side]
		waiter := g.players[side.Opposite()]

		// Book path: no engine consultation needed.
		if uciMove := g.bookMove(side); uciMove != "" {
			m, _ := notation.Decode(g.board.Position(), uciMove)
			if err := mover.MakeBookMove(uciMove); err != nil {
				g.setResult(cuteseal.MakeResult(cuteseal.Disconnection,
					side.Opposite(), fmt.Sprintf("%s: %v", mover.Name(), err)))
				return
			}
			if err := waiter.MakeMove(uciMove); err != nil {
				g.setResult(cuteseal.MakeResult(cuteseal.Disconnection,
					side, fmt.Sprintf("%s: %v", waiter.Name(), err)))
				return
			}
			waiter.ClearPonderState()
			if r := g.applyMove(side, m, "book", &cuteseal.MoveEvaluation{BookEval: true}); !r.IsNone() {
				g.setResult(r)
				return
			}
			continue
		}

		mover.Go(g.tc[cuteseal.White], g.tc[cuteseal.Black])
		if g.ponder[side.Opposite()] {
			waiter.StartPondering()
		}

		turnStart := time.Now()
		timer := time.NewTimer(g.tc[side].Deadline())

		if !g.waitForMove(ctx, side, mover, waiter, turnStart, timer) {
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

// waitForMove blocks until the mover produced a move or the game
// ended.  It returns false when the game is over.
func (g *ChessGame) waitForMove(ctx context.Context, side cuteseal.Side,
	mover, waiter cuteseal.Player, turnStart time.Time, timer *time.Timer) bool {

	var notation chess.UCINotation
	for {
		select {
		case ev := <-g.events:
			switch {
			case ev.claim != nil:
				if r, over := g.handleClaim(ev.player, *ev.claim); over {
					g.setResult(r)
					return false
				}
				continue

			case ev.move == "":
				// Disconnection: the loser is the sender.
				s := g.side(ev.player)
				if s == cuteseal.NoSide {
					continue
				}
				g.setResult(cuteseal.MakeResult(cuteseal.Disconnection,
					s.Opposite(),
					fmt.Sprintf("%s disconnects", ev.player.Name())))
				return false

			default:
				if ev.player != mover {
					log.Printf("%s tried to make a move on the opponent's turn",
						ev.player.Name())
					continue
				}

				elapsed := time.Since(turnStart)
				if g.tc[side].Consume(elapsed) {
					g.setResult(cuteseal.MakeResult(cuteseal.Timeout,
						side.Opposite(),
						fmt.Sprintf("%s loses on time", mover.Name())))
					return false
				}

				m, err := notation.Decode(g.board.Position(), ev.move)
				if err != nil || !legalMove(g.board, m) {
					g.setResult(cuteseal.MakeResult(cuteseal.IllegalMove,
						side.Opposite(),
						fmt.Sprintf("%s makes an illegal move: %s",
							mover.Name(), ev.move)))
					return false
				}

				eval := ev.eval
				if eval == nil {
					eval = mover.Evaluation()
				}
				comment := g.evalString(side, eval, elapsed)

				r := g.applyMove(side, m, comment, eval)
				if !r.IsNone() {
					g.setResult(r)
					return false
				}

				if err := waiter.MakeMove(ev.move); err != nil {
					g.setResult(cuteseal.MakeResult(cuteseal.Disconnection,
						side, fmt.Sprintf("%s: %v", waiter.Name(), err)))
					return false
				}
				return true
			}

		case <-timer.C:
			g.setResult(cuteseal.MakeResult(cuteseal.Timeout,
				side.Opposite(),
				fmt.Sprintf("%s loses on time", mover.Name())))
			return false

		case <-g.stopc:
			return false

		case <-ctx.Done():
			return false
		}
	}
}

// handleClaim implements the result-claim rules.  It reports whether
// the game is over and with which result.
func (g *ChessGame) handleClaim(sender cuteseal.Player, r cuteseal.Result) (cuteseal.Result, bool) {
	senderSide := g.side(sender)

	if r.Type == cuteseal.Disconnection {
		// The engine may not be properly started, so the side is
		// inferred from the sender's identity.
		if senderSide == cuteseal.NoSide {
			senderSide = cuteseal.White
		}
		return cuteseal.MakeResult(cuteseal.Disconnection,
			senderSide.Opposite(),
			fmt.Sprintf("%s disconnects", sender.Name())), true
	}

	g.mu.Lock()
	inProgress := g.inProgress
	g.mu.Unlock()

	if !inProgress && r.Winner.IsNull() {
		log.Printf("Unexpected result claim from %s: %s",
			sender.Name(), r.VerboseString())
		return r, false
	}

	if sender.ClaimsValidated() && r.Loser() != senderSide {
		log.Printf("%s forfeits by invalid result claim: %s",
			sender.Name(), r.VerboseString())
		return cuteseal.MakeResult(cuteseal.Adjudication,
			senderSide.Opposite(), "Invalid result claim"), true
	}

	return r, true
}

func legalMove(g *chess.Game, m *chess.Move) bool {
	for _, v := range g.ValidMoves() {
		if v.S1() == m.S1() && v.S2() == m.S2() && v.Promo() == m.Promo() {
			return true
		}
	}
	return false
}
