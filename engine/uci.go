// UCI engine player
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

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"

	cuteseal "go-cuteseal"
)

// uciPlayer drives one UCI engine process.  It keeps its own copy of
// the game so the conversation can always send the full position.
type uciPlayer struct {
	cfg *Configuration
	eng *uci.Engine

	mu   sync.Mutex
	sink cuteseal.Sink
	game *chess.Game
	side cuteseal.Side
	eval cuteseal.MoveEvaluation
	dead bool
}

func newUCIPlayer(cfg *Configuration, command string) (*uciPlayer, error) {
	eng, err := uci.New(command, uci.Logger(cuteseal.Debug))
	if err != nil {
		return nil, fmt.Errorf("spawning %s: %w", cfg.Name, err)
	}

	cmds := []uci.Cmd{uci.CmdUCI, uci.CmdIsReady}
	for name, value := range cfg.Options {
		cmds = append(cmds, uci.CmdSetOption{Name: name, Value: value})
	}
	if err := eng.Run(cmds...); err != nil {
		eng.Close()
		return nil, fmt.Errorf("initializing %s: %w", cfg.Name, err)
	}
	for _, s := range cfg.InitStrs {
		// Raw protocol lines have no seam in the adapter.
		cuteseal.Debug.Printf("%s: ignoring init string %q", cfg.Name, s)
	}

	return &uciPlayer{cfg: cfg, eng: eng, game: chess.NewGame()}, nil
}

func (p *uciPlayer) Name() string   { return p.cfg.Name }
func (p *uciPlayer) String() string { return p.cfg.Name }

func (p *uciPlayer) SetSink(s cuteseal.Sink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

func (p *uciPlayer) Ready(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return fmt.Errorf("%s: engine process is gone", p.cfg.Name)
	}
	return nil
}

func (p *uciPlayer) NewGame(side cuteseal.Side, fen string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.side = side
	p.eval = cuteseal.MoveEvaluation{}
	if fen == "" {
		p.game = chess.NewGame()
	} else {
		opt, err := chess.FEN(fen)
		if err != nil {
			return fmt.Errorf("%s: invalid FEN %q: %w", p.cfg.Name, fen, err)
		}
		p.game = chess.NewGame(opt)
	}

	return p.eng.Run(uci.CmdUCINewGame, uci.CmdIsReady)
}

func (p *uciPlayer) applyMove(move string) error {
	var notation chess.UCINotation
	m, err := notation.Decode(p.game.Position(), move)
	if err != nil {
		return fmt.Errorf("%s: cannot decode move %q: %w", p.cfg.Name, move, err)
	}
	return p.game.Move(m)
}

func (p *uciPlayer) MakeMove(move string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyMove(move)
}

func (p *uciPlayer) MakeBookMove(move string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.applyMove(move); err != nil {
		return err
	}
	p.eval = cuteseal.MoveEvaluation{BookEval: true}
	return nil
}

// goCommand translates the side clocks into a go command.
func goCommand(own, white, black *cuteseal.TimeControl) uci.CmdGo {
	switch {
	case own.PlyLimit > 0:
		return uci.CmdGo{Depth: own.PlyLimit}
	case own.NodeLimit > 0:
		return uci.CmdGo{Nodes: int(own.NodeLimit)}
	case own.MoveTime > 0:
		return uci.CmdGo{MoveTime: time.Duration(own.MoveTime) * time.Millisecond}
	case own.Infinite:
		return uci.CmdGo{Infinite: true}
	default:
		return uci.CmdGo{
			WhiteTime:      time.Duration(white.TimeLeft) * time.Millisecond,
			BlackTime:      time.Duration(black.TimeLeft) * time.Millisecond,
			WhiteIncrement: time.Duration(white.Increment) * time.Millisecond,
			BlackIncrement: time.Duration(black.Increment) * time.Millisecond,
			MovesToGo:      own.MovesLeft,
		}
	}
}

func (p *uciPlayer) Go(white, black *cuteseal.TimeControl) {
	own := white
	if p.side == cuteseal.Black {
		own = black
	}

	go func() {
		p.mu.Lock()
		pos := p.game.Position()
		sink := p.sink
		p.mu.Unlock()

		start := time.Now()
		err := p.eng.Run(uci.CmdPosition{Position: pos}, goCommand(own, white, black))
		elapsed := time.Since(start)
		if err != nil {
			cuteseal.Debug.Printf("%s: search failed: %v", p.cfg.Name, err)
			p.mu.Lock()
			p.dead = true
			p.mu.Unlock()
			if sink != nil {
				sink.Disconnected(p)
			}
			return
		}

		results := p.eng.SearchResults()
		if results.BestMove == nil {
			if sink != nil {
				sink.Disconnected(p)
			}
			return
		}

		var notation chess.UCINotation
		move := notation.Encode(pos, results.BestMove)

		eval := evalFromInfo(results.Info, pos)
		eval.Time = elapsed.Milliseconds()

		p.mu.Lock()
		if err := p.applyMove(move); err != nil {
			// The driver will reject it too; keep our copy as-is.
			cuteseal.Debug.Printf("%s: %v", p.cfg.Name, err)
		}
		p.eval = eval
		p.mu.Unlock()

		if sink != nil {
			sink.MoveMade(p, move, &eval)
		}
	}()
}

// evalFromInfo converts the engine's last info line.  Mate-in-n
// scores are folded into the 9900+ centipawn band the eval strings
// expect.
func evalFromInfo(info uci.Info, pos *chess.Position) cuteseal.MoveEvaluation {
	eval := cuteseal.MoveEvaluation{
		Depth:    info.Depth,
		SelDepth: info.Seldepth,
		Nodes:    int64(info.Nodes),
		NPS:      int64(info.NPS),
	}
	if eval.Depth <= 0 {
		eval.Depth = 1
	}

	switch {
	case info.Score.Mate > 0:
		eval.Score = 10000 - info.Score.Mate
	case info.Score.Mate < 0:
		eval.Score = -(10000 + info.Score.Mate)
	default:
		eval.Score = info.Score.CP
	}

	var notation chess.UCINotation
	pv := pos
	for _, m := range info.PV {
		if pv == nil {
			break
		}
		eval.PV = append(eval.PV, notation.Encode(pv, m))
		pv = pv.Update(m)
	}
	if len(info.PV) > 1 && pos != nil {
		eval.Ponder = notation.Encode(pos.Update(info.PV[0]), info.PV[1])
	}

	return eval
}

// Stop would interrupt an infinite search.  The adapter serializes
// the conversation, so the request is only noted.
func (p *uciPlayer) Stop() {
	cuteseal.Debug.Printf("%s: stop requested", p.cfg.Name)
}

// The adapter has no pondering conversation; the interface is kept so
// drivers need not care.
func (p *uciPlayer) StartPondering()   {}
func (p *uciPlayer) ClearPonderState() {}

func (p *uciPlayer) EndGame(r cuteseal.Result) {
	cuteseal.Debug.Printf("%s: game over (%s)", p.cfg.Name, r.String())
}

func (p *uciPlayer) Kill() {
	p.mu.Lock()
	dead := p.dead
	p.dead = true
	p.mu.Unlock()
	if !dead {
		p.eng.Close()
	}
}

func (p *uciPlayer) ClaimsValidated() bool {
	return !p.cfg.TrustResults
}

func (p *uciPlayer) Evaluation() *cuteseal.MoveEvaluation {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.eval
	return &e
}
