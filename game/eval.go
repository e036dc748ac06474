// Evaluation comment strings
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

package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/notnil/chess"

	cuteseal "go-cuteseal"
)

// sanPv converts a UCI principal variation to SAN, walking forward
// from the current position.
func (g *ChessGame) sanPv(pv []string) string {
	var (
		uci chess.UCINotation
		san chess.AlgebraicNotation
		out []string
	)
	pos := g.board.Position()
	for _, uciMove := range pv {
		m, err := uci.Decode(pos, uciMove)
		if err != nil {
			break
		}
		out = append(out, san.Encode(pos, m))
		pos = pos.Update(m)
		if pos == nil {
			break
		}
	}
	return strings.Join(out, " ")
}

// evalString renders the PGN comment for one engine move.  Field
// order and formatting match what the live consumers parse.
func (g *ChessGame) evalString(side cuteseal.Side, eval *cuteseal.MoveEvaluation, elapsed time.Duration) string {
	if eval.BookEval {
		return "book"
	}
	if eval.IsEmpty() {
		return ""
	}

	sScore := "0.00"
	if eval.Depth > 0 {
		sScore = cuteseal.ScoreString(eval.Score)
	}

	var b strings.Builder

	depth := eval.Depth
	if depth <= 0 {
		depth = 1
	}
	fmt.Fprintf(&b, "d=%d", depth)

	seldepth := eval.SelDepth
	if seldepth <= 0 {
		seldepth = 1
	}
	fmt.Fprintf(&b, ", sd=%d", seldepth)

	if eval.Ponder != "" {
		fmt.Fprintf(&b, ", pd=%s", eval.Ponder)
	}

	mt := eval.Time
	if mt == 0 {
		mt = elapsed.Milliseconds()
	}
	fmt.Fprintf(&b, ", mt=%d", mt)
	fmt.Fprintf(&b, ", tl=%d", g.tc[side].TimeLeft)
	fmt.Fprintf(&b, ", s=%d", eval.NPS)
	fmt.Fprintf(&b, ", n=%d", eval.Nodes)
	fmt.Fprintf(&b, ", pv=%s", g.sanPv(eval.PV))
	fmt.Fprintf(&b, ", tb=%d", eval.TBHits)
	fmt.Fprintf(&b, ", h=%.1f", float64(eval.Hash)/10.0)
	fmt.Fprintf(&b, ", ph=%.1f", float64(eval.PonderHit)/10.0)

	r50 := (100-reversibleMoves(g.board.Position()))/2 + (100-reversibleMoves(g.board.Position()))%2
	fmt.Fprintf(&b, ", R50=%d", r50)

	// Score from white's point of view
	wv := sScore
	if side == cuteseal.Black && sScore != "0.00" {
		if strings.HasPrefix(sScore, "-") {
			wv = sScore[1:]
		} else {
			wv = "-" + sScore
		}
	}
	fmt.Fprintf(&b, ", wv=%s", wv)
	fmt.Fprintf(&b, ", fn=%s", g.board.Position().String())

	return b.String()
}
