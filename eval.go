// Move evaluations
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

package cuteseal

import (
	"fmt"
	"math"
)

// NullScore marks a missing evaluation score.
const NullScore = math.MaxInt32

// MoveEvaluation carries what an engine reported while searching for
// the move it just played.  The score is in centipawns from the
// mover's point of view.
type MoveEvaluation struct {
	BookEval  bool
	Depth     int
	SelDepth  int
	Score     int
	Time      int64 // milliseconds
	Nodes     int64
	NPS       int64
	TBHits    int64
	Hash      int // permille
	PonderHit int // permille
	Ponder    string
	PV        []string // moves in engine notation
}

func (e *MoveEvaluation) IsEmpty() bool {
	return !e.BookEval && e.Depth == 0 && e.Nodes == 0 && len(e.PV) == 0
}

// ScoreString formats a centipawn score the way the tournament file
// and the PGN comments expect it: mate scores become Mn / -Mn,
// out-of-range scores are clamped to +-999.99.
func ScoreString(score int) string {
	abs := score
	if abs < 0 {
		abs = -abs
	}

	if abs > 99999 {
		if score < 0 {
			return "-999.99"
		}
		return "999.99"
	}
	if abs > 9900 {
		if mate := 1000 - (abs % 1000); mate < 100 {
			if score < 0 {
				return fmt.Sprintf("-M%d", mate)
			}
			return fmt.Sprintf("M%d", mate)
		}
	}
	return fmt.Sprintf("%.2f", float64(score)/100.0)
}
