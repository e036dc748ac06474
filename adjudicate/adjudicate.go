// Game adjudication
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

// Package adjudicate decides draws, resignations and tablebase wins
// from the stream of move evaluations a game produces.
package adjudicate

import (
	cuteseal "go-cuteseal"
)

// Position is the board capability set the adjudicator needs.  The
// sample is taken after the move has been played, so the mover is
// SideToMove().Opposite().
type Position interface {
	SideToMove() cuteseal.Side
	PlyCount() int
	ReversibleMoves() int
}

// Prober answers definitive tablebase probes.  A none result means
// the position is not covered.
type Prober func(Position) cuteseal.Result

// Adjudicator accumulates evaluation samples and reports the first
// rule that fires.  The zero value has every rule disabled.
type Adjudicator struct {
	drawMoveNum    int
	drawMoveCount  int
	drawScore      int
	drawScoreCount int

	resignMoveCount        int
	resignScore            int
	resignScoreCount       [2]int
	resignWinnerScoreCount [2]int

	maxGameLength int
	tb            Prober
	tcec          bool

	result cuteseal.Result
}

func New() *Adjudicator {
	return &Adjudicator{result: cuteseal.MakeResult(cuteseal.NoResult, cuteseal.NoSide, "")}
}

// SetDrawThreshold enables draw adjudication: |score| <= score for
// moveCount consecutive moves of both sides, after moveNumber full
// moves have been played.
func (a *Adjudicator) SetDrawThreshold(moveNumber, moveCount, score int) {
	a.drawMoveNum = moveNumber
	a.drawMoveCount = moveCount
	a.drawScore = score
	a.drawScoreCount = 0
}

// SetResignThreshold enables resign adjudication: score <= score for
// moveCount consecutive moves of one side.
func (a *Adjudicator) SetResignThreshold(moveCount, score int) {
	a.resignMoveCount = moveCount
	a.resignScore = score
	a.resignScoreCount = [2]int{}
	a.resignWinnerScoreCount = [2]int{}
}

// SetMaximumGameLength enables the draw-by-rule at 2*moveCount plies.
func (a *Adjudicator) SetMaximumGameLength(moveCount int) {
	a.maxGameLength = moveCount
}

func (a *Adjudicator) SetTablebaseAdjudication(p Prober) {
	a.tb = p
}

// SetTcecAdjudication switches the draw rule to reset on irreversible
// moves and the resign rule to require agreement from both sides.
func (a *Adjudicator) SetTcecAdjudication(enabled bool) {
	a.tcec = enabled
}

// ResetDrawMoveCount clears the draw counter; the driver calls it
// when an irreversible move was played.
func (a *Adjudicator) ResetDrawMoveCount() {
	a.drawScoreCount = 0
}

// AddEval feeds the evaluation the mover reported for the move that
// produced pos.
func (a *Adjudicator) AddEval(pos Position, eval *cuteseal.MoveEvaluation) {
	side := pos.SideToMove().Opposite()

	if a.tb != nil {
		a.result = a.tb(pos)
		if !a.result.IsNone() {
			return
		}
	}

	// Moves forced by the user (opening book, human move) do not
	// advance the counters.
	if eval.Depth <= 0 {
		a.drawScoreCount = 0
		a.resignScoreCount[side] = 0
		return
	}

	if a.drawMoveNum > 0 {
		if a.tcec && pos.ReversibleMoves() == 0 {
			// irreversible move: counter stays at zero
		} else {
			if abs(eval.Score) <= a.drawScore {
				a.drawScoreCount++
			} else {
				a.drawScoreCount = 0
			}

			if pos.PlyCount()/2 >= a.drawMoveNum &&
				a.drawScoreCount >= a.drawMoveCount*2 {
				a.result = cuteseal.MakeResult(cuteseal.Adjudication,
					cuteseal.NoSide, "TCEC draw rule")
				return
			}
		}
	}

	if a.resignMoveCount > 0 {
		if a.tcec {
			loser := &a.resignScoreCount[side]
			winner := &a.resignWinnerScoreCount[side]

			switch {
			case eval.Score <= a.resignScore:
				*loser++
				*winner = 0
			case eval.Score >= -a.resignScore:
				*winner++
				*loser = 0
			default:
				*loser, *winner = 0, 0
			}

			opp := side.Opposite()
			if *loser >= a.resignMoveCount &&
				a.resignWinnerScoreCount[opp] >= a.resignMoveCount {
				a.result = cuteseal.MakeResult(cuteseal.Adjudication,
					opp, "TCEC win rule")
			} else if *winner >= a.resignMoveCount &&
				a.resignScoreCount[opp] >= a.resignMoveCount {
				a.result = cuteseal.MakeResult(cuteseal.Adjudication,
					side, "TCEC win rule")
			}
		} else {
			count := &a.resignScoreCount[side]
			if eval.Score <= a.resignScore {
				*count++
			} else {
				*count = 0
			}

			if *count >= a.resignMoveCount {
				a.result = cuteseal.MakeResult(cuteseal.Adjudication,
					side.Opposite(), "TCEC resign rule")
			}
		}
	}

	if a.maxGameLength > 0 && pos.PlyCount() >= 2*a.maxGameLength {
		a.result = cuteseal.MakeResult(cuteseal.Adjudication,
			cuteseal.NoSide, "TCEC max moves rule")
	}
}

// Result returns the first rule that fired, or a none result.
func (a *Adjudicator) Result() cuteseal.Result {
	return a.result
}

// DrawClock returns the number of plies until the draw rule would
// fire given the current sample.  Negative values encode an unmet
// precondition; -1000 means the rule is disabled.
func (a *Adjudicator) DrawClock(pos Position, eval *cuteseal.MoveEvaluation) int {
	if a.drawMoveNum <= 0 {
		return -1000
	}

	limit := a.drawMoveCount * 2
	count := a.drawScoreCount

	if a.tcec && pos.ReversibleMoves() == 0 {
		count = 0
	} else if abs(eval.Score) <= a.drawScore && pos.ReversibleMoves() != 0 {
		count++
	} else {
		count = 0
	}

	if count >= limit {
		count = 0
	} else {
		count = limit - count
	}

	if pos.PlyCount()/2 < a.drawMoveNum {
		count = -count - 1
	}
	return count
}

// ResignClock is DrawClock's counterpart for the resign rule.
func (a *Adjudicator) ResignClock(pos Position, eval *cuteseal.MoveEvaluation) int {
	if a.resignMoveCount <= 0 {
		return -1000
	}

	side := pos.SideToMove().Opposite()
	count := a.resignScoreCount[side]

	if !a.tcec {
		if eval.Score <= a.resignScore {
			count++
		} else {
			count = 0
		}

		if count >= a.resignMoveCount {
			return 0
		}
		return a.resignMoveCount - count
	}

	winner := a.resignWinnerScoreCount[side]
	switch {
	case eval.Score <= a.resignScore:
		count++
		winner = 0
	case eval.Score >= -a.resignScore:
		winner++
		count = 0
	default:
		count, winner = 0, 0
	}

	if count >= a.resignMoveCount {
		count = 0
	} else {
		count = a.resignMoveCount - count
	}
	if winner >= a.resignMoveCount {
		winner = 0
	} else {
		winner = a.resignMoveCount - winner
	}

	opp := side.Opposite()
	if a.resignWinnerScoreCount[opp] < a.resignMoveCount {
		count = -count - 1
	}
	if a.resignScoreCount[opp] < a.resignMoveCount {
		winner = -winner - 1
	}

	if (count < 0 && winner > count) || (winner >= 0 && winner < count) {
		count = winner
	}
	return count
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
