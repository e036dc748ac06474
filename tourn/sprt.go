// Sequential probability ratio test
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

package tourn

import "math"

// GameOutcome is one game's result from the tested player's point of
// view.
type GameOutcome uint8

const (
	NoOutcome GameOutcome = iota
	Win
	Loss
	Draw
)

// SprtResult is the test's decision.
type SprtResult uint8

const (
	Continue SprtResult = iota
	AcceptH0
	AcceptH1
)

// SprtStatus is the test state after an update.
type SprtStatus struct {
	Result SprtResult
	Llr    float64
	LBound float64
	UBound float64
}

// Sprt decides between H0 (elo = elo0) and H1 (elo = elo1) with a
// sequential likelihood ratio over game outcomes.  The trinomial
// probabilities come from the BayesElo model, with the draw
// likelihood estimated from the observed games.
type Sprt struct {
	elo0, elo1  float64
	alpha, beta float64

	wins, losses, draws int
}

func NewSprt(elo0, elo1, alpha, beta float64) *Sprt {
	return &Sprt{elo0: elo0, elo1: elo1, alpha: alpha, beta: beta}
}

// IsNull reports whether the test was left unconfigured.
func (s *Sprt) IsNull() bool {
	return s == nil || (s.elo0 == 0 && s.elo1 == 0 && s.alpha == 0 && s.beta == 0)
}

func (s *Sprt) AddOutcome(o GameOutcome) {
	switch o {
	case Win:
		s.wins++
	case Loss:
		s.losses++
	case Draw:
		s.draws++
	}
}

// probability triple under the BayesElo model
type sprtProb struct {
	win, loss, draw float64
}

func probFromBayesElo(bayesElo, drawElo float64) sprtProb {
	var p sprtProb
	p.win = 1 / (1 + math.Pow(10, (drawElo-bayesElo)/400))
	p.loss = 1 / (1 + math.Pow(10, (drawElo+bayesElo)/400))
	p.draw = 1 - p.win - p.loss
	return p
}

// scale maps a BayesElo difference onto the regular Elo scale.
func scale(drawElo float64) float64 {
	x := math.Pow(10, -drawElo/400)
	return 4 * x / ((1 + x) * (1 + x))
}

// Status evaluates the test.  It cannot move before at least one win,
// one loss and one draw were observed.
func (s *Sprt) Status() SprtStatus {
	status := SprtStatus{
		Result: Continue,
		LBound: math.Log(s.beta / (1 - s.alpha)),
		UBound: math.Log((1 - s.beta) / s.alpha),
	}

	if s.wins <= 0 || s.losses <= 0 || s.draws <= 0 {
		return status
	}

	n := float64(s.wins + s.losses + s.draws)
	pWin := float64(s.wins) / n
	pLoss := float64(s.losses) / n

	// Estimate the draw likelihood from the observed games.
	drawElo := 200 * math.Log10((1-pLoss)/pLoss*(1-pWin)/pWin)
	sc := scale(drawElo)

	p0 := probFromBayesElo(s.elo0/sc, drawElo)
	p1 := probFromBayesElo(s.elo1/sc, drawElo)

	status.Llr = float64(s.wins)*math.Log(p1.win/p0.win) +
		float64(s.losses)*math.Log(p1.loss/p0.loss) +
		float64(s.draws)*math.Log(p1.draw/p0.draw)

	if status.Llr > status.UBound {
		status.Result = AcceptH1
	} else if status.Llr < status.LBound {
		status.Result = AcceptH0
	}
	return status
}
