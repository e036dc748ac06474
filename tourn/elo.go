// Elo estimation
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

// Elo estimates a rating difference with a 95% error margin from a
// win/loss/draw record.
type Elo struct {
	wins, losses, draws int
	mu, stdev           float64
}

func NewElo(wins, losses, draws int) *Elo {
	e := &Elo{wins: wins, losses: losses, draws: draws}

	n := float64(wins + losses + draws)
	if n == 0 {
		return e
	}
	w := float64(wins) / n
	l := float64(losses) / n
	d := float64(draws) / n
	e.mu = w + d/2

	devW := w * math.Pow(1-e.mu, 2)
	devL := l * math.Pow(0-e.mu, 2)
	devD := d * math.Pow(0.5-e.mu, 2)
	e.stdev = math.Sqrt(devW+devL+devD) / math.Sqrt(n)

	return e
}

func diff(p float64) float64 {
	return -400 * math.Log10(1/p-1)
}

// Diff is the estimated rating difference.
func (e *Elo) Diff() float64 {
	return diff(e.mu)
}

// phiInv is the inverse standard normal distribution.
func phiInv(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// ErrorMargin is half the width of the 95% confidence interval in
// rating points.
func (e *Elo) ErrorMargin() float64 {
	muMax := e.mu + phiInv(0.975)*e.stdev
	muMin := e.mu + phiInv(0.025)*e.stdev
	return (diff(muMax) - diff(muMin)) / 2
}

// PointRatio is the share of available points scored.
func (e *Elo) PointRatio() float64 {
	return e.mu
}

// DrawRatio is the share of games drawn.
func (e *Elo) DrawRatio() float64 {
	n := e.wins + e.losses + e.draws
	if n == 0 {
		return 0
	}
	return float64(e.draws) / float64(n)
}
