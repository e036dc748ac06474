// Scheduler base
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

package sched

import (
	cuteseal "go-cuteseal"
)

// Scheduler decides which two players meet in game number N and with
// which colors.  The controller owns the scores and feeds them back
// through AddScore.
type Scheduler interface {
	Type() string
	// Initialize validates settings and generates the first-round
	// state.  Must be called before NextPair.
	Initialize() error
	// NextPair returns the pair for the given zero-based game
	// number, or nil when the schedule is exhausted.
	NextPair(gameNumber int) *Pair
	GamesPerCycle() int
	GamesPerRound() int
	CanSetRoundMultiplier() bool
	// AddScore credits points to a player.
	AddScore(player, score int)
	// AddResumeResult pre-records a finished game's result token
	// before resuming.
	AddResumeResult(gameNumber int, result string)
	// ResetBook asks whether the forced-opening state should be
	// cleared before this pair's next game.
	ResetBook(p *Pair) bool
	// AdjustTimeControl lets a format scale the clock for a
	// pair's next game.
	AdjustTimeControl(p *Pair, tc *cuteseal.TimeControl) *cuteseal.TimeControl
	// Over reports whether the schedule produced every decided
	// game, given the controller's counters.
	Over(finished, final int) bool
	// Pairings lists the full schedule as (white, black) name
	// pairs, when the format can precompute it.
	Pairings() [][2]string
}

// Base carries what every scheduler shares: the player arena, the
// pair cache and the schedule parameters.
type Base struct {
	Players []*Player

	GamesPerEncounter int
	RoundMultiplier   int
	SwapSides         bool
	Berger            bool
	SeedCount         int
	Concurrency       int
	Strikes           int

	// GamesInProgress lets schedulers that wait for finalized
	// results see the controller's in-flight count.
	GamesInProgress func() int

	round int
	pairs map[[2]int]*Pair
}

func NewBase(players []*Player) *Base {
	return &Base{
		Players:           players,
		GamesPerEncounter: 1,
		RoundMultiplier:   1,
		SwapSides:         true,
		Concurrency:       1,
		pairs:             make(map[[2]int]*Pair),
	}
}

func (b *Base) PlayerCount() int { return len(b.Players) }

func (b *Base) PlayerAt(i int) *Player { return b.Players[i] }

func (b *Base) CurrentRound() int { return b.round }

func (b *Base) SetCurrentRound(r int) { b.round = r }

func (b *Base) AddScore(player, score int) {
	if player >= 0 && player < len(b.Players) {
		b.Players[player].Score += score
	}
}

func (b *Base) AddResumeResult(gameNumber int, result string) {}

func (b *Base) ResetBook(p *Pair) bool { return false }

func (b *Base) AdjustTimeControl(p *Pair, tc *cuteseal.TimeControl) *cuteseal.TimeControl {
	return tc
}

func (b *Base) Over(finished, final int) bool { return finished >= final }

// Pair returns the cached pair for two players, creating it on first
// request.  The cache key is the unordered pair.
func (b *Base) Pair(player1, player2 int) *Pair {
	keys := [...][2]int{{player1, player2}, {player2, player1}}
	for _, k := range keys {
		if p, ok := b.pairs[k]; ok {
			return p
		}
	}

	p := NewPair(player1, player2)
	b.pairs[keys[0]] = p
	return p
}
