// Tournament players and pairs
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

// Package sched pairs tournament players: round-robin (naive and
// Berger), swiss with a blossom pairability check, single-elimination
// knockout and gauntlet.
package sched

import (
	cuteseal "go-cuteseal"
	"go-cuteseal/book"
)

// Player is one tournament participant.  The arena owns the struct;
// everyone else refers to it by index.
type Player struct {
	Name      string
	Builder   cuteseal.PlayerBuilder
	Book      book.Book
	BookDepth int
	TC        *cuteseal.TimeControl
	Rating    int

	GamesStarted  int
	GamesFinished int
	Wins          int
	Losses        int
	Draws         int
	Crashes       int
	Strikes       int
	Score         int
}

// TotalStrikes is what counts against the disqualification limit.
func (p *Player) TotalStrikes() int {
	return p.Crashes + p.Strikes
}

// Pair is a cached matchup between two player indices.  first is the
// side currently holding white.
type Pair struct {
	first, second           int
	firstScore, secondScore int
	startedGames            int
	originalOrder           bool
}

func NewPair(first, second int) *Pair {
	return &Pair{first: first, second: second, originalOrder: true}
}

func (p *Pair) First() int  { return p.first }
func (p *Pair) Second() int { return p.second }

// IsValid reports whether both seats hold real players; a pair with a
// BYE yields no game.
func (p *Pair) IsValid() bool {
	return p != nil && p.first != cuteseal.Bye && p.second != cuteseal.Bye &&
		p.first != p.second
}

func (p *Pair) HasOriginalOrder() bool { return p.originalOrder }

func (p *Pair) SwapPlayers() {
	p.first, p.second = p.second, p.first
	p.firstScore, p.secondScore = p.secondScore, p.firstScore
	p.originalOrder = !p.originalOrder
}

func (p *Pair) HasSamePlayers(o *Pair) bool {
	if p == nil || o == nil {
		return false
	}
	return (p.first == o.first && p.second == o.second) ||
		(p.first == o.second && p.second == o.first)
}

func (p *Pair) AddStartedGame() { p.startedGames++ }

func (p *Pair) AddFirstScore(n int)  { p.firstScore += n }
func (p *Pair) AddSecondScore(n int) { p.secondScore += n }

func (p *Pair) FirstScore() int  { return p.firstScore }
func (p *Pair) SecondScore() int { return p.secondScore }
func (p *Pair) ScoreSum() int    { return p.firstScore + p.secondScore }

// GamesInProgress counts started games whose points have not arrived
// yet.
func (p *Pair) GamesInProgress() int {
	n := p.startedGames - p.ScoreSum()/2
	if n < 0 {
		return 0
	}
	return n
}

// Leader returns the index of the player ahead on points, or Bye on a
// tie.
func (p *Pair) Leader() int {
	switch {
	case !p.IsValid():
		return p.first
	case p.firstScore > p.secondScore:
		return p.first
	case p.secondScore > p.firstScore:
		return p.second
	}
	return cuteseal.Bye
}
