// Gauntlet pairing
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

import "fmt"

// Gauntlet lets the first SeedCount players each meet every
// non-seeded player in turn.  Seeded players do not play each other.
type Gauntlet struct {
	*Base

	schedule [][2]int
	index    int
	current  *Pair
}

func NewGauntlet(base *Base) *Gauntlet {
	return &Gauntlet{Base: base}
}

func (g *Gauntlet) Type() string { return "gauntlet" }

func (g *Gauntlet) CanSetRoundMultiplier() bool { return true }

func (g *Gauntlet) seeds() int {
	s := g.SeedCount
	if s < 1 {
		s = 1
	}
	if s > g.PlayerCount() {
		s = g.PlayerCount()
	}
	return s
}

func (g *Gauntlet) GamesPerCycle() int {
	s := g.seeds()
	return s * (g.PlayerCount() - s)
}

func (g *Gauntlet) GamesPerRound() int {
	return g.GamesPerCycle() * g.GamesPerEncounter
}

func (g *Gauntlet) FinalGameCount() int {
	return g.GamesPerCycle() * g.GamesPerEncounter * g.RoundMultiplier
}

func (g *Gauntlet) Initialize() error {
	if g.PlayerCount() < 2 {
		return fmt.Errorf("a gauntlet needs at least two players")
	}
	if g.seeds() >= g.PlayerCount() {
		return fmt.Errorf("a gauntlet needs at least one non-seeded player")
	}

	g.schedule = g.schedule[:0]
	for i := 0; i < g.seeds(); i++ {
		for j := g.seeds(); j < g.PlayerCount(); j++ {
			g.schedule = append(g.schedule, [2]int{i, j})
		}
	}
	g.index = 0
	g.current = nil
	g.SetCurrentRound(1)
	return nil
}

func (g *Gauntlet) NextPair(gameNumber int) *Pair {
	if gameNumber >= g.FinalGameCount() {
		return nil
	}
	if gameNumber%g.GamesPerEncounter != 0 {
		return g.current
	}

	if g.index >= len(g.schedule) {
		g.index = 0
		g.SetCurrentRound(g.CurrentRound() + 1)
	}
	white, black := g.schedule[g.index][0], g.schedule[g.index][1]
	g.index++

	p := g.Pair(white, black)
	if p.First() != white {
		p.SwapPlayers()
	}
	g.current = p
	return p
}

func (g *Gauntlet) Pairings() [][2]string {
	var out [][2]string
	for n := 0; n < g.FinalGameCount(); n++ {
		slot := (n / g.GamesPerEncounter) % len(g.schedule)
		white, black := g.schedule[slot][0], g.schedule[slot][1]
		if g.SwapSides && (n%g.GamesPerEncounter)%2 == 1 {
			white, black = black, white
		}
		out = append(out, [2]string{
			g.PlayerAt(white).Name,
			g.PlayerAt(black).Name,
		})
	}
	return out
}

var _ Scheduler = &Gauntlet{}
