// Round Robin pairing
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

// RoundRobin pairs every player against every other.  The default
// variant rotates two half-tables; the Berger variant walks the
// canonical table with a pinned pivot, which keeps white/black counts
// balanced within each round.
type RoundRobin struct {
	*Base

	// rotation state
	pairNumber int
	topHalf    []int
	bottomHalf []int
	current    *Pair

	// Berger table state
	bergerTable []int
	bergerPtr   int
}

func NewRoundRobin(base *Base) *RoundRobin {
	return &RoundRobin{Base: base}
}

func (r *RoundRobin) Type() string { return "round-robin" }

func (r *RoundRobin) CanSetRoundMultiplier() bool { return true }

// paddedCount is the player count padded to even with a BYE seat.
func (r *RoundRobin) paddedCount() int {
	return r.PlayerCount() + (r.PlayerCount() % 2)
}

func (r *RoundRobin) GamesPerCycle() int {
	n := r.PlayerCount()
	return n * (n - 1) / 2
}

func (r *RoundRobin) GamesPerRound() int {
	if r.Berger {
		return r.paddedCount() / 2
	}
	total := r.roundsTotal()
	if total == 0 {
		return 0
	}
	return r.FinalGameCount() / total
}

func (r *RoundRobin) roundsTotal() int {
	return r.RoundMultiplier * (r.paddedCount() - 1)
}

// FinalGameCount is the number of decided games the schedule holds.
func (r *RoundRobin) FinalGameCount() int {
	return r.GamesPerCycle() * r.GamesPerEncounter * r.RoundMultiplier
}

func (r *RoundRobin) Initialize() error {
	if r.PlayerCount() < 2 {
		return fmt.Errorf("a round-robin needs at least two players")
	}
	if r.Berger && r.GamesPerEncounter%2 != 0 && r.GamesPerEncounter != 1 {
		return fmt.Errorf("a Berger schedule cannot play an odd number of games per encounter")
	}

	r.SetCurrentRound(1)
	r.pairNumber = 0
	r.current = nil
	count := r.paddedCount()

	if r.Berger {
		r.bergerTable = make([]int, count)
		for i := 0; i < count/2; i++ {
			r.bergerTable[i*2] = i
		}
		for i := count - 1; i >= count/2; i-- {
			r.bergerTable[((count-i)*2)-1] = i
		}
		r.bergerPtr = 0
		return nil
	}

	r.topHalf = r.topHalf[:0]
	r.bottomHalf = r.bottomHalf[:0]
	for i := 0; i < count/2; i++ {
		r.topHalf = append(r.topHalf, i)
	}
	for i := count - 1; i >= count/2; i-- {
		r.bottomHalf = append(r.bottomHalf, i)
	}
	return nil
}

func (r *RoundRobin) NextPair(gameNumber int) *Pair {
	if gameNumber >= r.FinalGameCount() {
		return nil
	}
	if r.Berger {
		return r.nextBergerPair(gameNumber)
	}
	return r.nextRotationPair(gameNumber)
}

func insertAt(s []int, i, v int) []int {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func (r *RoundRobin) nextRotationPair(gameNumber int) *Pair {
	if gameNumber%r.GamesPerEncounter != 0 {
		return r.current
	}

	if r.pairNumber >= len(r.topHalf) {
		r.pairNumber = 0
		r.SetCurrentRound(r.CurrentRound() + 1)
		// Pin seat 0, rotate everyone else.
		first := r.bottomHalf[0]
		r.bottomHalf = append(r.bottomHalf[:0], r.bottomHalf[1:]...)
		r.topHalf = insertAt(r.topHalf, 1, first)
		last := r.topHalf[len(r.topHalf)-1]
		r.topHalf = r.topHalf[:len(r.topHalf)-1]
		r.bottomHalf = append(r.bottomHalf, last)
	}

	white := r.topHalf[r.pairNumber]
	black := r.bottomHalf[r.pairNumber]
	r.pairNumber++

	// A seat index beyond the real player count is the BYE; skip
	// to the next pair.
	if white >= r.PlayerCount() || black >= r.PlayerCount() {
		return r.nextRotationPair(gameNumber)
	}

	// The cached pair keeps whatever orientation its last game
	// left, so colors alternate across repeat encounters.
	r.current = r.Pair(white, black)
	return r.current
}

func (r *RoundRobin) nextBergerPair(gameNumber int) *Pair {
	count := r.paddedCount()
	roundsPerCycle := count - 1

	for {
		if r.bergerPtr >= len(r.bergerTable) {
			for i := 0; i < count; i++ {
				if r.bergerTable[i] != count-1 {
					r.bergerTable[i] = (r.bergerTable[i] + count/2) % (count - 1)
				}
			}
			r.bergerPtr = 0
			r.SetCurrentRound(r.CurrentRound() + 1)

			// Alternate the pivot's seat so its colors stay
			// balanced over the cycle.
			pivotAt := 0
			for i, v := range r.bergerTable {
				if v == count-1 {
					pivotAt = i
					break
				}
			}
			r.bergerTable = append(r.bergerTable[:pivotAt], r.bergerTable[pivotAt+1:]...)
			at := 1
			if ((r.CurrentRound()-1)%roundsPerCycle)%2 != 0 {
				at = 0
			}
			r.bergerTable = insertAt(r.bergerTable, at, count-1)
		}

		white := r.bergerTable[r.bergerPtr]
		r.bergerPtr++
		black := r.bergerTable[r.bergerPtr]
		r.bergerPtr++

		// Colors swap between cycles.
		if r.SwapSides && (gameNumber/r.GamesPerCycle())%2 != 0 {
			white, black = black, white
		}

		if white < r.PlayerCount() && black < r.PlayerCount() {
			return r.orient(white, black)
		}
	}
}

// orient returns the cached pair with the first seat holding white.
func (r *RoundRobin) orient(white, black int) *Pair {
	p := r.Pair(white, black)
	if p.First() != white {
		p.SwapPlayers()
	}
	return p
}

func (r *RoundRobin) Pairings() [][2]string {
	// Replaying the schedule would disturb the live state; run a
	// scratch copy forward instead.
	scratch := NewRoundRobin(&Base{
		Players:           r.Players,
		GamesPerEncounter: r.GamesPerEncounter,
		RoundMultiplier:   r.RoundMultiplier,
		SwapSides:         r.SwapSides,
		Berger:            r.Berger,
		pairs:             make(map[[2]int]*Pair),
	})
	if err := scratch.Initialize(); err != nil {
		return nil
	}

	var out [][2]string
	for n := 0; n < scratch.FinalGameCount(); n++ {
		p := scratch.NextPair(n)
		if p == nil {
			break
		}
		white, black := p.First(), p.Second()
		// The controller alternates colors within an encounter in
		// the rotation variant.
		if !scratch.Berger && scratch.SwapSides &&
			(n%scratch.GamesPerEncounter)%2 == 1 {
			white, black = black, white
		}
		out = append(out, [2]string{
			scratch.PlayerAt(white).Name,
			scratch.PlayerAt(black).Name,
		})
	}
	return out
}

var _ Scheduler = &RoundRobin{}
