// Knockout pairing
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
	"fmt"

	cuteseal "go-cuteseal"
)

// TCStage shortens the clock once a match's combined score crosses
// its threshold.
type TCStage struct {
	Threshold int
	TimePerTC int64 // ms
	Increment int64 // ms
}

// DefaultTCSchedule is the accelerating schedule used when none is
// configured.  Stages are checked highest threshold first.
var DefaultTCSchedule = []TCStage{
	{Threshold: 128, TimePerTC: 60000, Increment: 1000},
	{Threshold: 112, TimePerTC: 120000, Increment: 1000},
	{Threshold: 96, TimePerTC: 240000, Increment: 2000},
	{Threshold: 80, TimePerTC: 480000, Increment: 3000},
	{Threshold: 64, TimePerTC: 960000, Increment: 4000},
}

// Knockout is a seeded single-elimination bracket.  Matches are
// best-of-GamesPerEncounter, extended in pairs of games until one
// side leads by the required margin.
type Knockout struct {
	*Base

	rounds [][]*Pair
	// TCSchedule starts as DefaultTCSchedule.
	TCSchedule []TCStage

	shouldStop bool
}

func NewKnockout(base *Base) *Knockout {
	return &Knockout{Base: base, TCSchedule: DefaultTCSchedule}
}

func (k *Knockout) Type() string { return "knockout" }

func (k *Knockout) CanSetRoundMultiplier() bool { return false }

// playerSeed places seed ranks into the bracket: odd ranks go into
// the left sub-bracket, even ranks into the right.
func playerSeed(rank, bracketSize int) int {
	if rank <= 1 {
		return 0
	}
	if rank%2 == 0 {
		return bracketSize/2 + playerSeed(rank/2, bracketSize/2)
	}
	return playerSeed(rank/2+1, bracketSize/2)
}

func nextPowerOfTwo(n int) int {
	x := 1
	for x < n {
		x *= 2
	}
	return x
}

func (k *Knockout) firstRoundPlayers() []int {
	n := k.PlayerCount()
	seedCount := k.SeedCount
	if seedCount > n {
		seedCount = n
	}

	players := make([]int, 0, n)
	for i := 0; i < seedCount; i++ {
		players = append(players, i)
	}
	for i := seedCount; i < n; i++ {
		players = append(players, i)
	}
	return players
}

func (k *Knockout) Initialize() error {
	if k.PlayerCount() < 2 {
		return fmt.Errorf("a knockout needs at least two players")
	}

	x := nextPowerOfTwo(k.PlayerCount())
	all := make([]int, x)
	for i := range all {
		all[i] = cuteseal.Bye
	}

	players := k.firstRoundPlayers()
	byeCount := x - len(players)
	for i := 0; i < byeCount; i++ {
		players = append(players, cuteseal.Bye)
	}

	// Pair BYEs with the top-seeded players.
	byes := 0
	for i, player := range players {
		index := playerSeed(i+1, x)
		if player == cuteseal.Bye {
			byes++
			byeIndex := playerSeed(byes, x) + 1
			all[index] = all[byeIndex]
			all[byeIndex] = player
		} else {
			all[i] = player
		}
	}

	pairs := make([]*Pair, 0, x/2)
	for j := 0; j < x/2; j++ {
		pairs = append(pairs, k.Pair(all[j], all[x-j-1]))
	}

	k.rounds = [][]*Pair{pairs}
	k.shouldStop = false
	k.SetCurrentRound(1)
	return nil
}

func (k *Knockout) GamesPerCycle() int {
	x := nextPowerOfTwo(k.PlayerCount() - 1)
	if x < 2 {
		x = 2
	}
	round := x / 2
	total := round - (x - k.PlayerCount())
	for round >= 2 {
		round /= 2
		total += round
	}
	return total
}

func (k *Knockout) GamesPerRound() int { return 0 }

// AddScore credits the pair in the running round before the player
// totals.
func (k *Knockout) AddScore(player, score int) {
	if score > 0 && len(k.rounds) > 0 {
		for _, pair := range k.rounds[len(k.rounds)-1] {
			if pair.First() == player {
				pair.AddFirstScore(score)
				break
			}
			if pair.Second() == player {
				pair.AddSecondScore(score)
				break
			}
		}
	}

	k.Base.AddScore(player, score)
}

// strikeStop reports whether a strike disqualification short-circuits
// the match.
func (k *Knockout) strikeStop(pair *Pair) bool {
	leadScore := pair.FirstScore()
	if pair.SecondScore() > leadScore {
		leadScore = pair.SecondScore()
	}
	if leadScore <= k.GamesPerEncounter || pair.FirstScore() == pair.SecondScore() {
		k.shouldStop = false
	}

	if !k.shouldStop {
		if k.Strikes > 0 &&
			(k.PlayerAt(pair.First()).TotalStrikes() >= k.Strikes ||
				k.PlayerAt(pair.Second()).TotalStrikes() >= k.Strikes) {
			k.shouldStop = true
			return true
		}
		return false
	}

	k.shouldStop = true
	return true
}

// needMoreGames decides whether a match is still open: the leader
// must clear GamesPerEncounter points and the margin rule.
func (k *Knockout) needMoreGames(pair *Pair) bool {
	if !pair.IsValid() {
		return false
	}
	if k.strikeStop(pair) {
		return false
	}

	first, second := pair.FirstScore(), pair.SecondScore()
	leadScore := first
	if second > leadScore {
		leadScore = second
	}

	if leadScore <= k.GamesPerEncounter {
		return true
	}

	// The margin depends on whether the extension games come in
	// color-balanced fours.
	minDiff := 3
	if (first+second)%4 == 0 {
		minDiff = 2
	}

	maxDiff := first - second
	if maxDiff < 0 {
		maxDiff = -maxDiff
	}
	return maxDiff < minDiff
}

// winner picks who advances from a decided pair; on a strike
// short-circuit with level scores, fewer strikes win.
func (k *Knockout) winner(pair *Pair) int {
	if !pair.IsValid() {
		if pair.First() != cuteseal.Bye {
			return pair.First()
		}
		return pair.Second()
	}
	if w := pair.Leader(); w != cuteseal.Bye {
		return w
	}
	if k.PlayerAt(pair.First()).TotalStrikes() >
		k.PlayerAt(pair.Second()).TotalStrikes() {
		return pair.Second()
	}
	return pair.First()
}

func (k *Knockout) lastRoundWinners() []int {
	last := k.rounds[len(k.rounds)-1]
	winners := make([]int, 0, len(last))
	for _, pair := range last {
		winners = append(winners, k.winner(pair))
	}
	return winners
}

func (k *Knockout) Over(finished, final int) bool {
	for _, pair := range k.rounds[len(k.rounds)-1] {
		if k.needMoreGames(pair) {
			return false
		}
	}
	return len(k.lastRoundWinners()) <= 1 || !k.moreRoundsPossible()
}

func (k *Knockout) moreRoundsPossible() bool {
	return len(k.rounds[len(k.rounds)-1]) > 1
}

func (k *Knockout) inProgress() int {
	if k.GamesInProgress == nil {
		return 0
	}
	return k.GamesInProgress()
}

func (k *Knockout) NextPair(gameNumber int) *Pair {
	last := k.rounds[len(k.rounds)-1]
	for _, pair := range last {
		if k.needMoreGames(pair) {
			return pair
		}
	}

	winners := k.lastRoundWinners()
	if len(winners) <= 1 || k.inProgress() > 0 {
		return nil
	}

	nextRound := make([]*Pair, 0, len(winners)/2)
	for i := 0; i+1 < len(winners); i += 2 {
		nextRound = append(nextRound, k.Pair(winners[i], winners[i+1]))
	}
	k.rounds = append(k.rounds, nextRound)
	k.SetCurrentRound(k.CurrentRound() + 1)

	for _, pair := range nextRound {
		if pair.IsValid() {
			return pair
		}
	}
	return nil
}

// ResetBook clears the forced opening when a pair starts its match
// from scratch.
func (k *Knockout) ResetBook(pair *Pair) bool {
	if !pair.IsValid() {
		return false
	}
	return pair.FirstScore() == 0 && pair.SecondScore() == 0
}

// AdjustTimeControl applies the accelerating schedule once the
// combined score crosses a stage threshold.
func (k *Knockout) AdjustTimeControl(pair *Pair, tc *cuteseal.TimeControl) *cuteseal.TimeControl {
	if pair == nil || tc == nil {
		return tc
	}
	sum := pair.ScoreSum()
	for _, stage := range k.TCSchedule {
		if sum >= stage.Threshold {
			scaled := tc.Clone()
			scaled.TimePerTC = stage.TimePerTC
			scaled.Increment = stage.Increment
			scaled.Reset()
			return scaled
		}
	}
	return tc
}

// Rounds exposes the bracket for result rendering.
func (k *Knockout) Rounds() [][]*Pair { return k.rounds }

func (k *Knockout) Pairings() [][2]string { return nil }

var _ Scheduler = &Knockout{}
