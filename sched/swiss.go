// Swiss pairing (TCEC variant)
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
	"log"
	"sort"

	cuteseal "go-cuteseal"
	"go-cuteseal/match"
)

// maxColorImbalance bounds the combined white-game difference a
// pairing may carry.
const maxColorImbalance = 2

type swissStats struct {
	// White games increase the diff, black games decrease it.
	whiteGameDiff int
	byeReceived   bool
}

type pairingData struct {
	playerIndex int
	score       int
	paired      bool
}

// encountersTable marks which pairings are already used up.
type encountersTable struct {
	met        []bool
	numPlayers int
}

func makeEncountersTable(numPlayers int) *encountersTable {
	return &encountersTable{
		met:        make([]bool, numPlayers*numPlayers),
		numPlayers: numPlayers,
	}
}

func (t *encountersTable) clear() {
	for i := range t.met {
		t.met[i] = false
	}
}

func (t *encountersTable) add(player1, player2 int) {
	if player1 > player2 {
		player1, player2 = player2, player1
	}
	t.met[player2*t.numPlayers+player1] = true
}

func (t *encountersTable) hasMet(player1, player2 int) bool {
	if player1 > player2 {
		player1, player2 = player2, player1
	}
	return t.met[player2*t.numPlayers+player1]
}

// Swiss pairs players of nearest score such that no pair meets twice
// and colors stay balanced.  See the TCEC swiss system description.
type Swiss struct {
	*Base

	stats    []swissStats
	pairings [][2]int // current round, white first
	history  [][2]int // one entry per pair per round
	ignore   int      // rounds dropped from the encounter history

	preRecorded []string
}

func NewSwiss(base *Base) *Swiss {
	return &Swiss{Base: base}
}

func (s *Swiss) Type() string { return "swiss-tcec" }

func (s *Swiss) CanSetRoundMultiplier() bool { return true }

func (s *Swiss) GamesPerCycle() int { return s.PlayerCount() / 2 }

func (s *Swiss) GamesPerRound() int { return s.GamesPerCycle() * s.GamesPerEncounter }

func (s *Swiss) FinalGameCount() int {
	return s.GamesPerCycle() * s.GamesPerEncounter * s.RoundMultiplier
}

func (s *Swiss) Initialize() error {
	if s.PlayerCount() < 2 {
		return fmt.Errorf("a swiss needs at least two players")
	}
	if s.Berger && s.GamesPerEncounter%2 != 0 {
		return fmt.Errorf("a Berger swiss schedule needs an even number of games per encounter")
	}
	if s.Concurrency > 1 {
		return fmt.Errorf("swiss pairing needs finalized results between rounds; concurrency must be 1")
	}

	s.stats = make([]swissStats, s.PlayerCount())
	s.pairings = nil
	s.history = make([][2]int, s.GamesPerCycle()*s.RoundMultiplier)
	s.ignore = 0
	return nil
}

// forbidden reports whether a tentative pairing violates the
// encounter history or the color balance.
func (s *Swiss) forbidden(enc *encountersTable, i, j int) bool {
	if enc.hasMet(i, j) {
		return true
	}
	diff := s.stats[i].whiteGameDiff + s.stats[j].whiteGameDiff
	if diff < 0 {
		diff = -diff
	}
	return diff > maxColorImbalance
}

// tryPairing checks whether the round can still be completed after
// tentatively pairing player1 with player2 (pass -1, -1 to test the
// unpaired rest as-is).  Completability reduces to a perfect matching
// on the graph of allowed pairings.
func (s *Swiss) tryPairing(data []pairingData, player1, player2 int, enc *encountersTable) bool {
	paired := make([]bool, len(data))
	for _, pd := range data {
		paired[pd.playerIndex] = pd.paired
	}
	if player1 >= 0 {
		paired[player1] = true
	}
	if player2 >= 0 {
		paired[player2] = true
	}

	graph := match.MakeDenseGraph(s.PlayerCount())
	unpaired := 0
	for i := range paired {
		if paired[i] {
			continue
		}
		unpaired++
		for j := i + 1; j < len(paired); j++ {
			if !paired[j] && !s.forbidden(enc, i, j) {
				graph.InsertEdge(i, j)
			}
		}
	}

	matching := match.FindMaximumMatching(graph)
	return 2*len(matching) == unpaired
}

// rebuildEncounters fills the table from the non-ignored rounds of
// history.
func (s *Swiss) rebuildEncounters(enc *encountersTable) {
	enc.clear()
	for r0 := s.ignore; r0 < s.CurrentRound()-1; r0++ {
		for g := 0; g < s.GamesPerCycle(); g++ {
			pair := s.history[r0*s.GamesPerCycle()+g]
			enc.add(pair[0], pair[1])
		}
	}
}

// pairingOrder sorts players by score descending, then index.
func (s *Swiss) pairingOrder() []pairingData {
	data := make([]pairingData, s.PlayerCount())
	for i := range data {
		data[i] = pairingData{
			playerIndex: i,
			score:       s.PlayerAt(i).Score,
		}
	}
	sort.SliceStable(data, func(i, j int) bool {
		if data[i].score != data[j].score {
			return data[i].score > data[j].score
		}
		return data[i].playerIndex < data[j].playerIndex
	})
	return data
}

// assignBye gives the lowest-ordered player without a BYE a free win
// per encounter game.  When everyone had one, the flags reset.
func (s *Swiss) assignBye(data []pairingData) {
	if s.PlayerCount()%2 == 0 {
		return
	}

	allByes := true
	for i := range s.stats {
		if !s.stats[i].byeReceived {
			allByes = false
			break
		}
	}
	if allByes {
		cuteseal.Debug.Print("Resetting BYEs")
		for i := range s.stats {
			s.stats[i].byeReceived = false
		}
	}

	for i := len(data) - 1; i >= 0; i-- {
		entry := &data[i]
		stats := &s.stats[entry.playerIndex]
		if stats.byeReceived {
			continue
		}

		stats.byeReceived = true
		entry.paired = true
		// BYE games are wins.
		for j := 0; j < s.GamesPerEncounter; j++ {
			s.AddScore(entry.playerIndex, 2)
		}
		cuteseal.Debug.Printf("Added BYE for player %d", entry.playerIndex)
		break
	}
}

// firstIsWhite decides colors for a new pairing; first is the
// higher-ordered player.
func (s *Swiss) firstIsWhite(first, second int) bool {
	if s.GamesPerEncounter%2 == 0 {
		// Double rounds: first is always black on the first
		// encounter, the second encounter reverses.
		return false
	}

	// Balance the white/black games first.
	if s.stats[first].whiteGameDiff < s.stats[second].whiteGameDiff {
		return true
	}
	if s.stats[first].whiteGameDiff > s.stats[second].whiteGameDiff {
		return false
	}

	// The higher-scoring player gets black, which can only be the
	// first player in pairing order.
	if s.PlayerAt(first).Score > s.PlayerAt(second).Score {
		return false
	}

	// Even score, even white game diff: use the fixed pattern.
	switch (s.CurrentRound() - 1) % 4 {
	case 0, 3:
		return false
	default:
		return true
	}
}

// assignPairs walks the pairing order and accepts the first candidate
// that keeps the round completable.
func (s *Swiss) assignPairs(data []pairingData, enc *encountersTable) {
	s.pairings = make([][2]int, s.PlayerCount()/2)
	pairNo := 0

	for i := 0; i < s.PlayerCount()/2; i++ {
		firstUnpaired := -1
		for j := range data {
			if !data[j].paired {
				data[j].paired = true
				firstUnpaired = data[j].playerIndex
				break
			}
		}
		if firstUnpaired < 0 {
			break
		}

		for j := range data {
			entry := &data[j]
			if entry.paired {
				continue
			}
			secondUnpaired := entry.playerIndex

			if s.forbidden(enc, firstUnpaired, secondUnpaired) {
				continue
			}
			lo, hi := firstUnpaired, secondUnpaired
			if lo > hi {
				lo, hi = hi, lo
			}
			if !s.tryPairing(data, lo, hi, enc) {
				continue
			}

			entry.paired = true
			enc.add(firstUnpaired, secondUnpaired)

			firstStats := &s.stats[firstUnpaired]
			secondStats := &s.stats[secondUnpaired]

			var newPair [2]int
			if s.firstIsWhite(firstUnpaired, secondUnpaired) {
				newPair = [2]int{firstUnpaired, secondUnpaired}
				if s.GamesPerEncounter%2 != 0 {
					firstStats.whiteGameDiff++
					secondStats.whiteGameDiff--
				}
			} else {
				newPair = [2]int{secondUnpaired, firstUnpaired}
				if s.GamesPerEncounter%2 != 0 {
					firstStats.whiteGameDiff--
					secondStats.whiteGameDiff++
				}
			}

			// Pairs are stored in reverse order: the lowest
			// boards play first.
			pairNo++
			s.pairings[len(s.pairings)-pairNo] = newPair
			cuteseal.Debug.Printf("Added pair %s - %s",
				s.PlayerAt(newPair[0]).Name, s.PlayerAt(newPair[1]).Name)
			break
		}
	}
}

// generateRoundPairings runs the full pairing procedure for the
// current round.
func (s *Swiss) generateRoundPairings() {
	cuteseal.Debug.Printf("Generating pairings for round %d", s.CurrentRound())

	data := s.pairingOrder()
	s.assignBye(data)

	enc := makeEncountersTable(s.PlayerCount())
	for {
		s.rebuildEncounters(enc)
		if s.tryPairing(data, -1, -1, enc) {
			break
		}

		s.ignore++
		log.Printf("Pairing not possible, ignoring round %d in pairing history", s.ignore)
		if s.ignore >= s.CurrentRound() {
			panic("swiss pairing impossible even with an empty history")
		}
	}

	s.assignPairs(data, enc)

	for i := 0; i < s.GamesPerCycle(); i++ {
		s.history[(s.CurrentRound()-1)*s.GamesPerCycle()+i] = s.pairings[i]
	}
}

// pairForGame maps a game number onto the stored round schedule.
// Colors alternate by encounter index.
func (s *Swiss) pairForGame(gameNumber int) [2]int {
	round := gameNumber / s.GamesPerRound()
	gameInRound := gameNumber % s.GamesPerRound()

	var pairNum, encounterNum int
	if s.Berger {
		pairNum = gameInRound % s.GamesPerCycle()
		encounterNum = gameInRound / s.GamesPerCycle()
	} else {
		pairNum = gameInRound / s.GamesPerEncounter
		encounterNum = gameInRound % s.GamesPerEncounter
	}

	pair := s.history[round*s.GamesPerCycle()+pairNum]
	if encounterNum%2 == 1 {
		pair[0], pair[1] = pair[1], pair[0]
	}
	return pair
}

// AddResumeResult pre-records a finished game before a resume replay.
func (s *Swiss) AddResumeResult(gameNumber int, result string) {
	log.Printf("Adding resumed game result: %d %s", gameNumber, result)
	for len(s.preRecorded) <= gameNumber {
		s.preRecorded = append(s.preRecorded, "")
	}
	s.preRecorded[gameNumber] = result
}

func (s *Swiss) NextPair(gameNumber int) *Pair {
	if gameNumber >= s.FinalGameCount() {
		return nil
	}

	if gameNumber%s.GamesPerRound() == 0 {
		s.SetCurrentRound(1 + gameNumber/s.GamesPerRound())
		s.generateRoundPairings()
	}

	thePair := s.pairForGame(gameNumber)

	p := s.Pair(thePair[0], thePair[1])
	if p.First() != thePair[0] {
		p.SwapPlayers()
	}

	// Replay a pre-recorded result from the persisted tournament.
	if len(s.preRecorded) > gameNumber {
		result := s.preRecorded[gameNumber]
		log.Printf("Using prerecorded result %q for pairing", result)

		switch result {
		case "1-0":
			s.AddScore(thePair[0], 2)
		case "0-1":
			s.AddScore(thePair[1], 2)
		case "1/2-1/2":
			s.AddScore(thePair[0], 1)
			s.AddScore(thePair[1], 1)
		default:
			log.Printf("Resume result %q not understood", result)
			if gameNumber != len(s.preRecorded)-1 {
				log.Fatal("This was not the last game and pairings will break. " +
					"Please fix the tournament file and try again.")
			}
		}
	}

	return p
}

func (s *Swiss) Pairings() [][2]string {
	out := make([][2]string, 0, s.FinalGameCount())
	for n := 0; n < s.FinalGameCount(); n++ {
		round := n / s.GamesPerRound()
		if round*s.GamesPerCycle() >= len(s.history) {
			break
		}
		pair := s.pairForGame(n)
		if pair == [2]int{0, 0} {
			out = append(out, [2]string{"", ""})
			continue
		}
		out = append(out, [2]string{
			s.PlayerAt(pair[0]).Name,
			s.PlayerAt(pair[1]).Name,
		})
	}
	return out
}

var _ Scheduler = &Swiss{}
