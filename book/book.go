// Opening books
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

// Package book provides the opening-book contract the game driver
// consumes, plus an opening suite iterator over EPD and PGN files.
//
// Books are keyed by rank-truncated FEN: the move counters are
// stripped so that transpositions with different clocks hit the same
// entry.  A polyglot probe satisfies the same interface behind an
// adapter; the binary format itself is not this package's concern.
package book

import (
	"fmt"
	"io"
	"strings"

	"github.com/notnil/chess"
)

// Book returns a move (in UCI notation) for a position, if any.
type Book interface {
	Move(fen string) (string, bool)
}

// PositionKey strips the halfmove clock and fullmove number from a
// FEN.  Castling rights, active color and the en-passant square stay,
// as all of them are material.
func PositionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return fen
	}
	return strings.Join(fields[:4], " ")
}

type weightedMove struct {
	move   string
	weight uint
}

// MapBook is an in-memory book.  The heaviest move wins; insertion
// order breaks ties so lookups stay deterministic.
type MapBook struct {
	entries map[string][]weightedMove
}

func NewMapBook() *MapBook {
	return &MapBook{entries: make(map[string][]weightedMove)}
}

func (b *MapBook) Add(fen, move string, weight uint) {
	key := PositionKey(fen)
	moves := b.entries[key]
	for i := range moves {
		if moves[i].move == move {
			moves[i].weight += weight
			return
		}
	}
	b.entries[key] = append(moves, weightedMove{move: move, weight: weight})
}

func (b *MapBook) Move(fen string) (string, bool) {
	moves, ok := b.entries[PositionKey(fen)]
	if !ok || len(moves) == 0 {
		return "", false
	}
	best := moves[0]
	for _, m := range moves[1:] {
		if m.weight > best.weight {
			best = m
		}
	}
	return best.move, true
}

func (b *MapBook) Len() int {
	return len(b.entries)
}

// AddGame feeds every move of a game into the book.  Wins count
// double, losses are skipped, mirroring how books are composed from
// game collections.
func (b *MapBook) AddGame(g *chess.Game) {
	moves := g.Moves()
	positions := g.Positions()
	result := ""
	if tag := g.GetTagPair("Result"); tag != nil {
		result = tag.Value
	}

	var notation chess.UCINotation
	for i, m := range moves {
		if i >= len(positions) {
			break
		}
		pos := positions[i]
		var weight uint
		switch {
		case pos.Turn() == chess.White && result == "1-0",
			pos.Turn() == chess.Black && result == "0-1":
			weight = 2
		case result == "1-0" || result == "0-1":
			continue
		default:
			weight = 1
		}
		b.Add(pos.String(), notation.Encode(pos, m), weight)
	}
}

// FromPGN builds a book from every game a PGN stream contains.
func FromPGN(r *chess.Scanner) (*MapBook, error) {
	b := NewMapBook()
	n := 0
	for r.Scan() {
		b.AddGame(r.Next())
		n++
	}
	if err := r.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading book games: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("book source contains no games")
	}
	return b, nil
}
