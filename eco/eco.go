// ECO opening classification
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

// Package eco classifies openings.  The catalog is populated once
// from an eco.pgn file during startup and read-only afterwards.
package eco

import (
	"io"
	"os"
	"sync"

	"github.com/notnil/chess"

	"go-cuteseal/book"
)

// Info is the classification of one opening line.
type Info struct {
	Code      string
	Opening   string
	Variation string
}

var (
	mu      sync.RWMutex
	catalog map[string]Info
)

// Load populates the process-wide catalog from an eco.pgn file: one
// game per line, tagged with ECO/Opening/Variation.  Every position
// along a line is indexed so transpositions classify too.
func Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	table := make(map[string]Info)
	scanner := chess.NewScanner(file)
	for scanner.Scan() {
		g := scanner.Next()

		var info Info
		if tag := g.GetTagPair("ECO"); tag != nil {
			info.Code = tag.Value
		}
		if tag := g.GetTagPair("Opening"); tag != nil {
			info.Opening = tag.Value
		}
		if tag := g.GetTagPair("Variation"); tag != nil {
			info.Variation = tag.Value
		}
		if info.Code == "" {
			continue
		}

		positions := g.Positions()
		for i, pos := range positions {
			if i == 0 {
				continue // the start position classifies nothing
			}
			key := book.PositionKey(pos.String())
			// A line's final position always carries that line's
			// classification; a position the line only passes
			// through keeps the entry it already has.
			if _, ok := table[key]; !ok || i == len(positions)-1 {
				table[key] = info
			}
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}

	mu.Lock()
	catalog = table
	mu.Unlock()
	return nil
}

// Classify finds the deepest cataloged position of a game, given the
// FEN after each ply in game order.
func Classify(fens []string) (Info, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if catalog == nil {
		return Info{}, false
	}

	for i := len(fens) - 1; i >= 0; i-- {
		if info, ok := catalog[book.PositionKey(fens[i])]; ok {
			return info, true
		}
	}
	return Info{}, false
}
