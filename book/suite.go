// Opening suites
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

package book

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/notnil/chess"
)

type Format uint8

const (
	EPD Format = iota
	PGN
)

type Order uint8

const (
	Sequential Order = iota
	Random
)

// Opening is one starting position: a FEN plus an optional forced
// move prefix in UCI notation.
type Opening struct {
	FEN   string
	Moves []string
}

// Suite iterates over a feed of starting positions.  The sequential
// order wraps around; the random order draws from the seeded
// generator so a resumed tournament sees the same sequence.
type Suite struct {
	openings []Opening
	order    Order
	next     int
	rnd      *rand.Rand
}

// LoadSuite reads an EPD or PGN openings file.  start skips that many
// openings from the front; plies caps the forced prefix length.
func LoadSuite(path string, format Format, order Order, plies, start int, seed int64) (*Suite, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	s := &Suite{order: order, rnd: rand.New(rand.NewSource(seed))}

	switch format {
	case EPD:
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 4 {
				return nil, fmt.Errorf("%s: short EPD record %q", path, line)
			}
			fen := strings.Join(fields[:4], " ") + " 0 1"
			if _, err := chess.FEN(fen); err != nil {
				return nil, fmt.Errorf("%s: invalid EPD record %q: %w", path, line, err)
			}
			s.openings = append(s.openings, Opening{FEN: fen})
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}

	case PGN:
		scanner := chess.NewScanner(file)
		var notation chess.UCINotation
		for scanner.Scan() {
			g := scanner.Next()
			var o Opening
			if tag := g.GetTagPair("FEN"); tag != nil {
				o.FEN = tag.Value
			}
			moves := g.Moves()
			positions := g.Positions()
			for i, m := range moves {
				if plies > 0 && i >= plies {
					break
				}
				if i >= len(positions) {
					break
				}
				o.Moves = append(o.Moves, notation.Encode(positions[i], m))
			}
			s.openings = append(s.openings, o)
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown opening suite format %d", format)
	}

	if len(s.openings) == 0 {
		return nil, fmt.Errorf("%s: opening suite is empty", path)
	}
	if start > 0 {
		s.next = start % len(s.openings)
	}
	return s, nil
}

// Len returns the number of openings in the suite.
func (s *Suite) Len() int {
	return len(s.openings)
}

// Next returns the next opening, with the forced prefix capped to
// maxPlies moves.
func (s *Suite) Next(maxPlies int) Opening {
	var o Opening
	if s.order == Random {
		o = s.openings[s.rnd.Intn(len(s.openings))]
	} else {
		o = s.openings[s.next]
		s.next = (s.next + 1) % len(s.openings)
	}

	if maxPlies > 0 && len(o.Moves) > maxPlies {
		o.Moves = o.Moves[:maxPlies]
	}
	return o
}
