// PGN records
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

// Package pgn holds the game record the driver fills in and the
// controller writes out.  SAN encoding is the board library's
// concern; this package only remembers and formats.
package pgn

import (
	"fmt"
	"io"
	"strings"
	"time"

	cuteseal "go-cuteseal"
)

// Mode selects how much of a record is written.
type Mode uint8

const (
	// Verbose includes per-move comments
	Verbose Mode = iota
	// Minimal writes moves only
	Minimal
)

// MoveData is one recorded ply.
type MoveData struct {
	San     string
	Comment string
}

// Game is a single game record.  The seven-tag roster keeps its
// order; extra tags are written in insertion order after it.
type Game struct {
	Event    string
	Site     string
	Date     time.Time
	Round    string
	White    string
	Black    string
	result   cuteseal.Result
	startFen string

	tags     []string
	tagValue map[string]string

	moves []MoveData

	Started  time.Time
	Finished time.Time
}

func NewGame() *Game {
	return &Game{tagValue: make(map[string]string)}
}

// SetTag adds or replaces an auxiliary tag.
func (g *Game) SetTag(name, value string) {
	if _, ok := g.tagValue[name]; !ok {
		g.tags = append(g.tags, name)
	}
	g.tagValue[name] = value
}

func (g *Game) Tag(name string) string {
	return g.tagValue[name]
}

func (g *Game) SetStartingFen(fen string) {
	g.startFen = fen
}

func (g *Game) StartingFen() string {
	return g.startFen
}

func (g *Game) SetResult(r cuteseal.Result) {
	g.result = r
}

func (g *Game) Result() cuteseal.Result {
	return g.result
}

func (g *Game) AddMove(md MoveData) {
	g.moves = append(g.moves, md)
}

func (g *Game) Moves() []MoveData {
	return g.moves
}

func (g *Game) PlyCount() int {
	return len(g.moves)
}

// Duration returns the wall-clock game duration, zero before the
// game finished.
func (g *Game) Duration() time.Duration {
	if g.Started.IsZero() || g.Finished.IsZero() {
		return 0
	}
	return g.Finished.Sub(g.Started)
}

func writeTag(w io.Writer, name, value string) error {
	_, err := fmt.Fprintf(w, "[%s %q]\n", name, value)
	return err
}

// Write serializes the record.  Lines are wrapped at 80 columns the
// way PGN consumers expect.
func (g *Game) Write(w io.Writer, mode Mode) error {
	date := g.Date
	if date.IsZero() {
		date = time.Now()
	}

	roster := []struct{ name, value string }{
		{"Event", orUnknown(g.Event)},
		{"Site", orUnknown(g.Site)},
		{"Date", date.Format("2006.01.02")},
		{"Round", orUnknown(g.Round)},
		{"White", orUnknown(g.White)},
		{"Black", orUnknown(g.Black)},
		{"Result", g.result.String()},
	}
	for _, t := range roster {
		if err := writeTag(w, t.name, t.value); err != nil {
			return err
		}
	}

	if g.startFen != "" {
		if err := writeTag(w, "SetUp", "1"); err != nil {
			return err
		}
		if err := writeTag(w, "FEN", g.startFen); err != nil {
			return err
		}
	}
	for _, name := range g.tags {
		if err := writeTag(w, name, g.tagValue[name]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	var text strings.Builder
	for i, md := range g.moves {
		if i%2 == 0 {
			fmt.Fprintf(&text, "%d. ", i/2+1)
		}
		text.WriteString(md.San)
		if mode == Verbose && md.Comment != "" {
			fmt.Fprintf(&text, " {%s}", md.Comment)
		}
		text.WriteByte(' ')
	}
	text.WriteString(g.result.String())

	if err := wrap(w, text.String(), 80); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\n\n")
	return err
}

func wrap(w io.Writer, text string, width int) error {
	line := 0
	for _, word := range strings.Fields(text) {
		if line > 0 && line+1+len(word) > width {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
			line = 0
		}
		if line > 0 {
			if _, err := fmt.Fprint(w, " "); err != nil {
				return err
			}
			line++
		}
		if _, err := fmt.Fprint(w, word); err != nil {
			return err
		}
		line += len(word)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
