// Game results
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

package cuteseal

import "fmt"

// ResultType classifies how a game ended.
type ResultType uint8

const (
	// Win by rule (checkmate) or draw by rule
	NormalResult ResultType = iota
	// Decided by the adjudicator
	Adjudication
	// The losing player resigned
	Resignation
	// The losing player ran out of time
	Timeout
	// The losing player's process disconnected
	Disconnection
	// The losing player's connection stalled
	StalledConnection
	// The losing player made an illegal move
	IllegalMove
	// The losing player made an invalid result claim
	ResultError
	// The game did not end
	NoResult
)

func (t ResultType) String() string {
	switch t {
	case NormalResult:
		return "normal"
	case Adjudication:
		return "adjudication"
	case Resignation:
		return "resignation"
	case Timeout:
		return "timeout"
	case Disconnection:
		return "disconnection"
	case StalledConnection:
		return "stalled connection"
	case IllegalMove:
		return "illegal move"
	case ResultError:
		return "result error"
	case NoResult:
		return "no result"
	default:
		panic(fmt.Sprintf("Illegal result type: %d", t))
	}
}

// Faulty reports whether a result type indicates a misbehaving player
// rather than a decided game.
func (t ResultType) Faulty() bool {
	switch t {
	case NoResult, ResultError, Disconnection, StalledConnection:
		return true
	}
	return false
}

// Result is the outcome of a single game.
type Result struct {
	Winner      Side
	Type        ResultType
	Description string
}

// MakeResult builds a result with a default description.
func MakeResult(t ResultType, winner Side, description string) Result {
	return Result{Winner: winner, Type: t, Description: description}
}

func (r Result) IsNone() bool {
	return r.Type == NoResult
}

func (r Result) IsDraw() bool {
	return r.Type != NoResult && r.Winner.IsNull()
}

func (r Result) Loser() Side {
	return r.Winner.Opposite()
}

// String returns the PGN result token.
func (r Result) String() string {
	switch {
	case r.Type == NoResult:
		return "*"
	case r.Winner == White:
		return "1-0"
	case r.Winner == Black:
		return "0-1"
	default:
		return "1/2-1/2"
	}
}

// Termination returns the short termination tag used in the schedule
// and the tournament file.
func (r Result) Termination() string {
	if r.Description == "" {
		switch {
		case r.Type == NoResult:
			return "unterminated"
		case r.IsDraw():
			return "Draw"
		default:
			return fmt.Sprintf("%s wins", r.Winner)
		}
	}
	return r.Description
}

// VerboseString is the human-readable form used in log output.
func (r Result) VerboseString() string {
	return fmt.Sprintf("%s {%s: %s}", r.String(), r.Type, r.Termination())
}
