// Common Interfaces and constants
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

// Side identifies a side of the board.  NoSide marks draws and
// not-yet-decided winners.
type Side int8

const (
	White Side = iota
	Black
	NoSide
)

func (s Side) Opposite() Side {
	switch s {
	case White:
		return Black
	case Black:
		return White
	}
	return NoSide
}

func (s Side) IsNull() bool {
	return s != White && s != Black
}

func (s Side) String() string {
	switch s {
	case White:
		return "White"
	case Black:
		return "Black"
	case NoSide:
		return "NoSide"
	default:
		panic(fmt.Sprintf("Illegal side: %d", s))
	}
}

// Bye is the sentinel player index for a pairing without an opponent.
const Bye = -1
