// Player capability set
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

import (
	"context"
	"fmt"
)

// Sink receives the asynchronous player events the game driver
// handles.  Moves cross the boundary in UCI notation; the driver owns
// the authoritative board.
type Sink interface {
	MoveMade(p Player, move string, eval *MoveEvaluation)
	ResultClaim(p Player, r Result)
	Disconnected(p Player)
}

// Player is the capability set the game driver consumes.  The wire
// protocol behind it (UCI, Winboard, a human UI) is the adapter's
// concern; adapters track their own copy of the position from the
// moves the driver relays.
type Player interface {
	fmt.Stringer

	Name() string
	SetSink(Sink)

	// Ready blocks until the player can accept a new game.
	Ready(ctx context.Context) error
	// NewGame resets the player to fen (empty for the default
	// start position) playing side.
	NewGame(side Side, fen string) error

	// Go asks for a move on the current position; the reply
	// arrives through the sink.
	Go(white, black *TimeControl)
	Stop()

	// MakeMove relays the opponent's move.  MakeBookMove forces a
	// move for this player without consulting it.
	MakeMove(move string) error
	MakeBookMove(move string) error

	StartPondering()
	ClearPonderState()

	// EndGame announces the result; the player stays usable for
	// another game unless killed.
	EndGame(r Result)
	Kill()

	// ClaimsValidated reports whether result claims from this
	// player must be checked against the game state.
	ClaimsValidated() bool
	Evaluation() *MoveEvaluation
}

// PlayerBuilder creates players on demand.  Builders with equal
// ConfigKey produce interchangeable players, which lets the game
// manager reuse idle processes.
type PlayerBuilder interface {
	fmt.Stringer

	Name() string
	Build() (Player, error)
	ConfigKey() string
	// Reusable reports whether an idle player may be lent to the
	// next game instead of starting a fresh process.
	Reusable() bool
}
