// Shared State
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
	"log"
	"os"
	"os/signal"

	cuteseal "go-cuteseal"
)

// Manager is a long-lived service started before the tournament and
// shut down after it.
type Manager interface {
	fmt.Stringer
	Start(*State, *Conf)
	Shutdown()
}

// State ties the managers to one cancellable run.
type State struct {
	Context context.Context
	Kill    context.CancelFunc

	running  bool
	managers []Manager
}

func MakeState() *State {
	ctx, kill := context.WithCancel(context.Background())
	return &State{Context: ctx, Kill: kill}
}

func (st *State) Register(m Manager) {
	if st.running {
		panic(fmt.Sprintf("Late register: %#v", m))
	}
	st.managers = append(st.managers, m)
}

// Launch starts every registered manager and arranges for an
// interrupt to cancel the run context.
func (st *State) Launch(c *Conf) {
	for _, m := range st.managers {
		cuteseal.Debug.Printf("Starting %s", m)
		go m.Start(st, c)
	}
	st.running = true

	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt)
	go func() {
		select {
		case <-intr:
			log.Println("Caught interrupt")
			st.Kill()
		case <-st.Context.Done():
		}
	}()
}

// Shutdown stops the managers in reverse registration order.
func (st *State) Shutdown() {
	for i := len(st.managers) - 1; i >= 0; i-- {
		m := st.managers[i]
		cuteseal.Debug.Printf("Shutting %s down", m)
		m.Shutdown()
	}
}
