// Game manager
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

package game

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	cuteseal "go-cuteseal"
)

// StartMode selects how a request enters the manager.
type StartMode uint8

const (
	// Enqueue waits for a free slot
	Enqueue StartMode = iota
	// StartImmediately ignores the concurrency ceiling
	StartImmediately
)

// ReuseMode selects whether idle engine processes may be lent to the
// game.
type ReuseMode uint8

const (
	ReusePlayers ReuseMode = iota
	NewPlayers
)

// Request asks the manager to run one game.
type Request struct {
	Game  *ChessGame
	White cuteseal.PlayerBuilder
	Black cuteseal.PlayerBuilder
	Mode  StartMode
	Reuse ReuseMode
}

// Manager dispatches games to a bounded pool of workers and caches
// idle engine processes for reuse.
type Manager struct {
	sem  *semaphore.Weighted
	wait sync.WaitGroup

	mu   sync.Mutex
	idle map[string][]cuteseal.Player

	// Ready receives a token whenever capacity frees up.
	Ready chan struct{}
}

func NewManager(concurrency int) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{
		sem:   semaphore.NewWeighted(int64(concurrency)),
		idle:  make(map[string][]cuteseal.Player),
		Ready: make(chan struct{}, 1),
	}
}

// TryStart launches the game if a slot is free and reports whether it
// did.
func (m *Manager) TryStart(ctx context.Context, req Request) bool {
	if req.Mode != StartImmediately && !m.sem.TryAcquire(1) {
		return false
	}
	if req.Mode == StartImmediately {
		// Over-capacity starts borrow no slot.
		m.run(ctx, req, false)
		return true
	}
	m.run(ctx, req, true)
	return true
}

// Start blocks until a slot is free, then launches the game.
func (m *Manager) Start(ctx context.Context, req Request) error {
	if req.Mode == StartImmediately {
		m.run(ctx, req, false)
		return nil
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	m.run(ctx, req, true)
	return nil
}

func (m *Manager) run(ctx context.Context, req Request, slot bool) {
	m.wait.Add(1)
	go func() {
		defer m.wait.Done()
		if slot {
			defer func() {
				m.sem.Release(1)
				select {
				case m.Ready <- struct{}{}:
				default:
				}
			}()
		}

		g := req.Game
		white, err := m.obtain(req.White, req.Reuse)
		if err != nil {
			g.failStart(err)
			return
		}
		black, err := m.obtain(req.Black, req.Reuse)
		if err != nil {
			m.release(req.White, white, req.Reuse)
			g.failStart(err)
			return
		}

		g.SetPlayer(cuteseal.White, white)
		g.SetPlayer(cuteseal.Black, black)
		g.Run(ctx)

		m.release(req.White, white, req.Reuse)
		m.release(req.Black, black, req.Reuse)
	}()
}

// obtain reuses a cached idle player when the builder allows it.
func (m *Manager) obtain(b cuteseal.PlayerBuilder, reuse ReuseMode) (cuteseal.Player, error) {
	if reuse == ReusePlayers && b.Reusable() {
		m.mu.Lock()
		key := b.ConfigKey()
		if pool := m.idle[key]; len(pool) > 0 {
			p := pool[len(pool)-1]
			m.idle[key] = pool[:len(pool)-1]
			m.mu.Unlock()
			cuteseal.Debug.Printf("Reusing %s for %s", p, b.Name())
			return p, nil
		}
		m.mu.Unlock()
	}
	return b.Build()
}

// release returns a player to the idle pool, or kills it when it
// cannot be reused.
func (m *Manager) release(b cuteseal.PlayerBuilder, p cuteseal.Player, reuse ReuseMode) {
	if p == nil {
		return
	}
	if reuse == ReusePlayers && b.Reusable() && p.Ready(context.Background()) == nil {
		m.mu.Lock()
		key := b.ConfigKey()
		m.idle[key] = append(m.idle[key], p)
		m.mu.Unlock()
		return
	}
	p.Kill()
}

// Shutdown waits for running games and kills the idle pool.
func (m *Manager) Shutdown() {
	m.wait.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pool := range m.idle {
		for _, p := range pool {
			p.Kill()
		}
	}
	m.idle = make(map[string][]cuteseal.Player)
}
