// Database Integration
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

// Package db archives finished games and standings in SQLite.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	cmd "go-cuteseal/cmd"
	"go-cuteseal/tourn"
)

//go:embed *.sql
var sqlDir embed.FS

// DB wraps split read/write connections.  SQLite serializes writers,
// so the write handle is limited to one connection.
type DB struct {
	read  *sql.DB
	write *sql.DB

	queries  map[string]*sql.Stmt
	commands map[string]*sql.Stmt
}

func (db *DB) String() string { return "Database Manager" }

// Open prepares the database and every embedded statement.  Files
// starting with "create-" run immediately, "insert-"/"update-" become
// commands, the rest queries.
func Open(file string) (*DB, error) {
	db := &DB{
		queries:  make(map[string]*sql.Stmt),
		commands: make(map[string]*sql.Stmt),
	}

	var err error
	uri := fmt.Sprintf("file:%s?_journal=WAL", file)
	db.write, err = sql.Open("sqlite3", uri)
	if err != nil {
		return nil, err
	}
	db.write.SetMaxOpenConns(1)
	db.read, err = sql.Open("sqlite3", uri+"&mode=ro&cache=shared")
	if err != nil {
		db.write.Close()
		return nil, err
	}

	entries, err := fs.ReadDir(sqlDir, ".")
	if err != nil {
		return nil, err
	}
	for _, ent := range entries {
		data, err := fs.ReadFile(sqlDir, ent.Name())
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(ent.Name(), path.Ext(ent.Name()))
		query := string(data)

		switch {
		case strings.HasPrefix(name, "create-"):
			if _, err := db.write.Exec(query); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		case strings.HasPrefix(name, "insert-"), strings.HasPrefix(name, "update-"):
			stmt, err := db.write.Prepare(query)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			db.commands[name] = stmt
		default:
			stmt, err := db.read.Prepare(query)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			db.queries[name] = stmt
		}
	}

	return db, nil
}

func (db *DB) Start(st *cmd.State, conf *cmd.Conf) {}

func (db *DB) Shutdown() {
	for _, stmt := range db.queries {
		stmt.Close()
	}
	for _, stmt := range db.commands {
		stmt.Close()
	}
	db.read.Close()
	db.write.Close()
}

// RegisterTournament records a tournament run and returns its id.
func (db *DB) RegisterTournament(ctx context.Context, name, kind string) int64 {
	res, err := db.commands["insert-tournament"].ExecContext(ctx, name, kind)
	if err != nil {
		log.Print(err)
		return 0
	}
	id, err := res.LastInsertId()
	if err != nil {
		log.Print(err)
		return 0
	}
	return id
}

// SaveGame archives one finished game record.
func (db *DB) SaveGame(ctx context.Context, tid int64, e *tourn.ProgressEntry) {
	_, err := db.commands["insert-game"].ExecContext(ctx,
		tid, e.Index, e.White, e.Black, e.Result, e.TerminationDetails,
		e.PlyCount, e.GameDuration, e.ECO, e.Opening, e.Variation,
		e.FinalFen, e.WhiteEval, e.BlackEval)
	if err != nil {
		log.Print(err)
	}
}

// SaveStanding upserts one player's standing for a tournament.
func (db *DB) SaveStanding(ctx context.Context, tid int64, p *Standing) {
	_, err := db.commands["insert-standing"].ExecContext(ctx,
		tid, p.Name, p.Score, p.Wins, p.Losses, p.Draws, p.Strikes)
	if err != nil {
		log.Print(err)
	}
}

// Standing is one player's aggregate line.
type Standing struct {
	Name    string
	Score   int
	Wins    int
	Losses  int
	Draws   int
	Strikes int
}

// QueryStandings streams the stored standings of a tournament in
// score order.
func (db *DB) QueryStandings(ctx context.Context, tid int64, c chan<- *Standing) {
	defer close(c)

	rows, err := db.queries["select-standings"].QueryContext(ctx, tid)
	if err != nil {
		log.Print(err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		s := &Standing{}
		err := rows.Scan(&s.Name, &s.Score, &s.Wins, &s.Losses,
			&s.Draws, &s.Strikes)
		if err != nil {
			log.Print(err)
			return
		}
		select {
		case c <- s:
		case <-ctx.Done():
			return
		}
	}
	if err := rows.Err(); err != nil {
		log.Print(err)
	}
}

// QueryGameResults returns the stored result tokens of a tournament
// in game order, for resuming a schedule.
func (db *DB) QueryGameResults(ctx context.Context, tid int64) []string {
	rows, err := db.queries["select-games"].QueryContext(ctx, tid)
	if err != nil {
		log.Print(err)
		return nil
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var (
			index  int
			result string
		)
		if err := rows.Scan(&index, &result); err != nil {
			log.Print(err)
			return results
		}
		for len(results) < index {
			results = append(results, "")
		}
		results[index-1] = result
	}
	if err := rows.Err(); err != nil {
		log.Print(err)
	}
	return results
}

// Attach subscribes the archive to a tournament's progress: every
// finished game and the final standings end up in the database.
func (db *DB) Attach(ctx context.Context, t *tourn.Tournament, tid int64) func() {
	return func() {
		for i := range t.Progress() {
			e := t.Progress()[i]
			if e.Result != "" && e.Result != "*" {
				db.SaveGame(ctx, tid, &e)
			}
		}
		for i := 0; i < t.PlayerCount(); i++ {
			p := t.PlayerAt(i)
			db.SaveStanding(ctx, tid, &Standing{
				Name:    p.Name,
				Score:   p.Score,
				Wins:    p.Wins,
				Losses:  p.Losses,
				Draws:   p.Draws,
				Strikes: p.TotalStrikes(),
			})
		}
	}
}

var _ cmd.Manager = &DB{}
