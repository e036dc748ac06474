// Artifact output
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

package tourn

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"go-cuteseal/game"
	"go-cuteseal/pgn"
)

func (t *Tournament) openOutputs() error {
	var err error
	if t.PgnOut != "" {
		t.pgnFile, err = os.OpenFile(t.PgnOut,
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening PGN output: %w", err)
		}
	}
	if t.EpdOut != "" {
		t.epdFile, err = os.OpenFile(t.EpdOut,
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening EPD output: %w", err)
		}
	}
	return nil
}

func (t *Tournament) closeOutputs() {
	if t.pgnFile != nil {
		t.pgnFile.Close()
	}
	if t.epdFile != nil {
		t.epdFile.Close()
	}
}

// writePgn buffers the record and flushes every game in strict game
// number order, deferring games that finished out of order.
func (t *Tournament) writePgn(rec *pgn.Game, gameNumber int) bool {
	if t.pgnFile == nil {
		return true
	}

	ok := true
	t.pgnGames[gameNumber] = rec
	for {
		next, have := t.pgnGames[t.savedGameCount+1]
		if !have {
			break
		}
		t.savedGameCount++
		delete(t.pgnGames, t.savedGameCount)

		result := next.Result()
		if !t.PgnWriteUnfinished &&
			(result.IsNone() || (t.stopping && result.Type.Faulty())) {
			log.Printf("Omitted incomplete game %d", t.savedGameCount)
			continue
		}
		if err := next.Write(t.pgnFile, t.PgnOutMode); err != nil {
			ok = false
			log.Printf("Could not write PGN game %d: %v", t.savedGameCount, err)
		}
	}
	return ok
}

// writeEpd appends the final position.
func (t *Tournament) writeEpd(g *game.ChessGame) bool {
	if t.epdFile == nil {
		return true
	}
	if _, err := fmt.Fprintln(t.epdFile, g.FinalFen()); err != nil {
		log.Printf("Could not write EPD position: %v", err)
		return false
	}
	return true
}

// atomicWrite writes content to path via a temp file and rename.
func atomicWrite(path string, write func(*os.File) error) error {
	tmp := strings.TrimSuffix(path, ".pgn")
	tmp = strings.TrimSuffix(tmp, ".json")
	tmp = tmp + "_temp" + path[len(tmp):]

	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// liveGame is the JSON shape of the live output.
type liveGame struct {
	Game    int      `json:"Game"`
	White   string   `json:"White"`
	Black   string   `json:"Black"`
	Result  string   `json:"Result"`
	Moves   []string `json:"Moves"`
	FEN     string   `json:"FEN"`
	PlyDone int      `json:"PlyCount"`
}

// writeLive dumps the in-progress game after each move, atomically.
func (t *Tournament) writeLive(g *game.ChessGame, gameNumber int) {
	if t.LivePgnOut == "" {
		return
	}

	rec := g.Pgn()
	if t.LivePgnFormat {
		err := atomicWrite(t.LivePgnOut+".pgn", func(f *os.File) error {
			return rec.Write(f, t.LivePgnOutMode)
		})
		if err != nil {
			log.Printf("Could not write live PGN: %v", err)
		}
	}

	if t.LiveJsonFormat {
		moves := rec.Moves()
		lg := liveGame{
			Game:    gameNumber,
			White:   rec.White,
			Black:   rec.Black,
			Result:  rec.Result().String(),
			FEN:     g.FinalFen(),
			PlyDone: len(moves),
		}
		for _, m := range moves {
			lg.Moves = append(lg.Moves, m.San)
		}

		err := atomicWrite(t.LivePgnOut+".json", func(f *os.File) error {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			return enc.Encode(lg)
		})
		if err != nil {
			log.Printf("Could not write live JSON: %v", err)
		}
	}
}
