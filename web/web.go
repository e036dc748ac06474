// Web interface
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

// Package web serves the crosstable and schedule as JSON and streams
// live-game updates over a WebSocket.  There is no HTML UI; external
// viewers consume the endpoints.
package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	cuteseal "go-cuteseal"
	cmd "go-cuteseal/cmd"
	"go-cuteseal/tourn"
)

// Source is what the endpoints render.
type Source interface {
	Crosstable() []tourn.CrosstableRow
	Schedule() []tourn.ScheduleRow
	Results() string
}

type Web struct {
	source Source
	server *http.Server
}

func New(source Source) *Web {
	return &Web{source: source}
}

func (w *Web) String() string { return "Web Server" }

func (w *Web) Start(st *cmd.State, conf *cmd.Conf) {
	mux := http.NewServeMux()
	mux.HandleFunc("/crosstable.json", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, w.source.Crosstable())
	})
	mux.HandleFunc("/schedule.json", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, w.source.Schedule())
	})
	mux.HandleFunc("/results", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(rw, w.source.Results())
	})
	mux.HandleFunc("/live", w.upgrade)

	w.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Web.Port),
		Handler: mux,
	}
	cuteseal.Debug.Printf("Listening on %s", w.server.Addr)
	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		log.Print(err)
	}
}

func (w *Web) Shutdown() {
	if w.server == nil {
		return
	}
	w.closeClients()
	w.server.Close()
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(rw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Print(err)
	}
}

var _ cmd.Manager = &Web{}
