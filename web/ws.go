// Websocket communication
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

package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	cuteseal "go-cuteseal"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	// Viewers connect from anywhere.
	CheckOrigin: func(*http.Request) bool { return true },
}

var (
	clientLock sync.Mutex
	clients    = make(map[*websocket.Conn]struct{})
	lastUpdate []byte
)

// upgrade turns a request into a live-feed subscription.
func (w *Web) upgrade(rw http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(rw, req, nil)
	if err != nil {
		cuteseal.Debug.Print(err)
		return
	}

	clientLock.Lock()
	clients[conn] = struct{}{}
	if lastUpdate != nil {
		conn.WriteMessage(websocket.TextMessage, lastUpdate)
	}
	clientLock.Unlock()

	// Drain and discard client messages so pings are answered.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				clientLock.Lock()
				delete(clients, conn)
				clientLock.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Broadcast pushes a live update to every connected viewer.
func Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		cuteseal.Debug.Print(err)
		return
	}

	clientLock.Lock()
	defer clientLock.Unlock()
	lastUpdate = data
	for conn := range clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(clients, conn)
			conn.Close()
		}
	}
}

func (w *Web) closeClients() {
	clientLock.Lock()
	defer clientLock.Unlock()
	for conn := range clients {
		conn.Close()
		delete(clients, conn)
	}
}
