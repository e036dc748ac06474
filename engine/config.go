// Engine configuration
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

// Package engine turns engine configurations into players the game
// driver can drive.  The engine conversation itself is delegated to
// the UCI adapter.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// RestartMode controls when an engine process is restarted between
// games.
type RestartMode uint8

const (
	// Restart only when the configuration demands it
	RestartAuto RestartMode = iota
	// Restart before every game
	RestartOn
	// Never restart voluntarily
	RestartOff
)

func ParseRestartMode(s string) (RestartMode, error) {
	switch s {
	case "auto", "":
		return RestartAuto, nil
	case "on":
		return RestartOn, nil
	case "off":
		return RestartOff, nil
	}
	return RestartAuto, fmt.Errorf("unknown restart mode %q", s)
}

// Configuration describes one engine as the CLI and engines.json
// declare it.
type Configuration struct {
	Name       string      `json:"name"`
	Command    string      `json:"command"`
	WorkingDir string      `json:"workingDirectory,omitempty"`
	Args       []string    `json:"arguments,omitempty"`
	Protocol   string      `json:"protocol"`
	InitStrs   []string    `json:"initStrings,omitempty"`
	Restart    RestartMode `json:"-"`
	// TrustResults accepts result claims from the engine without
	// validating them against the game state.
	TrustResults bool              `json:"-"`
	Ponder       bool              `json:"-"`
	WhitePOV     bool              `json:"-"`
	Options      map[string]string `json:"-"`
	StderrFile   string            `json:"-"`

	BookFile  string `json:"-"`
	BookDepth int    `json:"-"`
	Rating    int    `json:"-"`
}

func (c *Configuration) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("engine has no name")
	}
	if c.Command == "" {
		return fmt.Errorf("engine %s has no command", c.Name)
	}
	switch c.Protocol {
	case "", "uci":
	default:
		return fmt.Errorf("engine %s: unsupported protocol %q", c.Name, c.Protocol)
	}
	return nil
}

// Key is a stable identity for process reuse: two configurations with
// the same key can share an idle engine process.
func (c *Configuration) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\x00%s\x00%s\x00%s",
		c.Command, c.WorkingDir, strings.Join(c.Args, "\x00"), c.StderrFile)
	names := make([]string, 0, len(c.Options))
	for name := range c.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\x00%s=%s", name, c.Options[name])
	}
	return b.String()
}

// jsonEngine is the engines.json representation.
type jsonEngine struct {
	Name       string   `json:"name"`
	Command    string   `json:"command"`
	WorkingDir string   `json:"workingDirectory"`
	Args       []string `json:"arguments"`
	Protocol   string   `json:"protocol"`
	InitStrs   []string `json:"initStrings"`
	Options    []struct {
		Name  string      `json:"name"`
		Value interface{} `json:"value"`
	} `json:"options"`
}

// LoadConfigurations reads an engines.json file.
func LoadConfigurations(path string) ([]Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []jsonEngine
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	configs := make([]Configuration, 0, len(entries))
	for _, e := range entries {
		c := Configuration{
			Name:       e.Name,
			Command:    e.Command,
			WorkingDir: e.WorkingDir,
			Args:       e.Args,
			Protocol:   e.Protocol,
			InitStrs:   e.InitStrs,
			Options:    make(map[string]string),
		}
		for _, o := range e.Options {
			c.Options[o.Name] = fmt.Sprint(o.Value)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// FindConfiguration returns the named engine from a configuration
// list.
func FindConfiguration(configs []Configuration, name string) (*Configuration, error) {
	for i := range configs {
		if configs[i].Name == name {
			return &configs[i], nil
		}
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}
