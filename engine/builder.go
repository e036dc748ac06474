// Engine process building
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

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cuteseal "go-cuteseal"
)

// Builder creates UCI players from a configuration.  It satisfies
// cuteseal.PlayerBuilder.
type Builder struct {
	cfg     Configuration
	wrapper string // generated launch script, when one is needed
}

func NewBuilder(cfg Configuration) *Builder {
	return &Builder{cfg: cfg}
}

func (b *Builder) Name() string   { return b.cfg.Name }
func (b *Builder) String() string { return b.cfg.Name }

func (b *Builder) ConfigKey() string { return b.cfg.Key() }

func (b *Builder) Reusable() bool { return b.cfg.Restart != RestartOn }

func (b *Builder) Configuration() *Configuration { return &b.cfg }

// command returns the executable the UCI adapter should spawn.  The
// adapter runs a bare path, so arguments, a working directory or
// stderr capture are packed into a small generated shell script.
func (b *Builder) command() (string, error) {
	c := &b.cfg
	if len(c.Args) == 0 && c.WorkingDir == "" && c.StderrFile == "" {
		return c.Command, nil
	}
	if b.wrapper != "" {
		return b.wrapper, nil
	}

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	if c.WorkingDir != "" {
		fmt.Fprintf(&script, "cd %q || exit 127\n", c.WorkingDir)
	}
	fmt.Fprintf(&script, "exec %q", c.Command)
	for _, a := range c.Args {
		fmt.Fprintf(&script, " %q", a)
	}
	if c.StderrFile != "" {
		fmt.Fprintf(&script, " 2>>%q", c.StderrFile)
	}
	script.WriteString("\n")

	file, err := os.CreateTemp("", "cuteseal-"+sanitize(c.Name)+"-*.sh")
	if err != nil {
		return "", err
	}
	if _, err := file.WriteString(script.String()); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Chmod(0o755); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	b.wrapper = file.Name()
	return b.wrapper, nil
}

// Build spawns a fresh engine process.
func (b *Builder) Build() (cuteseal.Player, error) {
	cmd, err := b.command()
	if err != nil {
		return nil, fmt.Errorf("launching %s: %w", b.cfg.Name, err)
	}
	return newUCIPlayer(&b.cfg, cmd)
}

// Cleanup removes the generated launch script, if any.
func (b *Builder) Cleanup() {
	if b.wrapper != "" {
		os.Remove(b.wrapper)
		b.wrapper = ""
	}
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, filepath.Base(name))
}
