package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigurationValidate(t *testing.T) {
	c := Configuration{Name: "sf", Command: "/usr/bin/stockfish"}
	if err := c.Validate(); err != nil {
		t.Errorf("valid configuration rejected: %v", err)
	}

	for _, bad := range []Configuration{
		{Command: "/usr/bin/stockfish"},
		{Name: "sf"},
		{Name: "gnu", Command: "gnuchess", Protocol: "xboard"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("invalid configuration accepted: %+v", bad)
		}
	}
}

func TestConfigurationKey(t *testing.T) {
	a := Configuration{Name: "a", Command: "engine", Options: map[string]string{
		"Hash": "128", "Threads": "2",
	}}
	b := Configuration{Name: "b", Command: "engine", Options: map[string]string{
		"Threads": "2", "Hash": "128",
	}}
	if a.Key() != b.Key() {
		t.Error("option order must not change the reuse key")
	}

	c := Configuration{Name: "c", Command: "engine", Options: map[string]string{
		"Hash": "256",
	}}
	if a.Key() == c.Key() {
		t.Error("different options must give different reuse keys")
	}
}

func TestParseRestartMode(t *testing.T) {
	for spec, want := range map[string]RestartMode{
		"":     RestartAuto,
		"auto": RestartAuto,
		"on":   RestartOn,
		"off":  RestartOff,
	} {
		got, err := ParseRestartMode(spec)
		if err != nil || got != want {
			t.Errorf("ParseRestartMode(%q) = %v, %v", spec, got, err)
		}
	}
	if _, err := ParseRestartMode("sometimes"); err == nil {
		t.Error("unknown restart mode accepted")
	}
}

func TestLoadConfigurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engines.json")
	doc := `[
  {
    "name": "Stockfish",
    "command": "/usr/bin/stockfish",
    "protocol": "uci",
    "options": [
      {"name": "Hash", "value": 128},
      {"name": "SyzygyPath", "value": "/tb"}
    ]
  },
  {
    "name": "Lc0",
    "command": "/usr/bin/lc0",
    "workingDirectory": "/opt/lc0",
    "protocol": "uci"
  }
]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadConfigurations(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 engines, got %d", len(configs))
	}

	sf, err := FindConfiguration(configs, "Stockfish")
	if err != nil {
		t.Fatal(err)
	}
	if sf.Options["Hash"] != "128" || sf.Options["SyzygyPath"] != "/tb" {
		t.Errorf("options not parsed: %v", sf.Options)
	}

	if _, err := FindConfiguration(configs, "Komodo"); err == nil {
		t.Error("unknown engine lookup must fail")
	}
}

func TestBuilderWrapperScript(t *testing.T) {
	b := NewBuilder(Configuration{
		Name:    "wrapped",
		Command: "/bin/engine",
		Args:    []string{"--uci", "--threads=2"},
	})
	defer b.Cleanup()

	cmd, err := b.command()
	if err != nil {
		t.Fatal(err)
	}
	if cmd == "/bin/engine" {
		t.Fatal("arguments require a wrapper script")
	}

	data, err := os.ReadFile(cmd)
	if err != nil {
		t.Fatal(err)
	}
	script := string(data)
	for _, want := range []string{"#!/bin/sh", `"/bin/engine"`, `"--uci"`, `"--threads=2"`} {
		if !strings.Contains(script, want) {
			t.Errorf("wrapper is missing %q:\n%s", want, script)
		}
	}

	// Plain commands need no wrapper.
	plain := NewBuilder(Configuration{Name: "plain", Command: "/bin/engine"})
	cmd, err = plain.command()
	if err != nil {
		t.Fatal(err)
	}
	if cmd != "/bin/engine" {
		t.Errorf("unexpected wrapper for a plain command: %s", cmd)
	}
}
