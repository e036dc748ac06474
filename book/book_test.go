package book

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notnil/chess"
)

func TestPositionKey(t *testing.T) {
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 3 7"
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"
	if got := PositionKey(fen); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMapBookPrefersHeavierMove(t *testing.T) {
	b := NewMapBook()
	start := chess.NewGame().Position().String()
	b.Add(start, "e2e4", 1)
	b.Add(start, "d2d4", 3)

	move, ok := b.Move(start)
	if !ok || move != "d2d4" {
		t.Errorf("expected d2d4, got %q (%v)", move, ok)
	}

	// Repeated additions accumulate weight.
	b.Add(start, "e2e4", 1)
	b.Add(start, "e2e4", 1)
	b.Add(start, "e2e4", 1)
	move, _ = b.Move(start)
	if move != "e2e4" {
		t.Errorf("expected e2e4 after reweighting, got %q", move)
	}
}

func TestMapBookMiss(t *testing.T) {
	b := NewMapBook()
	if _, ok := b.Move(chess.NewGame().Position().String()); ok {
		t.Error("empty book returned a move")
	}
}

const testPGN = `[Event "?"]
[Site "?"]
[Date "2023.01.01"]
[Round "1"]
[White "A"]
[Black "B"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 1-0

[Event "?"]
[Site "?"]
[Date "2023.01.01"]
[Round "2"]
[White "A"]
[Black "B"]
[Result "1/2-1/2"]

1. d4 d5 1/2-1/2

`

func TestFromPGN(t *testing.T) {
	b, err := FromPGN(chess.NewScanner(strings.NewReader(testPGN)))
	if err != nil {
		t.Fatal(err)
	}

	start := chess.NewGame().Position().String()
	move, ok := b.Move(start)
	if !ok {
		t.Fatal("no book move for the start position")
	}
	// The won game weighs its white moves double.
	if move != "e2e4" {
		t.Errorf("expected e2e4, got %q", move)
	}
}

func TestSuiteEPD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openings.epd")
	content := strings.Join([]string{
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3",
		"rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b KQkq d3",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSuite(path, EPD, Sequential, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 openings, got %d", s.Len())
	}

	first := s.Next(0)
	if !strings.HasPrefix(first.FEN, "rnbqkbnr/pppppppp/8/8/4P3/") {
		t.Errorf("unexpected first opening %q", first.FEN)
	}
	second := s.Next(0)
	third := s.Next(0)
	if third.FEN != first.FEN {
		t.Errorf("sequential order should wrap around, got %q", third.FEN)
	}
	if second.FEN == first.FEN {
		t.Error("second opening repeated the first")
	}
}

func TestSuitePGN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openings.pgn")
	if err := os.WriteFile(path, []byte(testPGN), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSuite(path, PGN, Sequential, 2, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	o := s.Next(2)
	if len(o.Moves) != 2 {
		t.Fatalf("expected a 2-ply prefix, got %v", o.Moves)
	}
	if o.Moves[0] != "e2e4" || o.Moves[1] != "e7e5" {
		t.Errorf("unexpected prefix %v", o.Moves)
	}
}

func TestSuiteRandomIsSeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openings.epd")
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines,
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3")
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := LoadSuite(path, EPD, Random, 0, 0, 42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadSuite(path, EPD, Random, 0, 0, 42)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 8; i++ {
		if a.Next(0).FEN != b.Next(0).FEN {
			t.Fatal("equal seeds must give an equal opening order")
		}
	}
}

func TestSuiteRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.epd")
	if err := os.WriteFile(path, []byte("not a position\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSuite(path, EPD, Sequential, 0, 0, 1); err == nil {
		t.Error("expected an error for an invalid EPD record")
	}
}
