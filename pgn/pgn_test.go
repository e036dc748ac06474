package pgn

import (
	"strings"
	"testing"

	cuteseal "go-cuteseal"
)

func TestWriteVerbose(t *testing.T) {
	g := NewGame()
	g.Event = "Test Event"
	g.Site = "Test Site"
	g.White = "alpha"
	g.Black = "beta"
	g.Round = "1.1"
	g.SetTag("TimeControl", "40/60+0.6")
	g.AddMove(MoveData{San: "e4", Comment: "d=10, sd=12"})
	g.AddMove(MoveData{San: "e5", Comment: "book"})
	g.AddMove(MoveData{San: "Nf3"})
	g.SetResult(cuteseal.MakeResult(cuteseal.NormalResult, cuteseal.White, "Black resigns"))

	var b strings.Builder
	if err := g.Write(&b, Verbose); err != nil {
		t.Fatal(err)
	}
	out := b.String()

	for _, want := range []string{
		`[Event "Test Event"]`,
		`[White "alpha"]`,
		`[Black "beta"]`,
		`[Result "1-0"]`,
		`[TimeControl "40/60+0.6"]`,
		"1. e4 {d=10, sd=12}",
		"e5 {book}",
		"2. Nf3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(strings.TrimRight(out, "\n"), "1-0") {
		t.Errorf("move text must end with the result:\n%s", out)
	}
}

func TestWriteMinimalOmitsComments(t *testing.T) {
	g := NewGame()
	g.AddMove(MoveData{San: "e4", Comment: "d=10"})
	g.SetResult(cuteseal.MakeResult(cuteseal.NoResult, cuteseal.NoSide, ""))

	var b strings.Builder
	if err := g.Write(&b, Minimal); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(b.String(), "{") {
		t.Errorf("minimal mode wrote a comment:\n%s", b.String())
	}
	if !strings.Contains(b.String(), `[Result "*"]`) {
		t.Errorf("unterminated game must carry *:\n%s", b.String())
	}
}

func TestStartingFenTags(t *testing.T) {
	g := NewGame()
	g.SetStartingFen("4k3/8/8/8/8/8/8/4K3 w - - 0 1")

	var b strings.Builder
	if err := g.Write(&b, Verbose); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), `[SetUp "1"]`) ||
		!strings.Contains(b.String(), `[FEN "4k3/8/8/8/8/8/8/4K3 w - - 0 1"]`) {
		t.Errorf("starting FEN tags missing:\n%s", b.String())
	}
}

func TestLineWrapping(t *testing.T) {
	g := NewGame()
	for i := 0; i < 60; i++ {
		g.AddMove(MoveData{San: "Nf3"})
		g.AddMove(MoveData{San: "Nf6"})
	}
	g.SetResult(cuteseal.MakeResult(cuteseal.NormalResult, cuteseal.NoSide, ""))

	var b strings.Builder
	if err := g.Write(&b, Minimal); err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(b.String(), "\n") {
		if len(line) > 80 {
			t.Errorf("line longer than 80 columns: %q", line)
		}
	}
}
