package eco

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notnil/chess"
)

const catalogPGN = `[ECO "C20"]
[Opening "King's Pawn Game"]
[Result "*"]

1. e4 e5 *

[ECO "C60"]
[Opening "Ruy Lopez"]
[Variation "Main line"]
[Result "*"]

1. e4 e5 2. Nf3 Nc6 3. Bb5 *

`

func loadCatalog(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eco.pgn")
	if err := os.WriteFile(path, []byte(catalogPGN), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Load(path); err != nil {
		t.Fatal(err)
	}
}

// fensOf plays SAN moves and collects the position after each ply.
func fensOf(t *testing.T, sans ...string) []string {
	t.Helper()
	g := chess.NewGame()
	var fens []string
	for _, san := range sans {
		if err := g.MoveStr(san); err != nil {
			t.Fatal(err)
		}
		fens = append(fens, g.Position().String())
	}
	return fens
}

func TestClassifyDeepestLine(t *testing.T) {
	loadCatalog(t)

	info, ok := Classify(fensOf(t, "e4", "e5", "Nf3", "Nc6", "Bb5", "a6"))
	if !ok {
		t.Fatal("no classification found")
	}
	if info.Code != "C60" || info.Variation != "Main line" {
		t.Errorf("expected the Ruy Lopez line, got %+v", info)
	}
}

func TestClassifyShallowLine(t *testing.T) {
	loadCatalog(t)

	info, ok := Classify(fensOf(t, "e4", "e5", "d4"))
	if !ok {
		t.Fatal("no classification found")
	}
	if info.Code != "C20" {
		t.Errorf("expected C20, got %+v", info)
	}
}

func TestClassifyUnknown(t *testing.T) {
	loadCatalog(t)

	if info, ok := Classify(fensOf(t, "a3")); ok {
		t.Errorf("expected no classification, got %+v", info)
	}
}
