// Tournament file, schedule and crosstable
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
	"sort"
	"strings"
	"time"

	cuteseal "go-cuteseal"
	"go-cuteseal/eco"
	"go-cuteseal/game"
)

// ProgressEntry is one matchProgress record of the tournament file.
type ProgressEntry struct {
	Index              int    `json:"index"`
	White              string `json:"white"`
	Black              string `json:"black"`
	StartTime          string `json:"startTime,omitempty"`
	Result             string `json:"result,omitempty"`
	TerminationDetails string `json:"terminationDetails,omitempty"`
	GameDuration       string `json:"gameDuration,omitempty"`
	FinalFen           string `json:"finalFen,omitempty"`
	ECO                string `json:"ECO,omitempty"`
	Opening            string `json:"opening,omitempty"`
	Variation          string `json:"variation,omitempty"`
	PlyCount           int    `json:"plyCount,omitempty"`
	WhiteEval          string `json:"whiteEval,omitempty"`
	BlackEval          string `json:"blackEval,omitempty"`
}

// TournamentFileData is the persisted document; it is both output and
// resume input.
type TournamentFileData struct {
	TournamentSettings map[string]interface{} `json:"tournamentSettings"`
	EngineSettings     interface{}            `json:"engineSettings,omitempty"`
	MatchProgress      []ProgressEntry        `json:"matchProgress"`
	Strikes            map[string]int         `json:"strikes"`
}

// LoadTournamentFile reads a persisted tournament for resuming.
func LoadTournamentFile(path string) (*TournamentFileData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf TournamentFileData
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &tf, nil
}

// SetEngineSettings records a document from the front end; it is
// carried through to the tournament file verbatim.
func (t *Tournament) SetEngineSettings(doc interface{}) {
	t.engineSettings = doc
}

// SetProgress preloads match progress from a resumed tournament.
func (t *Tournament) SetProgress(progress []ProgressEntry) {
	t.progress = progress
}

// Progress exposes the recorded match progress.
func (t *Tournament) Progress() []ProgressEntry {
	return t.progress
}

func (t *Tournament) settingsMap() map[string]interface{} {
	s := &t.Settings
	m := map[string]interface{}{
		"type":               t.scheduler.Type(),
		"name":               s.Name,
		"site":               s.Site,
		"variant":            s.Variant,
		"concurrency":        s.Concurrency,
		"gamesPerEncounter":  s.GamesPerEncounter,
		"roundMultiplier":    s.RoundMultiplier,
		"openingRepetitions": s.OpeningRepetitions,
		"openings":           s.OpeningsSpec,
		"bookmode":           s.BookMode,
		"drawAdjudication": fmt.Sprintf("movenumber=%d movecount=%d score=%d",
			s.Adjudication.DrawMoveNumber, s.Adjudication.DrawMoveCount,
			s.Adjudication.DrawScore),
		"resignAdjudication": fmt.Sprintf("movecount=%d score=%d",
			s.Adjudication.ResignMoveCount, s.Adjudication.ResignScore),
		"tb":                s.TBPath,
		"tbPieces":          s.TBPieces,
		"tbIgnore50":        s.TBIgnore50,
		"ratingInterval":    s.RatingInterval,
		"pgnOutput":         s.PgnOut,
		"pgnOutMode":        int(s.PgnOutMode),
		"livePgnOutput":     s.LivePgnOut,
		"livePgnOutMode":    int(s.LivePgnOutMode),
		"epdOutput":         s.EpdOut,
		"pgnCleanupEnabled": s.PgnCleanup,
		"swapSides":         s.SwapSides,
		"bergerSchedule":    s.BergerSchedule,
		"eventDate":         s.EventDate,
		"srand":             s.Srand,
		"startDelay":        s.StartDelay.Milliseconds(),
		"eloKfactor":        s.EloKfactor,
		"strikes":           s.Strikes,
	}
	if s.Sprt != nil {
		m["sprt"] = fmt.Sprintf("elo0=%g elo1=%g alpha=%g beta=%g",
			s.Sprt.Elo0, s.Sprt.Elo1, s.Sprt.Alpha, s.Sprt.Beta)
	} else {
		m["sprt"] = ""
	}
	return m
}

func (t *Tournament) strikesMap() map[string]int {
	m := make(map[string]int, t.base.PlayerCount())
	for i := 0; i < t.base.PlayerCount(); i++ {
		p := t.base.PlayerAt(i)
		m[p.Name] = p.TotalStrikes()
	}
	return m
}

// writeTournamentFile rewrites the whole document.  A failure mid-run
// only warns; the next write retries.
func (t *Tournament) writeTournamentFile() {
	if t.TournamentFile == "" {
		return
	}

	tf := TournamentFileData{
		TournamentSettings: t.settingsMap(),
		EngineSettings:     t.engineSettings,
		MatchProgress:      t.progress,
		Strikes:            t.strikesMap(),
	}

	file, err := os.Create(t.TournamentFile)
	if err != nil {
		log.Printf("Cannot open tournament file: %v", err)
		return
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "    ")
	if err := enc.Encode(&tf); err != nil {
		log.Printf("Cannot write tournament file: %v", err)
	}
}

// recordGameStart registers a started game as in progress.  A
// restarted game drops any stale trailing records.
func (t *Tournament) recordGameStart(number int, white, black string) {
	if len(t.progress) >= number {
		log.Printf("Game %d already exists, deleting", number)
		t.progress = t.progress[:number-1]
	}
	t.progress = append(t.progress, ProgressEntry{
		Index:              number,
		White:              white,
		Black:              black,
		StartTime:          time.Now().UTC().Format("15:04:05 on 2006.01.02"),
		Result:             "*",
		TerminationDetails: "in progress",
	})

	t.writeTournamentFile()
	t.generateSchedule()
	t.generateCrossTable()
}

func (t *Tournament) recordGameSkip(number int, white, black string) {
	if len(t.progress) >= number {
		t.progress = t.progress[:number-1]
	}
	t.progress = append(t.progress, ProgressEntry{
		Index:              number,
		White:              white,
		Black:              black,
		TerminationDetails: "Skipped",
	})

	t.writeTournamentFile()
	t.generateSchedule()
	t.generateCrossTable()
}

func (t *Tournament) recordGameFinish(g *game.ChessGame, data *gameData) {
	if len(t.progress) < data.number {
		log.Printf("Game %d doesn't exist", data.number)
		return
	}
	entry := &t.progress[data.number-1]
	rec := g.Pgn()
	result := g.Result()

	entry.Result = result.String()
	entry.TerminationDetails = result.Termination()
	entry.PlyCount = (rec.PlyCount() + 1) / 2
	entry.GameDuration = formatDuration(rec.Duration())
	entry.FinalFen = g.FinalFen()

	if info, ok := eco.Classify(g.Fens()); ok {
		entry.ECO = info.Code
		entry.Opening = info.Opening
		entry.Variation = info.Variation
		rec.SetTag("ECO", info.Code)
		if info.Opening != "" {
			rec.SetTag("Opening", info.Opening)
		}
		if info.Variation != "" {
			rec.SetTag("Variation", info.Variation)
		}
	}

	entry.WhiteEval = cuteseal.ScoreString(g.LastEval(cuteseal.White).Score)
	black := cuteseal.ScoreString(g.LastEval(cuteseal.Black).Score)
	// The black evaluation is published from white's point of view.
	if strings.HasPrefix(black, "-") {
		black = black[1:]
	} else if black != "0.00" {
		black = "-" + black
	}
	entry.BlackEval = black

	t.writeTournamentFile()
	t.generateSchedule()
	t.generateCrossTable()
}

func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// ScheduleRow is one game of the schedule output.
type ScheduleRow struct {
	Game        int    `json:"Game"`
	White       string `json:"White"`
	Black       string `json:"Black"`
	Result      string `json:"Result,omitempty"`
	Termination string `json:"Termination,omitempty"`
	Moves       int    `json:"Moves,omitempty"`
	WhiteEv     string `json:"WhiteEv,omitempty"`
	BlackEv     string `json:"BlackEv,omitempty"`
	Start       string `json:"Start,omitempty"`
	Duration    string `json:"Duration,omitempty"`
	ECO         string `json:"ECO,omitempty"`
	FinalFen    string `json:"FinalFen,omitempty"`
	Opening     string `json:"Opening,omitempty"`
}

func (t *Tournament) Schedule() []ScheduleRow {
	pairings := t.scheduler.Pairings()
	count := len(pairings)
	if len(t.progress) > count {
		count = len(t.progress)
	}

	disqualified := make(map[string]bool)
	if t.Strikes > 0 {
		for i := 0; i < t.base.PlayerCount(); i++ {
			p := t.base.PlayerAt(i)
			disqualified[p.Name] = p.TotalStrikes() >= t.Strikes
		}
	}

	rows := make([]ScheduleRow, 0, count)
	for i := 0; i < count; i++ {
		row := ScheduleRow{Game: i + 1}
		if i < len(t.progress) {
			e := t.progress[i]
			opening := e.Opening
			if e.Variation != "" {
				opening += ", " + e.Variation
			}
			row.White = e.White
			row.Black = e.Black
			row.Result = e.Result
			row.Termination = e.TerminationDetails
			row.Moves = e.PlyCount
			row.WhiteEv = e.WhiteEval
			row.BlackEv = e.BlackEval
			row.Start = e.StartTime
			row.Duration = e.GameDuration
			row.ECO = e.ECO
			row.FinalFen = e.FinalFen
			row.Opening = opening
		} else if i < len(pairings) {
			row.White = pairings[i][0]
			row.Black = pairings[i][1]
			if disqualified[row.White] || disqualified[row.Black] {
				row.Termination = "Canceled"
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// generateSchedule writes the schedule as JSON (atomically) and as an
// aligned text table.
func (t *Tournament) generateSchedule() {
	if t.TournamentFile == "" {
		return
	}
	base := strings.TrimSuffix(t.TournamentFile, ".json") + "_schedule"
	rows := t.Schedule()
	if len(rows) == 0 {
		return
	}

	err := atomicWrite(base+".json", func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	})
	if err != nil {
		log.Printf("Cannot write schedule JSON: %v", err)
	}

	maxName, maxTerm := 5, 11
	for _, r := range rows {
		if len(r.White) > maxName {
			maxName = len(r.White)
		}
		if len(r.Black) > maxName {
			maxName = len(r.Black)
		}
		if len(r.Termination) > maxTerm {
			maxTerm = len(r.Termination)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%3s %*s %-3s %-*s %-*s %3s %7s %-7s %-22s %8s %3s %s\n",
		"Nr", maxName, "White", "Res", maxName, "Black",
		maxTerm, "Termination", "Mov", "WhiteEv", "BlackEv",
		"Start", "Duration", "ECO", "Opening")
	for _, r := range rows {
		res := r.Result
		fmt.Fprintf(&b, "%3d %*s %-3s %-*s %-*s %3d %7s %-7s %-22s %8s %3s %s\n",
			r.Game, maxName, r.White, res, maxName, r.Black,
			maxTerm, r.Termination, r.Moves, r.WhiteEv, r.BlackEv,
			r.Start, r.Duration, r.ECO, r.Opening)
	}
	if err := os.WriteFile(base+".txt", []byte(b.String()), 0o644); err != nil {
		log.Printf("Cannot write schedule text: %v", err)
	}
}

// crossData accumulates one engine's crosstable line.
type crossData struct {
	Name         string
	Abbrev       string
	Rating       int
	Score        float64
	Neustadtl    float64
	GamesAsWhite int
	GamesAsBlack int
	WinsAsWhite  int
	WinsAsBlack  int
	LossAsWhite  int
	LossAsBlack  int
	Strikes      int
	Disqualified bool
	head2head    map[string]int
	results      map[string][]crossSlot
	scoreAgainst map[string]float64
}

type crossSlot struct {
	Game   int     `json:"Game"`
	Result float64 `json:"Result"`
}

// CrosstableRow is the JSON shape of one ranked engine.
type CrosstableRow struct {
	Name         string                 `json:"-"`
	Rank         int                    `json:"Rank"`
	Abbreviation string                 `json:"Abbreviation"`
	Rating       int                    `json:"Rating"`
	Score        float64                `json:"Score"`
	GamesAsWhite int                    `json:"GamesAsWhite"`
	GamesAsBlack int                    `json:"GamesAsBlack"`
	WinsAsWhite  int                    `json:"WinsAsWhite"`
	WinsAsBlack  int                    `json:"WinsAsBlack"`
	LossAsWhite  int                    `json:"LossAsWhite"`
	LossAsBlack  int                    `json:"LossAsBlack"`
	Neustadtl    float64                `json:"Neustadtl"`
	Strikes      int                    `json:"Strikes"`
	Performance  float64                `json:"Performance"`
	Elo          float64                `json:"Elo"`
	Results      map[string][]crossSlot `json:"Results"`
}

// rankLess is the crosstable comparator: disqualified last, then
// score, strikes, games, head-to-head, wins, Neustadtl.
func rankLess(a, b *crossData) bool {
	if a.Disqualified != b.Disqualified {
		return b.Disqualified
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Strikes != b.Strikes {
		return a.Strikes < b.Strikes
	}
	aGames := a.GamesAsWhite + a.GamesAsBlack
	bGames := b.GamesAsWhite + b.GamesAsBlack
	if aGames != bGames {
		return aGames < bGames
	}
	if h := a.head2head[b.Name]; h != 0 {
		return h > 0
	}
	aWins := a.WinsAsWhite + a.WinsAsBlack
	bWins := b.WinsAsWhite + b.WinsAsBlack
	if aWins != bWins {
		return aWins > bWins
	}
	return a.Neustadtl > b.Neustadtl
}

// Crosstable computes the ranked crosstable from the recorded
// progress.
func (t *Tournament) Crosstable() []CrosstableRow {
	table := make(map[string]*crossData)
	var abbrevs []string

	for i := 0; i < t.base.PlayerCount(); i++ {
		p := t.base.PlayerAt(i)
		cd := &crossData{
			Name:         p.Name,
			Rating:       p.Rating,
			Strikes:      p.TotalStrikes(),
			Disqualified: t.Strikes > 0 && p.TotalStrikes() >= t.Strikes,
			head2head:    make(map[string]int),
			results:      make(map[string][]crossSlot),
			scoreAgainst: make(map[string]float64),
		}

		// Two-letter abbreviations, disambiguated by the next
		// letters of the name.
		n := 1
		abbrev := strings.ToUpper(p.Name[:1])
		pick := func() string {
			if len(p.Name) > n {
				return strings.ToLower(p.Name[n : n+1])
			}
			return " "
		}
		abbrev += pick()
		for contains(abbrevs, abbrev) && len(p.Name) > n {
			n++
			abbrev = abbrev[:1] + pick()
		}
		cd.Abbrev = abbrev
		abbrevs = append(abbrevs, abbrev)
		table[p.Name] = cd
	}

	for i, e := range t.progress {
		white, haveWhite := table[e.White]
		black, haveBlack := table[e.Black]
		if !haveWhite || !haveBlack {
			continue
		}
		disq := white.Disqualified || black.Disqualified

		var ws, bs float64
		switch e.Result {
		case "1-0":
			ws, bs = 1, 0
			if !disq {
				white.WinsAsWhite++
				black.LossAsBlack++
				white.head2head[black.Name]++
				black.head2head[white.Name]--
			}
		case "0-1":
			ws, bs = 0, 1
			if !disq {
				black.WinsAsBlack++
				white.LossAsWhite++
				black.head2head[white.Name]++
				white.head2head[black.Name]--
			}
		case "1/2-1/2":
			ws, bs = 0.5, 0.5
		default:
			continue // in progress or skipped
		}

		if !disq {
			white.Score += ws
			black.Score += bs
			white.scoreAgainst[black.Name] += ws
			black.scoreAgainst[white.Name] += bs
		}
		white.GamesAsWhite++
		black.GamesAsBlack++
		white.results[black.Name] = append(white.results[black.Name],
			crossSlot{Game: i + 1, Result: ws})
		black.results[white.Name] = append(black.results[white.Name],
			crossSlot{Game: i + 1, Result: bs})
	}

	ranked := make([]*crossData, 0, len(table))
	for _, cd := range table {
		cd := cd
		ranked = append(ranked, cd)
	}
	// Neustadtl: points scored against each opponent, weighted by
	// the opponent's total.
	for _, cd := range ranked {
		for opp, pts := range cd.scoreAgainst {
			cd.Neustadtl += pts * table[opp].Score
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(ranked[i], ranked[j])
	})

	rows := make([]CrosstableRow, 0, len(ranked))
	for rank, cd := range ranked {
		games := cd.GamesAsWhite + cd.GamesAsBlack
		wins := cd.WinsAsWhite + cd.WinsAsBlack
		losses := cd.LossAsWhite + cd.LossAsBlack
		draws := games - wins - losses
		perf := 0.0
		if games > 0 {
			perf = cd.Score / float64(games) * 100
		}
		elo := NewElo(wins, losses, draws)

		rows = append(rows, CrosstableRow{
			Name:         cd.Name,
			Rank:         rank + 1,
			Abbreviation: cd.Abbrev,
			Rating:       cd.Rating,
			Score:        cd.Score,
			GamesAsWhite: cd.GamesAsWhite,
			GamesAsBlack: cd.GamesAsBlack,
			WinsAsWhite:  cd.WinsAsWhite,
			WinsAsBlack:  cd.WinsAsBlack,
			LossAsWhite:  cd.LossAsWhite,
			LossAsBlack:  cd.LossAsBlack,
			Neustadtl:    cd.Neustadtl,
			Strikes:      cd.Strikes,
			Performance:  perf,
			Elo:          elo.Diff(),
			Results:      cd.results,
		})
	}
	return rows
}

func (t *Tournament) generateCrossTable() {
	if t.TournamentFile == "" {
		return
	}

	rows := t.Crosstable()
	doc := make(map[string]CrosstableRow, len(rows))
	for _, r := range rows {
		doc[r.Name] = r
	}

	path := strings.TrimSuffix(t.TournamentFile, ".json") + "_crosstable.json"
	err := atomicWrite(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	})
	if err != nil {
		log.Printf("Cannot write crosstable JSON: %v", err)
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
