// Entry point
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

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/notnil/chess"
	"github.com/pkg/profile"

	cuteseal "go-cuteseal"
	"go-cuteseal/book"
	cmd "go-cuteseal/cmd"
	"go-cuteseal/db"
	"go-cuteseal/eco"
	"go-cuteseal/engine"
	"go-cuteseal/game"
	"go-cuteseal/pgn"
	"go-cuteseal/sched"
	"go-cuteseal/tourn"
	"go-cuteseal/web"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitUsage  = 127
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [options]

Run an automated engine tournament.  Selected options:

  -engine <opts...>     Add an engine (conf=, name=, cmd=, dir=, arg=,
                        proto=, initstr=, restart=, trust, tc=, st=,
                        timemargin=, book=, bookdepth=, depth=, nodes=,
                        ponder, option.<name>=<value>, stderr=)
  -each <opts...>       Apply the options to every engine
  -tournament <type>    round-robin, swiss-tcec, knockout or gauntlet
  -concurrency <n>      Number of games to run in parallel
  -games <n> -rounds <n> -repeat <n>
  -draw movenumber=<n> movecount=<n> score=<cp>
  -resign movecount=<n> score=<cp>
  -maxmoves <n>         Adjudicate very long games as draws
  -openings file=<file> format=epd|pgn order=sequential|random plies=<n> start=<n>
  -sprt elo0=<e> elo1=<e> alpha=<a> beta=<b>
  -tournamentfile <file> [-resume]
  -pgnout <file> [min]  -epdout <file>  -livepgnout <file> [min]
  -event <name> -site <name> -eventdate <date>
  -srand <n> -seeds <n> -wait <ms> -noswap -recover
  -bergerschedule -strikes <n> -kfactor <f> -ratinginterval <n>
  -conf <file> -debug -dump-config -profile
`, os.Args[0])
}

// engineSpec collects one -engine (or -each) group before it is
// resolved into a configuration.
type engineSpec struct {
	tokens []string
}

// args is a cursor over the raw argument list.
type args struct {
	list []string
	pos  int
}

func (a *args) next() (string, bool) {
	if a.pos >= len(a.list) {
		return "", false
	}
	s := a.list[a.pos]
	a.pos++
	return s, true
}

func (a *args) peek() (string, bool) {
	if a.pos >= len(a.list) {
		return "", false
	}
	return a.list[a.pos], true
}

// value fetches a flag's mandatory value.
func (a *args) value(flag string) string {
	s, ok := a.next()
	if !ok {
		fatalUsage("missing value for %s", flag)
	}
	return s
}

// group collects tokens until the next flag.
func (a *args) group() []string {
	var out []string
	for {
		s, ok := a.peek()
		if !ok || strings.HasPrefix(s, "-") {
			return out
		}
		a.pos++
		out = append(out, s)
	}
}

func fatalUsage(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", v...)
	usage()
	os.Exit(exitUsage)
}

func fatalConfig(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", v...)
	os.Exit(exitConfig)
}

func atoiOr(flag, s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fatalConfig("invalid number for %s: %q", flag, s)
	}
	return n
}

// keyvals parses "key=value" tokens into a map; bare words map to "".
func keyvals(tokens []string) map[string]string {
	m := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		if i := strings.IndexByte(tok, '='); i >= 0 {
			m[tok[:i]] = tok[i+1:]
		} else {
			m[tok] = ""
		}
	}
	return m
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var (
		a = args{list: argv}

		engines     []engineSpec
		each        []string
		settings    tourn.Settings
		confPath    = cmd.DefConf
		debugMode   bool
		dumpConf    bool
		profiling   bool
		resume      bool
		games       = 0
		enginesJSON = "engines.json"
	)
	settings.SwapSides = true
	settings.PgnCleanup = true
	settings.PgnWriteUnfinished = true
	settings.Variant = "standard"
	settings.PgnOutMode = pgn.Verbose
	settings.LivePgnOutMode = pgn.Verbose
	settings.LivePgnFormat = true
	settings.LiveJsonFormat = true
	settings.Srand = time.Now().UnixNano()

	var (
		openingsOpts map[string]string
	)

	for {
		flag, ok := a.next()
		if !ok {
			break
		}

		switch flag {
		case "-engine":
			engines = append(engines, engineSpec{tokens: a.group()})
		case "-each":
			each = append(each, a.group()...)
		case "-variant":
			settings.Variant = a.value(flag)
		case "-concurrency":
			settings.Concurrency = atoiOr(flag, a.value(flag))
		case "-draw":
			opts := keyvals(a.group())
			settings.Adjudication.DrawMoveNumber = atoiOr(flag, opts["movenumber"])
			settings.Adjudication.DrawMoveCount = atoiOr(flag, opts["movecount"])
			settings.Adjudication.DrawScore = atoiOr(flag, opts["score"])
		case "-resign":
			opts := keyvals(a.group())
			settings.Adjudication.ResignMoveCount = atoiOr(flag, opts["movecount"])
			settings.Adjudication.ResignScore = atoiOr(flag, opts["score"])
		case "-maxmoves":
			settings.Adjudication.MaxMoves = atoiOr(flag, a.value(flag))
		case "-tcecrules":
			settings.Adjudication.Tcec = true
		case "-tb":
			settings.TBPath = a.value(flag)
		case "-tbpieces":
			settings.TBPieces = atoiOr(flag, a.value(flag))
		case "-tbignore50":
			settings.TBIgnore50 = true
		case "-games":
			games = atoiOr(flag, a.value(flag))
		case "-rounds":
			settings.RoundMultiplier = atoiOr(flag, a.value(flag))
		case "-repeat":
			settings.OpeningRepetitions = atoiOr(flag, a.value(flag))
		case "-openings":
			openingsOpts = keyvals(a.group())
		case "-bookdepth":
			settings.OpeningDepth = atoiOr(flag, a.value(flag))
		case "-tournament":
			settings.Type = a.value(flag)
		case "-tournamentfile":
			settings.TournamentFile = a.value(flag)
		case "-resume":
			resume = true
		case "-sprt":
			opts := keyvals(a.group())
			sprt := &tourn.SprtSettings{}
			var err error
			if sprt.Elo0, err = strconv.ParseFloat(opts["elo0"], 64); err != nil {
				fatalConfig("invalid -sprt elo0")
			}
			if sprt.Elo1, err = strconv.ParseFloat(opts["elo1"], 64); err != nil {
				fatalConfig("invalid -sprt elo1")
			}
			if sprt.Alpha, err = strconv.ParseFloat(opts["alpha"], 64); err != nil {
				fatalConfig("invalid -sprt alpha")
			}
			if sprt.Beta, err = strconv.ParseFloat(opts["beta"], 64); err != nil {
				fatalConfig("invalid -sprt beta")
			}
			settings.Sprt = sprt
		case "-pgnout":
			group := append([]string{a.value(flag)}, a.group()...)
			settings.PgnOut = group[0]
			if len(group) > 1 && group[1] == "min" {
				settings.PgnOutMode = pgn.Minimal
			}
		case "-epdout":
			settings.EpdOut = a.value(flag)
		case "-livepgnout":
			group := append([]string{a.value(flag)}, a.group()...)
			settings.LivePgnOut = strings.TrimSuffix(group[0], ".pgn")
			if len(group) > 1 && group[1] == "min" {
				settings.LivePgnOutMode = pgn.Minimal
			}
		case "-srand":
			settings.Srand = int64(atoiOr(flag, a.value(flag)))
		case "-seeds":
			settings.Seeds = atoiOr(flag, a.value(flag))
		case "-site":
			settings.Site = a.value(flag)
		case "-event":
			settings.Name = a.value(flag)
		case "-eventdate":
			when, err := dateparse.ParseAny(a.value(flag))
			if err != nil {
				fatalConfig("invalid -eventdate: %v", err)
			}
			settings.EventDate = when.Format("2006.01.02")
		case "-wait":
			settings.StartDelay = time.Duration(atoiOr(flag, a.value(flag))) * time.Millisecond
		case "-noswap":
			settings.SwapSides = false
		case "-recover":
			settings.Recover = true
		case "-bergerschedule":
			settings.BergerSchedule = true
		case "-kfactor":
			f, err := strconv.ParseFloat(a.value(flag), 64)
			if err != nil {
				fatalConfig("invalid -kfactor")
			}
			settings.EloKfactor = f
		case "-strikes":
			settings.Strikes = atoiOr(flag, a.value(flag))
		case "-ratinginterval":
			settings.RatingInterval = atoiOr(flag, a.value(flag))
		case "-enginesfile":
			enginesJSON = a.value(flag)
		case "-conf":
			confPath = a.value(flag)
		case "-debug":
			debugMode = true
		case "-dump-config":
			dumpConf = true
		case "-profile":
			profiling = true
		case "-help", "--help", "-h":
			usage()
			return exitOK
		default:
			fatalUsage("unknown option %s", flag)
		}
	}

	if debugMode {
		cuteseal.Debug.SetOutput(os.Stderr)
	}

	conf, err := cmd.LoadConf(confPath)
	if err != nil {
		fatalConfig("cannot load configuration: %v", err)
	}
	if dumpConf {
		if err := conf.Dump(os.Stdout); err != nil {
			log.Fatalln("Failed to dump configuration:", err)
		}
		return exitOK
	}
	if profiling {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}
	if conf.Game.Sentinel != "" {
		settings.SentinelFile = conf.Game.Sentinel
	}
	if conf.Game.EcoFile != "" {
		if err := eco.Load(conf.Game.EcoFile); err != nil {
			log.Printf("Cannot load ECO catalog: %v", err)
		}
	}

	// Resolve engines
	var stored []engine.Configuration
	if _, err := os.Stat(enginesJSON); err == nil {
		stored, err = engine.LoadConfigurations(enginesJSON)
		if err != nil {
			fatalConfig("%v", err)
		}
	}

	players := make([]*sched.Player, 0, len(engines))
	for _, spec := range engines {
		tokens := append(append([]string(nil), each...), spec.tokens...)
		player, err := resolveEngine(tokens, stored)
		if err != nil {
			fatalConfig("%v", err)
		}
		players = append(players, player)
	}
	if len(players) < 2 {
		fatalConfig("at least two engines are required")
	}

	// Opening suite
	if openingsOpts != nil {
		settings.OpeningsSpec = openingsOpts["file"]
		format := book.EPD
		if openingsOpts["format"] == "pgn" {
			format = book.PGN
		}
		order := book.Sequential
		if openingsOpts["order"] == "random" {
			order = book.Random
		}
		plies, start := 0, 0
		if v := openingsOpts["plies"]; v != "" {
			plies = atoiOr("-openings plies", v)
		}
		if v := openingsOpts["start"]; v != "" {
			start = atoiOr("-openings start", v)
		}
		suite, err := book.LoadSuite(openingsOpts["file"], format, order,
			plies, start, settings.Srand)
		if err != nil {
			fatalConfig("%v", err)
		}
		settings.Openings = suite
	}

	base := sched.NewBase(players)
	if games > 0 {
		settings.GamesPerEncounter = games
	}

	t, err := tourn.New(settings, base)
	if err != nil {
		fatalConfig("%v", err)
	}
	t.SetEngineSettings(engineSettingsDoc(engines, each))

	if resume {
		if settings.TournamentFile == "" {
			fatalConfig("-resume needs -tournamentfile")
		}
		tf, err := tourn.LoadTournamentFile(settings.TournamentFile)
		if err != nil {
			fatalConfig("cannot resume: %v", err)
		}
		decided := 0
		for i, e := range tf.MatchProgress {
			if e.Result == "" || e.Result == "*" {
				break
			}
			t.Scheduler().AddResumeResult(i, e.Result)
			decided++
		}
		t.ResumeGameNumber = decided
		t.SetProgress(tf.MatchProgress[:decided])
		log.Printf("Resuming after %d finished games", decided)
	}

	// Ambient managers
	st := cmd.MakeState()
	var archive *db.DB
	if conf.Database.File != "" {
		archive, err = db.Open(conf.Database.File)
		if err != nil {
			fatalConfig("cannot open database: %v", err)
		}
		st.Register(archive)
	}
	if conf.Web.Enabled {
		st.Register(web.New(t))
		t.OnLiveUpdate = func(g *game.ChessGame, number int) {
			web.Broadcast(map[string]interface{}{
				"game":   number,
				"fen":    g.FinalFen(),
				"result": g.Result().String(),
			})
		}
	}
	st.Launch(conf)
	defer st.Shutdown()

	err = t.Start(st.Context)

	if archive != nil {
		tid := archive.RegisterTournament(context.Background(),
			settings.Name, t.Scheduler().Type())
		archive.Attach(context.Background(), t, tid)()
	}

	if err != nil {
		log.Print(err)
		return exitConfig
	}
	return exitOK
}

// resolveEngine turns an -engine token group into a tournament
// player.
func resolveEngine(tokens []string, stored []engine.Configuration) (*sched.Player, error) {
	cfg := engine.Configuration{
		Protocol: "uci",
		Options:  make(map[string]string),
	}
	var (
		tcSpec     string
		bookFile   string
		bookDepth  = 10
		moveTime   float64
		timeMargin int
		depth      int
		nodes      int64
	)

	for _, tok := range tokens {
		key, value := tok, ""
		if i := strings.IndexByte(tok, '='); i >= 0 {
			key, value = tok[:i], tok[i+1:]
		}

		switch {
		case key == "conf":
			found, err := engine.FindConfiguration(stored, value)
			if err != nil {
				return nil, err
			}
			base := *found
			base.Options = make(map[string]string)
			for k, v := range found.Options {
				base.Options[k] = v
			}
			base.Restart = cfg.Restart
			cfg = base
		case key == "name":
			cfg.Name = value
		case key == "cmd":
			cfg.Command = value
		case key == "dir":
			cfg.WorkingDir = value
		case key == "arg":
			cfg.Args = append(cfg.Args, value)
		case key == "proto":
			cfg.Protocol = value
		case key == "initstr":
			cfg.InitStrs = append(cfg.InitStrs, value)
		case key == "restart":
			mode, err := engine.ParseRestartMode(value)
			if err != nil {
				return nil, err
			}
			cfg.Restart = mode
		case key == "trust":
			cfg.TrustResults = true
		case key == "tc":
			tcSpec = value
		case key == "st":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid st=%q", value)
			}
			moveTime = f
		case key == "timemargin":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid timemargin=%q", value)
			}
			timeMargin = n
		case key == "book":
			bookFile = value
		case key == "bookdepth":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid bookdepth=%q", value)
			}
			bookDepth = n
		case key == "whitepov":
			cfg.WhitePOV = true
		case key == "depth":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid depth=%q", value)
			}
			depth = n
		case key == "nodes":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid nodes=%q", value)
			}
			nodes = n
		case key == "ponder":
			cfg.Ponder = true
		case key == "rating":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid rating=%q", value)
			}
			cfg.Rating = n
		case key == "stderr":
			cfg.StderrFile = value
		case strings.HasPrefix(key, "option."):
			cfg.Options[strings.TrimPrefix(key, "option.")] = value
		default:
			return nil, fmt.Errorf("unknown engine option %q", tok)
		}
	}

	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var tc *cuteseal.TimeControl
	switch {
	case tcSpec != "":
		parsed, err := cuteseal.ParseTimeControl(tcSpec)
		if err != nil {
			return nil, err
		}
		tc = parsed
	case moveTime > 0:
		tc = &cuteseal.TimeControl{MoveTime: int64(moveTime * 1000)}
	case depth > 0:
		tc = &cuteseal.TimeControl{PlyLimit: depth}
	case nodes > 0:
		tc = &cuteseal.TimeControl{NodeLimit: nodes}
	default:
		return nil, fmt.Errorf("engine %s has no time control", cfg.Name)
	}
	tc.Margin = int64(timeMargin)

	player := &sched.Player{
		Name:      cfg.Name,
		Builder:   engine.NewBuilder(cfg),
		TC:        tc,
		BookDepth: bookDepth,
		Rating:    cfg.Rating,
	}

	if bookFile != "" {
		f, err := os.Open(bookFile)
		if err != nil {
			return nil, err
		}
		// Books are fed from PGN collections; see the book
		// package for the probe contract.
		b, err := book.FromPGN(chess.NewScanner(f))
		f.Close()
		if err != nil {
			return nil, err
		}
		player.Book = b
	}

	return player, nil
}

// engineSettingsDoc preserves the raw engine options in the
// tournament file.
func engineSettingsDoc(engines []engineSpec, each []string) interface{} {
	doc := make(map[string]interface{})
	var list [][]string
	for _, e := range engines {
		list = append(list, e.tokens)
	}
	doc["engines"] = list
	doc["each"] = each
	return doc
}
