// Configuration
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

package cuteseal

import (
	"io"
	"log"
	"os"

	"github.com/BurntSushi/toml"

	cuteseal "go-cuteseal"
)

// DefConf is the configuration file looked up by default.
const DefConf = "cuteseal.toml"

type DatabaseConf struct {
	File string `toml:"file"`
}

type WebConf struct {
	Enabled bool `toml:"enabled"`
	Port    uint `toml:"port"`
}

type GameConf struct {
	EcoFile  string `toml:"eco"`
	Sentinel string `toml:"sentinel"`
}

// Conf holds the ambient settings a tournament does not decide per
// run: the archive database, the web front-end and shared file paths.
type Conf struct {
	Debug    bool         `toml:"debug"`
	Database DatabaseConf `toml:"database"`
	Web      WebConf      `toml:"web"`
	Game     GameConf     `toml:"game"`
}

// Configuration object used by default
var defaultConf = Conf{
	Database: DatabaseConf{},
	Web: WebConf{
		Enabled: false,
		Port:    8080,
	},
	Game: GameConf{
		Sentinel: "failed.txt",
	},
}

// LoadConf reads a configuration file, falling back to the defaults
// when the default path does not exist.
func LoadConf(path string) (*Conf, error) {
	c := defaultConf

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefConf {
			return &c, nil
		}
		return nil, err
	}
	defer file.Close()

	if _, err := toml.NewDecoder(file).Decode(&c); err != nil {
		return nil, err
	}

	if c.Debug {
		cuteseal.Debug.SetOutput(os.Stderr)
		log.Default().SetFlags(log.LstdFlags | log.Lshortfile)
		cuteseal.Debug.Println("Debug logging has been enabled")
	}
	return &c, nil
}

// Dump serialises the configuration into a writer.
func (c *Conf) Dump(wr io.Writer) error {
	return toml.NewEncoder(wr).Encode(c)
}
