// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux && (amd64 || arm64)
// +build linux
// +build amd64 arm64

// The efxctl tool drives the registers and receive filters of Solarflare
// EF10 and EF100 controllers.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"os"

	"efx.dev/efx/pkg/log"
	"efx.dev/efx/tools/efxctl/cmd"
	"efx.dev/efx/tools/efxctl/config"
	"github.com/google/subcommands"
)

var (
	configPath = flag.String("config", config.DefaultPath, "configuration file. A missing default file is not an error.")
	logLevel   = flag.String("log-level", "", "log level (warning, info or debug), overriding the configuration file.")
	logFormat  = flag.String("log-format", "", "log format (text or json), overriding the configuration file.")
	logFile    = flag.String("log-file", "", "file to append logs to instead of stderr, overriding the configuration file.")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Regs), "")
	subcommands.Register(new(cmd.Rules), "")
	subcommands.Register(new(cmd.Install), "")
	subcommands.Register(new(cmd.Translate), "")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	conf, err := loadConfig(*configPath)
	if err != nil {
		cmd.Fatalf("%v", err)
	}
	if *logLevel != "" {
		conf.Log.Level = *logLevel
	}
	if *logFormat != "" {
		conf.Log.Format = *logFormat
	}
	if *logFile != "" {
		conf.Log.File = *logFile
	}
	if err := setupLogging(conf.Log); err != nil {
		cmd.Fatalf("%v", err)
	}
	log.Debugf("Args: %v", os.Args)

	// Call the subcommand and pass in the configuration.
	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}

func loadConfig(path string) (*config.Config, error) {
	conf, err := config.Load(path)
	if err != nil && path == config.DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return conf, err
}

func setupLogging(c config.Log) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	var w io.Writer = os.Stderr
	if c.File != "" {
		// Appended to so that successive invocations share one log.
		f, err := os.OpenFile(c.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		w = f
	}
	e, err := log.NewEmitter(c.Format, w)
	if err != nil {
		return err
	}
	log.SetTarget(e)
	log.SetLevel(level)
	return nil
}
