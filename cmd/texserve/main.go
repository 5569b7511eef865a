// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the LaTeX completion server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

texserve provides context-aware LaTeX completions: commands and snippets
filtered by the editor's scope stack, bibliography keys for citations, and
installed package names for \usepackage. It can operate as a MessagePack IPC
server for integration with text editors, or as a CLI application for testing
and debugging.

# Usage

Start the server with default settings:

	texserve

Use a custom config file and enable debug mode:

	texserve -config ~/tex/texserve.toml -d

Run in CLI mode for interactive testing:

	texserve -c -limit 10

# Configuration

Runtime configuration is managed through a TOML file:

	[server]
	max_limit = 200
	min_prefix = 2
	user_completions = "completions.yaml"
	disable_for_scope = ".text.tex.latex .comment"

	[completion]
	enabled_groups = { tikz = false }

	[citation]
	format = "\\autocite$1{${cite}}$2"

	[packages]
	search_command = 'tlmgr search --file ".*\.sty"'

The config file is automatically created with defaults if it doesn't exist.
The reload action re-reads it without restart, and the user completions file
is watched for changes.

# IPC Protocol

The server communicates via MessagePack over stdin/stdout, see package server.

	{"id": "req1", "action": "complete", "line": "\\sec", "scopes": ["text.tex.latex"]}
	{"id": "req1", "s": [{"dt": "\\section", "rp": "\\sec"}], "c": 1, "k": "command", "p": "\\sec", "t": 85}

# State

Caches and group toggles are written to the state file on exit and restored
at startup. A missing or corrupt state file only means a cold start.

# Command Line Flags

	-config string
	    Path to a config file (default: the platform config dir)
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-limit int
	    Number of suggestions to show in CLI mode
	-version
	    Show current version
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bastiangx/texserve/internal/cli"
	"github.com/bastiangx/texserve/internal/logger"
	"github.com/bastiangx/texserve/internal/utils"
	"github.com/bastiangx/texserve/pkg/config"
	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/bastiangx/texserve/pkg/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.1.0-beta"
	AppName = "texserve"
	gh      = "https://github.com/bastiangx/texserve"
)

// sigHandler runs onExit and exits normally on SIGINT or SIGTERM.
func sigHandler(onExit func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		onExit()
		os.Exit(0)
	}()
}

// main wires config, engine and the server or CLI.
// main() does not implement logic for them and only manages the flow.
func main() {
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	configFile := flag.String("config", "", "Path to a custom config file")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of suggestions to show in CLI mode")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger.Setup(*debugMode)

	appConfig, configPath, err := config.LoadConfigWithPriority(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	configDir := filepath.Dir(configPath)
	if configPath == "" {
		configDir, _ = config.GetConfigDir()
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := server.NewOutput(os.Stdout)
	var notifier engine.Notifier = out
	if *cliMode {
		cliLog := logger.NewWithConfig("texserve", log.GetLevel(), false, false, log.TextFormatter)
		notifier = engine.NotifierFunc(func(msg string, err error) { cliLog.Warn(msg, "err", err) })
	}

	eng := engine.New(appConfig.Engine(configDir), engine.WithNotifier(notifier))
	if err := eng.Load(ctx); err != nil {
		log.Fatalf("Failed to init engine: %v", err)
	}

	statePath := config.ResolvePath(configDir, appConfig.Server.StateFile)
	restoreState(eng, statePath)
	save := func() { saveState(eng, statePath) }
	sigHandler(save)

	if err := eng.Watch(ctx); err != nil {
		log.Warnf("Not watching user completions: %v", err)
	}
	defer eng.StopWatch()

	// CLI would be mainly used for testing and dbg purposes.
	if *cliMode {
		log.SetReportTimestamp(false)
		log.Debug("Input info:", "limit", *limit, "scopes", appConfig.CLI.DefaultScopes)

		inputHandler := cli.NewInputHandler(eng, appConfig.CLI.DefaultScopes, *limit)
		if err := inputHandler.Start(ctx, os.Stdin); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		save()
		return
	}

	log.Debug("spawning IPC")
	reloadConfig := func() (engine.Config, error) {
		cfg, _, err := config.LoadConfigWithPriority(*configFile)
		if err != nil {
			return engine.Config{}, err
		}
		return cfg.Engine(configDir), nil
	}
	srv := server.NewServer(eng, os.Stdin, out,
		server.WithConfigReloader(reloadConfig),
		server.WithDefaultLimit(appConfig.Server.MaxLimit))

	showStartupInfo(configPath)

	if err := srv.Start(ctx); err != nil {
		save()
		log.Fatalf("Server stopped: %v", err)
	}
	save()
}

func restoreState(eng *engine.Engine, path string) {
	if path == "" || !utils.FileExists(path) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("Cannot read state file %s: %v", path, err)
		return
	}
	if err := eng.RestoreState(data); err != nil {
		log.Debugf("Starting cold: %v", err)
	}
}

func saveState(eng *engine.Engine, path string) {
	if path == "" {
		return
	}
	if status := utils.CheckDirStatus(filepath.Dir(path)); !status.Writable {
		log.Warnf("State directory %s is not writable, skipping save", filepath.Dir(path))
		return
	}
	data, err := eng.SaveState()
	if err != nil {
		log.Warnf("Failed to encode state: %v", err)
		return
	}
	if err := utils.WriteFileAtomic(path, data); err != nil {
		log.Warnf("Failed to save state to %s: %v", path, err)
		return
	}
	log.Debugf("Saved state to %s", path)
}

func printVersion() {
	vlog := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	vlog.SetStyles(styles)

	vlog.Print("")
	vlog.Print("[ texserve ] Serves LaTeX completions!")
	vlog.Print("", "version", Version)
	vlog.Print("")
	vlog.Print("use -h or --help to see available options")
	vlog.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process on stderr.
func showStartupInfo(configPath string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	fmt.Fprintln(os.Stderr, "==========")
	fmt.Fprintln(os.Stderr, " texserve ")
	fmt.Fprintln(os.Stderr, "==========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("config: ( %s )", config.GetActiveConfigPath(configPath))
	if resolver, err := utils.NewPathResolver(); err == nil && currentLevel <= log.DebugLevel {
		for k, v := range resolver.GetRuntimeInfo() {
			log.Infof("%s: %s", k, v)
		}
	}
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "==========")

	log.SetLevel(currentLevel)
}
