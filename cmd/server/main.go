// Package main provides the entry point for the AntiHub API gateway.
// The server fronts OpenAI, Claude and Gemini compatible API surfaces and
// translates requests onto the configured CLI provider upstreams, allowing
// tools built for the standard AI APIs to use CLI subscription models.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/router-for-me/AntiHubAPI/internal/api"
	"github.com/router-for-me/AntiHubAPI/internal/config"
	"github.com/router-for-me/AntiHubAPI/internal/logging"
	"github.com/router-for-me/AntiHubAPI/internal/runtime/executor"
	_ "github.com/router-for-me/AntiHubAPI/internal/translator"
	"github.com/router-for-me/AntiHubAPI/internal/usage"
	"github.com/router-for-me/AntiHubAPI/internal/watcher"
)

// Build metadata, overridden at link time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
}

// main is the entry point of the application.
// It parses command-line flags, loads configuration, and runs the API
// server, the config watcher and the usage reporter under one lifecycle.
func main() {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("AntiHubAPI Version: %s, Commit: %s, BuiltAt: %s\n", Version, Commit, BuildDate)
		return
	}

	// Optional .env overlay; values already present in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debugf("no .env file loaded: %v", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", configPath, err)
	}
	if cfg.Debug {
		logging.SetLogLevel("debug")
	}
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Warnf("failed to configure log output: %v", err)
	}
	log.Infof("AntiHubAPI %s starting on %s with %d account(s)", Version, cfg.Address(), len(cfg.Accounts))

	reporter := usage.NewLogReporter()
	executors := executor.NewManager(reporter)
	server := api.NewServer(cfg, executors)

	configWatcher, err := watcher.NewWatcher(configPath, server.UpdateConfig)
	if err != nil {
		log.Fatalf("failed to create config watcher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(func() error {
		return configWatcher.Run(groupCtx)
	})
	group.Go(func() error {
		return reporter.Run(groupCtx, time.Duration(cfg.UsageLogInterval)*time.Minute)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server exited: %v", err)
	}
	log.Info("shutdown complete")
}
