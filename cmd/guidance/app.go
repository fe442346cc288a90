package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/c360studio/guidance/config"
	"github.com/c360studio/guidance/flags"
	"github.com/c360studio/guidance/guide"
	"github.com/c360studio/guidance/server"
	"github.com/c360studio/guidance/supervisor"
	"github.com/c360studio/guidance/tasks"
	"github.com/c360studio/guidance/template"
	"github.com/c360studio/guidance/workflow"
)

// run wires the whole service: config, flags, renderer, library, supervisor,
// tasks, and the stdio serve loop.
func run(configPath, logLevel string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	docRoot := cfg.DocRootPath()
	if info, err := os.Stat(docRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("document-root %s is not a directory", docRoot)
	}

	// Flag store, seeded from config.
	store := flags.NewStore(logger)
	cfg.SeedFlags(store)

	// Session context cache.
	cache := template.NewCache(template.AgentInfo{
		Name:    cfg.Agent.Name,
		Class:   cfg.Agent.Class,
		Version: cfg.Agent.Version,
		Prefix:  cfg.Agent.Prefix,
	}, logger)

	renderer := template.NewRenderer(docRoot, store.Resolve, store.Resolved, cache, logger)

	library, err := buildLibrary(docRoot)
	if err != nil {
		return fmt.Errorf("index document-root: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Supervisor and tasks.
	sup := supervisor.Get()
	sup.StartTimerPump(ctx)
	defer sup.StopTimerPump()

	phases := workflow.ParsePhaseList(cfg.Workflow.Phases)
	taskList := []tasks.Subscribed{
		tasks.NewMonitor(sup, renderer, cfg.Project.Root, cfg.Workflow.StateFile,
			cfg.Workflow.ReminderInterval, phases, logger),
		tasks.NewProbe(sup, cache, store.Resolve, cfg.Project.Root, logger),
		tasks.NewStartup(sup, renderer, store, logger),
		tasks.NewRetry(sup, cfg.Workflow.ReminderInterval),
	}
	for _, task := range taskList {
		if _, err := tasks.Register(ctx, sup, task); err != nil {
			return fmt.Errorf("register task %s: %w", task.Name(), err)
		}
	}

	// Filesystem channel feeding the bus.
	watcher, err := supervisor.NewWatcher(cfg.Project.Root, sup, logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	// Tool surface.
	docExec := server.NewDocExecutor(library, renderer, logger)
	for _, def := range docExec.ListTools() {
		if err := server.RegisterTool(def.Name, docExec); err != nil {
			return fmt.Errorf("register tool %s: %w", def.Name, err)
		}
	}

	// Activate a fresh session and serve stdio until the host closes it.
	session := uuid.NewString()
	cache.SetSession(session, cfg.Project.Name)
	sup.ActivateSession(session)

	logger.Info("Guidance ready",
		slog.String("version", Version),
		slog.String("project", cfg.Project.Name),
		slog.String("doc_root", docRoot),
		slog.String("session", session))

	if err := server.Serve(ctx, sup, os.Stdin, os.Stdout, logger); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("Guidance shutdown complete")
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if cfg.Project.Root == "" {
			cfg.Project.Root = filepath.Dir(configPath)
		}
		if cfg.Project.Name == "" {
			cfg.Project.Name = filepath.Base(cfg.Project.Root)
		}
		return cfg, cfg.Validate()
	}
	return config.NewLoader(nil).Load()
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	// Stdout carries the JSON-lines protocol; logs go to stderr.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildLibrary indexes the document-root: every top-level directory becomes a
// category, and the "all" collection spans them in name order.
func buildLibrary(docRoot string) (*guide.Library, error) {
	library := guide.NewLibrary(docRoot)

	entries, err := os.ReadDir(docRoot)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := library.AddCategory(entry.Name(), entry.Name()); err != nil {
			return nil, err
		}
		names = append(names, entry.Name())
	}
	if len(names) > 0 {
		if err := library.AddCollection("all", names...); err != nil {
			return nil, err
		}
	}
	return library, nil
}
