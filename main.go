package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/hazyhaar/paperforge/internal/api"
	"github.com/hazyhaar/paperforge/internal/audit"
	"github.com/hazyhaar/paperforge/internal/auth"
	"github.com/hazyhaar/paperforge/internal/collab"
	"github.com/hazyhaar/paperforge/internal/config"
	"github.com/hazyhaar/paperforge/internal/db"
	"github.com/hazyhaar/paperforge/internal/llm"
	"github.com/hazyhaar/paperforge/internal/mcp"
	"github.com/hazyhaar/paperforge/internal/paper"
	"github.com/hazyhaar/paperforge/internal/telemetry"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "version":
		fmt.Printf("paperforge %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`paperforge — LLM-assisted academic paper generation service

Usage:
  paperforge serve [--config config.toml] [--addr :8080]
  paperforge mcp [--config config.toml]
  paperforge version
  paperforge help

Commands:
  serve     Start the HTTP server
  mcp       Serve MCP tools on stdin/stdout
  version   Print version
  help      Show this help`)
}

type app struct {
	cfg       *config.Config
	database  *db.DB
	auditLog  *audit.SQLiteLogger
	generator *paper.Generator
	registry  *llm.Registry
	auth      *auth.Service
	cleanup   func()
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.InitLogger(cfg.Telemetry.LogDir)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	tracer, meter, cleanup, err := telemetry.Init(ctx, cfg.Telemetry.LogDir, version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	auditLog := audit.NewSQLiteLogger(database.Conn())
	if err := auditLog.Init(); err != nil {
		cleanup()
		database.Close()
		return nil, fmt.Errorf("init audit log: %w", err)
	}

	registry := llm.NewFromConfig(ctx, cfg.LLM, logger, meter)
	engine := collab.NewEngine(registry, cfg.Roles, logger, tracer)
	generator := paper.NewGenerator(database, engine, cfg.Paper, logger, tracer)
	authSvc := auth.New(database, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)

	return &app{
		cfg:       cfg,
		database:  database,
		auditLog:  auditLog,
		generator: generator,
		registry:  registry,
		auth:      authSvc,
		cleanup: func() {
			auditLog.Close()
			database.Close()
			cleanup()
		},
	}, nil
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	ctx := context.Background()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		log.Fatal(err)
	}
	defer a.cleanup()

	if *addr != "" {
		a.cfg.Server.Addr = *addr
	}

	apiHandler := api.New(a.database, a.auth, a.generator, a.registry, a.cfg.Roles, a.auditLog, nil, version)
	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	// Sweep stale sessions daily.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := a.database.SweepSessions(a.cfg.Paper.SessionTTLDays); err == nil && n > 0 {
				log.Printf("swept %d stale sessions", n)
			}
		}
	}()

	handler := api.SecurityHeaders(api.CORS(mux))

	log.Printf("paperforge %s listening on %s", version, a.cfg.Server.Addr)
	log.Printf("database: %s", a.cfg.Database.Path)
	log.Printf("llm backends: %v", a.registry.Names())

	if err := http.ListenAndServe(a.cfg.Server.Addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	ctx := context.Background()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		log.Fatal(err)
	}
	defer a.cleanup()

	srv := mcp.NewServer(a.database, a.generator, a.auditLog, version)
	if err := mcp.Serve(srv); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
