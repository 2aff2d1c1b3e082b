package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/audit"
	"github.com/ppiankov/pmguard/internal/config"
	pmmcp "github.com/ppiankov/pmguard/internal/mcp"
	"github.com/ppiankov/pmguard/internal/store"
)

var mcpNoWatch bool

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpNoWatch, "no-watch", false, "do not reload the config file when it changes")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs pmguard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Tools: pmguard_validate, pmguard_preview, pmguard_execute, pmguard_budget,\n" +
		"pmguard_record_usage, pmguard_confidence, pmguard_catalog.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	s, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		return err
	}
	defer s.Close()

	journal, err := audit.Open(cfg.AuditLog)
	if err != nil {
		return err
	}
	defer journal.Close()

	srv, err := pmmcp.New(pmmcp.Options{
		Config:     cfg,
		ConfigHash: loadedHash,
		Store:      s,
		Journal:    journal,
		Logger:     slog.Default(),
		Version:    Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !mcpNoWatch {
		startConfigWatcher(ctx, srv)
	}

	slog.Info("pmguard MCP server running on stdio",
		"scope", cfg.AgentScope, "autonomy_level", cfg.AutonomyLevel, "config_hash", loadedHash)

	runErr := srv.Run(ctx)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := srv.Close(flushCtx); err != nil {
		slog.Warn("alert deliveries still pending at exit", "error", err)
	}
	return runErr
}

func startConfigWatcher(ctx context.Context, srv *pmmcp.Server) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return
	}

	w, err := config.NewWatcher(path, loadedHash, func(cfg *config.Config, hash string) {
		if err := configureLogger(cfg, logLevelOverride); err != nil {
			slog.Warn("config reloaded with invalid log settings", "error", err)
		}
		srv.SetConfig(cfg, hash)
		slog.Info("config reloaded", "hash", hash, "autonomy_level", cfg.AutonomyLevel)
	}, slog.Default())
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()
}
