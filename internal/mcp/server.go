// Package mcp exposes the governance core to agents as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/pmguard/internal/alert"
	"github.com/ppiankov/pmguard/internal/audit"
	"github.com/ppiankov/pmguard/internal/config"
	"github.com/ppiankov/pmguard/internal/cycle"
	"github.com/ppiankov/pmguard/internal/store"
)

// Options are the server's collaborators. Config and Store are required.
type Options struct {
	Config     *config.Config
	ConfigHash string
	Store      store.Store
	Journal    *audit.Log
	Logger     *slog.Logger
	Version    string
	Clock      func() time.Time
}

// Server wraps the MCP SDK server. Every state-changing tool call runs as
// its own cycle so budget windows are re-read from the store each time.
type Server struct {
	mcpServer *mcpsdk.Server
	store     store.Store
	journal   *audit.Log
	logger    *slog.Logger
	clock     func() time.Time

	mu         sync.RWMutex
	cfg        *config.Config
	cfgHash    string
	dispatcher *alert.Dispatcher
	retired    []*alert.Dispatcher
}

// New creates an MCP server with all pmguard tools registered.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("mcp server requires a config")
	}
	if opts.Store == nil {
		return nil, errors.New("mcp server requires a store")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		store:   opts.Store,
		journal: opts.Journal,
		logger:  opts.Logger,
		clock:   opts.Clock,
	}
	s.SetConfig(opts.Config, opts.ConfigHash)

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "pmguard",
			Version: opts.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// SetConfig swaps in a reloaded configuration. In-flight calls keep the
// config they started with.
func (s *Server) SetConfig(cfg *config.Config, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatcher != nil {
		s.retired = append(s.retired, s.dispatcher)
	}
	s.cfg = cfg
	s.cfgHash = hash
	s.dispatcher = alert.NewDispatcher(cfg.Alerts, nil, s.logger)
}

func (s *Server) snapshot() (*config.Config, string, *alert.Dispatcher) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.cfgHash, s.dispatcher
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close waits for pending alert deliveries.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	dispatchers := append(s.retired, s.dispatcher)
	s.retired = nil
	s.mu.Unlock()

	var errs []error
	for _, d := range dispatchers {
		errs = append(errs, d.Wait(ctx))
	}
	return errors.Join(errs...)
}

func (s *Server) startCycle(ctx context.Context) (*cycle.Cycle, *config.Config, error) {
	cfg, hash, dispatcher := s.snapshot()
	c, err := cycle.Start(ctx, cycle.Options{
		Scope:            cfg.AgentScope,
		Limits:           cfg.Budget,
		Retry:            cfg.Retry,
		Thresholds:       cfg.Confidence,
		HoldQueueMinutes: cfg.HoldQueueMinutes,
		ConfigHash:       hash,
		Store:            s.store,
		Journal:          s.journal,
		Alerts:           dispatcher,
		Logger:           s.logger,
		Clock:            s.clock,
	})
	return c, cfg, err
}

// registerTools adds all pmguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pmguard_validate",
		Description: "Check whether an action type is allowed at an autonomy level and which boundary category it falls in. Read-only.",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pmguard_preview",
		Description: "Dry-run a batch of proposed actions at the configured autonomy level. Nothing is journaled or alerted.",
	}, s.handlePreview)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pmguard_execute",
		Description: "Classify a batch of proposed actions for execution. Stops at the first prohibited or rejected action. Every action except heartbeat_log needs confidence evidence or it is escalated. Only perform actions whose outcome is auto_executed, and held actions after held_until.",
	}, s.handleExecute)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pmguard_budget",
		Description: "Show today's and this month's spend, the degradation tier and the operating policy for that tier.",
	}, s.handleBudget)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pmguard_record_usage",
		Description: "Record the token usage and USD cost of one LLM call against the budget.",
	}, s.handleRecordUsage)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pmguard_confidence",
		Description: "Score a proposed output on source agreement, boundary compliance, schema validity and precedent match.",
	}, s.handleConfidence)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pmguard_catalog",
		Description: "List every known action type with its boundary category and minimum autonomy level.",
	}, s.handleCatalog)
}
