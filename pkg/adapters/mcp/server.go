// Package mcp exposes the mirror to Model Context Protocol clients: read
// access as resources and tools, plus pause toggling, global updates and
// refreshes.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/internal/logging"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/aretw0/pipemirror/pkg/views"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine is the part of the sync engine the server drives.
type Engine interface {
	Store() *store.Store
	RefreshAll(ctx context.Context) error
	RefreshCollection(ctx context.Context, kind domain.Kind) error
	TogglePause(ctx context.Context, kind domain.Kind, key string) error
	SetGlobal(ctx context.Context, name string, v domain.GlobalVariable) error
}

// Server wraps an Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("pipemirror-mcp", strings.TrimSpace(pipemirror.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

const collectionHelp = "One of: workflows, instances, globals, orphans"

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list",
		mcp.WithDescription("List a mirrored collection as a JSON object keyed by identity."),
		mcp.WithString("collection", mcp.Required(), mcp.Description(collectionHelp)),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("get",
		mcp.WithDescription("Get one workflow, instance or global variable."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("One of: workflow, instance, global")),
		mcp.WithString("key", mcp.Required(), mcp.Description("UUID, or name for globals")),
	), s.handleGet)

	s.mcpServer.AddTool(mcp.NewTool("toggle_pause",
		mcp.WithDescription("Pause a running workflow or instance, or resume a paused one."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("workflow or instance")),
		mcp.WithString("key", mcp.Required(), mcp.Description("UUID")),
	), s.handleTogglePause)

	s.mcpServer.AddTool(mcp.NewTool("set_global",
		mcp.WithDescription("Create or update a global variable."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Variable name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Serialised value")),
		mcp.WithString("typename", mcp.Description("Variable type; defaults to the current one, or String")),
	), s.handleSetGlobal)

	s.mcpServer.AddTool(mcp.NewTool("refresh",
		mcp.WithDescription("Reload one collection, or everything when collection is omitted."),
		mcp.WithString("collection", mcp.Description("workflows, instances or globals")),
	), s.handleRefresh)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

// collection returns the current contents of a named collection or view.
func (s *Server) collection(name string) (any, error) {
	st := s.engine.Store()
	if name == "orphans" {
		return views.FindOrphans(st.Instances.Snapshot(), st.Workflows.Snapshot()), nil
	}
	kind, err := domain.ParseKind(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case domain.KindWorkflow:
		return st.Workflows.Snapshot(), nil
	case domain.KindInstance:
		return st.Instances.Snapshot(), nil
	default:
		return st.Globals.Snapshot(), nil
	}
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.collection(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, key, errResult := kindAndKey(request)
	if errResult != nil {
		return errResult, nil
	}

	st := s.engine.Store()
	var (
		v  any
		ok bool
	)
	switch kind {
	case domain.KindWorkflow:
		v, ok = st.Workflows.Get(key)
	case domain.KindInstance:
		v, ok = st.Instances.Get(key)
	case domain.KindGlobal:
		v, ok = st.Globals.Get(key)
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s %q is not in the mirror", kind, key)), nil
	}
	return jsonResult(v)
}

func (s *Server) handleTogglePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, key, errResult := kindAndKey(request)
	if errResult != nil {
		return errResult, nil
	}
	if kind == domain.KindGlobal {
		return mcp.NewToolResultError("global variables cannot be paused"), nil
	}

	if err := s.engine.TogglePause(ctx, kind, key); err != nil {
		s.logger.Warn("MCP toggle_pause failed", "kind", kind, "key", key, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	st := s.engine.Store()
	var state domain.RunState
	if kind == domain.KindWorkflow {
		w, _ := st.Workflows.Get(key)
		state = w.State
	} else {
		inst, _ := st.Instances.Get(key)
		state = inst.State
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s %s is now %s", kind, key, state)), nil
}

func (s *Server) handleSetGlobal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	typename := request.GetString("typename", "")
	if typename == "" {
		typename = "String"
		if current, ok := s.engine.Store().Globals.Get(name); ok && current.Typename != "" {
			typename = current.Typename
		}
	}

	v := domain.GlobalVariable{Typename: typename, Value: value}
	if err := s.engine.SetGlobal(ctx, name, v); err != nil {
		s.logger.Warn("MCP set_global failed", "name", name, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]domain.GlobalVariable{name: v})
}

func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("collection", "")
	if name == "" {
		if err := s.engine.RefreshAll(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("refreshed all collections"), nil
	}

	kind, err := domain.ParseKind(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.RefreshCollection(ctx, kind); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("refreshed %ss", kind)), nil
}

func kindAndKey(request mcp.CallToolRequest) (domain.Kind, string, *mcp.CallToolResult) {
	rawKind, err := request.RequireString("kind")
	if err != nil {
		return 0, "", mcp.NewToolResultError(err.Error())
	}
	kind, err := domain.ParseKind(rawKind)
	if err != nil {
		return 0, "", mcp.NewToolResultError(err.Error())
	}
	key, err := request.RequireString("key")
	if err != nil {
		return 0, "", mcp.NewToolResultError(err.Error())
	}
	return kind, key, nil
}

// resourceURIs maps each exposed resource to the collection it reads.
var resourceURIs = map[string]string{
	"pipemirror://workflows": "workflows",
	"pipemirror://instances": "instances",
	"pipemirror://globals":   "globals",
	"pipemirror://orphans":   "orphans",
}

func (s *Server) registerResources() {
	for uri, name := range resourceURIs {
		s.mcpServer.AddResource(
			mcp.NewResource(uri, "Mirrored "+name, mcp.WithMIMEType("application/json")),
			s.readResource,
		)
	}
}

func (s *Server) readResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	name, ok := resourceURIs[uri]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", uri)
	}
	v, err := s.collection(name)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to encode %s", name), err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
