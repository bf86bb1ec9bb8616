// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/atlascope/internal/adapters/server/common"
	"github.com/evanschultz/atlascope/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the atlascope.* scope tools.
func NewHandler(cfg Config, scopes common.ScopeService) (*Handler, error) {
	if scopes == nil {
		return nil, fmt.Errorf("scope service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerScopeReadTools(mcpSrv, scopes)
	registerScopeWriteTools(mcpSrv, scopes)
	registerArticleTools(mcpSrv, scopes)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "atlascope"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerScopeReadTools registers list/get/operations tools.
func registerScopeReadTools(srv *mcpserver.MCPServer, scopes common.ScopeService) {
	srv.AddTool(
		mcp.NewTool(
			"atlascope.list_scopes",
			mcp.WithDescription("List every scope document with its current state and revision."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			docs, err := scopes.ListScopes(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"scopes": docs,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_scopes result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"atlascope.get_scope",
			mcp.WithDescription("Return one scope document by id."),
			mcp.WithString("document_id", mcp.Required(), mcp.Description("Scope document identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			documentID, err := req.RequireString("document_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			doc, err := scopes.GetScope(ctx, documentID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(doc)
			if err != nil {
				return nil, fmt.Errorf("encode get_scope result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"atlascope.list_operations",
			mcp.WithDescription("Return the ordered UPDATE_SCOPE operation log of one scope document."),
			mcp.WithString("document_id", mcp.Required(), mcp.Description("Scope document identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			documentID, err := req.RequireString("document_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			ops, err := scopes.ListOperations(ctx, documentID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"documentId": documentID,
				"operations": ops,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_operations result: %w", err)
			}
			return result, nil
		},
	)
}

// registerScopeWriteTools registers create/update tools.
func registerScopeWriteTools(srv *mcpserver.MCPServer, scopes common.ScopeService) {
	srv.AddTool(
		mcp.NewTool(
			"atlascope.create_scope",
			mcp.WithDescription("Create one scope document. Non-empty values become its first operation."),
			mcp.WithString("name", mcp.Description("Scope name")),
			mcp.WithString("doc_no", mcp.Description("Atlas document number")),
			mcp.WithString("content", mcp.Description("Markdown content")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			doc, err := scopes.CreateScope(ctx, common.CreateScopeRequest{
				Name:    req.GetString("name", ""),
				DocNo:   req.GetString("doc_no", ""),
				Content: req.GetString("content", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(doc)
			if err != nil {
				return nil, fmt.Errorf("encode create_scope result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"atlascope.update_scope",
			mcp.WithDescription("Apply one UPDATE_SCOPE operation. Omitted fields keep their stored values; empty values clear them."),
			mcp.WithString("document_id", mcp.Required(), mcp.Description("Scope document identifier")),
			mcp.WithString("name", mcp.Description("Replacement name")),
			mcp.WithString("doc_no", mcp.Description("Replacement document number")),
			mcp.WithString("content", mcp.Description("Replacement markdown content")),
			mcp.WithArray("master_status", mcp.Description("Replacement status list"), mcp.WithStringItems()),
			mcp.WithArray("global_tags", mcp.Description("Replacement global tag list"), mcp.WithStringItems()),
			mcp.WithArray("original_context_data", mcp.Description("Replacement PHID reference list"), mcp.WithStringItems()),
			mcp.WithString("provenance", mcp.Description("Replacement provenance link")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				DocumentID          string             `json:"document_id"`
				Name                *string            `json:"name"`
				DocNo               *string            `json:"doc_no"`
				Content             *string            `json:"content"`
				MasterStatus        []domain.Status    `json:"master_status"`
				GlobalTags          []domain.GlobalTag `json:"global_tags"`
				OriginalContextData []string           `json:"original_context_data"`
				Provenance          *string            `json:"provenance"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.DocumentID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "document_id" not found`), nil
			}
			updated, err := scopes.UpdateScope(ctx, common.UpdateScopeRequest{
				DocumentID: args.DocumentID,
				Input: domain.UpdateScopeInput{
					ID:                  args.DocumentID,
					Name:                args.Name,
					DocNo:               args.DocNo,
					Content:             args.Content,
					MasterStatus:        args.MasterStatus,
					GlobalTags:          args.GlobalTags,
					OriginalContextData: args.OriginalContextData,
					Provenance:          args.Provenance,
				},
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(updated)
			if err != nil {
				return nil, fmt.Errorf("encode update_scope result: %w", err)
			}
			return result, nil
		},
	)
}

// registerArticleTools registers the article lookup tool.
func registerArticleTools(srv *mcpserver.MCPServer, scopes common.ScopeService) {
	srv.AddTool(
		mcp.NewTool(
			"atlascope.list_articles",
			mcp.WithDescription("List Atlas articles for one scope name. Upstream failures return an empty list."),
			mcp.WithString("scope", mcp.Required(), mcp.Description("Scope name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			scope, err := req.RequireString("scope")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			articles, err := scopes.ListArticles(ctx, scope)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"scope":    scope,
				"articles": articles,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_articles result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrServiceUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult maps argument decoding failures into invalid_request tool errors.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
