package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/atlascope/internal/adapters/server/common"
	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubScopeService provides deterministic scope responses for MCP tool tests.
type stubScopeService struct {
	docs       []domain.Document
	doc        domain.Document
	ops        []domain.Operation
	articles   []domain.Article
	update     common.UpdateScopeResult
	err        error
	lastID     string
	lastCreate common.CreateScopeRequest
	lastUpdate common.UpdateScopeRequest
	lastScope  string
}

// ListScopes returns fixture documents.
func (s *stubScopeService) ListScopes(context.Context) ([]domain.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Document(nil), s.docs...), nil
}

// GetScope records the id and returns the fixture document.
func (s *stubScopeService) GetScope(_ context.Context, id string) (domain.Document, error) {
	s.lastID = id
	if s.err != nil {
		return domain.Document{}, s.err
	}
	return s.doc, nil
}

// CreateScope records the request and returns the fixture document.
func (s *stubScopeService) CreateScope(_ context.Context, req common.CreateScopeRequest) (domain.Document, error) {
	s.lastCreate = req
	if s.err != nil {
		return domain.Document{}, s.err
	}
	return s.doc, nil
}

// UpdateScope records the request and returns the fixture result.
func (s *stubScopeService) UpdateScope(_ context.Context, req common.UpdateScopeRequest) (common.UpdateScopeResult, error) {
	s.lastUpdate = req
	if s.err != nil {
		return common.UpdateScopeResult{}, s.err
	}
	return s.update, nil
}

// ListOperations records the id and returns the fixture log.
func (s *stubScopeService) ListOperations(_ context.Context, id string) ([]domain.Operation, error) {
	s.lastID = id
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Operation(nil), s.ops...), nil
}

// ReplayScope records the id and returns a matching replay.
func (s *stubScopeService) ReplayScope(_ context.Context, id string) (app.ReplayResult, error) {
	s.lastID = id
	if s.err != nil {
		return app.ReplayResult{}, s.err
	}
	return app.ReplayResult{DocumentID: id, Matches: true}, nil
}

// ListArticles records the scope and returns fixture articles.
func (s *stubScopeService) ListArticles(_ context.Context, scope string) ([]domain.Article, error) {
	s.lastScope = scope
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Article{}, s.articles...), nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "atlascope-test",
				"version": "1.0.0",
			},
		},
	}
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// newTestServer starts one MCP test server over stub and completes initialize.
func newTestServer(t *testing.T, stub *stubScopeService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, stub)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubScopeService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestNewHandlerRequiresService verifies a missing scope service fails construction.
func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler() error = nil, want error")
	}
}

// TestHandlerRegistersScopeTools verifies tool discovery lists every atlascope tool.
func TestHandlerRegistersScopeTools(t *testing.T) {
	server := newTestServer(t, &stubScopeService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"atlascope.list_scopes",
		"atlascope.get_scope",
		"atlascope.create_scope",
		"atlascope.update_scope",
		"atlascope.list_operations",
		"atlascope.list_articles",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

// TestHandlerListScopesToolCall verifies list_scopes returns structured scope rows.
func TestHandlerListScopesToolCall(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	stub := &stubScopeService{
		docs: []domain.Document{{ID: "d1", State: domain.NewScopeState(), Revision: 2, CreatedAt: now, UpdatedAt: now}},
	}
	server := newTestServer(t, stub)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "atlascope.list_scopes", map[string]any{}))
	structured := toolResultStructured(t, callResp.Result)
	scopesRaw, ok := structured["scopes"].([]any)
	if !ok || len(scopesRaw) != 1 {
		t.Fatalf("scopes = %#v, want one row", structured["scopes"])
	}
	row, _ := scopesRaw[0].(map[string]any)
	if row["id"] != "d1" {
		t.Fatalf("row = %#v, want id d1", row)
	}
}

// TestHandlerUpdateScopeToolPreservesAbsentFields verifies omitted arguments stay nil and empty ones stay present.
func TestHandlerUpdateScopeToolPreservesAbsentFields(t *testing.T) {
	stub := &stubScopeService{
		update: common.UpdateScopeResult{Operation: domain.Operation{Index: 4, Type: domain.OperationUpdateScope}},
	}
	server := newTestServer(t, stub)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "atlascope.update_scope", map[string]any{
		"document_id":           "d1",
		"name":                  "",
		"original_context_data": []any{},
		"global_tags":           []any{"CAIS"},
	}))
	if isErr, _ := callResp.Result["isError"].(bool); isErr {
		t.Fatalf("unexpected tool error: %s", toolResultText(t, callResp.Result))
	}
	in := stub.lastUpdate.Input
	if stub.lastUpdate.DocumentID != "d1" || in.ID != "d1" {
		t.Fatalf("unexpected update request %#v", stub.lastUpdate)
	}
	if in.Name == nil || *in.Name != "" {
		t.Fatalf("name = %#v, want present empty string", in.Name)
	}
	if in.DocNo != nil || in.Content != nil || in.Provenance != nil || in.MasterStatus != nil {
		t.Fatalf("expected omitted fields to stay nil, got %#v", in)
	}
	if in.OriginalContextData == nil || len(in.OriginalContextData) != 0 {
		t.Fatalf("original_context_data = %#v, want present empty list", in.OriginalContextData)
	}
	if !slices.Equal(in.GlobalTags, []domain.GlobalTag{domain.TagCAIS}) {
		t.Fatalf("global_tags = %#v", in.GlobalTags)
	}
	structured := toolResultStructured(t, callResp.Result)
	op, _ := structured["operation"].(map[string]any)
	if op["index"] != float64(4) {
		t.Fatalf("operation = %#v, want index 4", op)
	}
}

// TestHandlerCreateAndArticleToolCalls verifies argument mapping for create_scope and list_articles.
func TestHandlerCreateAndArticleToolCalls(t *testing.T) {
	stub := &stubScopeService{
		doc:      domain.Document{ID: "d9", State: domain.NewScopeState()},
		articles: []domain.Article{{ID: "a1", Title: "Intro"}},
	}
	server := newTestServer(t, stub)

	_, createResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "atlascope.create_scope", map[string]any{
		"name":   "Support",
		"doc_no": "A.2",
	}))
	if stub.lastCreate.Name != "Support" || stub.lastCreate.DocNo != "A.2" || stub.lastCreate.Content != "" {
		t.Fatalf("unexpected create request %#v", stub.lastCreate)
	}
	if got := toolResultStructured(t, createResp.Result)["id"]; got != "d9" {
		t.Fatalf("id = %#v, want d9", got)
	}

	_, articleResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "atlascope.list_articles", map[string]any{
		"scope": "Governance",
	}))
	if stub.lastScope != "Governance" {
		t.Fatalf("scope = %q, want Governance", stub.lastScope)
	}
	articles, ok := toolResultStructured(t, articleResp.Result)["articles"].([]any)
	if !ok || len(articles) != 1 {
		t.Fatalf("articles = %#v, want one row", articles)
	}
}

// TestHandlerToolCallErrorPaths verifies required-arg and mapped-service errors.
func TestHandlerToolCallErrorPaths(t *testing.T) {
	stub := &stubScopeService{err: errors.Join(common.ErrNotFound, errors.New("missing"))}
	server := newTestServer(t, stub)

	_, missingArg := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "atlascope.get_scope", map[string]any{}))
	if got := toolResultText(t, missingArg.Result); !strings.HasPrefix(got, "invalid_request:") {
		t.Fatalf("text = %q, want invalid_request prefix", got)
	}

	_, missingDoc := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "atlascope.get_scope", map[string]any{
		"document_id": "nope",
	}))
	if got := toolResultText(t, missingDoc.Result); !strings.HasPrefix(got, "not_found:") {
		t.Fatalf("text = %q, want not_found prefix", got)
	}

	_, badUpdate := postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "atlascope.update_scope", map[string]any{
		"name": "orphan",
	}))
	if got := toolResultText(t, badUpdate.Result); !strings.HasPrefix(got, "invalid_request:") {
		t.Fatalf("text = %q, want invalid_request prefix", got)
	}
}

// TestToolResultFromError verifies transport sentinels map to stable prefixes.
func TestToolResultFromError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "invalid", err: errors.Join(common.ErrInvalidRequest, errors.New("bad tag")), wantPrefix: "invalid_request:"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("missing")), wantPrefix: "not_found:"},
		{name: "conflict", err: errors.Join(common.ErrConflict, errors.New("stale")), wantPrefix: "conflict:"},
		{name: "unavailable", err: errors.Join(common.ErrServiceUnavailable, errors.New("off")), wantPrefix: "service_unavailable:"},
		{name: "internal", err: errors.New("boom"), wantPrefix: "internal_error:"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if got := callToolResultText(t, result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}

// TestNormalizeConfigDefaults verifies endpoint and name defaults.
func TestNormalizeConfigDefaults(t *testing.T) {
	cfg := normalizeConfig(Config{EndpointPath: "tools/"})
	if cfg.ServerName != "atlascope" || cfg.ServerVersion != "dev" || cfg.EndpointPath != "/tools" {
		t.Fatalf("normalizeConfig() = %#v", cfg)
	}
}
