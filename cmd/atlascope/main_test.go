package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	serveradapter "github.com/evanschultz/atlascope/internal/adapters/server"
	"github.com/evanschultz/atlascope/internal/adapters/storage/sqlite"
	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/config"
	"github.com/evanschultz/atlascope/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("ATLASCOPE_DEV_MODE", "false")
	_ = os.Setenv("ATLASCOPE_ARTICLES_BASE_URL", "http://127.0.0.1:1")
	os.Exit(m.Run())
}

// fakeProgram represents fake program data used by this package.
type fakeProgram struct {
	runErr error
}

// Run runs the requested command flow.
func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// initProgram runs the model's initial load so startup side effects reach the database.
type initProgram struct {
	model tea.Model
}

// Run runs the init command once and feeds its message back.
func (p initProgram) Run() (tea.Model, error) {
	cmd := p.model.Init()
	if cmd == nil {
		return p.model, nil
	}
	updated, _ := p.model.Update(cmd())
	return updated, nil
}

// runCLI runs one command against the temp database and returns stdout.
func runCLI(t *testing.T, dbPath, cfgPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--db", dbPath, "--config", cfgPath}, args...)
	if err := run(context.Background(), full, &out, io.Discard); err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out.String()
}

// seedScope opens the editor once so the first scope document is created, then returns its id.
func seedScope(t *testing.T, dbPath, cfgPath string) string {
	t.Helper()
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(m tea.Model) program { return initProgram{model: m} }
	runCLI(t, dbPath, cfgPath)

	var snap app.Snapshot
	if err := json.Unmarshal([]byte(runCLI(t, dbPath, cfgPath, "export")), &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(snap.Documents) != 1 {
		t.Fatalf("expected one seeded document, got %d", len(snap.Documents))
	}
	return snap.Documents[0].ID
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunStartsProgram(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	var started tea.Model
	programFactory = func(m tea.Model) program {
		started = m
		return fakeProgram{}
	}

	tmp := t.TempDir()
	if err := run(context.Background(), []string{"--db", filepath.Join(tmp, "atlascope.db"), "--config", filepath.Join(tmp, "missing.toml"), "--doc", "doc-1"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if started == nil {
		t.Fatal("expected program factory to receive the editor model")
	}
}

func TestRunTUIStartupCreatesFirstScope(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "atlascope.db")
	cfgPath := filepath.Join(tmp, "missing.toml")
	id := seedScope(t, dbPath, cfgPath)
	if strings.TrimSpace(id) == "" {
		t.Fatal("expected generated document id")
	}
	// a second launch reuses the stored scope
	seedScope(t, dbPath, cfgPath)
}

func TestRunInvalidFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--unknown-flag"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected flag parse error")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"unknown-command"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "atlascope-test", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{"app: atlascope-test", "dev_mode: false", "config:", "db:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in paths output, got %q", want, out.String())
		}
	}
}

func TestRunUpdateHistoryReplay(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "atlascope.db")
	cfgPath := filepath.Join(tmp, "missing.toml")
	id := seedScope(t, dbPath, cfgPath)

	inPath := filepath.Join(tmp, "update.json")
	writeFile(t, inPath, `{"name":"Sky Governance","masterStatus":["APPROVED"],"globalTags":[]}`)
	var result struct {
		Document  domain.Document  `json:"document"`
		Operation domain.Operation `json:"operation"`
	}
	if err := json.Unmarshal([]byte(runCLI(t, dbPath, cfgPath, "update", id, "--in", inPath)), &result); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if result.Document.State.Name != "Sky Governance" || result.Operation.Index != 0 {
		t.Fatalf("unexpected update result %#v", result)
	}
	if result.Operation.Input.DocNo != nil || result.Operation.Input.GlobalTags == nil {
		t.Fatalf("expected absent docNo and present empty tags, got %#v", result.Operation.Input)
	}

	history := runCLI(t, dbPath, cfgPath, "history", id)
	for _, want := range []string{"UPDATE_SCOPE", "name,masterStatus,globalTags"} {
		if !strings.Contains(history, want) {
			t.Fatalf("expected %q in history output, got\n%s", want, history)
		}
	}

	var ops []domain.Operation
	if err := json.Unmarshal([]byte(runCLI(t, dbPath, cfgPath, "history", id, "--json")), &ops); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Hash != result.Operation.Hash {
		t.Fatalf("unexpected history json %#v", ops)
	}

	var replay app.ReplayResult
	if err := json.Unmarshal([]byte(runCLI(t, dbPath, cfgPath, "replay", id)), &replay); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !replay.Matches || replay.State.Name != "Sky Governance" {
		t.Fatalf("unexpected replay %#v", replay)
	}
}

func TestRunUpdateRejectsUnknownFieldsAndMissingInput(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "atlascope.db")
	cfgPath := filepath.Join(tmp, "missing.toml")
	id := seedScope(t, dbPath, cfgPath)

	inPath := filepath.Join(tmp, "update.json")
	writeFile(t, inPath, `{"title":"wrong"}`)
	base := []string{"--db", dbPath, "--config", cfgPath}
	if err := run(context.Background(), append(base, "update", id, "--in", inPath), io.Discard, io.Discard); err == nil {
		t.Fatal("expected unknown field error")
	}
	if err := run(context.Background(), append(base, "update", id), io.Discard, io.Discard); err == nil {
		t.Fatal("expected missing --in error")
	}
	writeFile(t, inPath, `{"name":"x"}`)
	if err := run(context.Background(), append(base, "update", "missing", "--in", inPath), io.Discard, io.Discard); err == nil {
		t.Fatal("expected missing document error")
	}
}

func TestRunExportYAMLAndImportRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "atlascope.db")
	cfgPath := filepath.Join(tmp, "missing.toml")
	id := seedScope(t, dbPath, cfgPath)

	inPath := filepath.Join(tmp, "update.json")
	writeFile(t, inPath, `{"name":"Sky Support","originalContextData":["phd://ref-1"],"provenance":"https://forum.example/1"}`)
	runCLI(t, dbPath, cfgPath, "update", id, "--in", inPath)

	outPath := filepath.Join(tmp, "out", "snapshot.yaml")
	runCLI(t, dbPath, cfgPath, "export", "--format", "yaml", "--out", outPath)
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "version: "+app.SnapshotVersion) {
		t.Fatalf("expected yaml snapshot, got\n%s", content)
	}

	freshDB := filepath.Join(tmp, "fresh.db")
	runCLI(t, freshDB, cfgPath, "import", "--in", outPath)
	var replay app.ReplayResult
	if err := json.Unmarshal([]byte(runCLI(t, freshDB, cfgPath, "replay", id)), &replay); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !replay.Matches || replay.State.Name != "Sky Support" || replay.State.Provenance != "https://forum.example/1" {
		t.Fatalf("unexpected replay after import %#v", replay)
	}
}

func TestRunExportAndImportErrors(t *testing.T) {
	tmp := t.TempDir()
	base := []string{"--db", filepath.Join(tmp, "atlascope.db"), "--config", filepath.Join(tmp, "missing.toml")}
	if err := run(context.Background(), append(base, "export", "--format", "xml"), io.Discard, io.Discard); err == nil {
		t.Fatal("expected unsupported format error")
	}
	if err := run(context.Background(), append(base, "import"), io.Discard, io.Discard); err == nil {
		t.Fatal("expected missing --in error")
	}
	badPath := filepath.Join(tmp, "bad.json")
	writeFile(t, badPath, `{"version":"other","documents":[]}`)
	if err := run(context.Background(), append(base, "import", "--in", badPath), io.Discard, io.Discard); err == nil {
		t.Fatal("expected snapshot version error")
	}
}

func TestRunServeUsesConfiguredEndpoints(t *testing.T) {
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })
	var (
		got     serveradapter.Config
		gotDeps serveradapter.Dependencies
	)
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		got = cfg
		gotDeps = deps
		return nil
	}

	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "atlascope.toml")
	writeFile(t, cfgPath, "[server]\nhttp = \"127.0.0.1:9999\"\napi_endpoint = \"/api/v2\"\n")
	runCLI(t, filepath.Join(tmp, "atlascope.db"), cfgPath, "serve", "--mcp-endpoint", "/tools")
	if got.HTTPBind != "127.0.0.1:9999" || got.APIEndpoint != "/api/v2" || got.MCPEndpoint != "/tools" {
		t.Fatalf("unexpected serve config %#v", got)
	}
	if gotDeps.Scopes == nil {
		t.Fatal("expected scope service dependency")
	}
	if got.ServerVersion != version || got.ServerName == "" {
		t.Fatalf("expected server identity, got %#v", got)
	}
}

func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "atlascope.toml")
	writeFile(t, cfgPath, "[logging]\nlevel = \"loud\"\n")
	err := run(context.Background(), []string{"--db", filepath.Join(tmp, "atlascope.db"), "--config", cfgPath, "export"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging level error, got %v", err)
	}
}

func TestRunEnvOverridesValidationMode(t *testing.T) {
	t.Setenv("ATLASCOPE_VALIDATION_MODE", "paranoid")
	tmp := t.TempDir()
	err := run(context.Background(), []string{"--db", filepath.Join(tmp, "atlascope.db"), "--config", filepath.Join(tmp, "missing.toml"), "export"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "validation.mode") {
		t.Fatalf("expected validation mode error, got %v", err)
	}
}

func TestApplyReloadedConfigSwitchesValidationMode(t *testing.T) {
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	logger, err := newRuntimeLogger(io.Discard, loggerOptions{appName: "atlascope", logging: config.Default("/tmp/atlascope.db").Logging})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	rt := &runtime{logger: logger, svc: app.NewService(repo, nil, nil, app.ServiceConfig{})}

	next := config.Default("/tmp/atlascope.db")
	next.Validation.Mode = "strict"
	applyReloadedConfig(rt, next)
	if rt.svc.ValidationMode() != domain.ValidationStrict {
		t.Fatalf("expected strict mode, got %q", rt.svc.ValidationMode())
	}
	next.Validation.Mode = "bogus"
	applyReloadedConfig(rt, next)
	if rt.svc.ValidationMode() != domain.ValidationStrict {
		t.Fatalf("expected invalid reload to keep strict mode, got %q", rt.svc.ValidationMode())
	}
}

func TestApplyReloadedConfigKeepsEnvOverrides(t *testing.T) {
	t.Setenv("ATLASCOPE_VALIDATION_MODE", "strict")
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "atlascope.toml")
	writeFile(t, cfgPath, "[logging]\nlevel = \"info\"\n")

	env, err := config.ParseEnv()
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	opts := &rootOptions{configPath: cfgPath, dbPath: filepath.Join(tmp, "atlascope.db"), appName: "atlascope"}
	rt, err := openRuntime(opts, env, io.Discard, "serve")
	if err != nil {
		t.Fatalf("openRuntime() error = %v", err)
	}
	defer rt.Close()
	if rt.svc.ValidationMode() != domain.ValidationStrict {
		t.Fatalf("expected strict mode at startup, got %q", rt.svc.ValidationMode())
	}

	// an unrelated edit must not drop the environment override
	writeFile(t, cfgPath, "[logging]\nlevel = \"debug\"\n")
	next, err := config.Load(cfgPath, rt.defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	applyReloadedConfig(rt, next)
	if rt.svc.ValidationMode() != domain.ValidationStrict {
		t.Fatalf("expected strict mode after reload, got %q", rt.svc.ValidationMode())
	}
}

func TestDecodeSnapshotAcceptsJSONAndYAML(t *testing.T) {
	snap, err := decodeSnapshot([]byte(`{"version":"atlascope.snapshot.v1","documents":[]}`))
	if err != nil || snap.Version != app.SnapshotVersion {
		t.Fatalf("decodeSnapshot(json) = %#v, %v", snap, err)
	}
	snap, err = decodeSnapshot([]byte("version: atlascope.snapshot.v1\nexported_at: 2026-03-02T10:00:00Z\ndocuments: []\n"))
	if err != nil {
		t.Fatalf("decodeSnapshot(yaml) error = %v", err)
	}
	if snap.Version != app.SnapshotVersion || !snap.ExportedAt.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected yaml snapshot %#v", snap)
	}
	if _, err := decodeSnapshot([]byte("version: [")); err == nil {
		t.Fatal("expected yaml decode error")
	}
}

func TestChangedFieldsAndShortHash(t *testing.T) {
	if got := changedFields(domain.UpdateScopeInput{}); len(got) != 1 || got[0] != "-" {
		t.Fatalf("changedFields(empty) = %#v", got)
	}
	got := changedFields(domain.UpdateScopeInput{Content: domain.StringPtr(""), OriginalContextData: []string{}})
	if strings.Join(got, ",") != "content,originalContextData" {
		t.Fatalf("changedFields() = %#v", got)
	}
	if shortHash("0123456789abcdef") != "0123456789ab" || shortHash("abc") != "abc" {
		t.Fatal("unexpected shortHash output")
	}
}

func TestRunDevModeCreatesLogFileNextToStore(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program { return fakeProgram{} }

	workspace := t.TempDir()
	t.Chdir(workspace)
	var stderr bytes.Buffer
	args := []string{"--dev", "--db", filepath.Join(workspace, "atlascope.db"), "--config", filepath.Join(workspace, "missing.toml")}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no runtime stderr output in TUI mode, got %q", got)
	}

	logDir := filepath.Join(workspace, ".atlascope", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s", logDir)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "starting tui program loop") {
		t.Fatalf("expected runtime log file to include TUI lifecycle entries, got %q", content)
	}
}

func TestDevLogFilePathResolvesNextToStore(t *testing.T) {
	day := time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	store := filepath.Join("/srv", "atlascope")
	if got, want := devLogFilePath("", store, "atlascope", day), filepath.Join(store, ".atlascope", "log", "atlascope-20260223.log"); got != want {
		t.Fatalf("devLogFilePath(default) = %q, want %q", got, want)
	}
	if got, want := devLogFilePath("logs", store, "my app", day), filepath.Join(store, "logs", "my-app-20260223.log"); got != want {
		t.Fatalf("devLogFilePath(relative) = %q, want %q", got, want)
	}
	abs := filepath.Join(t.TempDir(), "log")
	if got, want := devLogFilePath(abs, store, "atlascope", day), filepath.Join(abs, "atlascope-20260223.log"); got != want {
		t.Fatalf("devLogFilePath(absolute) = %q, want %q", got, want)
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"":               "atlascope",
		"  ":             "atlascope",
		"atlas/scope":    "atlas-scope",
		"my app:dev":     "my-app-dev",
		"/leading/slash": "leading-slash",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	cfg := config.Default("/tmp/atlascope.db").Logging
	logger, err := newRuntimeLogger(&console, loggerOptions{appName: "atlascope", logging: cfg, now: func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	}})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.Component("articles").Info("component during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("expected console log to include before and after, got %q", out)
	}
	if strings.Contains(out, "during") {
		t.Fatalf("expected muted console log to omit muted events, got %q", out)
	}
}
