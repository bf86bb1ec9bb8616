package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	serveradapter "github.com/evanschultz/atlascope/internal/adapters/server"
	servercommon "github.com/evanschultz/atlascope/internal/adapters/server/common"
	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/config"
	"github.com/evanschultz/atlascope/internal/domain"
	"github.com/evanschultz/atlascope/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// newEditorModel builds the terminal editor for one document, or the first stored one when docID is empty.
func newEditorModel(svc *app.Service, docID string, ui config.UIConfig) tui.Model {
	return tui.NewModel(svc, tui.WithDocumentID(docID), tui.WithMarkdownStyle(ui.MarkdownStyle))
}

// newServeCommand runs the HTTP and MCP transports until interrupted, reloading validation mode on config edits.
func newServeCommand(opts *rootOptions, env config.EnvOverrides, stderr io.Writer) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, env, stderr, "serve")
			if err != nil {
				return err
			}
			defer rt.Close()

			serverCfg := serveradapter.Config{
				HTTPBind:      firstNonEmpty(httpBind, rt.cfg.Server.HTTP),
				APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
				ServerName:    opts.appName,
				ServerVersion: version,
			}
			deps := serveradapter.Dependencies{Scopes: servercommon.NewAppServiceAdapter(rt.svc)}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// the watcher has nothing to do once the server is gone
				defer cancel()
				rt.logger.Info("serve listening", "http", serverCfg.HTTPBind, "api", serverCfg.APIEndpoint, "mcp", serverCfg.MCPEndpoint)
				if err := serveCommandRunner(gctx, serverCfg, deps); err != nil {
					rt.logger.Error("serve failed", "err", err)
					return fmt.Errorf("run serve command: %w", err)
				}
				return nil
			})
			if watcher, err := config.NewWatcher(rt.configPath, rt.defaults); err != nil {
				rt.logger.Warn("config hot reload disabled", "config_path", rt.configPath, "err", err)
			} else {
				g.Go(func() error {
					return watcher.Run(gctx, func(next config.Config) {
						applyReloadedConfig(rt, next)
					}, func(err error) {
						rt.logger.Warn("config reload failed", "config_path", rt.configPath, "err", err)
					})
				})
			}
			err = g.Wait()
			rt.logger.Info("command flow complete", "command", "serve")
			return err
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "listen address (default from [server] http)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API mount path")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP mount path")
	return cmd
}

// applyReloadedConfig pushes hot-reloadable settings into the running service.
// Environment overrides are layered over the reloaded file exactly as at startup.
func applyReloadedConfig(rt *runtime, next config.Config) {
	next = rt.env.Apply(next)
	mode, err := domain.ParseValidationMode(next.Validation.Mode)
	if err != nil {
		rt.logger.Warn("config reload ignored", "err", err)
		return
	}
	if mode == rt.svc.ValidationMode() {
		return
	}
	if err := rt.svc.SetValidationMode(mode); err != nil {
		rt.logger.Warn("config reload ignored", "err", err)
		return
	}
	rt.logger.Info("validation mode reloaded", "mode", mode)
}

// newExportCommand writes a snapshot of every scope document and its operation log.
func newExportCommand(opts *rootOptions, env config.EnvOverrides, stdout, stderr io.Writer) *cobra.Command {
	var (
		outPath string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all scope documents with their operation logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported export format %q (want json or yaml)", format)
			}
			rt, err := openRuntime(opts, env, stderr, "export")
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := runExport(cmd.Context(), rt.svc, outPath, format, stdout); err != nil {
				rt.logger.Error("command flow failed", "command", "export", "err", err)
				return fmt.Errorf("run export command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "export", "format", format)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "snapshot encoding: json or yaml")
	return cmd
}

// runExport encodes one snapshot to outPath.
func runExport(ctx context.Context, svc *app.Service, outPath, format string, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')
	if format == "yaml" {
		if encoded, err = jsonToYAML(encoded); err != nil {
			return err
		}
	}

	if outPath == "-" || outPath == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// jsonToYAML re-encodes JSON as block-style YAML. Field names keep their JSON spelling.
func jsonToYAML(in []byte) ([]byte, error) {
	var generic any
	if err := yaml.Unmarshal(in, &generic); err != nil {
		return nil, fmt.Errorf("decode snapshot json: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode snapshot yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode snapshot yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// newImportCommand replaces stored documents with the contents of one snapshot file.
func newImportCommand(opts *rootOptions, env config.EnvOverrides, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON or YAML snapshot, re-folding every operation log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			rt, err := openRuntime(opts, env, stderr, "import")
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := runImport(cmd.Context(), rt.svc, inPath); err != nil {
				rt.logger.Error("command flow failed", "command", "import", "err", err)
				return fmt.Errorf("run import command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "import")
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot file (JSON or YAML)")
	return cmd
}

// runImport decodes one snapshot file and hands it to the service.
func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	snap, err := decodeSnapshot(content)
	if err != nil {
		return err
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// decodeSnapshot accepts JSON or YAML; YAML is normalized through JSON so one set of field tags applies.
func decodeSnapshot(content []byte) (app.Snapshot, error) {
	var snap app.Snapshot
	if json.Valid(content) {
		if err := json.Unmarshal(content, &snap); err != nil {
			return app.Snapshot{}, fmt.Errorf("decode snapshot json: %w", err)
		}
		return snap, nil
	}
	var generic any
	if err := yaml.Unmarshal(content, &generic); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode snapshot yaml: %w", err)
	}
	normalized, err := json.Marshal(generic)
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("normalize snapshot yaml: %w", err)
	}
	if err := json.Unmarshal(normalized, &snap); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode snapshot yaml: %w", err)
	}
	return snap, nil
}

// newHistoryCommand prints one document's operation log.
func newHistoryCommand(opts *rootOptions, env config.EnvOverrides, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <document-id>",
		Short: "List the operation log of one scope document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, env, stderr, "history")
			if err != nil {
				return err
			}
			defer rt.Close()

			ops, err := rt.svc.ListOperations(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list operations: %w", err)
			}
			if asJSON {
				return writeIndentedJSON(stdout, ops)
			}
			_, err = fmt.Fprintln(stdout, renderHistory(ops))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print operations as JSON")
	return cmd
}

// renderHistory renders operations as a table, one row per log entry.
func renderHistory(ops []domain.Operation) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("#", "Type", "Changed", "Hash", "Timestamp").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, op := range ops {
		t.Row(
			strconv.Itoa(op.Index),
			string(op.Type),
			strings.Join(changedFields(op.Input), ","),
			shortHash(op.Hash),
			op.Timestamp.UTC().Format(time.RFC3339),
		)
	}
	return t.String()
}

// changedFields lists the input fields present in one update.
func changedFields(in domain.UpdateScopeInput) []string {
	var fields []string
	if in.Name != nil {
		fields = append(fields, "name")
	}
	if in.DocNo != nil {
		fields = append(fields, "docNo")
	}
	if in.Content != nil {
		fields = append(fields, "content")
	}
	if in.MasterStatus != nil {
		fields = append(fields, "masterStatus")
	}
	if in.GlobalTags != nil {
		fields = append(fields, "globalTags")
	}
	if in.OriginalContextData != nil {
		fields = append(fields, "originalContextData")
	}
	if in.Provenance != nil {
		fields = append(fields, "provenance")
	}
	if len(fields) == 0 {
		return []string{"-"}
	}
	return fields
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

// newReplayCommand re-folds one operation log and compares the hash with the stored document.
func newReplayCommand(opts *rootOptions, env config.EnvOverrides, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <document-id>",
		Short: "Rebuild one scope document from its operation log and verify the state hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, env, stderr, "replay")
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.svc.ReplayScope(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("replay scope: %w", err)
			}
			if err := writeIndentedJSON(stdout, result); err != nil {
				return err
			}
			if !result.Matches {
				rt.logger.Warn("replay hash mismatch", "doc", result.DocumentID, "hash", result.Hash, "stored_hash", result.StoredHash)
				return fmt.Errorf("replay hash mismatch for %s", result.DocumentID)
			}
			return nil
		},
	}
}

// newUpdateCommand appends one UPDATE_SCOPE operation read from a JSON file.
func newUpdateCommand(opts *rootOptions, env config.EnvOverrides, stdout, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "update <document-id>",
		Short: "Apply one UPDATE_SCOPE input from a JSON file ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readUpdateInput(inPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			rt, err := openRuntime(opts, env, stderr, "update")
			if err != nil {
				return err
			}
			defer rt.Close()

			doc, op, err := rt.svc.UpdateScope(cmd.Context(), args[0], in)
			if err != nil {
				rt.logger.Error("command flow failed", "command", "update", "err", err)
				return fmt.Errorf("update scope: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "update", "doc", doc.ID, "revision", doc.Revision)
			return writeIndentedJSON(stdout, servercommon.UpdateScopeResult{Document: doc, Operation: op})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "UpdateScopeInput JSON file")
	return cmd
}

// readUpdateInput strictly decodes one UpdateScopeInput so absent and empty fields stay distinct.
func readUpdateInput(path string, stdin io.Reader) (domain.UpdateScopeInput, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.UpdateScopeInput{}, errors.New("--in is required")
	}
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.UpdateScopeInput{}, fmt.Errorf("read update input: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	var in domain.UpdateScopeInput
	if err := dec.Decode(&in); err != nil {
		return domain.UpdateScopeInput{}, fmt.Errorf("decode update input: %w", err)
	}
	return in, nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
