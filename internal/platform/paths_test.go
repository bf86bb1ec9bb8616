package platform

import (
	"path/filepath"
	"testing"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestPathsForLinuxWithXDG(t *testing.T) {
	p, err := PathsFor("linux", envMap(map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}), BaseDirs{Config: "/fallback/config", Data: "/fallback/data"}, "atlascope")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join("/xdg/config", "atlascope", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join("/xdg/data", "atlascope", "atlascope.db"); p.DBPath != want {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
	if want := filepath.Join("/xdg/data", "atlascope", "snapshots"); p.SnapshotDir != want {
		t.Fatalf("unexpected snapshot dir %q", p.SnapshotDir)
	}
}

func TestPathsForWindowsUsesAppData(t *testing.T) {
	p, err := PathsFor("windows", envMap(map[string]string{
		"APPDATA":      `C:\Users\me\AppData\Roaming`,
		"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
	}), BaseDirs{Config: `C:\fallback\config`, Data: `C:\fallback\data`}, "atlascope")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Roaming`, "atlascope", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Local`, "atlascope", "atlascope.db"); p.DBPath != want {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

func TestPathsForDarwinIgnoresXDG(t *testing.T) {
	support := "/Users/me/Library/Application Support"
	p, err := PathsFor("darwin", envMap(map[string]string{
		"XDG_CONFIG_HOME": "/ignored",
	}), BaseDirs{Config: support, Data: support}, "atlascope")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join(support, "atlascope", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
}

func TestPathsForRejectsEmptyInputs(t *testing.T) {
	if _, err := PathsFor("darwin", nil, BaseDirs{Data: "/tmp/data"}, "atlascope"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("linux", nil, BaseDirs{Config: "/c", Data: "/d"}, "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

func TestAppName(t *testing.T) {
	if got := AppName(Options{}); got != DefaultAppName {
		t.Fatalf("unexpected default app name %q", got)
	}
	if got := AppName(Options{AppName: " scopes ", DevMode: true}); got != "scopes-dev" {
		t.Fatalf("unexpected dev app name %q", got)
	}
}
