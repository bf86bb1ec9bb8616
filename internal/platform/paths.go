package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names config and data directories when no override is given.
const DefaultAppName = "atlascope"

// Paths holds the resolved on-disk locations for one app name.
type Paths struct {
	AppName     string
	ConfigPath  string
	DataDir     string
	DBPath      string
	SnapshotDir string
}

// Options defines optional settings for configuration.
type Options struct {
	AppName string
	DevMode bool
}

// BaseDirs are the per-user roots paths are resolved under.
type BaseDirs struct {
	Config string
	Data   string
}

// DefaultPathsWithOptions resolves paths for the current OS and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	base, err := userBaseDirs(runtime.GOOS)
	if err != nil {
		return Paths{}, err
	}
	return PathsFor(runtime.GOOS, os.Getenv, base, AppName(opts))
}

// AppName returns the directory stem for opts; dev mode gets a separate "-dev" tree.
func AppName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if opts.DevMode {
		name += "-dev"
	}
	return name
}

// userBaseDirs returns the OS default config and data roots.
func userBaseDirs(goos string) (BaseDirs, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return BaseDirs{}, fmt.Errorf("user config dir: %w", err)
	}
	base := BaseDirs{Config: configDir, Data: configDir}
	if goos == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return BaseDirs{}, fmt.Errorf("user home dir: %w", err)
		}
		base.Data = filepath.Join(home, ".local", "share")
	}
	return base, nil
}

// PathsFor resolves paths from explicit inputs. getenv may be nil.
func PathsFor(goos string, getenv func(string) string, base BaseDirs, appName string) (Paths, error) {
	if base.Config == "" || base.Data == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	configBase, dataBase := base.Config, base.Data
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		if v := strings.TrimSpace(getenv("XDG_CONFIG_HOME")); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(getenv("XDG_DATA_HOME")); v != "" {
			dataBase = v
		}
	case "windows":
		if v := strings.TrimSpace(getenv("APPDATA")); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(getenv("LOCALAPPDATA")); v != "" {
			dataBase = v
		}
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		AppName:     appName,
		ConfigPath:  filepath.Join(configBase, appName, "config.toml"),
		DataDir:     dataDir,
		DBPath:      filepath.Join(dataDir, appName+".db"),
		SnapshotDir: filepath.Join(dataDir, "snapshots"),
	}, nil
}
