package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rshade/tablesync/internal/logging"
)

// Directory and file names.
const (
	dirName    = ".tablesync"
	configFile = "config.yaml"
)

// GetConfigDir returns the global configuration directory:
// $TABLESYNC_HOME when set, else ~/.tablesync.
func GetConfigDir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, dirName), nil
}

// DefaultPath returns the global config file path.
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// ProjectConfigPath returns the overlay file inside a resolved project directory.
func ProjectConfigPath(projectDir string) string {
	return filepath.Join(projectDir, configFile)
}

// ResolveProjectDir finds the project-local .tablesync directory. It checks,
// in order, flagValue, $TABLESYNC_PROJECT_DIR, then walks up from startDir
// looking for an existing .tablesync directory. It returns "" when none is
// found and never creates anything.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}
	if envDir := os.Getenv(EnvProjectDir); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}
	if startDir == "" {
		return ""
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	global, _ := GetConfigDir()
	for {
		candidate := filepath.Join(dir, dirName)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() && candidate != global {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load builds the effective configuration. path selects the global file;
// empty means DefaultPath, and a missing default file is not an error.
// projectDir, when set, is shallow-merged on top. Environment overrides are
// applied last and the result is validated.
func Load(ctx context.Context, path, projectDir string) (*Config, error) {
	cfg := New()
	logger := logging.FromContext(ctx)

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if err := ShallowMergeYAML(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Debug().
			Str("component", "config").
			Str("path", path).
			Msg("no global config file; using defaults")
	}

	if projectDir != "" {
		overlayPath := ProjectConfigPath(projectDir)
		if _, err := os.Stat(overlayPath); err == nil {
			merged := *cfg
			if mergeErr := ShallowMergeYAML(&merged, overlayPath); mergeErr != nil {
				logger.Warn().
					Str("component", "config").
					Str("operation", "merge_project_config").
					Err(mergeErr).
					Str("overlay_path", overlayPath).
					Msg("failed to merge project config, using global settings")
			} else {
				cfg = &merged
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// toAbsProjectDir converts dir to an absolute path ending in ".tablesync".
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}
	if filepath.Base(abs) == dirName {
		return abs
	}
	return filepath.Join(abs, dirName)
}
