package cli

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/roach88/sensorreplay/internal/config"
	"github.com/roach88/sensorreplay/internal/directory"
)

// configureLogging installs the process-wide slog handler.
// quiet raises the default level to Warn for commands whose own output
// would be drowned by engine progress logs.
func configureLogging(w io.Writer, verbose, quiet bool) {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// setup is a loaded and validated config plus its channel directory.
type setup struct {
	Config    config.Config
	Directory *directory.Directory
}

// loadSetup loads the config file and the directory tables it names.
// Relative table paths, and the host directory of a file: datastore, are
// resolved against the config file's directory.
// The returned error carries the CLI error code to report.
func loadSetup(configPath string) (*setup, string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, ErrCodeConfig, err
	}

	base := filepath.Dir(configPath)
	cfg.EndpointsFile = resolvePath(base, cfg.EndpointsFile)
	cfg.RegistersFile = resolvePath(base, cfg.RegistersFile)
	if cfg.URLPrefix == "file:" {
		if cfg.Host == "" {
			cfg.Host = base
		} else {
			cfg.Host = resolvePath(base, cfg.Host)
		}
	}

	dir, err := directory.Load(cfg.EndpointsFile, cfg.RegistersFile)
	if err != nil {
		return nil, ErrCodeDirectory, err
	}
	return &setup{Config: cfg, Directory: dir}, "", nil
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
