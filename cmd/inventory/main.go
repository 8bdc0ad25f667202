// Command inventory converts hardware inventory spreadsheets into per-asset
// YAML records and serves or imports them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/inventory/internal/asset"
	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/logging"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "error: read .env: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	// cobra falls back to os.Args for a nil slice.
	if args == nil {
		args = []string{}
	}

	root := newRootCmd(cfg, stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

// reportError prints err as one line on stderr. Usage errors print the
// command's usage; mapped errors print their code and suggested action.
func reportError(w io.Writer, err error) {
	var uerr *usageError
	switch {
	case errors.As(err, &uerr):
		fmt.Fprintf(w, "usage: %s\n", uerr.usage)
	case asset.IsUserFacing(err):
		fmt.Fprintf(w, "error: %s\n", asset.FormatUserError(err))
	default:
		fmt.Fprintf(w, "error: %v\n", err)
	}
}
