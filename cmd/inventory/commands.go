package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/inventory/internal/asset"
	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/store"
	"github.com/JonMunkholm/inventory/internal/web"
)

// usageError reports a wrong number of positional arguments.
type usageError struct {
	usage string
}

func (e *usageError) Error() string {
	return "usage: " + e.usage
}

// rootUsage is printed when no subcommand is given.
const rootUsage = "inventory <convert|load|serve|import> <path>"

// exactArg requires exactly one positional argument.
func exactArg(usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return &usageError{usage: usage}
		}
		return nil
	}
}

// tableOptions select how an input file becomes records.
type tableOptions struct {
	sheet        string
	headerLayout bool
}

func (o *tableOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.sheet, "sheet", "", "XLSX sheet to read (default: first sheet)")
	cmd.Flags().BoolVar(&o.headerLayout, "header-layout", false, "Bind columns by header name instead of the fixed column order")
}

// readRecords maps every data row of path into a record. Any bad row fails
// the whole file.
func readRecords(ctx context.Context, cfg *config.Config, path string, opts tableOptions) ([]asset.Record, error) {
	table, err := asset.OpenTable(path, opts.sheet, cfg.Inventory.MaxFileSize)
	if err != nil {
		return nil, err
	}

	layout := asset.ReferenceLayout()
	if opts.headerLayout {
		layout, err = asset.LayoutFromHeader(table.Header)
		if err != nil {
			return nil, err
		}
	}

	m, err := asset.NewMapper(layout)
	if err != nil {
		return nil, err
	}

	records, err := asset.MapRows(ctx, m, table.Rows, cfg.Inventory.Workers)
	if err != nil {
		return nil, err
	}

	slog.Debug("rows mapped", "file", path, "rows", len(table.Rows), "records", len(records))
	return records, nil
}

func newLoader(cfg *config.Config) *asset.Loader {
	return asset.NewLoader(
		asset.WithExtension(cfg.Inventory.Extension),
		asset.WithWorkers(cfg.Inventory.Workers),
	)
}

func newRootCmd(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "inventory",
		Short:         "Convert and serve hardware inventory records",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return &usageError{usage: rootUsage}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newConvertCmd(cfg),
		newLoadCmd(cfg),
		newServeCmd(cfg),
		newImportCmd(cfg),
	)
	return root
}

func newConvertCmd(cfg *config.Config) *cobra.Command {
	var (
		opts      tableOptions
		outDir    string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "convert <csv_file>",
		Short: "Write one YAML record per spreadsheet row",
		Args:  exactArg("inventory convert <csv_file>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd.Context(), cfg, args[0], opts)
			if err != nil {
				return err
			}

			w := &asset.Writer{
				Extension: cfg.Inventory.Extension,
				Overwrite: overwrite || cfg.Inventory.Overwrite,
			}
			paths, err := w.WriteAll(cmd.Context(), outDir, records)
			if err != nil {
				return err
			}

			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", cfg.Inventory.OutputDir, "Output directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing record files")
	return cmd
}

func newLoadCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "load <yaml_dir>",
		Short: "Load a record directory and report what parsed",
		Args:  exactArg("inventory load <yaml_dir>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newLoader(cfg).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loaded %d records from %s\n", len(result.Records), result.Dir)
			for _, l := range result.Records {
				fmt.Fprintf(out, "  %s\n", l.Identity)
			}

			if len(result.Errors) > 0 {
				errOut := cmd.ErrOrStderr()
				fmt.Fprintf(errOut, "%d files failed:\n", len(result.Errors))
				for _, e := range result.Errors {
					msg := asset.MapError(e)
					fmt.Fprintf(errOut, "  %s: %v (Code: %s)\n", e.File, e.Err, msg.Code)
				}
				return result.Err()
			}
			return nil
		},
	}
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <yaml_dir>",
		Short: "Serve a record directory over HTTP",
		Args:  exactArg("inventory serve <yaml_dir>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := web.NewServer(cfg, newLoader(cfg), args[0])
			if _, err := server.Reload(cmd.Context()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Server.ReloadInterval > 0 {
				go server.StartReloadScheduler(ctx, cfg.Server.ReloadInterval)
			}

			// done closes once Shutdown has drained the server and any
			// running reload.
			done := make(chan struct{})
			go func() {
				defer close(done)
				<-ctx.Done()
				slog.Info("shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			err := server.Start()
			stop()
			<-done
			return err
		},
	}
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	var opts tableOptions

	cmd := &cobra.Command{
		Use:   "import <csv_file>",
		Short: "Upsert spreadsheet rows into PostgreSQL",
		Args:  exactArg("inventory import <csv_file>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateDatabase(); err != nil {
				return err
			}

			records, err := readRecords(cmd.Context(), cfg, args[0], opts)
			if err != nil {
				return err
			}

			pool, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			st := store.New(pool)
			if err := st.EnsureSchema(cmd.Context()); err != nil {
				return err
			}

			batchID := uuid.New()
			if err := st.UpsertAssets(cmd.Context(), batchID, records); err != nil {
				return err
			}

			total, err := st.CountAssets(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records (import %s), %d assets in database\n",
				len(records), batchID, total)
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}
