// Command pubsum filters and summarizes a publication spreadsheet.
//
// Without a subcommand it runs the interactive menu; "pubsum serve" exposes
// the same operations as a JSON API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pubsum/internal/catalog"
	"github.com/JonMunkholm/pubsum/internal/config"
	"github.com/JonMunkholm/pubsum/internal/logging"
	"github.com/JonMunkholm/pubsum/internal/menu"
	"github.com/JonMunkholm/pubsum/internal/store"
	"github.com/JonMunkholm/pubsum/internal/xlsx"
)

// flags override the matching configuration values when set.
type flags struct {
	file      string
	fileType  string
	sheet     string
	outputDir string
	envFiles  []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "pubsum",
		Short: "Filter and summarize a publication spreadsheet",
		Long: `pubsum loads a publication spreadsheet with title, author, year and type
columns, filters it by keyword or year range and summarizes publications
per year. Every filter result is exported to a fixed-name .xlsx file.`,
		Example: `pubsum --file publications.xlsx
pubsum --file publications.xlsx --out exports
pubsum serve --file publications.xlsx`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.file, "file", "f", "", "source spreadsheet (overrides PUBSUM_SOURCE_PATH)")
	pf.StringVarP(&f.fileType, "type", "t", "", "source file type: excel or bibtex (overrides PUBSUM_SOURCE_TYPE)")
	pf.StringVar(&f.sheet, "sheet", "", "sheet to load, first sheet when empty (overrides PUBSUM_SOURCE_SHEET)")
	pf.StringVarP(&f.outputDir, "out", "o", "", "directory for filter exports (overrides PUBSUM_OUTPUT_DIR)")
	pf.StringSliceVar(&f.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")

	root.AddCommand(newServeCmd(f))
	return root
}

// loadConfig reads dotenv files and the environment, then applies flags.
func loadConfig(f *flags) (*config.Config, error) {
	loaded, err := config.LoadDotEnv(f.envFiles...)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if f.file != "" {
		cfg.Source.Path = f.file
	}
	if f.fileType != "" {
		cfg.Source.Type = f.fileType
	}
	if f.sheet != "" {
		cfg.Source.Sheet = f.sheet
	}
	if f.outputDir != "" {
		cfg.Source.OutputDir = f.outputDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, file := range loaded {
		slog.Debug("loaded env file", "path", file)
	}
	return cfg, nil
}

// app is the catalog plus the optional archive it was wired with.
type app struct {
	catalog *catalog.Catalog
	store   *store.Store
	pool    *pgxpool.Pool
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// newApp connects the archive when configured and loads the catalog.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	opts := []catalog.Option{
		catalog.WithOutputDir(cfg.Source.OutputDir),
		catalog.WithLogger(logger),
	}

	if cfg.Database.ArchiveEnabled() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.store = store.New(pool)
		if err := a.store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("export archive enabled", "max_conns", cfg.Database.MaxConns)
		opts = append(opts, catalog.WithArchiver(a.store, cfg.Database.ArchiveTimeout))
	}

	cat, err := catalog.New(
		cfg.Source.Path,
		catalog.FileType(cfg.Source.Type),
		xlsx.Loader{Sheet: cfg.Source.Sheet},
		xlsx.Writer{},
		opts...,
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.catalog = cat
	return a, nil
}

func runMenu(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	// Logs go to stderr so they never interleave with the menu.
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	logger.Debug("configuration loaded", "config", cfg.String())

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", catalog.FormatUserError(err), err)
	}
	defer a.Close()

	m := menu.New(a.catalog, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	return m.Run(cmd.Context())
}
