package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/analysis"
	"github.com/swelljoe/rocketdash/internal/config"
	"github.com/swelljoe/rocketdash/internal/db"
	"github.com/swelljoe/rocketdash/internal/logging"
	"github.com/swelljoe/rocketdash/internal/telemetry"
)

var (
	configPath string
	noDB       bool
)

var rootCmd = &cobra.Command{
	Use:   "import-flights <dir|file.csv|archive.zip>...",
	Short: "Normalise logger CSVs into the data directory and catalog them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		defer logger.Sync()

		imp := &importer{dataDir: cfg.DataDir, gravity: cfg.Simulator.Gravity, logger: logger}
		if !noDB {
			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer database.Close()
			imp.catalog = database
		}

		n, err := imp.run(args)
		fmt.Fprintf(cmd.OutOrStdout(), "Finished importing %d flights.\n", n)
		return err
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "rocketdash.yaml", "path to the YAML config file")
	rootCmd.Flags().BoolVar(&noDB, "no-db", false, "only write the files, skip the flight catalog")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type catalog interface {
	UpsertFlight(f db.Flight) error
}

type importer struct {
	dataDir string
	gravity float64
	catalog catalog // nil skips cataloging
	logger  *zap.Logger
}

// run imports every source and returns how many flights were written.
// Unreadable flights are logged and skipped.
func (imp *importer) run(sources []string) (int, error) {
	if err := os.MkdirAll(imp.dataDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create data dir: %w", err)
	}

	count := 0
	for _, src := range sources {
		n, err := imp.importSource(src)
		count += n
		if err != nil {
			return count, fmt.Errorf("%s: %w", src, err)
		}
	}
	return count, nil
}

func (imp *importer) importSource(src string) (int, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	switch {
	case info.IsDir():
		names, err := telemetry.ListCSV(src)
		if err != nil {
			return 0, err
		}
		count := 0
		for _, name := range names {
			if imp.importFile(filepath.Join(src, name)) {
				count++
			}
		}
		return count, nil

	case strings.EqualFold(filepath.Ext(src), ".zip"):
		r, err := zip.OpenReader(src)
		if err != nil {
			return 0, err
		}
		defer r.Close()

		count := 0
		for _, f := range r.File {
			if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return count, err
			}
			ok := imp.importFlight(filepath.Base(f.Name), rc)
			rc.Close()
			if ok {
				count++
			}
		}
		if count == 0 {
			return 0, fmt.Errorf("no csv file found in %s", src)
		}
		return count, nil
	}

	if !imp.importFile(src) {
		return 0, fmt.Errorf("could not import %s", src)
	}
	return 1, nil
}

func (imp *importer) importFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		imp.logger.Warn("skipping flight", zap.String("file", path), zap.Error(err))
		return false
	}
	defer f.Close()
	return imp.importFlight(filepath.Base(path), f)
}

// importFlight parses r, writes the normalised file as name into the data
// directory and records it in the catalog.
func (imp *importer) importFlight(name string, r io.Reader) bool {
	flight, err := telemetry.Parse(r)
	if err != nil {
		imp.logger.Warn("skipping flight", zap.String("file", name), zap.Error(err))
		return false
	}
	flight.Name = name

	var buf bytes.Buffer
	if err := telemetry.Write(&buf, flight); err != nil {
		imp.logger.Warn("skipping flight", zap.String("file", name), zap.Error(err))
		return false
	}
	dest := filepath.Join(imp.dataDir, name)
	if err := os.WriteFile(dest, buf.Bytes(), 0644); err != nil {
		imp.logger.Error("failed to write flight", zap.String("file", dest), zap.Error(err))
		return false
	}

	s := analysis.Summarize(flight, imp.gravity)
	if imp.catalog != nil {
		err := imp.catalog.UpsertFlight(db.Flight{
			Name:     name,
			File:     name,
			Rows:     s.Samples,
			Apogee:   s.Apogee,
			Duration: s.Duration,
		})
		if err != nil {
			imp.logger.Error("failed to catalog flight", zap.String("file", name), zap.Error(err))
			return false
		}
	}
	imp.logger.Info("imported flight",
		zap.String("file", name),
		zap.Int("rows", s.Samples),
		zap.Float64("apogee_m", s.Apogee))
	return true
}
