package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/duckdb"
	"github.com/inodb/vibe-hic/internal/interaction"
	"github.com/inodb/vibe-hic/internal/output"
	"github.com/inodb/vibe-hic/internal/probe"
	"github.com/inodb/vibe-hic/internal/progress"
)

// matrixConfig holds the matrix command settings not read from viper.
type matrixConfig struct {
	probeFiles     []string
	contactsPath   string
	outputPath     string
	dbPath         string
	probeListPath  string
	clustersPath   string
	clusterR       float32
	minClusterSize int
}

func newMatrixCmd(newLogger func() (*zap.Logger, error)) *cobra.Command {
	var cfg matrixConfig

	cmd := &cobra.Command{
		Use:   "matrix [options]",
		Short: "Build and filter the interaction matrix between probes",
		Long: `Count Hi-C read pairs linking every pair of probes, score each pair with
an observed/expected ratio and a multiple-testing corrected binomial p-value,
and write the interactions passing the filters.

Contacts are read from a pairs file or from a database written by
'vibe-hic import' (a path ending in .duckdb).`,
		Example: `  vibe-hic matrix --probes promoters.bed --contacts contacts.duckdb
  vibe-hic matrix --probes a.bed --probes b.bed --contacts sample.pairs.gz \
      --max-significance 0.01 --min-absolute 5 -o hits.tsv
  vibe-hic matrix --probes promoters.bed --contacts contacts.duckdb \
      --clusters clusters.tsv --cluster-r 0.7 --min-cluster-size 3`,
		Args: usageArgs(cobra.NoArgs),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.probeFiles) == 0 {
				return usageError{fmt.Errorf("at least one --probes file is required")}
			}
			if cfg.contactsPath == "" {
				return usageError{fmt.Errorf("--contacts is required")}
			}
			return bindFlags(cmd.Flags(), map[string]string{
				"min-distance":     keyMinDistance,
				"max-distance":     keyMaxDistance,
				"min-strength":     keyMinStrength,
				"max-significance": keyMaxSignificance,
				"min-absolute":     keyMinAbsolute,
				"correct-linkage":  keyCorrectLinkage,
				"max-interactions": keyMaxInteractions,
				"workers":          keyWorkers,
				"read-length":      keyReadLength,
				"min-fragment":     keyContactMinDist,
				"ignore-trans":     keyIgnoreTrans,
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runMatrix(ctx, logger, cfg, cmd.OutOrStdout())
		},
	}

	defaults := interaction.DefaultFilters()
	f := cmd.Flags()
	f.StringArrayVar(&cfg.probeFiles, "probes", nil, "Probe BED file (repeatable)")
	f.StringVar(&cfg.contactsPath, "contacts", "", "Pairs file or contacts .duckdb database")
	f.StringVarP(&cfg.outputPath, "output", "o", "", "Interaction report file (default: stdout)")
	f.StringVar(&cfg.dbPath, "db", "", "Also store the filtered interactions in this DuckDB database")
	f.StringVar(&cfg.probeListPath, "probe-list", "", "Write the probes taking part in filtered interactions")
	f.StringVar(&cfg.clustersPath, "clusters", "", "Write correlation clusters of the filtered interactions")
	f.Float32Var(&cfg.clusterR, "cluster-r", 0.7, "Correlation threshold for clusters")
	f.IntVar(&cfg.minClusterSize, "min-cluster-size", 2, "Smallest cluster to report")

	f.Int64("min-distance", defaults.MinDistance, "Minimum cis distance between probes")
	f.Int64("max-distance", defaults.MaxDistance, "Maximum cis distance between probes (0 for no limit; excludes trans)")
	f.Float64("min-strength", defaults.MinStrength, "Minimum observed/expected ratio")
	f.Float64("max-significance", defaults.MaxSignificance, "Maximum corrected p-value")
	f.Int("min-absolute", defaults.MinAbsolute, "Minimum number of read pairs")
	f.Bool("correct-linkage", true, "Correct cis expectations for distance between probes")
	f.Int("max-interactions", interaction.DefaultMaxInteractions, "Maximum interactions to retain")
	f.Int("workers", 0, "Goroutines collecting probe totals (0 for one per CPU)")
	f.Int64("read-length", contact.DefaultReadLength, "Read length for single-position pair ends")
	f.Int64("min-fragment", 0, "Drop cis read pairs spanning less than this")
	f.Bool("ignore-trans", false, "Drop trans read pairs")

	return cmd
}

func runMatrix(ctx context.Context, logger *zap.Logger, cfg matrixConfig, stdout io.Writer) error {
	lists := make([]*probe.List, 0, len(cfg.probeFiles))
	for _, path := range cfg.probeFiles {
		l, err := probe.ReadBEDFile(path)
		if err != nil {
			return err
		}
		logger.Info("loaded probes", zap.String("path", path), zap.Int("probes", l.Len()))
		lists = append(lists, l)
	}

	source, err := loadContacts(logger, cfg.contactsPath)
	if err != nil {
		return err
	}

	m := interaction.NewMatrix(source, lists, interaction.Options{
		Filters:         filtersFromConfig(),
		CorrectLinkage:  viper.GetBool(keyCorrectLinkage),
		MaxInteractions: viper.GetInt(keyMaxInteractions),
		Workers:         viper.GetInt(keyWorkers),
	})
	m.SetLogger(logger)
	progressLog := progress.NewLogListener(logger)
	m.AddProgressListener(progressLog)

	if err := m.Run(ctx); err != nil {
		return err
	}
	hits := m.FilteredInteractions()
	logger.Info("filtered interactions", zap.Int("interactions", len(hits)), zap.Float64("max_value", m.MaxValue()))

	if err := writeReport(cfg.outputPath, stdout, hits); err != nil {
		return err
	}

	if cfg.dbPath != "" {
		stored, err := storeInteractions(cfg.dbPath, hits)
		if err != nil {
			return err
		}
		logger.Info("stored interactions", zap.String("db", cfg.dbPath), zap.Int64("interactions", stored))
	}

	if cfg.probeListPath != "" {
		if err := writeFile(cfg.probeListPath, func(w io.Writer) error {
			pw := output.NewProbeListWriter(w)
			if err := pw.WriteList(m.ProbeListFromCurrentInteractions()); err != nil {
				return err
			}
			return pw.Flush()
		}); err != nil {
			return err
		}
	}

	if cfg.clustersPath != "" {
		corr := interaction.NewCorrelationMatrix(hits, m.ProbeCount())
		corr.AddProgressListener(progressLog)
		if err := corr.Run(ctx); err != nil {
			return err
		}
		m.SetCluster(interaction.NewThresholdClusters(corr))
		m.SetClusterRValue(cfg.clusterR)

		clusters, err := m.ProbeListsFromClusters(cfg.minClusterSize, 0, math.MaxInt)
		if err != nil {
			return err
		}
		logger.Info("found clusters", zap.Int("clusters", len(clusters.Children())), zap.Float32("r", cfg.clusterR))
		if err := writeFile(cfg.clustersPath, func(w io.Writer) error {
			pw := output.NewProbeListWriter(w)
			if err := pw.WriteChildren(clusters); err != nil {
				return err
			}
			return pw.Flush()
		}); err != nil {
			return err
		}
	}

	return nil
}

// loadContacts builds the in-memory contact store from a pairs file or an
// imported contacts database.
func loadContacts(logger *zap.Logger, path string) (*contact.Store, error) {
	store := contact.NewStore(storeOptionsFromConfig())

	var n int
	if strings.HasSuffix(strings.ToLower(path), ".duckdb") {
		db, err := duckdb.Open(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if n, err = db.LoadContacts(store); err != nil {
			return nil, fmt.Errorf("load contacts: %w", err)
		}
		counts, err := db.ChromosomeContactCounts()
		if err != nil {
			return nil, err
		}
		chroms := make([]string, 0, len(counts))
		for chrom := range counts {
			chroms = append(chroms, chrom)
		}
		slices.SortFunc(chroms, probe.CompareChrom)
		for _, chrom := range chroms {
			logger.Debug("stored contacts", zap.String("chrom", chrom), zap.Int64("read_ends", counts[chrom]))
		}
	} else {
		parser, err := contact.NewPairsParser(path, viper.GetInt64(keyReadLength))
		if err != nil {
			return nil, fmt.Errorf("open contacts: %w", err)
		}
		defer parser.Close()
		if n, err = contact.LoadPairs(parser, store); err != nil {
			return nil, fmt.Errorf("load contacts: %w", err)
		}
	}
	store.Finalise()

	logger.Info("loaded contacts",
		zap.String("path", path),
		zap.Int("read_pairs", n),
		zap.Int64("accepted", store.PairCount()),
		zap.Int64("cis", store.CisCount()),
		zap.Int64("trans", store.TransCount()))
	return store, nil
}

func writeReport(path string, stdout io.Writer, hits []*interaction.Pair) error {
	if path == "" {
		return output.NewReportWriter(stdout).WriteAll(hits)
	}
	return writeFile(path, func(w io.Writer) error {
		return output.NewReportWriter(w).WriteAll(hits)
	})
}

// storeInteractions replaces the interactions in the database at path and
// returns the number stored.
func storeInteractions(path string, hits []*interaction.Pair) (int64, error) {
	db, err := duckdb.Open(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := db.ClearInteractions(); err != nil {
		return 0, fmt.Errorf("clear interactions: %w", err)
	}
	if err := db.WriteInteractions(hits); err != nil {
		return 0, fmt.Errorf("store interactions: %w", err)
	}
	return db.InteractionCount()
}

// writeFile creates path and hands it to write, closing it afterwards.
func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
