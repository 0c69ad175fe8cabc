package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/duckdb"
)

func newImportCmd(newLogger func() (*zap.Logger, error)) *cobra.Command {
	var (
		outputPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "import [options] <pairs-file>",
		Short: "Import a pairs file into a DuckDB contacts database",
		Long: `Import read pairs from a 4DN-style or four-column pairs file (optionally
gzipped) into a DuckDB contacts table. Re-importing an unchanged file with
the same read length is skipped.`,
		Example: `  vibe-hic import -o contacts.duckdb sample.pairs.gz
  vibe-hic import --read-length 100 -o contacts.duckdb sample.pairs`,
		Args: usageArgs(cobra.ExactArgs(1)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd.Flags(), map[string]string{
				"read-length": keyReadLength,
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()

			return runImport(logger, args[0], outputPath, viper.GetInt64(keyReadLength), force)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "contacts.duckdb", "Output DuckDB file")
	cmd.Flags().Int64("read-length", contact.DefaultReadLength, "Read length for single-position pair ends")
	cmd.Flags().BoolVar(&force, "force", false, "Re-import even if the file is unchanged")

	return cmd
}

func runImport(logger *zap.Logger, pairsPath, dbPath string, readLength int64, force bool) error {
	fp, err := duckdb.StatFile(pairsPath)
	if err != nil {
		return fmt.Errorf("stat pairs file: %w", err)
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if !force && store.ContactSourceValid(fp, readLength) {
		logger.Info("contacts already imported", zap.String("path", fp.Path), zap.String("db", dbPath))
		return nil
	}

	if err := store.ClearContacts(); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}

	parser, err := contact.NewPairsParser(pairsPath, readLength)
	if err != nil {
		return fmt.Errorf("open pairs file: %w", err)
	}
	defer parser.Close()

	n, err := store.ImportPairs(parser)
	if err != nil {
		return fmt.Errorf("import pairs: %w", err)
	}
	if err := store.RecordContactSource(fp, readLength, n); err != nil {
		return err
	}

	logger.Info("imported contacts",
		zap.String("path", fp.Path),
		zap.String("db", dbPath),
		zap.Int("pairs", n),
		zap.Int64("read_length", readLength))
	return nil
}
