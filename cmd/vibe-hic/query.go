package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-hic/internal/duckdb"
	"github.com/inodb/vibe-hic/internal/output"
)

func newQueryCmd() *cobra.Command {
	var (
		outputPath string
		probeName  string
		maxP       float64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "query [options] <results.duckdb>",
		Short: "Report interactions stored by 'vibe-hic matrix --db'",
		Long: `Report stored interactions, either those involving one probe (strongest
first) or those at or below a p-value (most significant first).`,
		Example: `  vibe-hic query --probe MYC_promoter results.duckdb
  vibe-hic query --max-p 0.01 --limit 100 -o top.tsv results.duckdb`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := duckdb.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			var rows []duckdb.InteractionRow
			if probeName != "" {
				rows, err = db.InteractionsForProbe(probeName)
			} else {
				rows, err = db.SignificantInteractions(maxP, limit)
			}
			if err != nil {
				return err
			}
			if probeName != "" && limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}

			write := func(w io.Writer) error {
				rw := output.NewReportWriter(w)
				if err := rw.WriteHeader(); err != nil {
					return err
				}
				for _, r := range rows {
					if err := rw.WriteStored(r); err != nil {
						return err
					}
				}
				return rw.Flush()
			}
			if outputPath == "" {
				return write(cmd.OutOrStdout())
			}
			if err := writeFile(outputPath, write); err != nil {
				return fmt.Errorf("write query results: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&probeName, "probe", "", "Only interactions involving this probe")
	cmd.Flags().Float64Var(&maxP, "max-p", 1, "Maximum corrected p-value")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to report (0 for all)")

	return cmd
}
