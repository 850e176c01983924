package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Skufu/bloodpanel/internal/catalog"
	"github.com/Skufu/bloodpanel/internal/classifier"
	"github.com/Skufu/bloodpanel/internal/dataset"
	"github.com/Skufu/bloodpanel/internal/panel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	FlagDatabaseURL = "database-url"
	FlagTable       = "table"
)

func newPredictCmd(a *cli) *cobra.Command {
	values := make([]float64, panel.NumFields)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify one panel and print the same JSON as /api/analyze",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := panel.FromVector(values)
			if err != nil {
				return err
			}

			svc, err := classifier.New(a.source(), a.options(), a.log)
			if err != nil {
				return err
			}
			label, err := svc.Predict(cmd.Context(), input)
			if err != nil {
				return errors.Wrap(err, "classify panel")
			}
			disease, cause, err := catalog.Resolve(label)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(panel.NewResult(input, label, disease, cause))
		},
	}

	for i, field := range panel.Fields() {
		name := strings.ToLower(field)
		cmd.Flags().Float64Var(&values[i], name, 0, field+" measurement")
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newEvaluateCmd(a *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Fit on the training partition and report hold-out accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := a.source()
			table, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}

			opts := a.options()
			m, err := classifier.Train(cmd.Context(), table, opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "source\t%s\n", src)
			fmt.Fprintf(w, "table hash\t%s\n", m.TableHash)
			fmt.Fprintf(w, "trees\t%d\n", opts.Trees)
			fmt.Fprintf(w, "forest seed\t%d\n", m.Seed)
			fmt.Fprintf(w, "train rows\t%d\n", m.TrainRows)
			fmt.Fprintf(w, "test rows\t%d\n", m.TestRows)
			fmt.Fprintf(w, "accuracy\t%.4f\n", m.Accuracy)
			fmt.Fprintf(w, "fit time\t%s\n", m.Duration)
			return w.Flush()
		},
	}
}

func newImportCmd(a *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Load a training CSV into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.v.GetString(FlagDatabaseURL)
			if url == "" {
				return errors.Errorf("--%s (or BLOODPANEL_DATABASE_URL) is required", FlagDatabaseURL)
			}
			table, err := dataset.CSVSource{Path: args[0]}.Load(cmd.Context())
			if err != nil {
				return err
			}
			n, err := importTable(cmd.Context(), url, a.v.GetString(FlagTable), table)
			if err != nil {
				return err
			}
			a.log.WithField("rows", n).Info("training table imported")
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", n, a.v.GetString(FlagTable))
			return nil
		},
	}
	cmd.Flags().String(FlagDatabaseURL, "", "Postgres connection string")
	cmd.Flags().String(FlagTable, dataset.DefaultTableName, "destination table")
	return cmd
}

func importTable(ctx context.Context, url, name string, table dataset.Table) (int64, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return 0, errors.Wrap(err, "connect")
	}
	defer pool.Close()

	if err := dataset.EnsureSchema(ctx, pool, name); err != nil {
		return 0, err
	}
	return dataset.Import(ctx, pool, name, table)
}

func newCatalogCmd() *cobra.Command {
	var withCauses bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the label to disease table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tDISEASE")
			for _, e := range catalog.All() {
				fmt.Fprintf(w, "%d\t%s\n", e.Label, e.Name)
				if withCauses {
					for _, c := range e.Causes() {
						fmt.Fprintf(w, "\t  %s\n", strings.TrimSpace(c))
					}
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&withCauses, "causes", false, "list possible causes under each disease")
	return cmd
}
