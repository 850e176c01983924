package main

import (
	"os"
	"strings"

	"github.com/Skufu/bloodpanel/internal/classifier"
	"github.com/Skufu/bloodpanel/internal/dataset"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	FlagConfig     = "config"
	FlagData       = "data"
	FlagTrees      = "trees"
	FlagForestSeed = "forest-seed"
	FlagSplitSeed  = "split-seed"
	FlagTestSize   = "test-size"
	FlagLogLevel   = "log-level"
)

// cli carries the state shared by every subcommand of one root command.
type cli struct {
	v       *viper.Viper
	cfgFile string
	log     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &cli{v: viper.New(), log: logrus.New()}

	root := &cobra.Command{
		Use:           "bloodpanel",
		Short:         "Train and query the blood panel disease classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, FlagConfig, "", "config file (default is $HOME/.bloodpanel.yaml)")
	pf.String(FlagData, "", "training CSV; the embedded table is used when empty")
	pf.Int(FlagTrees, 100, "number of trees in the forest")
	pf.Int64(FlagForestSeed, 0, "forest seed; 0 leaves it unpinned")
	pf.Int64(FlagSplitSeed, classifier.DefaultSplitSeed, "train/test split seed")
	pf.Float64(FlagTestSize, classifier.DefaultTestSize, "share of rows held out for scoring")
	pf.String(FlagLogLevel, "warn", "log level")

	root.AddCommand(
		newPredictCmd(a),
		newEvaluateCmd(a),
		newImportCmd(a),
		newCatalogCmd(),
	)
	return root
}

// initConfig layers flags over BLOODPANEL_* env vars over the config file.
func (a *cli) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return errors.Wrap(err, "find home directory")
		}
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".bloodpanel")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("BLOODPANEL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "read config")
		}
	}

	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind flags")
	}

	lvl, err := logrus.ParseLevel(a.v.GetString(FlagLogLevel))
	if err != nil {
		return err
	}
	a.log.SetLevel(lvl)
	a.log.SetOutput(os.Stderr)
	return nil
}

func (a *cli) source() dataset.CSVSource {
	return dataset.CSVSource{Path: a.v.GetString(FlagData)}
}

func (a *cli) options() classifier.Options {
	opts := classifier.DefaultOptions()
	opts.Trees = a.v.GetInt(FlagTrees)
	opts.ForestSeed = a.v.GetInt64(FlagForestSeed)
	opts.SplitSeed = a.v.GetInt64(FlagSplitSeed)
	opts.TestSize = a.v.GetFloat64(FlagTestSize)
	return opts
}
