// Package cmd provides the ltrsearch commands: index a corpus, train a
// LambdaMART ranker, rank query files into submissions, evaluate runs and
// serve rankings over Kafka.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/metrics"
)

// app carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	metrics    *metrics.Metrics
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "ltrsearch",
		Short: "Learning-to-rank entity search",
		Long: `ltrsearch builds a fielded inverted index over an entity corpus,
retrieves candidates with BM25F, fuses TF-IDF, BM25F and PL2 scores into
feature vectors and ranks them with a LambdaMART model.

Typical flow:
  ltrsearch index --corpus corpus.jsonl
  ltrsearch train --queries train_queries.csv --qrels train_qrels.csv
  ltrsearch rank  --queries test_queries.csv --out submission.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Logging.Level = a.logLevel
			}
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			a.cfg = cfg
			a.metrics = metrics.NewUnregistered()
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML config (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newTrainCmd(a))
	cmd.AddCommand(newRankCmd(a))
	cmd.AddCommand(newEvaluateCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

// Execute runs the root command until completion or SIGINT/SIGTERM and
// returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "ltrsearch: %v\n", err)
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return apperrors.ExitCode(err)
}
