// Command loadtest submits synthetic event embeddings to a running server and
// verifies the ordering of the recommendations it serves afterwards.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/eventrank/internal/loadtest"
	"github.com/okian/eventrank/pkg/logger"
)

const (
	defaultNumEvents   = 1000
	defaultTopN        = 10
	defaultTimeout     = 30 * time.Second
	defaultDrainWait   = 2 * time.Minute
	defaultTestTimeout = 10 * time.Minute
)

var (
	cfg = loadtest.Config{}

	users     string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Load and verify a running eventrank server",
	Long: `Generates synthetic events, submits them to POST /embeddings/events with
concurrent workers, waits for the embedding queue to drain and then fetches
recommendations for the given users, checking that every list is ranked by
total score, then date, then event id.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(logger.WithFormat(logFormat), logger.WithOutput(os.Stderr)); err != nil {
			return err
		}
		for _, u := range strings.Split(users, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.Users = append(cfg.Users, u)
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
		defer cancel()

		_, err := loadtest.Run(ctx, &cfg, logger.Named("loadtest"))
		return err
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	rootCmd.Flags().IntVar(&cfg.NumEvents, "events", defaultNumEvents, "Number of events to generate and submit")
	rootCmd.Flags().StringVar(&users, "users", "", "Comma-separated user ids whose recommendations are verified")
	rootCmd.Flags().IntVar(&cfg.TopN, "top", defaultTopN, "limit passed to /recommendations")
	rootCmd.Flags().IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Number of concurrent workers")
	rootCmd.Flags().DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	rootCmd.Flags().DurationVar(&cfg.DrainWait, "drain-wait", defaultDrainWait, "Max time to wait for the embedding queue to empty")
	rootCmd.Flags().StringVar(&cfg.OutputFile, "output", "", "Write generated requests to this JSON file")
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log submission progress")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
