package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	app "github.com/okian/eventrank/internal/app"
	"github.com/okian/eventrank/internal/config"
	"github.com/okian/eventrank/internal/domain/diagnostic"
	"github.com/okian/eventrank/internal/domain/scoring"
	"github.com/okian/eventrank/pkg/logger"
)

const remoteTimeout = 30 * time.Second

// localBackendOptions keep a local run from changing any schema.
var localBackendOptions = []app.BackendOption{app.WithoutMigrate()}

type options struct {
	userID   string
	snapshot string
	format   string
	url      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Show per-component recommendation scores for a user",
		Long: `Runs the recommendation scoring for one user against every upcoming event
and prints the major, vector and total score of each, flagging components
that were degraded by a missing embedding or a missing major match.

Without --url the catalog and embedding cache from the service configuration
(EVENTRANK_* variables, EVENTRANK_CONFIG, .env) are read directly; --snapshot
overrides the catalog with a YAML export.`,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case "json", "table":
			default:
				return fmt.Errorf("unknown --format %q (want json or table)", opts.format)
			}
			if strings.TrimSpace(opts.userID) == "" {
				return errors.New("--user is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				rep diagnostic.Report
				err error
			)
			if opts.url != "" {
				rep, err = fetchRemote(cmd.Context(), opts.url, opts.userID)
			} else {
				rep, err = runLocal(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.format, rep)
		},
	}

	cmd.Flags().StringVarP(&opts.userID, "user", "u", "", "User id to diagnose")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "YAML catalog snapshot to read instead of the configured catalog")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: json or table")
	cmd.Flags().StringVar(&opts.url, "url", "", "Base URL of a running server, e.g. http://localhost:9080")
	return cmd
}

// runLocal builds the harness from configuration. The embedding client is
// never constructed, so no network call can happen.
func runLocal(ctx context.Context, opts *options) (diagnostic.Report, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return diagnostic.Report{}, fmt.Errorf("read .env: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return diagnostic.Report{}, err
	}
	if opts.snapshot != "" {
		cfg.CatalogBackend = config.BackendMemory
		cfg.SnapshotPath = opts.snapshot
	}

	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		return diagnostic.Report{}, err
	}
	_ = logger.SetLevelString("warn")
	log := logger.Get()

	backends, err := app.OpenBackends(ctx, cfg, log.Named("backends"), localBackendOptions...)
	if err != nil {
		return diagnostic.Report{}, err
	}
	defer func() { _ = backends.Close() }()

	combiner, err := scoring.NewCombiner(
		scoring.WithWeights(scoring.Weights{Major: cfg.WeightMajor, Vector: cfg.WeightVector, Bonus: cfg.MajorBonus}),
		scoring.WithEmptyTargetsOpen(cfg.EmptyTargetsOpen),
	)
	if err != nil {
		return diagnostic.Report{}, err
	}

	h := diagnostic.New(backends.Catalog, backends.Cache, combiner, diagnostic.WithLogger(log.Named("diagnostic")))
	return h.Run(ctx, opts.userID)
}

// fetchRemote asks a running server for the report.
func fetchRemote(ctx context.Context, baseURL, userID string) (diagnostic.Report, error) {
	var (
		rep    diagnostic.Report
		apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
	)

	resp, err := resty.New().
		SetTimeout(remoteTimeout).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		R().
		SetContext(ctx).
		SetPathParam("user_id", userID).
		SetResult(&rep).
		SetError(&apiErr).
		Get("/diagnostics/{user_id}")
	if err != nil {
		return diagnostic.Report{}, fmt.Errorf("fetch diagnostic: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}
		return diagnostic.Report{}, fmt.Errorf("server returned %d: %s", resp.StatusCode(), msg)
	}
	return rep, nil
}
