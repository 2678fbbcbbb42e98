package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/rfqmatch/internal/adapters/http/api"
	"github.com/okian/rfqmatch/internal/adapters/repository"
	"github.com/okian/rfqmatch/internal/domain/similarity"
	"github.com/okian/rfqmatch/pkg/logger"
	"github.com/okian/rfqmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	storeMetricsInterval      = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// --- serve ---

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			go startSystemMetricsUpdater(ctx)
			go startStoreMetricsUpdater(ctx, a.store)

			srv := &http.Server{
				Addr:              a.cfg.Addr,
				Handler:           api.NewServer(a.svc, a.svc).Router(),
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info(ctx, "starting HTTP server", logger.String("addr", a.cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}
			a.log.Info(ctx, "shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			a.log.Info(ctx, "server stopped")
			return nil
		},
	}
}

func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func startStoreMetricsUpdater(ctx context.Context, store repository.Store) {
	ticker := time.NewTicker(storeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateStoreMetrics(ctx, store)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond)
	}
}

func updateStoreMetrics(ctx context.Context, store repository.Store) {
	st, err := store.Stats(ctx)
	if err != nil {
		return
	}
	metrics.UpdateStoreRecords("rfqs", st.RFQs)
	metrics.UpdateStoreRecords("suppliers", st.Suppliers)
	metrics.UpdateStoreRecords("matches", st.Matches)
	metrics.UpdateStoreRecords("submitted", st.Submitted)
}

// --- match ---

func newMatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "match <rfq-id>",
		Short: "Rank suppliers for an RFQ and print the recommendations as JSON",
		Long: `Rank suppliers for an RFQ and print the recommendations as JSON.

The first run scores every candidate and records it in the ledger. Later
runs return the recorded scores with fresh explanations.

Examples:
  rfqmatch match rfq-1 --fixtures ./fixtures.yaml
  RFQMATCH_STORAGE_DRIVER=sqlite RFQMATCH_STORAGE_DSN=./rfq.db rfqmatch match rfq-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			recs, err := a.svc.Match(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"rfq_id": args[0], "matches": recs})
		},
	}
}

// --- submit ---

func newSubmitCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <rfq-id> <supplier-id>",
		Short: "Flag that a matched supplier submitted a quote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.MarkSubmitted(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s marked as submitted for %s\n", args[1], args[0])
			return nil
		},
	}
}

// --- verify ---

func newVerifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <claimed-name> <registered-name>",
		Short: "Compare a claimed business name with the registered one",
		Long: `Compare a claimed business name with the registered one.

Names are normalised (case, punctuation and legal suffixes) and compared with
Jaro-Winkler similarity against name_match_threshold.

Example:
  rfqmatch verify "Acme Industries Pvt Ltd" "ACME INDUSTRIES PRIVATE LIMITED"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			return printJSON(cmd.OutOrStdout(), a.svc.VerifyBusinessName(cmd.Context(), args[0], args[1]))
		},
	}
}

// --- similarity ---

func newSimilarityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similarity <a> <b>",
		Short: "Print the raw Jaro-Winkler similarity of two strings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", similarity.JaroWinkler(args[0], args[1]))
			return nil
		},
	}
}

// --- stats ---

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print service and storage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			return printJSON(cmd.OutOrStdout(), a.svc.GetStats(cmd.Context()))
		},
	}
}

// --- migrate ---

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and list the applied versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			sqlStore, ok := a.store.(*repository.SQLStore)
			if !ok {
				return fmt.Errorf("%w: migrate needs storage_driver sqlite or postgres, got %s", errNoDatabase, a.cfg.StorageDriver)
			}
			versions, err := sqlStore.AppliedMigrations(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"driver": a.cfg.StorageDriver, "applied": versions})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
