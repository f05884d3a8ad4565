package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spigell/eu-call-finder/internal/logger"
	"github.com/spigell/eu-call-finder/internal/report"
	"github.com/spigell/eu-call-finder/internal/service"
	"github.com/spigell/eu-call-finder/internal/workflow"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var batchCmd = &cobra.Command{
	Use:   "batch profile.yaml [profile.yaml...]",
	Short: "Match several company profiles concurrently and print one summary line each",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		batch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Bool("fail-fast", false, "cancel the remaining runs after the first failure")
	batchCmd.Flags().Bool("dump", false, "dump every report to a json file")
}

// batchResult is one summary line of the batch command.
type batchResult struct {
	Profile  string       `json:"profile"`
	RunID    string       `json:"run_id,omitempty"`
	Calls    int          `json:"calls"`
	High     int          `json:"high"`
	Medium   int          `json:"medium"`
	Top      string       `json:"top,omitempty"`
	Flags    report.Flags `json:"flags"`
	Attempts int          `json:"attempts"`
	File     string       `json:"file,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func batch(cmd *cobra.Command, paths []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	comps, err := buildComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("building components", zap.Error(err))
	}
	defer func() {
		if err := comps.Close(context.Background()); err != nil {
			logger.Warn("closing components", zap.Error(err))
		}
	}()

	failFast, _ := cmd.Flags().GetBool("fail-fast")
	dump, _ := cmd.Flags().GetBool("dump")

	results := make([]batchResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			res, err := runProfile(gctx, comps.service, path, dump, logger)
			results[i] = res
			if err != nil {
				logger.Warn("profile run failed", zap.String("profile", path), zap.Error(err))
				if failFast {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		})
	}
	groupErr := g.Wait()

	enc := json.NewEncoder(os.Stdout)
	for _, res := range results {
		if res.Profile == "" {
			continue
		}
		if err := enc.Encode(res); err != nil {
			logger.Error("writing the summary", zap.Error(err))
		}
	}

	if groupErr != nil {
		logger.Fatal("batch aborted", zap.Error(groupErr))
	}
}

func runProfile(ctx context.Context, svc *service.Service, path string, dump bool, log *zap.Logger) (batchResult, error) {
	res := batchResult{Profile: path}

	company, err := loadProfile(path)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	// The same file submitted twice is the same run.
	runID, err := filepath.Abs(path)
	if err != nil {
		runID = filepath.Clean(path)
	}
	out, err := svc.Submit(ctx, service.Request{
		ID:      runID,
		Profile: company,
		Sink:    workflow.LoggerSink{Logger: log.With(zap.String("profile", path))},
	})
	res.RunID = out.ID
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	rep := out.Report
	res.Calls = rep.Overview.Total
	res.High = rep.Overview.ByBand[report.BandHigh]
	res.Medium = rep.Overview.ByBand[report.BandMedium]
	res.Flags = rep.Flags
	res.Attempts = rep.Attempts
	if len(rep.Recommendations) > 0 {
		top := rep.Recommendations[0]
		res.Top = fmt.Sprintf("%s (%.1f%%)", top.Call.ID, top.Score.AdjustedPercent)
	}

	if dump {
		file, err := rep.DumpToTmpFile()
		if err != nil {
			res.Error = err.Error()
			return res, fmt.Errorf("dump report to file: %w", err)
		}
		res.File = file
	}
	return res, nil
}
