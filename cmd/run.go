package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/logger"
	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/report"
	"github.com/spigell/eu-call-finder/internal/service"
	"github.com/spigell/eu-call-finder/internal/workflow"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptRanked      = "Show ranked calls"
	PromptByBand      = "Report by priority band"
	PromptDumpJSON    = "Dump report to json file"
	PromptHTML        = "Render report to html file"
	PromptExit        = "Exit"
	PromptExclude     = "Append all calls to exclude file"
	PromptBack        = "back"
	outputMarkdown    = "md"
	outputHTML        = "html"
	outputJSON        = "json"
	descriptionLimit  = 600
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptRanked, PromptByBand, PromptDumpJSON, PromptHTML, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Match one company profile against open funding calls",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("profile", "p", "", "company profile file (yaml or json)")
	runCmd.Flags().BoolP("yes", "y", false, "print the report and exit without the interactive menu")
	runCmd.Flags().StringP("output", "o", outputMarkdown, "report format printed with --yes: md, html or json")
	runCmd.Flags().String("run-id", "", "run identifier (default is a random uuid)")

	viper.BindPFlag("profile", runCmd.Flags().Lookup("profile"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
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

	logger.Info("starting the call-finder", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	company, err := loadProfile(config.Profile)
	if err != nil {
		logger.Fatal("loading the company profile", zap.Error(err),
			zap.String("hint", "pass --profile or set the 'profile' key in the configuration file"),
		)
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

	runID, _ := cmd.Flags().GetString("run-id")
	res, err := comps.service.Submit(ctx, service.Request{
		ID:      runID,
		Profile: company,
		Sink:    workflow.LoggerSink{Logger: logger},
	})
	if err != nil {
		logger.Error("run failed", zap.String("run_id", res.ID), zap.Error(err))
		return
	}
	rep := res.Report

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		format, _ := cmd.Flags().GetString("output")
		if err := printReport(rep, format, logger); err != nil {
			logger.Error("printing the report", zap.Error(err))
		}
		return
	}

	if rep.Flags.NoMatches {
		logger.Info("exiting", zap.String("reason", "no matching calls found"))
		return
	}

	excludeFile := ""
	if config.Retrieval != nil {
		excludeFile = strings.TrimSpace(config.Retrieval.Filters.ExcludeFile)
	}
	menu := prompt
	if excludeFile != "" {
		menu.Items = append([]string{PromptExclude}, prompt.Items.([]string)...)
	}

	for {
		_, action, err := menu.Run()
		if err != nil {
			logger.Error("exiting", zap.Error(err))
			return
		}

		if action == PromptExclude {
			if err := appendToExcludeFile(rep, excludeFile, logger); err != nil {
				logger.Error("updating the exclude file", zap.Error(err))
			}
			continue
		}

		if err := handleAction(action, rep, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("exiting", zap.Error(err))
			return
		}
	}
}

func loadProfile(path string) (*profile.Company, error) {
	company, err := profile.Load(path)
	if err != nil {
		return nil, err
	}
	if err := company.Validate(); err != nil {
		return nil, err
	}
	return company, nil
}

func handleAction(action string, rep *report.Report, logger *zap.Logger) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptRanked:
		return browse(rep, logger)
	case PromptByBand:
		pretty, _ := json.MarshalIndent(reportByBand(rep), "", "  ")
		logger.Info(string(pretty), zap.Int("calls count", len(rep.Entries)))
		return nil
	case PromptDumpJSON:
		filename, err := rep.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptHTML:
		filename, err := rep.HTMLToTmpFile()
		if err != nil {
			return fmt.Errorf("render report to file: %w", err)
		}
		logger.Info("rendering report to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// browse lets the user pick ranked calls and prints their details.
func browse(rep *report.Report, logger *zap.Logger) error {
	items := make([]string, 0, len(rep.Entries)+1)
	for _, e := range rep.Entries {
		items = append(items, entryLabel(e))
	}

	callPrompt := promptui.Select{
		Label: "Choose a call and press ENTER",
		Items: append(items, PromptBack),
		Size:  10,
	}

	for {
		_, selected, err := callPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		rank, err := strconv.Atoi(strings.TrimPrefix(strings.Fields(selected)[0], "#"))
		if err != nil || rank < 1 || rank > len(rep.Entries) {
			return fmt.Errorf("there is no such entry %q", selected)
		}
		fmt.Println(entryDetails(rep.Entries[rank-1]))
	}
}

func entryLabel(e report.Entry) string {
	return fmt.Sprintf("#%d %.1f%% [%s] %s / %s", e.Rank, e.Score.AdjustedPercent, e.Band, e.Call.ID, e.Call.Title)
}

func entryDetails(e report.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", e.Call.Summary(descriptionLimit))
	fmt.Fprintf(&b, "Score: %.2f%% (raw %.2f%%, confidence %.2f, %s)\n", e.Score.AdjustedPercent, e.Score.RawPercent, e.Score.Confidence, e.Score.Mode)
	for _, s := range e.Score.Scores {
		fmt.Fprintf(&b, "  %-20s %4.1f  %s\n", s.Criterion, s.Value, s.Note)
	}
	fmt.Fprintf(&b, "Eligibility: %s\n", e.Eligibility.Display())
	for _, item := range e.ActionItems {
		fmt.Fprintf(&b, "  - %s\n", item)
	}
	return b.String()
}

func appendToExcludeFile(rep *report.Report, path string, logger *zap.Logger) error {
	found := &calls.Calls{}
	for _, e := range rep.Entries {
		found.Items = append(found.Items, e.Call)
	}

	excluded, err := calls.LoadExcluded(path)
	if err != nil {
		return err
	}
	excluded.Append(found.ToExcluded(time.Now()))

	if err := excluded.ToFile(path); err != nil {
		return err
	}
	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("count", found.Len()))
	return nil
}

func reportByBand(rep *report.Report) map[report.Band][]string {
	out := make(map[report.Band][]string, len(report.Bands))
	for band, entries := range rep.ByBand() {
		for _, e := range entries {
			out[band] = append(out[band], entryLabel(e))
		}
	}
	return out
}

func printReport(rep *report.Report, format string, logger *zap.Logger) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", outputMarkdown:
		fmt.Println(rep.Markdown())
	case outputHTML:
		filename, err := rep.HTMLToTmpFile()
		if err != nil {
			return fmt.Errorf("render report to file: %w", err)
		}
		logger.Info("rendering report to file", zap.String("filename", filename))
	case outputJSON:
		pretty, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	return nil
}
