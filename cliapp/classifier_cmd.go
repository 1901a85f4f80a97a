package cliapp

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.mozilla.org/autoland/classifier"
	"go.mozilla.org/autoland/outbox"
	"go.mozilla.org/autoland/store"
	"go.mozilla.org/autoland/tracker"
)

// ClassifierCmd runs the outcome-classification process of spec.md §4.3.
var ClassifierCmd = &cobra.Command{
	Use:   "classifier",
	Short: "classify build outcomes for tracked pushes and report results to the tracker",
	Long: `Autoland outcome classifier

Polls the build API for records against every tracked revision, decides
SUCCESS/FAILURE/RETRYING/TIMED_OUT per spec.md §4.3's classification tree,
and posts a summary comment per bug once a push reaches a terminal state.
Given --revision, classifies that one revision and exits instead of running
the periodic loop.`,
	RunE: runClassifier,
}

func init() {
	ClassifierCmd.Flags().String("branch", "", "branch to poll")
	ClassifierCmd.Flags().String("revision", "", "classify a single revision and exit")
	ClassifierCmd.Flags().String("start-time", "", "RFC3339 start of the polling window (one-shot mode)")
	ClassifierCmd.Flags().String("end-time", "", "RFC3339 end of the polling window (one-shot mode)")
	ClassifierCmd.Flags().String("cache-dir", "", "unused, retained for command-line compatibility")
	ClassifierCmd.Flags().Bool("no-messages", false, "classify without posting tracker comments")
	ClassifierCmd.Flags().Bool("flag-check", true, "require --post-to-bugzilla before treating a push as TRY")
	ClassifierCmd.Flags().Bool("dry-run", false, "classify without retriggering warnings through the build API")
	ClassifierCmd.Flags().String("log-file", "", "append logs to this file in addition to stdout/stderr")
	addCommonFlags(ClassifierCmd)
}

func runClassifier(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadAutolandConfig("classifier")
	if err != nil {
		return err
	}

	if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logger.AddHook(&fileHook{file: f})
	}

	db, err := store.Open(cfg.Store.URL)
	if err != nil {
		return fmt.Errorf("connect to store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	trackerClient := tracker.New(tracker.Config(cfg.Tracker))
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	buildAPICfg := classifier.BuildAPIConfig{
		BaseURL:  cfg.BuildAPI.URL,
		Username: cfg.BuildAPI.Username,
		Password: cfg.BuildAPI.Password,
		DryRun:   dryRun || cfg.BuildAPI.DryRun,
	}

	ccfg := classifier.DefaultConfig()
	ccfg.Branch, _ = cmd.Flags().GetString("branch")
	ccfg.NoMessages, _ = cmd.Flags().GetBool("no-messages")
	ccfg.FlagCheck, _ = cmd.Flags().GetBool("flag-check")
	ccfg.DryRun = buildAPICfg.DryRun

	svc := &classifier.Services{
		Builds:    classifier.NewBuildAPI(buildAPICfg),
		Revisions: store.NewRevisionCacheRepository(db),
		Outbox:    outbox.New(store.NewPendingCommentRepository(db), trackerClient, os.Stderr, logrus.NewEntry(logger)),
		Log:       logger,
		Config:    ccfg,
	}

	revision, _ := cmd.Flags().GetString("revision")
	if revision != "" {
		return classifier.PollRevision(cmd.Context(), svc, revision, time.Now())
	}

	startStr, _ := cmd.Flags().GetString("start-time")
	endStr, _ := cmd.Flags().GetString("end-time")
	if startStr != "" || endStr != "" {
		start, end, err := parseTimeWindow(startStr, endStr)
		if err != nil {
			return err
		}
		return classifier.Tick(cmd.Context(), svc, start, end, time.Now())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := classifier.NewLoop(svc)
	loop.Start(ctx)
	logger.Info("classifier: running, press Ctrl+C to exit")

	<-ctx.Done()
	logger.Info("classifier: shutting down")
	loop.Stop()
	return nil
}

func parseTimeWindow(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now()
	start := end.Add(-4 * time.Hour)
	var err error
	if startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --start-time: %w", err)
		}
	}
	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --end-time: %w", err)
		}
	}
	return start, end, nil
}

// fileHook appends formatted log entries to an additional file, used by
// --log-file.
type fileHook struct {
	file *os.File
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.file.Write(line)
	return err
}
