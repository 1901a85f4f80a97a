package cliapp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.mozilla.org/autoland/bus"
	"go.mozilla.org/autoland/directory"
	"go.mozilla.org/autoland/orchestrator"
	"go.mozilla.org/autoland/outbox"
	"go.mozilla.org/autoland/store"
	"go.mozilla.org/autoland/tracker"
)

const orchestratorResultsQueue = "autoland.orchestrator.results"

// OrchestratorCmd runs the poller/state-machine process of spec.md §4.1.
var OrchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "poll the tracker, dispatch landing jobs, and aggregate pusher/classifier results",
	Long: `Autoland orchestrator

Polls the bug tracker for queued landing requests, validates and persists
them, dispatches one job per eligible branch onto the bus, and aggregates
pusher/classifier replies into a terminal Request status, posting a summary
comment back to the tracker.`,
	RunE: runOrchestrator,
}

func init() {
	addCommonFlags(OrchestratorCmd)
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadAutolandConfig("orchestrator")
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Store.URL)
	if err != nil {
		return fmt.Errorf("connect to store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	busClient, err := bus.Dial(cfg.Bus.URL, cfg.Bus.Exchange, &bus.RealAMQPDialer{})
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}
	defer busClient.Close()
	if err := busClient.DeclareQueue(orchestratorResultsQueue, bus.RoutingKeyOrchestrator); err != nil {
		return fmt.Errorf("declare results queue: %w", err)
	}
	if purgeQueue {
		if !confirmPurge(orchestratorResultsQueue) {
			logger.Info("orchestrator: purge cancelled")
		} else if n, err := busClient.Purge(orchestratorResultsQueue); err != nil {
			return fmt.Errorf("purge results queue: %w", err)
		} else {
			logger.WithField("purged", n).Info("orchestrator: purged results queue")
		}
	}

	trackerClient := tracker.New(tracker.Config(cfg.Tracker))
	directoryClient, err := directory.NewClient(cfg.Directory.Host, cfg.Directory.Port, cfg.Directory.BindDN, cfg.Directory.Password, cfg.Directory.CacheSize)
	if err != nil {
		return fmt.Errorf("connect to directory: %w", err)
	}
	branchPermissions := directory.NewBranchPermissions(cfg.Directory.BranchPermissionsURL, http.DefaultClient)
	treeStatus := orchestrator.NewHTTPTreeStatus(cfg.Directory.TreeStatusURL, http.DefaultClient)

	box := outbox.New(store.NewPendingCommentRepository(db), trackerClient, os.Stderr, logrus.NewEntry(logger))

	svc := &orchestrator.Services{
		Requests:          store.NewRequestRepository(db),
		Patchsets:         store.NewPatchsetRepository(db),
		Branches:          store.NewBranchRepository(db),
		Bus:               busClient,
		Results:           busClient,
		ResultsQueue:      orchestratorResultsQueue,
		Tracker:           orchestrator.NewTrackerAdapter(trackerClient),
		Directory:         directoryClient,
		BranchPermissions: branchPermissions,
		TreeStatus:        treeStatus,
		Outbox:            box,
		Log:               logger,
		Config:            orchestrator.DefaultConfig(),
	}
	if cfg.Process.PollInterval > 0 {
		svc.Config.PollInterval = cfg.Process.PollInterval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := orchestrator.NewLoop(svc)
	loop.Start(ctx)
	logger.Info("orchestrator: running, press Ctrl+C to exit")

	<-ctx.Done()
	logger.Info("orchestrator: shutting down")
	loop.Stop()
	return nil
}
