package cliapp

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go.mozilla.org/autoland/bus"
	"go.mozilla.org/autoland/directory"
	"go.mozilla.org/autoland/pusher"
	"go.mozilla.org/autoland/tracker"
	"go.mozilla.org/autoland/vcs"
)

const pusherJobsQueue = "autoland.pusher.jobs"

// PusherCmd runs the per-branch landing worker process of spec.md §4.2.
var PusherCmd = &cobra.Command{
	Use:   "pusher",
	Short: "land one queued job at a time under an exclusive workdir lock",
	Long: `Autoland pusher

Acquires an exclusive filesystem lock on a numbered working directory,
consumes one landing job at a time off the bus, and applies it: clone or
refresh the branch checkout, download and rewrite each patch's commit
message, and push, escalating through a bounded retry ladder on transient
failure.`,
	RunE: runPusher,
}

func init() {
	PusherCmd.Flags().String("workdir-root", "", "root directory for numbered pusher working directories")
	PusherCmd.Flags().String("landing-user", "", "tracker identity used for the landing account")
	addCommonFlags(PusherCmd)
}

func runPusher(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadAutolandConfig("pusher")
	if err != nil {
		return err
	}

	workdirRoot, _ := cmd.Flags().GetString("workdir-root")
	if workdirRoot == "" {
		workdirRoot = cfg.Process.WorkdirRoot
	}
	landingUser, _ := cmd.Flags().GetString("landing-user")

	lock, err := pusher.AcquireWorkdirLock(workdirRoot)
	if err != nil {
		return fmt.Errorf("acquire workdir lock: %w", err)
	}
	defer lock.Release()

	busClient, err := bus.Dial(cfg.Bus.URL, cfg.Bus.Exchange, &bus.RealAMQPDialer{})
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}
	defer busClient.Close()
	queueName := fmt.Sprintf("%s.%d", pusherJobsQueue, lock.N)
	if err := busClient.DeclareQueue(queueName, bus.RoutingKeyPusher); err != nil {
		return fmt.Errorf("declare jobs queue: %w", err)
	}
	if purgeQueue {
		if !confirmPurge(queueName) {
			logger.Info("pusher: purge cancelled")
		} else if n, err := busClient.Purge(queueName); err != nil {
			return fmt.Errorf("purge jobs queue: %w", err)
		} else {
			logger.WithField("purged", n).Info("pusher: purged jobs queue")
		}
	}

	trackerClient := tracker.New(tracker.Config(cfg.Tracker))
	directoryClient, err := directory.NewClient(cfg.Directory.Host, cfg.Directory.Port, cfg.Directory.BindDN, cfg.Directory.Password, cfg.Directory.CacheSize)
	if err != nil {
		return fmt.Errorf("connect to directory: %w", err)
	}
	branchPermissions := directory.NewBranchPermissions(cfg.Directory.BranchPermissionsURL, http.DefaultClient)

	pcfg := pusher.DefaultConfig()
	pcfg.WorkdirRoot = workdirRoot
	if landingUser != "" {
		pcfg.LandingUser = landingUser
	}

	svc := &pusher.Services{
		VCS:               vcs.NewRealRunner(cfg.Process.HgBinary, cfg.Process.HgIdentity, logger),
		Directory:         directoryClient,
		BranchPermissions: branchPermissions,
		Tracker:           trackerClient,
		Bus:               busClient,
		Log:               logger,
		Config:            pcfg,
	}

	worker := pusher.NewWorker(lock, svc)
	loop := pusher.NewLoop(worker, busClient, queueName)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("start job consumer: %w", err)
	}
	logger.WithField("workdir", lock.Root).Info("pusher: running, press Ctrl+C to exit")

	<-ctx.Done()
	logger.Info("pusher: shutting down")
	loop.Stop()
	return nil
}
