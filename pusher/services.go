package pusher

import (
	"context"

	"github.com/sirupsen/logrus"

	"go.mozilla.org/autoland/vcs"
)

// DirectoryClient is the subset of directory.Client the pusher depends on
// for the landing-user permission check.
type DirectoryClient interface {
	InGroup(ctx context.Context, email, group string) (bool, error)
}

// BranchPermissionsClient resolves the directory group required to land on
// a branch (or try).
type BranchPermissionsClient interface {
	RequiredGroup(ctx context.Context, branch string) (string, error)
}

// PatchFetcher downloads a patch's raw body, mirroring tracker.Client's
// invalid-attachment-vs-transport-error distinction.
type PatchFetcher interface {
	DownloadPatch(patchID int) ([]byte, error)
}

// Publisher is the subset of bus.Bus the pusher depends on to reply with
// one Result per job.
type Publisher interface {
	Publish(routingKey string, payload interface{}) error
}

// Config carries the pusher's workdir root and landing identity.
// Worker.Process does not read MaxAttempts; its retry ladder is fixed at
// the package's three tiers.
type Config struct {
	WorkdirRoot  string
	LandingUser  string // the autoland service account's tracker identity
	MaxAttempts  int
}

// DefaultConfig returns spec.md's defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, LandingUser: "autoland"}
}

// Services bundles every external dependency one pusher process needs —
// the Services-bundle REDESIGN FLAG of spec.md §9, mirroring
// orchestrator.Services.
type Services struct {
	VCS               vcs.Runner
	Directory         DirectoryClient
	BranchPermissions BranchPermissionsClient
	Tracker           PatchFetcher
	Bus               Publisher
	Log               *logrus.Logger
	Config            Config
}
