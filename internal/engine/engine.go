// Package engine defines the capability surface the core needs from a
// database engine adapter, plus the name-keyed factory registry engine
// packages register themselves with. Adding an engine means adding a
// package; nothing here changes.
package engine

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
	"github.com/example/strata/internal/target"
)

// ErrAborted marks an operation declined at a confirmation prompt.
// Callers that tolerate "nothing to do" still treat this as fatal.
var ErrAborted = errors.New("aborted by user")

// Mode controls where a deploy run stops relative to its target spec.
type Mode string

const (
	// ModeAll deploys every undeployed change up to the target.
	ModeAll Mode = "all"
	// ModeChange stops after deploying the target change itself.
	ModeChange Mode = "change"
	// ModeTag stops after deploying the change carrying the target tag.
	ModeTag Mode = "tag"
)

// State describes the most recently deployed change of a project.
type State struct {
	ChangeID       string
	Change         string
	Project        string
	Note           string
	CommittedAt    time.Time
	CommitterName  string
	CommitterEmail string
	PlannedAt      time.Time
	PlannerName    string
	PlannerEmail   string
	Tags           []string
}

// Event is one row of deployment history.
type Event struct {
	Event          string // deploy, revert, or fail
	ChangeID       string
	Change         string
	Project        string
	Note           string
	Requires       []string
	Conflicts      []string
	Tags           []string
	CommittedAt    time.Time
	CommitterName  string
	CommitterEmail string
	PlannedAt      time.Time
	PlannerName    string
	PlannerEmail   string
}

// EventFilter narrows a SearchEvents query. Zero values mean
// "unfiltered"; Descending orders newest-first.
type EventFilter struct {
	Event      []string
	Change     string
	Project    string
	Committer  string
	Planner    string
	Limit      int
	Offset     int
	Descending bool
}

// Engine is what command-level operations need from a database
// adapter. Implementations own their connections; Close releases them.
type Engine interface {
	// EnsureRegistry creates or verifies the registry schema.
	EnsureRegistry(ctx context.Context) error
	// Deploy deploys undeployed changes up to the change resolved
	// from to, or everything when to is empty.
	Deploy(ctx context.Context, to string, mode Mode) error
	// Revert reverts deployed changes down to (but not including) the
	// change resolved from to, or everything when to is empty. When
	// prompt is true the engine asks for confirmation with
	// acceptDefault preselected.
	Revert(ctx context.Context, to string, prompt, acceptDefault bool) error
	// Verify runs the verify scripts of deployed changes between the
	// changes resolved from from and to, inclusive, or of every
	// deployed change when both are empty.
	Verify(ctx context.Context, from, to string) error
	// CurrentState reports the latest deployed change for project
	// (the plan's project when empty), or nil when nothing is
	// deployed.
	CurrentState(ctx context.Context, project string) (*State, error)
	// DeployedChanges returns deployed change IDs in deployment order.
	DeployedChanges(ctx context.Context) ([]string, error)
	// SearchEvents returns deployment history matching the filter.
	SearchEvents(ctx context.Context, f EventFilter) ([]Event, error)
	Close() error
}

// Options carries cross-engine construction parameters.
type Options struct {
	// CommitterName and CommitterEmail identify who is acting, for
	// registry rows.
	CommitterName  string
	CommitterEmail string
	// Confirm answers revert prompts. Nil means non-interactive:
	// the prompt's default answer is used.
	Confirm func(msg string, def bool) bool
	// Out receives per-change progress lines. Nil discards them.
	Out io.Writer
}

// Factory builds an engine for a resolved target and its plan.
type Factory func(t *target.Target, p *plan.Plan, opts Options) (Engine, error)

var factories = map[string]Factory{}

// Register installs a factory under an engine name. Engine packages
// call this from init.
func Register(name string, f Factory) {
	if _, dup := factories[name]; dup {
		panic("engine: duplicate registration for " + name)
	}
	factories[name] = f
}

// Open builds the engine named by the target.
func Open(t *target.Target, p *plan.Plan, opts Options) (Engine, error) {
	f, ok := factories[t.Engine]
	if !ok {
		return nil, errs.Enginef("unknown engine %q (supported: %v)", t.Engine, Names())
	}
	return f(t, p, opts)
}

// Names lists the registered engine names, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
