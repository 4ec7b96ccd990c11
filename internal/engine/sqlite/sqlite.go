// Package sqlite is the sqlite database engine. The target database is
// a plain sqlite file; the registry lives in a sibling sqlite file so
// that dropping and recreating the target database never loses
// deployment history.
package sqlite

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/strata/internal/engine"
	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
	"github.com/example/strata/internal/target"
)

func init() {
	engine.Register("sqlite", New)
}

// committedAtLayout is fixed-width down to nanoseconds so that string
// comparison in ORDER BY matches chronological order even for rows
// committed within the same second.
const (
	committedAtLayout = "2006-01-02 15:04:05.000000000"
	plannedAtLayout   = "2006-01-02 15:04:05"
)

// Engine implements engine.Engine against two sqlite databases: the
// deployment target and its registry.
type Engine struct {
	target *target.Target
	plan   *plan.Plan
	opts   engine.Options

	db    *sql.DB // target database; change scripts run here
	reg   *sql.DB // registry database
	ready bool    // registry schema verified this session
}

// New opens the target and registry databases. Factory for
// engine.Register.
func New(t *target.Target, p *plan.Plan, opts engine.Options) (engine.Engine, error) {
	db, err := open(t.URI)
	if err != nil {
		return nil, errs.Enginef("opening database %s: %w", t.URI, err)
	}
	reg, err := open(t.Registry)
	if err != nil {
		db.Close()
		return nil, errs.Enginef("opening registry %s: %w", t.Registry, err)
	}
	return &Engine{target: t, plan: p, opts: opts, db: db, reg: reg}, nil
}

func open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
}

// Close releases both database handles.
func (e *Engine) Close() error {
	return errors.Join(e.db.Close(), e.reg.Close())
}

func (e *Engine) out() io.Writer {
	if e.opts.Out != nil {
		return e.opts.Out
	}
	return io.Discard
}

// EnsureRegistry creates the registry schema if the registry database
// is empty, and records the project. Safe to call repeatedly.
func (e *Engine) EnsureRegistry(ctx context.Context) error {
	if e.ready {
		return nil
	}
	var version string
	err := e.reg.QueryRowContext(ctx,
		`SELECT version FROM releases ORDER BY installed_at DESC LIMIT 1`).Scan(&version)
	switch {
	case err == nil:
		// Schema exists; nothing to migrate yet.
	case strings.Contains(err.Error(), "no such table"):
		if err := e.createRegistry(ctx); err != nil {
			return err
		}
	default:
		return errs.Enginef("checking registry %s: %w", e.target.Registry, err)
	}
	if err := e.ensureProject(ctx); err != nil {
		return err
	}
	e.ready = true
	return nil
}

func (e *Engine) createRegistry(ctx context.Context) error {
	tx, err := e.reg.BeginTx(ctx, nil)
	if err != nil {
		return errs.Enginef("creating registry %s: %w", e.target.Registry, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, SchemaSQL); err != nil {
		return errs.Enginef("creating registry %s: %w", e.target.Registry, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO releases (version, installer_name, installer_email) VALUES (?, ?, ?)`,
		RegistryVersion, e.opts.CommitterName, e.opts.CommitterEmail); err != nil {
		return errs.Enginef("recording registry release: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Enginef("creating registry %s: %w", e.target.Registry, err)
	}
	fmt.Fprintf(e.out(), "Created registry %s\n", e.target.Registry)
	return nil
}

func (e *Engine) ensureProject(ctx context.Context) error {
	var uri any
	if e.plan.URI != "" {
		uri = e.plan.URI
	}
	_, err := e.reg.ExecContext(ctx,
		`INSERT INTO projects (project, uri, creator_name, creator_email)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project) DO NOTHING`,
		e.plan.Project, uri, e.opts.CommitterName, e.opts.CommitterEmail)
	if err != nil {
		return errs.Enginef("registering project %s: %w", e.plan.Project, err)
	}
	return nil
}

// Deploy runs the deploy scripts of every undeployed change up to the
// change to resolves to, in plan order, recording each in the registry.
func (e *Engine) Deploy(ctx context.Context, to string, mode engine.Mode) error {
	switch mode {
	case "", engine.ModeAll, engine.ModeChange, engine.ModeTag:
	default:
		return errs.Userf("unknown deploy mode %q", mode)
	}
	if err := e.EnsureRegistry(ctx); err != nil {
		return err
	}
	deployed, err := e.deployedIDs(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(deployed))
	for _, id := range deployed {
		seen[id] = true
	}

	last := e.plan.Count() - 1
	if to != "" {
		i, ok := plan.Resolve(e.plan, to)
		if !ok {
			return errs.Resolutionf("unknown deploy target %q in %s", to, e.plan.File)
		}
		last = i
	}

	var pending []*plan.Change
	for i := 0; i <= last; i++ {
		c := e.plan.ChangeAt(i)
		if !seen[e.plan.ChangeID(c)] {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		fmt.Fprintf(e.out(), "Nothing to deploy (up to date)\n")
		return nil
	}

	fmt.Fprintf(e.out(), "Deploying changes to %s\n", e.target.URI)
	for _, c := range pending {
		if err := e.deployChange(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) deployChange(ctx context.Context, c *plan.Change) error {
	fmt.Fprintf(e.out(), "  + %s .. ", c.NameWithTags())
	script := e.target.DeployFile(c)
	body, err := os.ReadFile(script)
	if err != nil {
		fmt.Fprintln(e.out(), "not ok")
		e.logEvent(ctx, "fail", c)
		return errs.IOf("reading deploy script: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, string(body)); err != nil {
		fmt.Fprintln(e.out(), "not ok")
		e.logEvent(ctx, "fail", c)
		return errs.Enginef("deploy of %s failed: %w", c.Name, err)
	}
	if err := e.recordDeploy(ctx, c, hashScript(body)); err != nil {
		fmt.Fprintln(e.out(), "not ok")
		return err
	}
	fmt.Fprintln(e.out(), "ok")
	return nil
}

func (e *Engine) recordDeploy(ctx context.Context, c *plan.Change, scriptHash string) error {
	id := e.plan.ChangeID(c)
	now := time.Now().UTC()
	tx, err := e.reg.BeginTx(ctx, nil)
	if err != nil {
		return errs.Enginef("recording deploy of %s: %w", c.Name, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO changes (change_id, script_hash, change, project, note,
		                      committed_at, committer_name, committer_email,
		                      planned_at, planner_name, planner_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, scriptHash, c.Name, e.plan.Project, c.Note,
		now.Format(committedAtLayout), e.opts.CommitterName, e.opts.CommitterEmail,
		c.Timestamp.UTC().Format(plannedAtLayout), c.PlannerName, c.PlannerEmail)
	if err != nil {
		return errs.Enginef("recording deploy of %s: %w", c.Name, err)
	}

	for _, d := range c.Dependencies {
		var depID any
		if d.ID != "" {
			depID = d.ID
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dependencies (change_id, type, dependency, dependency_id)
			 VALUES (?, ?, ?, ?)`,
			id, d.Type.String(), d.Change, depID)
		if err != nil {
			return errs.Enginef("recording dependency %s of %s: %w", d.Change, c.Name, err)
		}
	}

	for _, t := range e.plan.TagsFor(c) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tags (tag_id, tag, project, change_id, note,
			                   committed_at, committer_name, committer_email,
			                   planned_at, planner_name, planner_email)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.plan.TagID(t), "@"+t.Name, e.plan.Project, id, t.Note,
			now.Format(committedAtLayout), e.opts.CommitterName, e.opts.CommitterEmail,
			t.Timestamp.UTC().Format(plannedAtLayout), t.PlannerName, t.PlannerEmail)
		if err != nil {
			return errs.Enginef("recording tag @%s of %s: %w", t.Name, c.Name, err)
		}
	}

	if err := insertEvent(ctx, tx, "deploy", e.plan, c, e.opts, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Enginef("recording deploy of %s: %w", c.Name, err)
	}
	return nil
}

// Revert runs revert scripts in reverse deployment order, down to but
// not including the change to resolves to, or everything when to is
// empty.
func (e *Engine) Revert(ctx context.Context, to string, prompt, acceptDefault bool) error {
	if err := e.EnsureRegistry(ctx); err != nil {
		return err
	}
	deployed, err := e.deployedIDs(ctx)
	if err != nil {
		return err
	}
	if len(deployed) == 0 {
		return errs.Userf("nothing to revert (nothing deployed to %s)", e.target.URI)
	}

	keep := 0
	if to != "" {
		targetID := ""
		if c := plan.ResolveChange(e.plan, to); c != nil {
			targetID = e.plan.ChangeID(c)
		} else if e.plan.GetChangeByID(to) != nil {
			targetID = to
		} else {
			return errs.Resolutionf("unknown revert target %q in %s", to, e.plan.File)
		}
		found := false
		for i, id := range deployed {
			if id == targetID {
				keep = i + 1
				found = true
				break
			}
		}
		if !found {
			return errs.Userf("change %s is not deployed to %s", to, e.target.URI)
		}
	}
	victims := deployed[keep:]
	if len(victims) == 0 {
		return errs.Userf("nothing to revert (already at %s)", to)
	}

	if prompt {
		msg := fmt.Sprintf("Revert %d change(s) from %s?", len(victims), e.target.URI)
		ok := acceptDefault
		if e.opts.Confirm != nil {
			ok = e.opts.Confirm(msg, acceptDefault)
		}
		if !ok {
			return errs.Userf("revert %w", engine.ErrAborted)
		}
	}

	fmt.Fprintf(e.out(), "Reverting changes from %s\n", e.target.URI)
	for i := len(victims) - 1; i >= 0; i-- {
		c := e.plan.GetChangeByID(victims[i])
		if c == nil {
			return errs.Enginef("deployed change %s is not in %s; cannot locate its revert script",
				victims[i], e.plan.File)
		}
		if err := e.revertChange(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) revertChange(ctx context.Context, c *plan.Change) error {
	fmt.Fprintf(e.out(), "  - %s .. ", c.NameWithTags())
	script := e.target.RevertFile(c)
	body, err := os.ReadFile(script)
	if err != nil {
		fmt.Fprintln(e.out(), "not ok")
		e.logEvent(ctx, "fail", c)
		return errs.IOf("reading revert script: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, string(body)); err != nil {
		fmt.Fprintln(e.out(), "not ok")
		e.logEvent(ctx, "fail", c)
		return errs.Enginef("revert of %s failed: %w", c.Name, err)
	}

	now := time.Now().UTC()
	tx, err := e.reg.BeginTx(ctx, nil)
	if err != nil {
		return errs.Enginef("recording revert of %s: %w", c.Name, err)
	}
	defer tx.Rollback()
	// Dependency and tag rows go with the change via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM changes WHERE change_id = ?`, e.plan.ChangeID(c)); err != nil {
		return errs.Enginef("recording revert of %s: %w", c.Name, err)
	}
	if err := insertEvent(ctx, tx, "revert", e.plan, c, e.opts, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Enginef("recording revert of %s: %w", c.Name, err)
	}
	fmt.Fprintln(e.out(), "ok")
	return nil
}

// Verify runs the verify scripts of deployed changes between from and
// to, in deployment order, against the target database. A change
// without a verify script is reported and skipped; failures are
// collected so one broken change does not hide the rest.
func (e *Engine) Verify(ctx context.Context, from, to string) error {
	if err := e.EnsureRegistry(ctx); err != nil {
		return err
	}
	deployed, err := e.deployedIDs(ctx)
	if err != nil {
		return err
	}
	if len(deployed) == 0 {
		return errs.Userf("nothing to verify (nothing deployed to %s)", e.target.URI)
	}

	first, last := 0, len(deployed)-1
	if from != "" {
		if first, err = e.deployedIndex(deployed, from); err != nil {
			return err
		}
	}
	if to != "" {
		if last, err = e.deployedIndex(deployed, to); err != nil {
			return err
		}
	}
	if first > last {
		return errs.Validationf("verify range is reversed: %s was deployed after %s", from, to)
	}

	fmt.Fprintf(e.out(), "Verifying %s\n", e.target.URI)
	failed := 0
	for _, id := range deployed[first : last+1] {
		c := e.plan.GetChangeByID(id)
		if c == nil {
			fmt.Fprintf(e.out(), "  * %s .. not ok (not in plan)\n", id)
			failed++
			continue
		}
		fmt.Fprintf(e.out(), "  * %s .. ", c.NameWithTags())
		body, err := os.ReadFile(e.target.VerifyFile(c))
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(e.out(), "skipped (no verify script)")
			continue
		}
		if err != nil {
			fmt.Fprintln(e.out(), "not ok")
			return errs.IOf("reading verify script: %w", err)
		}
		if _, err := e.db.ExecContext(ctx, string(body)); err != nil {
			fmt.Fprintf(e.out(), "not ok (%v)\n", err)
			failed++
			continue
		}
		fmt.Fprintln(e.out(), "ok")
	}
	if failed > 0 {
		return errs.Enginef("verify failed for %d change(s) on %s", failed, e.target.URI)
	}
	fmt.Fprintln(e.out(), "Verify successful")
	return nil
}

// deployedIndex resolves spec to its position among the deployed IDs.
func (e *Engine) deployedIndex(deployed []string, spec string) (int, error) {
	var id string
	if c := plan.ResolveChange(e.plan, spec); c != nil {
		id = e.plan.ChangeID(c)
	} else if e.plan.GetChangeByID(spec) != nil {
		id = spec
	} else {
		return 0, errs.Resolutionf("unknown change %q in %s", spec, e.plan.File)
	}
	for i, d := range deployed {
		if d == id {
			return i, nil
		}
	}
	return 0, errs.Userf("change %s is not deployed to %s", spec, e.target.URI)
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, event string, p *plan.Plan, c *plan.Change, opts engine.Options, now time.Time) error {
	var requires, conflicts []string
	for _, d := range c.Dependencies {
		if d.Type == plan.Conflict {
			conflicts = append(conflicts, d.Change)
		} else {
			requires = append(requires, d.Change)
		}
	}
	tags := make([]string, len(c.Tags))
	for i, t := range c.Tags {
		tags[i] = "@" + t
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO events (event, change_id, change, project, note,
		                     requires, conflicts, tags,
		                     committed_at, committer_name, committer_email,
		                     planned_at, planner_name, planner_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event, p.ChangeID(c), c.Name, p.Project, c.Note,
		strings.Join(requires, " "), strings.Join(conflicts, " "), strings.Join(tags, " "),
		now.Format(committedAtLayout), opts.CommitterName, opts.CommitterEmail,
		c.Timestamp.UTC().Format(plannedAtLayout), c.PlannerName, c.PlannerEmail)
	if err != nil {
		return errs.Enginef("recording %s event for %s: %w", event, c.Name, err)
	}
	return nil
}

// logEvent records a fail event outside any transaction. The script
// error it accompanies is the one worth reporting, so a failure to log
// is swallowed.
func (e *Engine) logEvent(ctx context.Context, event string, c *plan.Change) {
	_ = insertEvent(ctx, e.reg, event, e.plan, c, e.opts, time.Now().UTC())
}

// DeployedChanges returns the IDs of deployed changes of the plan's
// project in deployment order.
func (e *Engine) DeployedChanges(ctx context.Context) ([]string, error) {
	if err := e.EnsureRegistry(ctx); err != nil {
		return nil, err
	}
	return e.deployedIDs(ctx)
}

func (e *Engine) deployedIDs(ctx context.Context) ([]string, error) {
	rows, err := e.reg.QueryContext(ctx,
		`SELECT change_id FROM changes WHERE project = ?
		 ORDER BY committed_at, rowid`, e.plan.Project)
	if err != nil {
		return nil, errs.Enginef("listing deployed changes: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Enginef("listing deployed changes: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Enginef("listing deployed changes: %w", err)
	}
	return ids, nil
}

// CurrentState reports the latest deployed change of a project, or nil
// when nothing is deployed.
func (e *Engine) CurrentState(ctx context.Context, project string) (*engine.State, error) {
	if err := e.EnsureRegistry(ctx); err != nil {
		return nil, err
	}
	if project == "" {
		project = e.plan.Project
	}
	var st engine.State
	err := e.reg.QueryRowContext(ctx,
		`SELECT change_id, change, project, note,
		        committed_at, committer_name, committer_email,
		        planned_at, planner_name, planner_email
		 FROM changes WHERE project = ?
		 ORDER BY committed_at DESC, rowid DESC LIMIT 1`, project).Scan(
		&st.ChangeID, &st.Change, &st.Project, &st.Note,
		&st.CommittedAt, &st.CommitterName, &st.CommitterEmail,
		&st.PlannedAt, &st.PlannerName, &st.PlannerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Enginef("querying current state: %w", err)
	}

	rows, err := e.reg.QueryContext(ctx,
		`SELECT tag FROM tags WHERE change_id = ? ORDER BY committed_at, rowid`, st.ChangeID)
	if err != nil {
		return nil, errs.Enginef("querying current state tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errs.Enginef("querying current state tags: %w", err)
		}
		st.Tags = append(st.Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Enginef("querying current state tags: %w", err)
	}
	return &st, nil
}

// SearchEvents returns deployment history matching the filter. String
// filters are substring matches.
func (e *Engine) SearchEvents(ctx context.Context, f engine.EventFilter) ([]engine.Event, error) {
	if err := e.EnsureRegistry(ctx); err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if len(f.Event) > 0 {
		where = append(where,
			"event IN (?"+strings.Repeat(", ?", len(f.Event)-1)+")")
		for _, ev := range f.Event {
			args = append(args, ev)
		}
	}
	like := func(column, value string) {
		if value != "" {
			where = append(where, column+" LIKE ?")
			args = append(args, "%"+value+"%")
		}
	}
	like("change", f.Change)
	like("project", f.Project)
	like("committer_name", f.Committer)
	like("planner_name", f.Planner)

	q := `SELECT event, change_id, change, project, note,
	             requires, conflicts, tags,
	             committed_at, committer_name, committer_email,
	             planned_at, planner_name, planner_email
	      FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	q += fmt.Sprintf(" ORDER BY committed_at %s, rowid %s", dir, dir)
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1 // sqlite for "no limit", required before OFFSET
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := e.reg.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Enginef("searching events: %w", err)
	}
	defer rows.Close()
	var events []engine.Event
	for rows.Next() {
		var ev engine.Event
		var requires, conflicts, tags string
		if err := rows.Scan(
			&ev.Event, &ev.ChangeID, &ev.Change, &ev.Project, &ev.Note,
			&requires, &conflicts, &tags,
			&ev.CommittedAt, &ev.CommitterName, &ev.CommitterEmail,
			&ev.PlannedAt, &ev.PlannerName, &ev.PlannerEmail); err != nil {
			return nil, errs.Enginef("searching events: %w", err)
		}
		ev.Requires = strings.Fields(requires)
		ev.Conflicts = strings.Fields(conflicts)
		ev.Tags = strings.Fields(tags)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Enginef("searching events: %w", err)
	}
	return events, nil
}

func hashScript(body []byte) string {
	sum := sha1.Sum(body)
	return hex.EncodeToString(sum[:])
}
