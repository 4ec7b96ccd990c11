package plan

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/strata/internal/errs"
)

func mustParse(t *testing.T, content string) *Plan {
	t.Helper()
	p, err := ParseString("strata.plan", content)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	return p
}

const widgetsPlan = `%syntax-version=1.0.0
%project=widgets

initial 2023-01-01T10:00:00Z Ann <ann@example.com> # Initial schema
users [initial] 2023-01-02T10:00:00Z Ann <ann@example.com> # Add users
`

func TestParseWidgetsPlan(t *testing.T) {
	p := mustParse(t, widgetsPlan)

	if p.Project != "widgets" {
		t.Errorf("Project = %q, want %q", p.Project, "widgets")
	}
	if p.SyntaxVersion != "1.0.0" {
		t.Errorf("SyntaxVersion = %q, want %q", p.SyntaxVersion, "1.0.0")
	}
	if p.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", p.Count())
	}

	if i, ok := Resolve(p, "users"); !ok || i != 1 {
		t.Errorf("Resolve(users) = (%d, %v), want (1, true)", i, ok)
	}
	if i, ok := Resolve(p, "@ROOT"); !ok || i != 0 {
		t.Errorf("Resolve(@ROOT) = (%d, %v), want (0, true)", i, ok)
	}

	users := p.Changes[1]
	if len(users.Dependencies) != 1 {
		t.Fatalf("users has %d dependencies, want 1", len(users.Dependencies))
	}
	if users.Dependencies[0].Change != "initial" {
		t.Errorf("dependency = %q, want %q", users.Dependencies[0].Change, "initial")
	}
	if users.Dependencies[0].Type != Require {
		t.Errorf("dependency type = %v, want require", users.Dependencies[0].Type)
	}
	if want := p.ChangeID(p.Changes[0]); users.Dependencies[0].ID != want {
		t.Errorf("dependency ID = %q, want resolved %q", users.Dependencies[0].ID, want)
	}

	initial := p.Changes[0]
	if initial.Note != "Initial schema" {
		t.Errorf("note = %q, want %q", initial.Note, "Initial schema")
	}
	want := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	if !initial.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", initial.Timestamp, want)
	}
	if initial.PlannerName != "Ann" || initial.PlannerEmail != "ann@example.com" {
		t.Errorf("planner = %q <%q>", initial.PlannerName, initial.PlannerEmail)
	}
}

func TestParseTagBinding(t *testing.T) {
	p := mustParse(t, `%project=widgets

initial 2023-01-01T10:00:00Z Ann <ann@example.com>
@v1.0 2023-01-05T10:00:00Z Ann <ann@example.com> # First release
users 2023-01-06T10:00:00Z Ann <ann@example.com>
`)
	if len(p.Tags) != 1 {
		t.Fatalf("got %d tags, want 1", len(p.Tags))
	}
	tag := p.Tags[0]
	if tag.Name != "v1.0" || tag.Note != "First release" {
		t.Errorf("tag = %q note %q", tag.Name, tag.Note)
	}
	if tag.Change != p.Changes[0] {
		t.Error("tag bound to the wrong change")
	}
	if len(p.Changes[0].Tags) != 1 || p.Changes[0].Tags[0] != "v1.0" {
		t.Errorf("change back-reference = %v, want [v1.0]", p.Changes[0].Tags)
	}
	if id := p.TagID(tag); !hexID.MatchString(id) {
		t.Errorf("TagID = %q, want 40 hex characters", id)
	}
}

func TestParseConflictAndCrossProjectDeps(t *testing.T) {
	p := mustParse(t, `%project=widgets

base 2023-01-01T10:00:00Z Ann <ann@example.com>
shiny [base !legacy flipr:hearts] 2023-01-02T10:00:00Z Ann <ann@example.com>
`)
	deps := p.Changes[1].Dependencies
	if len(deps) != 3 {
		t.Fatalf("got %d dependencies, want 3", len(deps))
	}
	if deps[0].Type != Require || deps[0].ID == "" {
		t.Errorf("base dependency unresolved: %+v", deps[0])
	}
	if deps[1].Type != Conflict || deps[1].Change != "legacy" {
		t.Errorf("conflict dependency = %+v", deps[1])
	}
	// Cross-project references legitimately stay unresolved.
	if deps[2].ID != "" {
		t.Errorf("cross-project dependency resolved to %q, want empty", deps[2].ID)
	}
}

func TestParseUnknownPragmaPreserved(t *testing.T) {
	p := mustParse(t, `%syntax-version=1.0.0
%project=widgets
%strict=1

initial 2023-01-01T10:00:00Z Ann <ann@example.com>
`)
	if len(p.Pragmas) != 1 || p.Pragmas[0].Key != "strict" || p.Pragmas[0].Value != "1" {
		t.Fatalf("Pragmas = %+v, want [{strict 1}]", p.Pragmas)
	}
	if !strings.Contains(p.Format(), "%strict=1\n") {
		t.Error("unknown pragma dropped on re-serialization")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			"missing project",
			"initial 2023-01-01T10:00:00Z Ann <ann@example.com>\n",
			"missing %project",
		},
		{
			"invalid project name",
			"%project=2widgets\n\ninitial 2023-01-01T10:00:00Z Ann <ann@example.com>\n",
			"invalid project name",
		},
		{
			"tag before any change",
			"%project=widgets\n\n@v1.0 2023-01-01T10:00:00Z Ann <ann@example.com>\n",
			"before any change",
		},
		{
			"duplicate tag",
			"%project=widgets\n\none 2023-01-01T10:00:00Z Ann <ann@example.com>\n" +
				"@v1.0 2023-01-02T10:00:00Z Ann <ann@example.com>\n" +
				"@v1.0 2023-01-03T10:00:00Z Ann <ann@example.com>\n",
			"multiply declared",
		},
		{
			"pragma after change",
			"%project=widgets\n\none 2023-01-01T10:00:00Z Ann <ann@example.com>\n%uri=https://example.com/\n",
			"after first change",
		},
		{
			"malformed pragma",
			"%project\n",
			"invalid pragma",
		},
		{
			"malformed change line",
			"%project=widgets\n\njust-a-name\n",
			"invalid change line",
		},
		{
			"bad timestamp",
			"%project=widgets\n\none not-a-time Ann <ann@example.com>\n",
			"invalid timestamp",
		},
		{
			"invalid change name",
			"%project=widgets\n\n9bad 2023-01-01T10:00:00Z Ann <ann@example.com>\n",
			"must begin with a letter",
		},
		{
			"invalid tag name",
			"%project=widgets\n\none 2023-01-01T10:00:00Z Ann <ann@example.com>\n" +
				"@1.0 2023-01-02T10:00:00Z Ann <ann@example.com>\n",
			"must begin with a letter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString("bad.plan", tt.content)
			if err == nil {
				t.Fatal("parse succeeded, want error")
			}
			if errs.KindOf(err) != errs.KindParse && errs.KindOf(err) != errs.KindIO {
				t.Errorf("error kind = %v, want parse", errs.KindOf(err))
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseErrorIncludesFileAndLine(t *testing.T) {
	_, err := ParseString("widgets.plan", "%project=widgets\n\n@v1.0 2023-01-01T10:00:00Z Ann <ann@example.com>\n")
	if err == nil {
		t.Fatal("parse succeeded, want error")
	}
	if !strings.Contains(err.Error(), "widgets.plan:3") {
		t.Errorf("error %q does not carry file:line", err)
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatal("parse error is not an *errs.Error")
	}
}

func TestParseDuplicateChangeNamesLastWins(t *testing.T) {
	p := mustParse(t, `%project=widgets

widgetz 2023-01-01T10:00:00Z Ann <ann@example.com>
widgets 2023-01-02T10:00:00Z Ann <ann@example.com>
other 2023-01-03T10:00:00Z Ann <ann@example.com>
widgets 2023-01-04T10:00:00Z Ann <ann@example.com> # reworked
`)
	if i, ok := Resolve(p, "widgets"); !ok || i != 3 {
		t.Errorf("Resolve(widgets) = (%d, %v), want (3, true)", i, ok)
	}
	if got := p.GetChange("widgets"); got != p.Changes[3] {
		t.Error("GetChange did not return the last occurrence")
	}
}
