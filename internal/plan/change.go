// Package plan contains the pure core of strata: the plan-file model,
// its parser and serializer, change identity, and reference resolution.
// Nothing in this package touches a database.
package plan

import (
	"strings"
	"time"
	"unicode"

	"github.com/example/strata/internal/errs"
)

// DependencyType distinguishes the two kinds of inter-change references.
type DependencyType int

const (
	// Require names a change that must already be deployed.
	Require DependencyType = iota
	// Conflict names a change that must not be deployed simultaneously.
	Conflict
)

func (t DependencyType) String() string {
	if t == Conflict {
		return "conflict"
	}
	return "require"
}

// Dependency is a typed reference from one change to another. Change holds
// the raw spec as written in the plan file: it may carry a project prefix
// ("project:change") or a tag qualifier ("change@tag"). ID is filled in
// once the referenced change is located and stays empty for cross-project
// references that cannot be resolved locally.
type Dependency struct {
	Type   DependencyType
	Change string
	ID     string
}

// ParseDependency reads one bracketed dependency token. A leading "!"
// marks a conflict; everything else is a requirement.
func ParseDependency(token string) Dependency {
	if rest, ok := strings.CutPrefix(token, "!"); ok {
		return Dependency{Type: Conflict, Change: rest}
	}
	return Dependency{Type: Require, Change: token}
}

// Project returns the project prefix of a cross-project dependency,
// or "" for a local one.
func (d Dependency) Project() string {
	if i := strings.IndexByte(d.Change, ':'); i >= 0 {
		return d.Change[:i]
	}
	return ""
}

// ChangeName returns the bare change name without project prefix or
// tag qualifier.
func (d Dependency) ChangeName() string {
	name := d.Change
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return name
}

// String renders the dependency in plan-file form.
func (d Dependency) String() string {
	if d.Type == Conflict {
		return "!" + d.Change
	}
	return d.Change
}

// Change is one named, orderable unit of schema work. Tags holds the
// names of tags attached to this change, as back-references only; the
// full Tag objects live on the Plan.
type Change struct {
	Name         string
	Note         string
	Timestamp    time.Time
	PlannerName  string
	PlannerEmail string
	Dependencies []Dependency
	Tags         []string
}

// Tag is a named marker attached to a change. Change is a forward
// pointer set at creation time and never reassigned.
type Tag struct {
	Name         string
	Note         string
	Timestamp    time.Time
	PlannerName  string
	PlannerEmail string
	Change       *Change
}

// Planner renders the planner field in plan-file form.
func (c *Change) Planner() string { return c.PlannerName + " <" + c.PlannerEmail + ">" }

// Planner renders the planner field in plan-file form.
func (t *Tag) Planner() string { return t.PlannerName + " <" + t.PlannerEmail + ">" }

// NameWithTags formats the change name followed by its @tags, the form
// used in status and checkout output.
func (c *Change) NameWithTags() string {
	if len(c.Tags) == 0 {
		return c.Name
	}
	parts := make([]string, 0, len(c.Tags)+1)
	parts = append(parts, c.Name)
	for _, tag := range c.Tags {
		parts = append(parts, "@"+tag)
	}
	return strings.Join(parts, " ")
}

// refPunct are the characters reserved for symbolic reference arithmetic.
// A name ending in one of these followed by digits would be ambiguous
// with forms like "@HEAD^2", so such endings are rejected.
const refPunct = "~^/=%"

// ValidateName checks a change, tag, or project name against the plan
// grammar: it must start with a letter, contain no whitespace, control
// characters, or any of "@:#[]", and must not end in one of "~^/=%"
// followed by digits.
func ValidateName(name string) error {
	if name == "" {
		return errs.Validationf("name cannot be empty")
	}
	runes := []rune(name)
	if !unicode.IsLetter(runes[0]) {
		return errs.Validationf("invalid name %q: must begin with a letter", name)
	}
	for _, r := range runes {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune("@:#[]", r) {
			return errs.Validationf("invalid name %q: names may not contain whitespace or any of \"@:#[]\"", name)
		}
	}
	i := len(runes)
	for i > 0 && unicode.IsDigit(runes[i-1]) {
		i--
	}
	if i < len(runes) && i > 0 && strings.ContainsRune(refPunct, runes[i-1]) {
		return errs.Validationf("invalid name %q: names may not end in one of %q followed by digits", name, refPunct)
	}
	return nil
}
