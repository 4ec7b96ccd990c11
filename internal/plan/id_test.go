package plan

import (
	"regexp"
	"testing"
	"time"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{40}$`)

func testChange(name string) *Change {
	return &Change{
		Name:         name,
		Note:         "A note",
		Timestamp:    time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC),
		PlannerName:  "Ann",
		PlannerEmail: "ann@example.com",
	}
}

func TestChangeIDDeterminism(t *testing.T) {
	c := testChange("users")
	a := ChangeID("widgets", c, RootParent)
	b := ChangeID("widgets", c, RootParent)
	if a != b {
		t.Fatalf("same inputs hashed to %s and %s", a, b)
	}
	if !hexID.MatchString(a) {
		t.Fatalf("ChangeID = %q, want 40 hex characters", a)
	}
}

func TestChangeIDFieldSensitivity(t *testing.T) {
	base := ChangeID("widgets", testChange("users"), RootParent)

	mutations := map[string]func(*Change){
		"name":      func(c *Change) { c.Name = "userz" },
		"note":      func(c *Change) { c.Note = "Another note" },
		"timestamp": func(c *Change) { c.Timestamp = c.Timestamp.Add(time.Second) },
		"planner":   func(c *Change) { c.PlannerName = "Bob" },
		"email":     func(c *Change) { c.PlannerEmail = "bob@example.com" },
		"dependency": func(c *Change) {
			c.Dependencies = []Dependency{{Type: Require, Change: "initial"}}
		},
	}
	for field, mutate := range mutations {
		c := testChange("users")
		mutate(c)
		if got := ChangeID("widgets", c, RootParent); got == base {
			t.Errorf("changing %s did not change the ID", field)
		}
	}

	if got := ChangeID("gadgets", testChange("users"), RootParent); got == base {
		t.Error("changing the project did not change the ID")
	}
	if got := ChangeID("widgets", testChange("users"), base); got == base {
		t.Error("changing the parent did not change the ID")
	}
}

func TestChangeIDDependencyTypeMatters(t *testing.T) {
	req := testChange("users")
	req.Dependencies = []Dependency{{Type: Require, Change: "initial"}}
	con := testChange("users")
	con.Dependencies = []Dependency{{Type: Conflict, Change: "initial"}}
	if ChangeID("widgets", req, RootParent) == ChangeID("widgets", con, RootParent) {
		t.Error("require and conflict dependencies hashed identically")
	}
}

func TestIDChaining(t *testing.T) {
	p := mustParse(t, `
%syntax-version=1.0.0
%project=widgets

one 2023-01-01T10:00:00Z Ann <ann@example.com> # First
two 2023-01-02T10:00:00Z Ann <ann@example.com> # Second
three 2023-01-03T10:00:00Z Ann <ann@example.com> # Third
`)
	before2 := p.ChangeID(p.Changes[1])
	before3 := p.ChangeID(p.Changes[2])

	// Editing the first change must ripple through every later ID even
	// though their own fields are untouched.
	p.Changes[0].Note = "Edited"
	p.reindex()

	if got := p.ChangeID(p.Changes[1]); got == before2 {
		t.Error("editing change one did not change the ID of change two")
	}
	if got := p.ChangeID(p.Changes[2]); got == before3 {
		t.Error("editing change one did not change the ID of change three")
	}
}

func TestTagID(t *testing.T) {
	tag := &Tag{
		Name:         "v1.0",
		Note:         "Release",
		Timestamp:    time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		PlannerName:  "Ann",
		PlannerEmail: "ann@example.com",
	}
	a := TagID("widgets", tag, RootParent)
	if !hexID.MatchString(a) {
		t.Fatalf("TagID = %q, want 40 hex characters", a)
	}
	if b := TagID("widgets", tag, "da39a3ee5e6b4b0d3255bfef95601890afd80709"); a == b {
		t.Error("changing the tagged change ID did not change the tag ID")
	}
}
