package plan

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// RootParent is the sentinel parent ID used when hashing the first
// change of a plan.
const RootParent = "0000000000000000000000000000000000000000"

// ChangeID computes the content-addressed identity of a change: a SHA-1
// digest over a canonical serialization of the change metadata plus the
// ID of the preceding change. Chaining the parent in means editing or
// reordering any earlier change invalidates every later ID.
func ChangeID(project string, c *Change, parent string) string {
	lines := []string{
		"project " + project,
		"change " + c.Name,
		"parent " + parent,
		"planner " + c.Planner(),
		"date " + FormatTimestamp(c.Timestamp),
	}
	for _, dep := range c.Dependencies {
		lines = append(lines, dep.Type.String()+" "+dep.Change)
	}
	lines = append(lines, "", c.Note)
	return digest(lines)
}

// TagID computes the content-addressed identity of a tag, bound to the
// ID of the change it marks.
func TagID(project string, t *Tag, changeID string) string {
	lines := []string{
		"project " + project,
		"tag @" + t.Name,
		"change " + changeID,
		"planner " + t.Planner(),
		"date " + FormatTimestamp(t.Timestamp),
		"",
		t.Note,
	}
	return digest(lines)
}

func digest(lines []string) string {
	sum := sha1.Sum([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
