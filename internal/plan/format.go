package plan

import (
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/example/strata/internal/errs"
)

// timestampLayout renders UTC times with a literal Z and second
// precision, the only form the plan grammar accepts.
const timestampLayout = "2006-01-02T15:04:05Z07:00"

// FormatTimestamp renders a plan timestamp in canonical form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timestampLayout)
}

// String renders the change as a single plan line. Multi-line notes are
// flattened: the compact line form keeps no embedded newlines.
func (c *Change) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if len(c.Dependencies) > 0 {
		b.WriteString(" [")
		for i, dep := range c.Dependencies {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(dep.String())
		}
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(FormatTimestamp(c.Timestamp))
	b.WriteByte(' ')
	b.WriteString(c.Planner())
	if c.Note != "" {
		b.WriteString(" # ")
		b.WriteString(flattenNote(c.Note))
	}
	return b.String()
}

// String renders the tag as a single plan line.
func (t *Tag) String() string {
	var b strings.Builder
	b.WriteByte('@')
	b.WriteString(t.Name)
	b.WriteByte(' ')
	b.WriteString(FormatTimestamp(t.Timestamp))
	b.WriteByte(' ')
	b.WriteString(t.Planner())
	if t.Note != "" {
		b.WriteString(" # ")
		b.WriteString(flattenNote(t.Note))
	}
	return b.String()
}

func flattenNote(note string) string {
	return strings.Join(strings.Fields(note), " ")
}

// Format serializes the whole plan. Parsing the result yields an equal
// plan; that round trip is the core correctness property of this
// package.
func (p *Plan) Format() string {
	return p.FormatRange(0, len(p.Changes)-1)
}

// FormatRange serializes the pragma block plus the changes in
// [from, to] inclusive, each followed by its tags in tag-creation
// order. Bundle uses this to emit partial plans; Format is the full
// range.
func (p *Plan) FormatRange(from, to int) string {
	var b strings.Builder
	b.WriteString("%syntax-version=")
	b.WriteString(p.SyntaxVersion)
	b.WriteByte('\n')
	b.WriteString("%project=")
	b.WriteString(p.Project)
	b.WriteByte('\n')
	if p.URI != "" {
		b.WriteString("%uri=")
		b.WriteString(p.URI)
		b.WriteByte('\n')
	}
	for _, pragma := range p.Pragmas {
		b.WriteByte('%')
		b.WriteString(pragma.Key)
		b.WriteByte('=')
		b.WriteString(pragma.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	for i := from; i <= to && i < len(p.Changes); i++ {
		if i < 0 {
			continue
		}
		c := p.Changes[i]
		b.WriteString(c.String())
		b.WriteByte('\n')
		for _, t := range p.Tags {
			if t.Change == c {
				b.WriteString(t.String())
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// WriteFile atomically rewrites the plan file. The whole file is
// replaced in one rename; there are no partial writes.
func (p *Plan) WriteFile() error {
	if err := atomic.WriteFile(p.File, strings.NewReader(p.Format())); err != nil {
		return errs.IOf("cannot write plan file %s: %w", p.File, err)
	}
	return nil
}
