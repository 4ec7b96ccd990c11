package plan

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/example/strata/internal/errs"
)

// tagLineRE matches "@name timestamp planner <email> # note".
var tagLineRE = regexp.MustCompile(`^@(\S+)\s+(\S+)\s+(.+?)\s+<([^>]+)>$`)

// changeLineRE matches "name [deps] timestamp planner <email>" after the
// trailing note has been cut off. The dependency block is optional.
var changeLineRE = regexp.MustCompile(`^(\S+)(?:\s+\[([^\]]*)\])?\s+(\S+)\s+(.+?)\s+<([^>]+)>$`)

// ParseFile reads and parses a plan file.
func ParseFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.IOf("cannot read plan file %s: %w", path, err)
	}
	defer f.Close()
	return Parse(path, bufio.NewReader(f))
}

// ParseString parses plan content held in memory. file is used for
// error messages and as the re-serialization target.
func ParseString(file, content string) (*Plan, error) {
	return Parse(file, strings.NewReader(content))
}

// Parse reads plan-file text line by line. Pragmas must precede the
// first change, a tag line binds to the most recently parsed change,
// and any malformed line aborts the parse with the offending file and
// line number. There is no partial or recovered plan.
func Parse(file string, r io.Reader) (*Plan, error) {
	p := &Plan{
		File:          file,
		SyntaxVersion: DefaultSyntaxVersion,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	tagNames := make(map[string]bool)

	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch line[0] {
		case '%':
			if len(p.Changes) > 0 || len(p.Tags) > 0 {
				return nil, errs.Parsef("%s:%d: pragma %q after first change", file, lineno, line)
			}
			if err := p.parsePragma(file, lineno, line); err != nil {
				return nil, err
			}
		case '@':
			if len(p.Changes) == 0 {
				return nil, errs.Parsef("%s:%d: tag %q declared before any change", file, lineno, firstToken(line))
			}
			t, err := parseTagLine(file, lineno, line)
			if err != nil {
				return nil, err
			}
			if tagNames[t.Name] {
				return nil, errs.Parsef("%s:%d: tag %q multiply declared", file, lineno, "@"+t.Name)
			}
			tagNames[t.Name] = true
			last := p.Changes[len(p.Changes)-1]
			t.Change = last
			last.Tags = append(last.Tags, t.Name)
			p.Tags = append(p.Tags, t)
		default:
			c, err := parseChangeLine(file, lineno, line)
			if err != nil {
				return nil, err
			}
			p.Changes = append(p.Changes, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IOf("error reading plan file %s: %w", file, err)
	}

	if p.Project == "" {
		return nil, errs.Parsef("%s: missing %%project pragma", file)
	}
	if err := ValidateName(p.Project); err != nil {
		return nil, errs.Parsef("%s: invalid project name %q", file, p.Project)
	}

	p.reindex()
	return p, nil
}

func (p *Plan) parsePragma(file string, lineno int, line string) error {
	key, value, ok := strings.Cut(line[1:], "=")
	if !ok {
		return errs.Parsef("%s:%d: invalid pragma %q", file, lineno, line)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	switch key {
	case "syntax-version":
		p.SyntaxVersion = value
	case "project":
		p.Project = value
	case "uri":
		p.URI = value
	default:
		// Unknown pragmas are preserved for forward compatibility.
		p.Pragmas = append(p.Pragmas, Pragma{Key: key, Value: value})
	}
	return nil
}

func parseTagLine(file string, lineno int, line string) (*Tag, error) {
	body, note := cutNote(line)
	m := tagLineRE.FindStringSubmatch(body)
	if m == nil {
		return nil, errs.Parsef("%s:%d: invalid tag line %q", file, lineno, line)
	}
	if err := ValidateName(m[1]); err != nil {
		return nil, errs.Parsef("%s:%d: %w", file, lineno, err)
	}
	ts, err := parseTimestamp(m[2])
	if err != nil {
		return nil, errs.Parsef("%s:%d: invalid timestamp in tag %q: %w", file, lineno, "@"+m[1], err)
	}
	return &Tag{
		Name:         m[1],
		Note:         note,
		Timestamp:    ts,
		PlannerName:  m[3],
		PlannerEmail: m[4],
	}, nil
}

func parseChangeLine(file string, lineno int, line string) (*Change, error) {
	body, note := cutNote(line)
	m := changeLineRE.FindStringSubmatch(body)
	if m == nil {
		return nil, errs.Parsef("%s:%d: invalid change line %q", file, lineno, line)
	}
	if err := ValidateName(m[1]); err != nil {
		return nil, errs.Parsef("%s:%d: %w", file, lineno, err)
	}
	var deps []Dependency
	for _, token := range strings.Fields(m[2]) {
		deps = append(deps, ParseDependency(token))
	}
	ts, err := parseTimestamp(m[3])
	if err != nil {
		return nil, errs.Parsef("%s:%d: invalid timestamp in change %q: %w", file, lineno, m[1], err)
	}
	return &Change{
		Name:         m[1],
		Note:         note,
		Timestamp:    ts,
		PlannerName:  m[4],
		PlannerEmail: m[5],
		Dependencies: deps,
	}, nil
}

// cutNote splits a trailing "# note" comment off a change or tag line.
func cutNote(line string) (body, note string) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
	}
	return line, ""
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC().Truncate(time.Second), nil
}

func firstToken(line string) string {
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return line
}
