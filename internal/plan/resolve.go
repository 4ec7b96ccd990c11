package plan

import "strings"

// Resolve maps a symbolic reference to an index into p.Changes. The
// four cases, in priority order:
//
//  1. "@ROOT" / "ROOT" is the first change.
//  2. "@HEAD" / "HEAD" is the last change.
//  3. any other "@name" is a tag reference.
//  4. anything else is a change name; the last occurrence wins so a
//     reworked change shadows its earlier namesakes.
//
// The boolean is false when the reference matches nothing, including
// every case against an empty plan. Callers decide whether a miss is
// fatal.
func Resolve(p *Plan, spec string) (int, bool) {
	switch spec {
	case "@ROOT", "ROOT":
		if len(p.Changes) == 0 {
			return 0, false
		}
		return 0, true
	case "@HEAD", "HEAD":
		if len(p.Changes) == 0 {
			return 0, false
		}
		return len(p.Changes) - 1, true
	}

	if name, ok := strings.CutPrefix(spec, "@"); ok {
		if t := p.GetTag(name); t != nil {
			for i, c := range p.Changes {
				if c == t.Change {
					return i, true
				}
			}
		}
		// A partial plan may carry the tag only as a back-reference on
		// the change itself.
		for i, c := range p.Changes {
			for _, tag := range c.Tags {
				if tag == name {
					return i, true
				}
			}
		}
		return 0, false
	}

	for i := len(p.Changes) - 1; i >= 0; i-- {
		if p.Changes[i].Name == spec {
			return i, true
		}
	}
	return 0, false
}

// ResolveChange is Resolve returning the change itself.
func ResolveChange(p *Plan, spec string) *Change {
	if i, ok := Resolve(p, spec); ok {
		return p.Changes[i]
	}
	return nil
}

// FindLastCommonChange returns the last change in target that current
// also contains, comparing by content-addressed ID. It walks target
// from the start and stops at the first change current lacks: the two
// plans are assumed to share a common prefix of history, and this
// finds the end of that prefix. Histories that diverge and reconverge
// are deliberately not detected.
func FindLastCommonChange(current, target *Plan) *Change {
	var last *Change
	for _, c := range target.Changes {
		id := target.ChangeID(c)
		found := current.GetChangeByID(id)
		if found == nil {
			break
		}
		last = found
	}
	return last
}
