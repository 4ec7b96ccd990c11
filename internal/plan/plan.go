package plan

import (
	"time"

	"github.com/example/strata/internal/errs"
)

// DefaultSyntaxVersion is the plan-file syntax version written by this
// release.
const DefaultSyntaxVersion = "1.0.0"

// Pragma is a %key=value line the parser recognized but does not
// interpret. Unknown pragmas are preserved so a rewrite of the plan
// does not drop them.
type Pragma struct {
	Key   string
	Value string
}

// Plan is the ordered record of all changes and tags for a project.
// Changes are kept in plan-file line order, which is deployment order.
// The lookup indexes are rebuilt on every mutation; change IDs are
// recomputed as a chain whenever the change list or an entry changes.
type Plan struct {
	File          string
	Project       string
	URI           string
	SyntaxVersion string
	Pragmas       []Pragma
	Changes       []*Change
	Tags          []*Tag

	changeByName map[string]*Change
	changeByID   map[string]*Change
	tagByName    map[string]*Tag
	changeIDs    map[*Change]string
	tagIDs       map[*Tag]string
}

// New constructs an empty plan for a brand-new project.
func New(file, project string) (*Plan, error) {
	if err := ValidateName(project); err != nil {
		return nil, err
	}
	p := &Plan{
		File:          file,
		Project:       project,
		SyntaxVersion: DefaultSyntaxVersion,
	}
	p.reindex()
	return p, nil
}

// reindex rebuilds the lookup indexes and recomputes the identity
// chain. Name lookups are last-wins so a reworked change shadows its
// earlier occurrence.
func (p *Plan) reindex() {
	p.changeByName = make(map[string]*Change, len(p.Changes))
	p.changeByID = make(map[string]*Change, len(p.Changes))
	p.changeIDs = make(map[*Change]string, len(p.Changes))
	p.tagByName = make(map[string]*Tag, len(p.Tags))
	p.tagIDs = make(map[*Tag]string, len(p.Tags))

	parent := RootParent
	for _, c := range p.Changes {
		id := ChangeID(p.Project, c, parent)
		p.changeIDs[c] = id
		p.changeByName[c.Name] = c
		p.changeByID[id] = c
		parent = id
	}
	for _, t := range p.Tags {
		p.tagByName[t.Name] = t
		if t.Change != nil {
			p.tagIDs[t] = TagID(p.Project, t, p.changeIDs[t.Change])
		}
	}
	p.resolveDependencies()
}

// resolveDependencies fills in dependency IDs for requirements that
// name a change appearing earlier in this plan. Cross-project and
// forward references stay unresolved, which is not an error.
func (p *Plan) resolveDependencies() {
	seen := make(map[string]string) // name -> id, last occurrence wins
	for _, c := range p.Changes {
		for i := range c.Dependencies {
			dep := &c.Dependencies[i]
			dep.ID = ""
			if dep.Project() == "" {
				dep.ID = seen[dep.ChangeName()]
			}
		}
		seen[c.Name] = p.changeIDs[c]
	}
}

// ChangeID returns the chained identity of a change in this plan, or
// "" if the change is not part of the plan.
func (p *Plan) ChangeID(c *Change) string { return p.changeIDs[c] }

// TagID returns the identity of a tag in this plan, or "" if the tag
// is not part of the plan.
func (p *Plan) TagID(t *Tag) string { return p.tagIDs[t] }

// Count returns the number of changes in the plan.
func (p *Plan) Count() int { return len(p.Changes) }

// ChangeAt returns the change at index, or nil when out of range.
func (p *Plan) ChangeAt(index int) *Change {
	if index < 0 || index >= len(p.Changes) {
		return nil
	}
	return p.Changes[index]
}

// GetChange looks a change up by name (last occurrence) or by ID.
func (p *Plan) GetChange(identifier string) *Change {
	if c, ok := p.changeByName[identifier]; ok {
		return c
	}
	return p.changeByID[identifier]
}

// GetChangeByID looks a change up by its content-addressed identity.
func (p *Plan) GetChangeByID(id string) *Change { return p.changeByID[id] }

// GetTag looks a tag up by name, with or without the leading "@".
func (p *Plan) GetTag(name string) *Tag {
	return p.tagByName[trimTagPrefix(name)]
}

// TagsFor returns the tags attached to a change, in tag-creation order.
func (p *Plan) TagsFor(c *Change) []*Tag {
	var tags []*Tag
	for _, t := range p.Tags {
		if t.Change == c {
			tags = append(tags, t)
		}
	}
	return tags
}

// ChangesSince returns the changes after the one identified by name or
// ID, in plan order.
func (p *Plan) ChangesSince(identifier string) ([]*Change, error) {
	c := p.GetChange(identifier)
	if c == nil {
		return nil, errs.Resolutionf("change not found: %s", identifier)
	}
	for i, candidate := range p.Changes {
		if candidate == c {
			return p.Changes[i+1:], nil
		}
	}
	return nil, nil
}

// AddChange appends a change to the plan. Reworked duplicate names are
// a parse-time construct only; appending a name already in the plan is
// rejected here.
func (p *Plan) AddChange(c *Change) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if _, ok := p.changeByName[c.Name]; ok {
		return errs.Validationf("change %q already exists in %s", c.Name, p.File)
	}
	c.Timestamp = c.Timestamp.UTC().Truncate(time.Second)
	p.Changes = append(p.Changes, c)
	p.reindex()
	return nil
}

// AddTag appends a tag to the plan. Tag names are unique across the
// whole plan and the tag must point at a change already in it.
func (p *Plan) AddTag(t *Tag) error {
	if err := ValidateName(t.Name); err != nil {
		return err
	}
	if _, ok := p.tagByName[t.Name]; ok {
		return errs.Validationf("tag %q already exists in %s", "@"+t.Name, p.File)
	}
	if t.Change == nil || p.changeIDs[t.Change] == "" {
		return errs.Validationf("tag %q does not reference a change in %s", "@"+t.Name, p.File)
	}
	t.Timestamp = t.Timestamp.UTC().Truncate(time.Second)
	p.Tags = append(p.Tags, t)
	t.Change.Tags = append(t.Change.Tags, t.Name)
	p.reindex()
	return nil
}

// CreateTag builds a tag against the named change, or against the last
// change in the plan when changeName is empty, and appends it.
func (p *Plan) CreateTag(name, changeName, note, plannerName, plannerEmail string) (*Tag, error) {
	name = trimTagPrefix(name)
	var target *Change
	if changeName != "" {
		target = p.GetChange(changeName)
		if target == nil {
			return nil, errs.Resolutionf("unknown change %q in %s", changeName, p.File)
		}
	} else {
		if len(p.Changes) == 0 {
			return nil, errs.Validationf("cannot apply tag %q to a plan with no changes", "@"+name)
		}
		target = p.Changes[len(p.Changes)-1]
	}
	t := &Tag{
		Name:         name,
		Note:         note,
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		PlannerName:  plannerName,
		PlannerEmail: plannerEmail,
		Change:       target,
	}
	if err := p.AddTag(t); err != nil {
		return nil, err
	}
	return t, nil
}

func trimTagPrefix(name string) string {
	if rest, ok := cutTagPrefix(name); ok {
		return rest
	}
	return name
}

func cutTagPrefix(name string) (string, bool) {
	if len(name) > 0 && name[0] == '@' {
		return name[1:], true
	}
	return name, false
}
