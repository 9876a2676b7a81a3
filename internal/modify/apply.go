package modify

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/sprite-ai/reviewgate/internal/model"
)

type applyFunc func(p *model.ImplementationPlan, c Change) error

var forward = map[ChangeType]applyFunc{
	FileAdded: func(p *model.ImplementationPlan, c Change) error {
		list := fileList(p, c.List)
		*list = insertUnique(*list, c.Target, c.Index)
		return nil
	},
	FileRemoved: func(p *model.ImplementationPlan, c Change) error {
		list := fileList(p, c.List)
		*list = slices.DeleteFunc(*list, func(s string) bool { return s == c.Target })
		return nil
	},
	FileModified: func(p *model.ImplementationPlan, c Change) error {
		list := fileList(p, c.List)
		i := slices.Index(*list, c.OldValue)
		if i < 0 {
			return fmt.Errorf("file not in plan: %s", c.OldValue)
		}
		(*list)[i] = c.NewValue
		return nil
	},
	DependencyAdded: func(p *model.ImplementationPlan, c Change) error {
		p.ExternalDependencies = insertUnique(p.ExternalDependencies, c.Target, c.Index)
		return nil
	},
	DependencyRemoved: func(p *model.ImplementationPlan, c Change) error {
		p.ExternalDependencies = slices.DeleteFunc(p.ExternalDependencies, func(s string) bool { return s == c.Target })
		return nil
	},
	PhaseAdded: func(p *model.ImplementationPlan, c Change) error {
		pos := min(max(c.Position, 0), len(p.Phases))
		p.Phases = slices.Insert(p.Phases, pos, c.Target)
		return nil
	},
	PhaseRemoved: func(p *model.ImplementationPlan, c Change) error {
		i := c.Position
		if i < 0 || i >= len(p.Phases) || p.Phases[i] != c.Target {
			i = slices.Index(p.Phases, c.Target)
		}
		if i < 0 {
			return fmt.Errorf("phase not in plan: %s", c.Target)
		}
		p.Phases = slices.Delete(p.Phases, i, i+1)
		return nil
	},
	PhaseReordered: func(p *model.ImplementationPlan, c Change) error {
		if !validIndex(c.Position, len(p.Phases)) || !validIndex(c.To, len(p.Phases)) {
			return fmt.Errorf("invalid phase position %d -> %d", c.Position+1, c.To+1)
		}
		phase := p.Phases[c.Position]
		p.Phases = slices.Delete(p.Phases, c.Position, c.Position+1)
		p.Phases = slices.Insert(p.Phases, c.To, phase)
		return nil
	},
	RiskAdded: func(p *model.ImplementationPlan, c Change) error {
		if c.NewRisk == nil {
			return fmt.Errorf("risk_added without a risk")
		}
		pos := min(max(c.Position, 0), len(p.Risks))
		p.Risks = slices.Insert(p.Risks, pos, *c.NewRisk)
		return nil
	},
	RiskModified: func(p *model.ImplementationPlan, c Change) error {
		if c.NewRisk == nil || !validIndex(c.Position, len(p.Risks)) {
			return fmt.Errorf("invalid risk index %d", c.Position+1)
		}
		p.Risks[c.Position] = *c.NewRisk
		return nil
	},
	RiskRemoved: func(p *model.ImplementationPlan, c Change) error {
		if !validIndex(c.Position, len(p.Risks)) {
			return fmt.Errorf("invalid risk index %d", c.Position+1)
		}
		p.Risks = slices.Delete(p.Risks, c.Position, c.Position+1)
		return nil
	},
	MetadataUpdated: func(p *model.ImplementationPlan, c Change) error {
		return setField(p, c.Target, c.NewValue)
	},
}

// inverses maps each change type to the change that undoes it.
var inverses = map[ChangeType]func(Change) Change{
	FileAdded: func(c Change) Change {
		return Change{Type: FileRemoved, Target: c.Target, OldValue: c.Target, List: c.List}
	},
	FileRemoved: func(c Change) Change {
		return Change{Type: FileAdded, Target: c.Target, NewValue: c.Target, List: c.List, Index: c.Index}
	},
	FileModified: func(c Change) Change {
		return Change{Type: FileModified, Target: c.OldValue, OldValue: c.NewValue, NewValue: c.OldValue, List: c.List}
	},
	DependencyAdded: func(c Change) Change {
		return Change{Type: DependencyRemoved, Target: c.Target, OldValue: c.Target}
	},
	DependencyRemoved: func(c Change) Change {
		return Change{Type: DependencyAdded, Target: c.Target, NewValue: c.Target, Index: c.Index}
	},
	PhaseAdded: func(c Change) Change {
		return Change{Type: PhaseRemoved, Target: c.Target, OldValue: c.Target, Position: c.Position}
	},
	PhaseRemoved: func(c Change) Change {
		return Change{Type: PhaseAdded, Target: c.Target, NewValue: c.Target, Position: c.Position}
	},
	PhaseReordered: func(c Change) Change {
		return Change{Type: PhaseReordered, Target: c.Target, Position: c.To, To: c.Position}
	},
	RiskAdded: func(c Change) Change {
		return Change{Type: RiskRemoved, Target: c.Target, OldRisk: c.NewRisk, Position: c.Position}
	},
	RiskModified: func(c Change) Change {
		return Change{Type: RiskModified, Target: riskDesc(c.OldRisk), OldRisk: c.NewRisk, NewRisk: c.OldRisk, Position: c.Position}
	},
	RiskRemoved: func(c Change) Change {
		return Change{Type: RiskAdded, Target: c.Target, NewRisk: c.OldRisk, Position: c.Position}
	},
	MetadataUpdated: func(c Change) Change {
		return Change{Type: MetadataUpdated, Target: c.Target, OldValue: c.NewValue, NewValue: c.OldValue}
	},
}

// Apply performs c on p in place. Adding an existing file or dependency and
// removing an absent one are no-ops.
func Apply(p *model.ImplementationPlan, c Change) error {
	fn, ok := forward[c.Type]
	if !ok {
		return fmt.Errorf("unsupported change type %s", c.Type)
	}
	return fn(p, c)
}

// Locate records where a removed file or dependency sits in p so that its
// inverse restores the original order.
func Locate(p *model.ImplementationPlan, c Change) Change {
	var i int
	switch c.Type {
	case FileRemoved:
		i = slices.Index(*fileList(p, c.List), c.Target)
	case DependencyRemoved:
		i = slices.Index(p.ExternalDependencies, c.Target)
	default:
		return c
	}
	if i >= 0 {
		c.Index = &i
	}
	return c
}

// Inverse returns the change that undoes c.
func Inverse(c Change) (Change, error) {
	fn, ok := inverses[c.Type]
	if !ok {
		return Change{}, fmt.Errorf("no inverse for change type %s", c.Type)
	}
	inv := fn(c)
	inv.Timestamp = c.Timestamp
	return inv, nil
}

// Invert undoes c on p in place.
func Invert(p *model.ImplementationPlan, c Change) error {
	inv, err := Inverse(c)
	if err != nil {
		return err
	}
	return Apply(p, inv)
}

// Applier replays change logs onto plans.
type Applier struct{}

// ApplyAll deep-copies original and applies changes in order. The original
// is never touched.
func (Applier) ApplyAll(original *model.ImplementationPlan, changes []Change) (*model.ImplementationPlan, error) {
	p := original.Clone()
	for i, c := range changes {
		if err := Apply(p, c); err != nil {
			return nil, fmt.Errorf("applying change %d (%s): %w", i+1, c.Type, err)
		}
	}
	return p, nil
}

// Validate checks changes against original and returns human-readable
// problems. An empty result means the changes can be applied.
func Validate(original *model.ImplementationPlan, changes []Change) []string {
	var problems []string

	added := map[string]bool{}
	removed := map[string]bool{}
	for _, c := range changes {
		switch c.Type {
		case FileAdded:
			added[c.Target] = true
		case FileRemoved:
			removed[c.Target] = true
		}
	}
	for _, c := range changes {
		if c.Type == FileAdded && removed[c.Target] {
			problems = append(problems, fmt.Sprintf("Conflicting operations on file: %s (both added and removed)", c.Target))
		}
	}

	p := original.Clone()
	for _, c := range changes {
		switch c.Type {
		case FileRemoved:
			if !slices.Contains(*fileList(p, c.List), c.Target) && !added[c.Target] {
				problems = append(problems, "Cannot remove file not in plan: "+c.Target)
			}
		case DependencyRemoved:
			if !slices.Contains(p.ExternalDependencies, c.Target) {
				problems = append(problems, "Cannot remove dependency not in plan: "+c.Target)
			}
		case RiskModified, RiskRemoved:
			if !validIndex(c.Position, len(p.Risks)) {
				problems = append(problems, fmt.Sprintf("Invalid risk index: %d", c.Position+1))
			}
		case PhaseRemoved:
			if slices.Index(p.Phases, c.Target) < 0 {
				problems = append(problems, "Cannot remove phase not in plan: "+c.Target)
			}
		case PhaseReordered:
			if !validIndex(c.Position, len(p.Phases)) || !validIndex(c.To, len(p.Phases)) {
				problems = append(problems, fmt.Sprintf("Invalid phase position: %d -> %d", c.Position+1, c.To+1))
			}
		case MetadataUpdated:
			if err := setField(p.Clone(), c.Target, c.NewValue); err != nil {
				problems = append(problems, "Invalid metadata update: "+err.Error())
			}
		}
		// Keep simulating so later changes see earlier ones.
		_ = Apply(p, c)
	}
	return problems
}

func fileList(p *model.ImplementationPlan, l FileList) *[]string {
	if l == ListModify {
		return &p.FilesToModify
	}
	return &p.FilesToCreate
}

func insertUnique(list []string, s string, at *int) []string {
	if slices.Contains(list, s) {
		return list
	}
	if at == nil || *at < 0 || *at > len(list) {
		return append(list, s)
	}
	return slices.Insert(list, *at, s)
}

func validIndex(i, n int) bool { return i >= 0 && i < n }

func riskDesc(r *model.Risk) string {
	if r == nil {
		return ""
	}
	return r.Description
}

func setField(p *model.ImplementationPlan, field, value string) error {
	switch field {
	case FieldEstimatedDuration:
		p.EstimatedDuration = value
	case FieldEstimatedLOC:
		n, err := atoiOrZero(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %q", field, value)
		}
		p.EstimatedLOC = n
	case FieldEstimatedComplexity:
		n, err := atoiOrZero(value)
		if err != nil || (n != 0 && (n < model.MinTotalScore || n > model.MaxTotalScore)) {
			return fmt.Errorf("invalid value for %s: %q", field, value)
		}
		p.EstimatedComplexity = n
	default:
		return fmt.Errorf("unknown metadata field %s", field)
	}
	return nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
