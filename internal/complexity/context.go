// Package complexity scores implementation plans and decides how much review
// they need.
package complexity

import (
	"strings"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// TaskMetadata is the subset of task front-matter the scorer looks at.
type TaskMetadata struct {
	Priority string   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	IsHotfix bool     `json:"is_hotfix,omitempty" yaml:"is_hotfix,omitempty"`
}

// UserFlags are command-line overrides.
type UserFlags struct {
	ForceReview bool `json:"review,omitempty"`
}

// EvaluationContext is everything a factor may inspect.
type EvaluationContext struct {
	TaskID          string
	TechnologyStack string
	Plan            *model.ImplementationPlan
	Metadata        TaskMetadata
	Flags           UserFlags
}

// IsHotfix reports whether the task is flagged or tagged as a hotfix.
func (c EvaluationContext) IsHotfix() bool {
	if c.Metadata.IsHotfix {
		return true
	}
	for _, tag := range c.Metadata.Tags {
		if strings.EqualFold(tag, "hotfix") {
			return true
		}
	}
	return false
}

// UserRequestedReview reports whether the user forced a review.
func (c EvaluationContext) UserRequestedReview() bool {
	return c.Flags.ForceReview
}

// IsCriticalPriority reports whether the task carries critical priority.
func (c EvaluationContext) IsCriticalPriority() bool {
	return strings.EqualFold(c.Metadata.Priority, "critical")
}
