// Package roadmap turns a user's onboarding profile into ranked career paths
// with concrete milestones. Generation is delegated to an LLM backend behind
// the [Generator] interface; this package owns the prompt, the response
// schema, and its validation.
package roadmap

import "context"

// Profile is the information collected during the onboarding wizard.
type Profile struct {
	// Name is the user's preferred name. Optional.
	Name string `json:"name,omitempty"`

	// Background describes education and current role.
	Background string `json:"background"`

	// Interests lists fields or topics the user cares about.
	Interests []string `json:"interests,omitempty"`

	// Skills lists what the user can already do.
	Skills []string `json:"skills,omitempty"`

	// Goals is the user's own description of where they want to go.
	Goals string `json:"goals"`
}

// Resource is a learning resource attached to a career path.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`

	// Kind classifies the resource, e.g. "course", "book", "community".
	Kind string `json:"kind,omitempty"`
}

// Milestone is one step on a career path.
type Milestone struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	// Duration is a human-readable time estimate, e.g. "3 months".
	Duration string `json:"duration,omitempty"`
}

// MilestonesPerPath is the fixed number of milestones each path carries.
const MilestonesPerPath = 3

// CareerPath is one recommended direction with a fit score and a
// three-milestone plan.
type CareerPath struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`

	// MatchScore rates how well the path fits the profile, 0 to 100.
	MatchScore int `json:"match_score"`

	// Milestones holds exactly three ordered steps.
	Milestones []Milestone `json:"milestones"`

	Resources []Resource `json:"resources,omitempty"`

	// ReadinessEstimate is a human-readable estimate of how long until the
	// user could work in this path, e.g. "6-9 months".
	ReadinessEstimate string `json:"readiness_estimate,omitempty"`
}

// Generator produces career paths for a profile.
type Generator interface {
	Generate(ctx context.Context, p Profile) ([]CareerPath, error)
}
