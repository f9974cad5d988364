package roadmap

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the model to answer with the JSON schema that
// [ParseCareerPaths] accepts, and nothing else.
const SystemPrompt = `You are a career advisor. Given a user's profile you recommend career paths.

Respond with a JSON array only, no prose and no markdown. Each element must have:
  "title": string, the career path name
  "summary": string, one or two sentences on why it fits
  "match_score": integer 0-100, how well the path fits the profile
  "milestones": array of exactly 3 objects, each with "title", "description" and "duration"
  "resources": array of objects with "title", "url" and "kind"
  "readiness_estimate": string, e.g. "6-9 months"

Order the array by match_score descending. Recommend 2 to 4 paths.`

// BuildPrompt renders the user message for a profile.
func BuildPrompt(p Profile) string {
	var b strings.Builder
	b.WriteString("Recommend career paths for this profile.\n\n")
	if p.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", p.Name)
	}
	if p.Background != "" {
		fmt.Fprintf(&b, "Background: %s\n", p.Background)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(p.Interests, ", "))
	}
	if len(p.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	}
	if p.Goals != "" {
		fmt.Fprintf(&b, "Goals: %s\n", p.Goals)
	}
	return b.String()
}
