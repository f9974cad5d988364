package roadmap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseCareerPaths decodes and validates a model response. Markdown code
// fences around the JSON are tolerated since models add them despite
// instructions.
func ParseCareerPaths(raw string) ([]CareerPath, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("roadmap: empty response")
	}

	var paths []CareerPath
	if err := json.Unmarshal([]byte(cleaned), &paths); err != nil {
		return nil, fmt.Errorf("roadmap: decode response: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("roadmap: response contains no career paths")
	}

	for i, p := range paths {
		if err := validatePath(p); err != nil {
			return nil, fmt.Errorf("roadmap: path %d: %w", i, err)
		}
	}
	return paths, nil
}

func validatePath(p CareerPath) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is empty")
	}
	if p.MatchScore < 0 || p.MatchScore > 100 {
		return fmt.Errorf("match_score %d out of range [0,100]", p.MatchScore)
	}
	if len(p.Milestones) != MilestonesPerPath {
		return fmt.Errorf("got %d milestones; want %d", len(p.Milestones), MilestonesPerPath)
	}
	for i, m := range p.Milestones {
		if strings.TrimSpace(m.Title) == "" {
			return fmt.Errorf("milestone %d: title is empty", i)
		}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
