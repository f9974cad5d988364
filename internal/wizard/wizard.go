// Package wizard implements the onboarding flow: a fixed sequence of profile
// steps, a gate that says when voice guidance may run, and the handoff into
// roadmap generation.
package wizard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxpath/voxpath/pkg/roadmap"
)

// Step identifies one screen of the onboarding flow.
type Step int

const (
	StepWelcome Step = iota
	StepBackground
	StepInterests
	StepSkills
	StepGoals
	StepReview
	StepGenerating
	StepResults
)

// String returns the lower-case name of the step.
func (s Step) String() string {
	switch s {
	case StepWelcome:
		return "welcome"
	case StepBackground:
		return "background"
	case StepInterests:
		return "interests"
	case StepSkills:
		return "skills"
	case StepGoals:
		return "goals"
	case StepReview:
		return "review"
	case StepGenerating:
		return "generating"
	case StepResults:
		return "results"
	default:
		return "unknown"
	}
}

var (
	// ErrCannotAdvance is returned when the flow has no next step, or the
	// next step requires BeginGeneration instead.
	ErrCannotAdvance = errors.New("wizard: cannot advance from this step")

	// ErrCannotGoBack is returned when the flow has no previous step.
	ErrCannotGoBack = errors.New("wizard: cannot go back from this step")

	// ErrVoiceNotAllowed is returned when voice guidance is toggled on at a
	// step that does not permit it.
	ErrVoiceNotAllowed = errors.New("wizard: voice guidance not allowed at this step")

	// ErrNotGenerating is returned when generation results arrive outside
	// the generating step.
	ErrNotGenerating = errors.New("wizard: not generating")
)

// Wizard tracks the onboarding flow for one user. It is safe for concurrent
// use.
type Wizard struct {
	mu      sync.Mutex
	step    Step
	profile roadmap.Profile
	voiceOn bool
	paths   []roadmap.CareerPath
	genErr  error
}

// New creates a Wizard at the welcome step.
func New() *Wizard {
	return &Wizard{step: StepWelcome}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Advance moves to the next profile step. Leaving the review step happens
// through BeginGeneration, not Advance.
func (w *Wizard) Advance() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step >= StepReview {
		return w.step, fmt.Errorf("%w (%s)", ErrCannotAdvance, w.step)
	}
	w.step++
	return w.step, nil
}

// Back moves to the previous profile step. The welcome, generating, and
// results steps have no previous step.
func (w *Wizard) Back() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepWelcome || w.step == StepGenerating || w.step == StepResults {
		return w.step, fmt.Errorf("%w (%s)", ErrCannotGoBack, w.step)
	}
	w.step--
	return w.step, nil
}

// VoiceAllowed reports whether voice guidance may run at the current step:
// any step past welcome except generation.
func (w *Wizard) VoiceAllowed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.voiceAllowedLocked()
}

func (w *Wizard) voiceAllowedLocked() bool {
	return w.step != StepWelcome && w.step != StepGenerating
}

// ToggleVoice flips the voice-guidance switch and returns the new setting.
// Turning voice on is rejected at steps where it is not allowed; turning it
// off always succeeds.
func (w *Wizard) ToggleVoice() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.voiceOn && !w.voiceAllowedLocked() {
		return false, fmt.Errorf("%w (%s)", ErrVoiceNotAllowed, w.step)
	}
	w.voiceOn = !w.voiceOn
	return w.voiceOn, nil
}

// VoiceOn reports whether voice guidance is currently switched on.
func (w *Wizard) VoiceOn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.voiceOn
}

// SetBackground records the background answer.
func (w *Wizard) SetBackground(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profile.Background = s
}

// SetInterests records the interests answer.
func (w *Wizard) SetInterests(interests []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profile.Interests = append([]string(nil), interests...)
}

// SetSkills records the skills answer.
func (w *Wizard) SetSkills(skills []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profile.Skills = append([]string(nil), skills...)
}

// SetGoals records the goals answer.
func (w *Wizard) SetGoals(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profile.Goals = s
}

// SetName records the user's name.
func (w *Wizard) SetName(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profile.Name = s
}

// Profile returns a copy of the accumulated profile.
func (w *Wizard) Profile() roadmap.Profile {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.profile
	p.Interests = append([]string(nil), w.profile.Interests...)
	p.Skills = append([]string(nil), w.profile.Skills...)
	return p
}

// BeginGeneration moves from review to generating and switches voice
// guidance off.
func (w *Wizard) BeginGeneration() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepReview {
		return fmt.Errorf("%w (%s)", ErrCannotAdvance, w.step)
	}
	w.step = StepGenerating
	w.voiceOn = false
	return nil
}

// CompleteGeneration records the outcome of a generation run. On success the
// flow lands on results; on failure it returns to review so the user can try
// again.
func (w *Wizard) CompleteGeneration(paths []roadmap.CareerPath, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepGenerating {
		return fmt.Errorf("%w (%s)", ErrNotGenerating, w.step)
	}
	if err != nil {
		w.genErr = err
		w.paths = nil
		w.step = StepReview
		return nil
	}
	w.genErr = nil
	w.paths = paths
	w.step = StepResults
	return nil
}

// Results returns the generated career paths and the error of the last
// failed generation attempt, if any.
func (w *Wizard) Results() ([]roadmap.CareerPath, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]roadmap.CareerPath, len(w.paths))
	copy(out, w.paths)
	return out, w.genErr
}

// Reset returns the wizard to the welcome step with an empty profile.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepWelcome
	w.profile = roadmap.Profile{}
	w.voiceOn = false
	w.paths = nil
	w.genErr = nil
}
