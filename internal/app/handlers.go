package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxpath/voxpath/internal/session"
	"github.com/voxpath/voxpath/internal/wizard"
	"github.com/voxpath/voxpath/pkg/roadmap"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// ─── Status ──────────────────────────────────────────────────────────────────

type sessionStatus struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	Step    string        `json:"step"`
	VoiceOn bool          `json:"voice_on"`
	Session sessionStatus `json:"session"`
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := a.controller.Status()
	resp := statusResponse{
		Step:    a.wizard.Step().String(),
		VoiceOn: a.wizard.VoiceOn(),
		Session: sessionStatus{
			State:     st.State.String(),
			SessionID: st.SessionID,
		},
	}
	if st.Err != nil {
		resp.Session.Error = st.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Transcript ──────────────────────────────────────────────────────────────

type transcriptEntry struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

type transcriptResponse struct {
	Entries []transcriptEntry `json:"entries"`
	Text    string            `json:"text"`
}

func (a *App) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	entries := a.controller.Transcript()
	resp := transcriptResponse{
		Entries: make([]transcriptEntry, 0, len(entries)),
		Text:    a.controller.TranscriptText(),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, transcriptEntry{Seq: e.Seq, Text: e.Text})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Voice toggle ────────────────────────────────────────────────────────────

type voiceToggleResponse struct {
	VoiceOn bool          `json:"voice_on"`
	Session sessionStatus `json:"session"`
}

// handleVoiceToggle flips voice guidance. Enabling starts a voice session;
// disabling stops it. A failed or closed previous session is reset first so
// the toggle always operates on a fresh controller.
func (a *App) handleVoiceToggle(w http.ResponseWriter, r *http.Request) {
	on, err := a.wizard.ToggleVoice()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	if on {
		if a.controller.Status().State.Terminal() {
			a.controller.Reset()
		}
		if err := a.controller.Start(r.Context()); err != nil {
			// Roll the switch back so wizard and session state agree.
			a.wizard.ToggleVoice()
			switch {
			case errors.Is(err, session.ErrCaptureUnavailable):
				writeError(w, http.StatusServiceUnavailable, err)
			case errors.Is(err, session.ErrStopped):
				writeError(w, http.StatusConflict, err)
			default:
				writeError(w, http.StatusBadGateway, err)
			}
			return
		}
	} else {
		a.controller.Stop()
	}

	st := a.controller.Status()
	resp := voiceToggleResponse{
		VoiceOn: on,
		Session: sessionStatus{State: st.State.String(), SessionID: st.SessionID},
	}
	if st.Err != nil {
		resp.Session.Error = st.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Wizard navigation ───────────────────────────────────────────────────────

type advanceRequest struct {
	// Direction is "next" (default) or "back".
	Direction string `json:"direction,omitempty"`
}

type advanceResponse struct {
	Step         string `json:"step"`
	VoiceAllowed bool   `json:"voice_allowed"`
}

func (a *App) handleWizardAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var (
		step wizard.Step
		err  error
	)
	switch req.Direction {
	case "", "next":
		step, err = a.wizard.Advance()
	case "back":
		step, err = a.wizard.Back()
	default:
		writeError(w, http.StatusBadRequest, errors.New("direction must be \"next\" or \"back\""))
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	// Leaving a voice-permitting step can revoke the gate; the session must
	// follow the gate immediately.
	a.syncVoiceWithGate()

	writeJSON(w, http.StatusOK, advanceResponse{
		Step:         step.String(),
		VoiceAllowed: a.wizard.VoiceAllowed(),
	})
}

// syncVoiceWithGate stops the voice session when the wizard no longer
// permits it.
func (a *App) syncVoiceWithGate() {
	if a.wizard.VoiceOn() && !a.wizard.VoiceAllowed() {
		a.wizard.ToggleVoice() // always succeeds when turning off
		a.controller.Stop()
	}
}

// ─── Wizard profile ──────────────────────────────────────────────────────────

type profileRequest struct {
	Name       *string  `json:"name,omitempty"`
	Background *string  `json:"background,omitempty"`
	Interests  []string `json:"interests,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Goals      *string  `json:"goals,omitempty"`
}

// handleWizardProfile applies a partial profile update. Only fields present
// in the request body are touched.
func (a *App) handleWizardProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Name != nil {
		a.wizard.SetName(*req.Name)
	}
	if req.Background != nil {
		a.wizard.SetBackground(*req.Background)
	}
	if req.Interests != nil {
		a.wizard.SetInterests(req.Interests)
	}
	if req.Skills != nil {
		a.wizard.SetSkills(req.Skills)
	}
	if req.Goals != nil {
		a.wizard.SetGoals(*req.Goals)
	}

	writeJSON(w, http.StatusOK, a.wizard.Profile())
}

// ─── Generate ────────────────────────────────────────────────────────────────

type generateResponse struct {
	Paths []roadmap.CareerPath `json:"paths"`
}

// handleGenerate runs roadmap generation for the accumulated profile. The
// wizard must sit on the review step; voice guidance is stopped for the
// duration of the run.
func (a *App) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := a.wizard.BeginGeneration(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	// BeginGeneration switched the wizard's voice flag off; the live session
	// has to follow.
	a.controller.Stop()

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	provider := a.cfg.Roadmap.Provider
	start := time.Now()
	paths, err := a.generator.Generate(ctx, a.wizard.Profile())
	a.metrics.RoadmapDuration.Record(ctx, time.Since(start).Seconds())

	if completeErr := a.wizard.CompleteGeneration(paths, err); completeErr != nil {
		a.logger.Error("generation finished in unexpected step", slog.String("error", completeErr.Error()))
	}

	if err != nil {
		a.metrics.RecordRoadmapRequest(ctx, provider, "error")
		a.logger.Error("roadmap generation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err)
		return
	}
	a.metrics.RecordRoadmapRequest(ctx, provider, "ok")

	writeJSON(w, http.StatusOK, generateResponse{Paths: paths})
}
