// Package session models the three-screen assessment flow (welcome, input,
// output) as an immutable State that only changes through named actions, and
// drives the asynchronous analysis request that accompanies a submission.
package session

import (
	"errors"
	"fmt"

	"dam-stability/internal/analysis"
	"dam-stability/internal/dam"
)

// Screen identifies the visible screen. Exactly one is visible at a time.
type Screen string

const (
	ScreenWelcome Screen = "welcome"
	ScreenInput   Screen = "input"
	ScreenOutput  Screen = "output"
)

var (
	// ErrInvalidTransition is returned when an action is not available on the
	// current screen.
	ErrInvalidTransition = errors.New("invalid screen transition")
	// ErrResetInProgress is returned while a reset is waiting out its delay.
	ErrResetInProgress = errors.New("reset in progress")
)

// State is a snapshot of one assessment flow. Methods return a new State and
// never modify the receiver.
type State struct {
	Screen     Screen          `json:"screen"`
	Form       dam.InputState  `json:"form"`
	Evaluation *dam.Evaluation `json:"evaluation,omitempty"`
	Analysis   string          `json:"analysis,omitempty"`
	Loading    bool            `json:"loading"`
	Resetting  bool            `json:"resetting"`
	// Generation increases whenever pending asynchronous work is superseded.
	// Results carrying an older generation are dropped.
	Generation uint64 `json:"generation"`
}

// Initial is the state of a new session.
func Initial() State {
	return State{Screen: ScreenWelcome}
}

func (s State) transitionErr(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, s.Screen)
}

// Start moves from the welcome screen to the input screen.
func (s State) Start() (State, error) {
	if s.Screen != ScreenWelcome {
		return s, s.transitionErr("start")
	}
	s.Screen = ScreenInput
	return s, nil
}

// Back returns from the input screen to the welcome screen.
func (s State) Back() (State, error) {
	if s.Screen != ScreenInput {
		return s, s.transitionErr("back")
	}
	s.Screen = ScreenWelcome
	return s, nil
}

// UpdateField edits one form field on the input screen.
func (s State) UpdateField(field dam.Field, value string) (State, error) {
	if s.Screen != ScreenInput {
		return s, s.transitionErr("update field")
	}
	if s.Resetting {
		return s, ErrResetInProgress
	}
	form, err := s.Form.With(field, value)
	if err != nil {
		return s, err
	}
	s.Form = form
	return s, nil
}

// Submit evaluates the form and moves to the output screen. Prior results are
// cleared first; the analysis is pending until ApplyAnalysis.
func (s State) Submit(evaluate func(dam.InputState) dam.Evaluation) (State, error) {
	if s.Screen != ScreenInput {
		return s, s.transitionErr("submit")
	}
	if s.Resetting {
		return s, ErrResetInProgress
	}

	ev := evaluate(s.Form)

	s.Screen = ScreenOutput
	s.Evaluation = &ev
	s.Analysis = ""
	s.Loading = true
	s.Generation++
	return s, nil
}

// ApplyAnalysis settles the pending analysis started by generation gen. It
// reports false and leaves the state untouched when gen is stale or nothing
// is pending. A failed outcome settles without narrative.
func (s State) ApplyAnalysis(gen uint64, outcome analysis.Outcome) (State, bool) {
	if gen != s.Generation || !s.Loading {
		return s, false
	}
	s.Loading = false
	if outcome.OK() {
		s.Analysis = outcome.Narrative
	}
	return s, true
}

// BeginReset clears results, analysis and form and marks the reset as
// running. The screen stays as it is until FinishReset.
func (s State) BeginReset() (State, error) {
	if s.Resetting {
		return s, ErrResetInProgress
	}
	return State{
		Screen:     s.Screen,
		Resetting:  true,
		Generation: s.Generation + 1,
	}, nil
}

// FinishReset completes the reset begun at generation gen and shows the empty
// input screen.
func (s State) FinishReset(gen uint64) (State, bool) {
	if !s.Resetting || gen != s.Generation {
		return s, false
	}
	s.Resetting = false
	s.Screen = ScreenInput
	return s, true
}

// NewAssessment leaves the output screen for the input screen, keeping the
// form. An analysis still pending is abandoned.
func (s State) NewAssessment() (State, error) {
	if s.Screen != ScreenOutput {
		return s, s.transitionErr("new assessment")
	}
	s.Screen = ScreenInput
	if s.Loading {
		s.Loading = false
		s.Generation++
	}
	return s, nil
}

// Busy reports whether asynchronous work is still outstanding.
func (s State) Busy() bool {
	return s.Loading || s.Resetting
}
