package game

import (
	"github.com/myrjola/pinearchives/internal/evaluation"
	"github.com/myrjola/pinearchives/internal/models"
)

type EventType string

const (
	EventPhaseChange EventType = "phase_change"
	EventVerdict     EventType = "verdict"
	EventToast       EventType = "toast"
	EventTick        EventType = "tick"
	EventConflict    EventType = "conflict"
)

// Event is emitted by the session to its collaborators. Only the field that belongs to Type is set.
type Event struct {
	Type        EventType            `json:"type"`
	Phase       models.Phase         `json:"phase,omitempty"`
	Verdict     *models.Verdict      `json:"verdict,omitempty"`
	Message     string               `json:"message,omitempty"`
	RemainingMs *int64               `json:"remainingMs,omitempty"`
	Conflict    *evaluation.Conflict `json:"conflict,omitempty"`
}

// Emitter receives the events of a session. Emit is called with the session lock held, in order, and must not
// block or call back into the session.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event Event)

func (f EmitterFunc) Emit(event Event) {
	f(event)
}

func phaseChange(phase models.Phase) Event {
	return Event{Type: EventPhaseChange, Phase: phase}
}

func verdictEvent(verdict models.Verdict) Event {
	return Event{Type: EventVerdict, Verdict: &verdict}
}

func toast(message string) Event {
	return Event{Type: EventToast, Message: message}
}

func tick(remainingMs int64) Event {
	return Event{Type: EventTick, RemainingMs: &remainingMs}
}

func conflictEvent(conflict evaluation.Conflict) Event {
	return Event{Type: EventConflict, Conflict: &conflict}
}
