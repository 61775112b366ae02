package domain

import "time"

// Stage is a state of the generation pipeline.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageAdmitted     Stage = "admitted"
	StageRasterizing  Stage = "rasterizing"
	StageOptimizing   Stage = "optimizing"
	StageGuardChecked Stage = "guard_checked"
	StageGenerating   Stage = "generating"
	StageValidated    Stage = "validated"
	StagePersisting   Stage = "persisting"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// EventType represents the type of stream event
type EventType string

const (
	EventStage    EventType = "stage"
	EventPartial  EventType = "partial"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// StreamEvent is emitted by the streaming pipeline. Exactly one of the
// payload fields is set according to Type.
type StreamEvent struct {
	Type      EventType      `json:"type"`
	Stage     Stage          `json:"stage,omitempty"`
	Partial   *PartialResult `json:"partial,omitempty"`
	Outcome   *Outcome       `json:"outcome,omitempty"`
	Err       error          `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
}

// Outcome is the final product of a pipeline run.
type Outcome struct {
	Result *GenerationResult `json:"result"`
	// Thematic and Flashcards are set when the run persisted its output.
	Thematic   *Thematic   `json:"thematic,omitempty"`
	Flashcards []Flashcard `json:"flashcards,omitempty"`
}
