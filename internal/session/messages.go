package session

import (
	"encoding/json"

	"github.com/mickekring/live-subtitles/internal/subtitle"
)

// Event is an outbound message on a session's streaming channel. Internally
// events are a closed set of variants; JSON shapes exist only at this
// boundary.
type Event interface {
	eventType() string
}

// TranscriptionEvent carries an instant or final transcript segment.
// For finals, Replaces lists the ids of instant segments the final
// superseded, so the client can retract them.
type TranscriptionEvent struct {
	Segment  subtitle.Segment
	Replaces []string
}

func (TranscriptionEvent) eventType() string { return "transcription" }

func (e TranscriptionEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string           `json:"type"`
		Mode     string           `json:"mode"`
		Data     subtitle.Segment `json:"data"`
		ID       string           `json:"id"`
		Replaces []string         `json:"replaces,omitempty"`
	}{
		Type:     e.eventType(),
		Mode:     string(e.Segment.Kind),
		Data:     e.Segment,
		ID:       e.Segment.ID,
		Replaces: e.Replaces,
	})
}

// ModelLoadingEvent tells the client its model is not ready yet
type ModelLoadingEvent struct {
	Model string
}

func (ModelLoadingEvent) eventType() string { return "model_loading" }

func (e ModelLoadingEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Model string `json:"model"`
	}{e.eventType(), e.Model})
}

// ModelLoadedEvent tells the client its model became ready
type ModelLoadedEvent struct {
	Model string
}

func (ModelLoadedEvent) eventType() string { return "model_loaded" }

func (e ModelLoadedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Model string `json:"model"`
	}{e.eventType(), e.Model})
}

// TranslationEvent pairs a translation result (or its failure) with the id
// of the final segment that triggered it.
type TranslationEvent struct {
	SegmentID   string
	Translation string
	Failed      bool
}

func (TranslationEvent) eventType() string { return "translation" }

func (e TranslationEvent) MarshalJSON() ([]byte, error) {
	status := "success"
	if e.Failed {
		status = "error"
	}
	return json.Marshal(struct {
		Type        string `json:"type"`
		ID          string `json:"id"`
		Status      string `json:"status"`
		Translation string `json:"translation,omitempty"`
	}{e.eventType(), e.SegmentID, status, e.Translation})
}

// ErrorEvent reports a non-fatal per-chunk error; the session continues
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) eventType() string { return "error" }

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{e.eventType(), e.Message})
}
