package domain

import "context"

// GenerationPurpose tells the LLM adapter (and the mock) what a request is for.
type GenerationPurpose string

const (
	PurposeQuestions GenerationPurpose = "questions"
	PurposeFeedback  GenerationPurpose = "feedback"
)

// GenerationRequest is a single prompt sent to the generative model.
type GenerationRequest struct {
	Purpose GenerationPurpose
	System  string
	Prompt  string

	// JSON asks the model for a raw JSON body (no prose, no code fences)
	JSON bool
}

// LLMClient defines how the core application interacts with an LLM service.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// EventKind names an event emitted by a voice channel.
type EventKind string

const (
	EventCallStart   EventKind = "call-start"
	EventCallEnd     EventKind = "call-end"
	EventMessage     EventKind = "message"
	EventSpeechStart EventKind = "speech-start"
	EventSpeechEnd   EventKind = "speech-end"
	EventError       EventKind = "error"
)

const (
	MessageTypeTranscript = "transcript"

	TranscriptPartial = "partial"
	TranscriptFinal   = "final"
)

// ChannelMessage is the payload of an EventMessage.
type ChannelMessage struct {
	Type           string // "transcript", others are ignored by the controller
	TranscriptType string // "partial" or "final"
	Role           Role
	Transcript     string
}

// ChannelEvent is delivered to handlers registered with VoiceChannel.On.
type ChannelEvent struct {
	Kind    EventKind
	Message *ChannelMessage // EventMessage only
	Err     error           // EventError only
}

// StartPayload carries the workflow variables substituted by the voice platform.
type StartPayload struct {
	VariableValues map[string]string `json:"variableValues"`
}

// VoiceChannel is a real-time voice call transport.
// Handlers are invoked serially, never concurrently with each other.
type VoiceChannel interface {
	Start(ctx context.Context, workflowID string, payload StartPayload) error
	Stop(ctx context.Context) error

	// On subscribes fn to kind and returns the matching unsubscribe func.
	On(kind EventKind, fn func(ChannelEvent)) (off func())
}

// Navigator moves the user to another route.
type Navigator interface {
	Push(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Push(path string) { f(path) }
