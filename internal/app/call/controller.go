package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

var ErrClosed = errors.New("call controller closed")

// Workflows holds the voice workflow ids selected by session type.
type Workflows struct {
	GenerateID    string
	InterviewerID string
}

func (w Workflows) resolve(t domain.SessionType) (string, error) {
	switch t {
	case domain.SessionGenerate:
		if w.GenerateID == "" {
			return "", fmt.Errorf("%w: missing generate workflow id", domain.ErrConfig)
		}
		return w.GenerateID, nil
	case domain.SessionInterview:
		if w.InterviewerID == "" {
			return "", fmt.Errorf("%w: missing interviewer workflow id", domain.ErrConfig)
		}
		return w.InterviewerID, nil
	default:
		return "", fmt.Errorf("%w: unknown session type %q", domain.ErrInvalidInput, t)
	}
}

// State is a point-in-time copy of the controller state.
type State struct {
	Status     domain.CallStatus
	Speaking   bool
	Transcript []domain.TranscriptMessage
}

// Idle reports whether a new call can be started.
func (s State) Idle() bool {
	return s.Status == domain.CallInactive || s.Status == domain.CallFinished
}

// LatestUtterance returns the last transcript message, if any.
func (s State) LatestUtterance() (domain.TranscriptMessage, bool) {
	if len(s.Transcript) == 0 {
		return domain.TranscriptMessage{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}

// Controller drives one voice call session from channel events.
//
// All state changes happen under mu. Channel start/stop and feedback
// persistence run outside of it, so event delivery never waits on them.
type Controller struct {
	channel   domain.VoiceChannel
	feedback  domain.FeedbackCreator
	nav       domain.Navigator
	workflows Workflows
	log       *slog.Logger

	mu         sync.Mutex
	status     domain.CallStatus
	speaking   bool
	transcript []domain.TranscriptMessage
	session    domain.SessionParameters

	// generation identifies the current session; 0 means no session was begun.
	// fired is the last generation whose terminal action ran.
	generation uint64
	fired      uint64

	observers   map[int]func(State)
	nextObsID   int
	unsubs      []func()
	closed      bool
	inFlight    sync.WaitGroup
	terminalCtx context.Context
}

// NewController subscribes to channel events right away; call Close to release them.
func NewController(
	channel domain.VoiceChannel,
	feedback domain.FeedbackCreator,
	nav domain.Navigator,
	workflows Workflows,
) *Controller {
	c := &Controller{
		channel:     channel,
		feedback:    feedback,
		nav:         nav,
		workflows:   workflows,
		log:         observability.WithFields("component", "call_controller"),
		status:      domain.CallInactive,
		observers:   make(map[int]func(State)),
		terminalCtx: context.Background(),
	}

	c.unsubs = []func(){
		channel.On(domain.EventCallStart, c.onCallStart),
		channel.On(domain.EventCallEnd, c.onCallEnd),
		channel.On(domain.EventMessage, c.onMessage),
		channel.On(domain.EventSpeechStart, c.onSpeechStart),
		channel.On(domain.EventSpeechEnd, c.onSpeechEnd),
		channel.On(domain.EventError, c.onError),
	}

	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// OnChange registers fn to receive every state change. fn runs with the
// controller locked and must not call back into the controller.
func (c *Controller) OnChange(fn func(State)) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Begin starts a call for session. It is a no-op while a call is connecting or active.
func (c *Controller) Begin(ctx context.Context, session domain.SessionParameters) error {
	log := observability.LoggerFromContext(ctx).With(
		"session_type", session.Type,
		"user_id", session.ParticipantID,
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.status == domain.CallConnecting || c.status == domain.CallActive {
		status := c.status
		c.mu.Unlock()
		log.Warn("call already in progress", "status", status)
		return nil
	}

	c.generation++
	gen := c.generation
	c.session = session
	c.transcript = nil
	c.speaking = false
	c.status = domain.CallConnecting
	c.notifyLocked()
	c.mu.Unlock()

	workflowID, err := c.prepare(session)
	if err == nil {
		err = c.channel.Start(ctx, workflowID, buildPayload(session))
	}
	if err != nil {
		log.Error("failed to start call", "error", err)
		c.apply(func() {
			if c.generation == gen && c.status == domain.CallConnecting {
				c.status = domain.CallInactive
			}
		})
		return fmt.Errorf("start call: %w", err)
	}

	log.Info("call started", "workflow_id", workflowID)
	return nil
}

// End stops the channel and marks the call finished.
// Ending a call that never started does nothing.
func (c *Controller) End(ctx context.Context) error {
	log := observability.LoggerFromContext(ctx)

	c.mu.Lock()
	if c.status == domain.CallInactive {
		c.mu.Unlock()
		log.Debug("end called on inactive call")
		return nil
	}
	gen := c.generation
	c.mu.Unlock()

	if err := c.channel.Stop(ctx); err != nil {
		log.Error("failed to disconnect", "error", err)
		return fmt.Errorf("stop call: %w", err)
	}

	c.apply(func() {
		if c.generation == gen {
			c.status = domain.CallFinished
		}
	})
	return nil
}

// Close unsubscribes from the channel and waits for an in-flight terminal action.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, off := range unsubs {
		off()
	}
	c.inFlight.Wait()
}

// ─────────────────────────────────────────
// Channel events
// ─────────────────────────────────────────

func (c *Controller) onCallStart(domain.ChannelEvent) {
	c.apply(func() { c.status = domain.CallActive })
}

func (c *Controller) onCallEnd(domain.ChannelEvent) {
	c.apply(func() { c.status = domain.CallFinished })
}

func (c *Controller) onSpeechStart(domain.ChannelEvent) {
	c.apply(func() { c.speaking = true })
}

func (c *Controller) onSpeechEnd(domain.ChannelEvent) {
	c.apply(func() { c.speaking = false })
}

func (c *Controller) onMessage(ev domain.ChannelEvent) {
	msg := ev.Message
	if msg == nil || msg.Type != domain.MessageTypeTranscript || msg.TranscriptType != domain.TranscriptFinal {
		return
	}
	c.apply(func() {
		c.transcript = append(c.transcript, domain.TranscriptMessage{
			Role:    msg.Role,
			Content: msg.Transcript,
		})
	})
}

func (c *Controller) onError(ev domain.ChannelEvent) {
	c.log.Error("voice channel error", "error", ev.Err)
}

// ─────────────────────────────────────────
// State helpers
// ─────────────────────────────────────────

// apply mutates state, notifies observers and fires the terminal action when due.
func (c *Controller) apply(mutate func()) {
	c.mu.Lock()
	mutate()
	c.notifyLocked()
	action := c.terminalLocked()
	c.mu.Unlock()

	if action != nil {
		go func() {
			defer c.inFlight.Done()
			action(c.terminalCtx)
		}()
	}
}

func (c *Controller) snapshotLocked() State {
	transcript := make([]domain.TranscriptMessage, len(c.transcript))
	copy(transcript, c.transcript)
	return State{
		Status:     c.status,
		Speaking:   c.speaking,
		Transcript: transcript,
	}
}

func (c *Controller) notifyLocked() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, fn := range c.observers {
		fn(snap)
	}
}

// terminalLocked returns the terminal action once per session generation.
func (c *Controller) terminalLocked() func(context.Context) {
	if c.status != domain.CallFinished || len(c.transcript) == 0 {
		return nil
	}
	if c.generation == 0 || c.fired == c.generation || c.closed {
		return nil
	}
	c.fired = c.generation

	session := c.session
	transcript := make([]domain.TranscriptMessage, len(c.transcript))
	copy(transcript, c.transcript)

	c.inFlight.Add(1)
	return func(ctx context.Context) {
		c.finish(ctx, session, transcript)
	}
}

func (c *Controller) finish(ctx context.Context, session domain.SessionParameters, transcript []domain.TranscriptMessage) {
	log := c.log.With(
		"session_type", session.Type,
		"user_id", session.ParticipantID,
		"interview_id", session.InterviewID,
		"transcript_len", len(transcript),
	)

	if session.Type != domain.SessionInterview {
		log.Info("generation call finished")
		c.nav.Push(domain.HomeRoute)
		return
	}

	if session.InterviewID == "" || c.feedback == nil {
		log.Error("cannot save feedback", "error", domain.ErrConfig)
		c.nav.Push(domain.HomeRoute)
		return
	}

	res, err := c.feedback.CreateFeedback(ctx, domain.CreateFeedbackInput{
		InterviewID: session.InterviewID,
		UserID:      session.ParticipantID,
		Transcript:  transcript,
	})
	if err != nil || !res.Success || res.FeedbackID == "" {
		log.Error("error saving feedback", "error", err, "success", res.Success)
		c.nav.Push(domain.HomeRoute)
		return
	}

	log.Info("feedback saved", "feedback_id", res.FeedbackID)
	c.nav.Push(domain.FeedbackRoute(session.InterviewID, res.FeedbackID))
}

func (c *Controller) prepare(session domain.SessionParameters) (string, error) {
	if err := session.Validate(); err != nil {
		return "", err
	}
	return c.workflows.resolve(session.Type)
}

func buildPayload(session domain.SessionParameters) domain.StartPayload {
	vars := map[string]string{
		"username": session.DisplayName,
		"userid":   string(session.ParticipantID),
	}
	if session.Type == domain.SessionInterview && len(session.SeedQuestions) > 0 {
		vars["questions"] = formatQuestions(session.SeedQuestions)
	}
	return domain.StartPayload{VariableValues: vars}
}

// formatQuestions renders questions as "- q" lines for the interviewer prompt.
func formatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, "- "+q)
	}
	return strings.Join(lines, "\n")
}
