package vapi

import (
	"context"
	"errors"
	"sync"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

var ErrAlreadyStarted = errors.New("vapi: channel already started")

// Channel is one Vapi call. It implements domain.VoiceChannel; events arrive
// through the webhook and are delivered by the Router.
type Channel struct {
	client *Client

	mu         sync.Mutex
	handlers   map[domain.EventKind]map[int]func(domain.ChannelEvent)
	nextID     int
	callID     string
	controlURL string

	// deliver serializes handler invocations
	deliver sync.Mutex
}

// NewChannel returns an idle channel bound to c.
func (c *Client) NewChannel() *Channel {
	return &Channel{
		client:   c,
		handlers: make(map[domain.EventKind]map[int]func(domain.ChannelEvent)),
	}
}

func (ch *Channel) Start(ctx context.Context, workflowID string, payload domain.StartPayload) error {
	ch.mu.Lock()
	started := ch.callID != ""
	ch.mu.Unlock()
	if started {
		return ErrAlreadyStarted
	}

	res, err := ch.client.createCall(ctx, createCallRequest{
		WorkflowID:        workflowID,
		WorkflowOverrides: workflowOverrides{VariableValues: payload.VariableValues},
	})
	if err != nil {
		return err
	}

	ch.mu.Lock()
	ch.callID = res.ID
	ch.controlURL = res.Monitor.ControlURL
	ch.mu.Unlock()

	ch.client.router.register(res.ID, ch)
	return nil
}

// Stop asks Vapi to hang up. The call-end event follows through the webhook.
func (ch *Channel) Stop(ctx context.Context) error {
	ch.mu.Lock()
	controlURL := ch.controlURL
	ch.mu.Unlock()

	if controlURL == "" {
		return nil
	}
	return ch.client.endCall(ctx, controlURL)
}

func (ch *Channel) On(kind domain.EventKind, fn func(domain.ChannelEvent)) func() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	id := ch.nextID
	ch.nextID++
	if ch.handlers[kind] == nil {
		ch.handlers[kind] = make(map[int]func(domain.ChannelEvent))
	}
	ch.handlers[kind][id] = fn

	return func() {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		delete(ch.handlers[kind], id)
	}
}

// CallID is the Vapi call id, "" before Start succeeds.
func (ch *Channel) CallID() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.callID
}

func (ch *Channel) dispatch(events []domain.ChannelEvent) {
	ch.deliver.Lock()
	defer ch.deliver.Unlock()

	for _, ev := range events {
		ch.mu.Lock()
		fns := make([]func(domain.ChannelEvent), 0, len(ch.handlers[ev.Kind]))
		for _, fn := range ch.handlers[ev.Kind] {
			fns = append(fns, fn)
		}
		ch.mu.Unlock()

		for _, fn := range fns {
			fn(ev)
		}
	}
}
