// Package server coordinates connection attachment, room events, and
// connection cleanup for the chat WebSocket system via the Hub type.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/presence"
)

// Sink delivers encoded frames to one connection.
type Sink interface {
	ID() string
	// Send queues a frame without blocking. It returns false when the frame
	// could not be queued.
	Send(frame []byte) bool
	Close()
}

// pumper is implemented by sinks that own transport goroutines the hub
// should start and wait for.
type pumper interface {
	readPump()
	writePump()
}

type attachRequest struct {
	conn presence.Connection
	sink Sink
	done chan struct{}
}

type frameRequest struct {
	connID string
	frame  []byte
	done   chan error
}

type detachRequest struct {
	connID string
	reason string
	done   chan struct{}
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithClock overrides the time source used for join and message timestamps.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

// WithIDGenerator overrides how chat message IDs are generated.
func WithIDGenerator(newID func() string) HubOption {
	return func(h *Hub) { h.newID = newID }
}

// Hub is the lifecycle controller for every connection. All registry
// mutations and deliveries happen on the single goroutine running Run, so each
// inbound event is processed to completion before the next one starts.
type Hub struct {
	registry *presence.Registry
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
	handlers map[string]eventHandler

	// sinks is owned by the Run goroutine.
	sinks map[string]Sink

	attach  chan attachRequest
	inbound chan frameRequest
	detach  chan detachRequest

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub backed by registry. The returned Hub does nothing until
// Run is called.
func NewHub(registry *presence.Registry, logger zerolog.Logger, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry: registry,
		logger:   logger.With().Str("component", "hub").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
		handlers: newHandlerTable(),
		sinks:    make(map[string]Sink),
		attach:   make(chan attachRequest),
		inbound:  make(chan frameRequest),
		detach:   make(chan detachRequest),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the registry the hub mutates.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// Attach hands a newly established connection to the hub. It returns once the
// connection is registered.
func (h *Hub) Attach(conn presence.Connection, sink Sink) error {
	req := attachRequest{conn: conn, sink: sink, done: make(chan struct{})}
	select {
	case h.attach <- req:
	case <-h.ctx.Done():
		return ErrHubClosed
	}
	<-req.done
	return nil
}

// HandleFrame processes one inbound frame from connID and returns the
// rejection error, if any. The offending connection has already been told
// about a rejection when HandleFrame returns.
func (h *Hub) HandleFrame(connID string, frame []byte) error {
	req := frameRequest{connID: connID, frame: frame, done: make(chan error, 1)}
	select {
	case h.inbound <- req:
	case <-h.ctx.Done():
		return ErrHubClosed
	}
	return <-req.done
}

// Detach runs the disconnect transition for connID. Unknown IDs are a no-op.
func (h *Hub) Detach(connID, reason string) {
	req := detachRequest{connID: connID, reason: reason, done: make(chan struct{})}
	select {
	case h.detach <- req:
	case <-h.ctx.Done():
		return
	}
	<-req.done
}

// TransportError records a transport fault. It does not clean up the
// connection; that only happens through Detach.
func (h *Hub) TransportError(connID string, err error) {
	event := h.logger.Warn().Err(err).Str("conn_id", connID)
	if conn, ok := h.registry.Connection(connID); ok {
		event = event.
			Str("remote_addr", conn.RemoteAddr).
			Dur("connected_for", h.now().Sub(conn.CreatedAt))
	}
	event.Msg("transport error")
}

// Run starts the hub's main event loop. It should be called in its own
// goroutine and returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownSinks()
			return

		case req := <-h.attach:
			h.handleAttach(req.conn, req.sink)
			close(req.done)

		case req := <-h.inbound:
			req.done <- h.dispatch(req.connID, req.frame)

		case req := <-h.detach:
			h.handleDisconnect(req.connID, req.reason)
			close(req.done)
		}
	}
}

func (h *Hub) handleAttach(conn presence.Connection, sink Sink) {
	defer h.recoverLoop("attach", conn.ID)

	if sink == nil {
		h.logger.Warn().Str("conn_id", conn.ID).Msg("received nil sink; skipping")
		return
	}

	h.registry.Attach(conn)
	h.sinks[conn.ID] = sink
	metrics.ConnectionsActive.Set(float64(len(h.sinks)))

	h.logger.Info().
		Str("conn_id", conn.ID).
		Str("remote_addr", conn.RemoteAddr).
		Int("total", len(h.sinks)).
		Msg("connection attached")

	if p, ok := sink.(pumper); ok {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			p.writePump()
		}()
		go func() {
			defer h.wg.Done()
			p.readPump()
		}()
	}
}

// dispatch decodes a frame and runs its handler, recovering from panics so a
// single connection cannot take down the loop.
func (h *Hub) dispatch(connID string, frame []byte) (err error) {
	event := "unknown"
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Str("conn_id", connID).Str("event", event).Interface("panic", r).Msg("recovered from panic in event handler")
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
		if err != nil {
			h.reject(connID, event, err)
			metrics.EventsTotal.WithLabelValues(event, "rejected").Inc()
			return
		}
		metrics.EventsTotal.WithLabelValues(event, "ok").Inc()
	}()

	env, err := decodeEnvelope(frame)
	if err != nil {
		return err
	}

	handler, ok := h.handlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	event = env.Event

	return handler(h, connID, env.Data)
}

// recoverLoop keeps a panic raised while processing one connection's attach
// or disconnect from stopping Run. It must be deferred directly.
func (h *Hub) recoverLoop(op, connID string) {
	if r := recover(); r != nil {
		h.logger.Error().Str("conn_id", connID).Str("op", op).Interface("panic", r).Msg("recovered from panic in hub loop")
	}
}

// reject tells the offending connection why its event was dropped.
func (h *Hub) reject(connID, event string, err error) {
	h.logger.Warn().Err(err).Str("conn_id", connID).Str("event", event).Msg("event rejected")

	sink, ok := h.sinks[connID]
	if !ok {
		return
	}

	frame, encErr := encodeFrame(EventError, ErrorNotice{
		Code:    errorCode(err),
		Event:   event,
		Message: err.Error(),
	})
	if encErr != nil {
		h.logger.Error().Err(encErr).Msg("encoding error notice")
		return
	}
	if !sink.Send(frame) {
		h.dropSinks([]Sink{sink})
	}
}

// shutdownSinks closes every attached connection.
func (h *Hub) shutdownSinks() {
	h.logger.Info().Msg("shutting down all client connections...")

	for id, sink := range h.sinks {
		sink.Close()
		delete(h.sinks, id)
	}

	metrics.ConnectionsActive.Set(0)
	h.logger.Info().Msg("closed all client connections")
}

// Shutdown stops the event loop and waits for client goroutines to finish,
// or until timeout elapses.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info().Msg("initiating hub shutdown...")

	h.cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-h.done:
	case <-deadline.C:
		h.logger.Warn().Msg("hub shutdown timeout reached before the event loop stopped")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("hub shutdown completed successfully")
		return nil
	case <-deadline.C:
		h.logger.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
