// Package events publishes edit session lifecycle changes to Kafka
package events

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventCommandChanged = "command.changed"
	EventSessionSaved   = "session.saved"
	EventSessionReset   = "session.reset"
	EventSessionOpened  = "session.opened"
	EventSessionClosed  = "session.closed"
)

// Publisher sends session events to the broker
type Publisher interface {
	PublishSessionEvents(ctx context.Context, events []*kafka.SessionEvent) error
}

// Config holds emitter tuning
type Config struct {
	BufferSize     int
	FlushInterval  time.Duration
	PublishTimeout time.Duration
}

// Emitter queues session events and publishes them in batches from a
// background loop.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	config    Config

	events chan *kafka.SessionEvent
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewEmitter creates a new event emitter and starts its publish loop
func NewEmitter(publisher Publisher, config Config, logger ectologger.Logger) *Emitter {
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 200 * time.Millisecond
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 10 * time.Second
	}

	e := &Emitter{
		publisher: publisher,
		logger:    logger,
		config:    config,
		events:    make(chan *kafka.SessionEvent, config.BufferSize),
		done:      make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Emit queues an event. Events are dropped when the buffer is full.
func (e *Emitter) Emit(event *kafka.SessionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case <-e.done:
		metrics.EventsPublishedTotal.WithLabelValues(event.EventType, "dropped").Inc()
		return
	default:
	}
	select {
	case e.events <- event:
	default:
		metrics.EventsPublishedTotal.WithLabelValues(event.EventType, "dropped").Inc()
		e.logger.WithFields(map[string]any{
			"event_type": event.EventType,
			"session_id": event.SessionID,
		}).Warn("event buffer full, dropping session event")
	}
}

// Close flushes queued events and stops the publish loop
func (e *Emitter) Close() {
	e.once.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

func (e *Emitter) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	var batch []*kafka.SessionEvent
	for {
		select {
		case event := <-e.events:
			batch = append(batch, event)
			if len(batch) >= e.config.BufferSize {
				e.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				e.flush(batch)
				batch = nil
			}
		case <-e.done:
			for {
				select {
				case event := <-e.events:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						e.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (e *Emitter) flush(batch []*kafka.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.PublishTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.flush")
	defer span.End()

	status := "ok"
	if err := e.publisher.PublishSessionEvents(ctx, batch); err != nil {
		status = "failed"
		e.logger.WithContext(ctx).WithError(err).WithField("batch_size", len(batch)).Error("Failed to emit session events")
	}
	for _, event := range batch {
		metrics.EventsPublishedTotal.WithLabelValues(event.EventType, status).Inc()
	}
}

// SessionListener returns an edit.Listener that emits the changes of one
// session.
func (e *Emitter) SessionListener(sessionID, sessionName string) *SessionListener {
	return &SessionListener{emitter: e, sessionID: sessionID, sessionName: sessionName}
}

// SessionListener forwards CommandContext notifications to the emitter
type SessionListener struct {
	emitter     *Emitter
	sessionID   string
	sessionName string
}

func (l *SessionListener) event(eventType string) *kafka.SessionEvent {
	return &kafka.SessionEvent{
		EventType:   eventType,
		SessionID:   l.sessionID,
		SessionName: l.sessionName,
	}
}

func (l *SessionListener) OnCommandChange(cmd edit.Command) {
	event := l.event(EventCommandChanged)
	event.Command = cmd.Title()
	if obj := cmd.Object(); obj != nil {
		event.ObjectID = obj.ObjectID()
	}
	l.emitter.Emit(event)
}

func (l *SessionListener) OnSave() {
	l.emitter.Emit(l.event(EventSessionSaved))
}

func (l *SessionListener) OnReset() {
	l.emitter.Emit(l.event(EventSessionReset))
}

// Opened emits the session opened event
func (l *SessionListener) Opened() {
	l.emitter.Emit(l.event(EventSessionOpened))
}

// Closed emits the session closed event
func (l *SessionListener) Closed() {
	l.emitter.Emit(l.event(EventSessionClosed))
}
