package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lotero/internal/store"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const queueSize = 256

// Message is the payload written to the prizes topic.
type Message struct {
	Kind  store.EventKind `json:"kind"`
	Code  string          `json:"code,omitempty"`
	Count int             `json:"count,omitempty"`
	At    time.Time       `json:"at"`
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher forwards store events to Kafka from its own goroutine so store
// writers never wait on the broker.
type Publisher struct {
	writer MessageWriter
	events chan store.Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(writer MessageWriter) *Publisher {
	p := &Publisher{
		writer: writer,
		events: make(chan store.Event, queueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Handle is a store listener. Events are dropped when the queue is full.
func (p *Publisher) Handle(e store.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.events <- e:
	default:
		log.WithField("kind", e.Kind).Warn("event queue full, dropping event")
	}
}

func (p *Publisher) Publish(ctx context.Context, e store.Event) error {
	msg := Message{Kind: e.Kind, Code: e.Code, Count: e.Count, At: e.At.UTC()}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal kafka message: %w", err)
	}

	key := e.Code
	if key == "" {
		key = string(e.Kind)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (p *Publisher) loop() {
	defer close(p.done)
	for e := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.Publish(ctx, e); err != nil {
			log.Printf("failed to publish %s event: %v", e.Kind, err)
		}
		cancel()
	}
}

// Close drains queued events and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
