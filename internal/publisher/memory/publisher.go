// Package memory is the in-process stand-in for Pub/Sub. It keeps the most
// recent notifications as the JSON a real topic would carry.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

const defaultRetention = 100

// Publisher retains recent messages for inspection.
type Publisher struct {
	mu        sync.RWMutex
	retention int
	seq       int
	messages  []PublishedMessage
}

var _ audit.Publisher = (*Publisher)(nil)

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID    string
	Topic string
	Data  json.RawMessage
}

// New returns a Publisher keeping at most retention messages.
func New(retention int) *Publisher {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Publisher{retention: retention}
}

// Publish encodes payload and records it under a sequential ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Data: data})
	if over := len(p.messages) - p.retention; over > 0 {
		p.messages = append([]PublishedMessage(nil), p.messages[over:]...)
	}
	return id, nil
}

// Messages returns the retained messages, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
