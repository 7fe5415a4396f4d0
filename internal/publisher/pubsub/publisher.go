// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Publisher publishes JSON payloads to named topics on one client.
type Publisher struct {
	client *pubsub.Client
	owned  bool
	attrs  map[string]string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithAttributes adds static attributes to every message.
func WithAttributes(attrs map[string]string) Option {
	return func(p *Publisher) {
		for k, v := range attrs {
			p.attrs[k] = v
		}
	}
}

// Open creates a Pub/Sub client for projectID and wraps it.
func Open(ctx context.Context, projectID, credentialsPath string, opts ...Option) (*Publisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id is required")
	}
	var clientOpts []option.ClientOption
	if credentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := pubsub.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	p := New(client, opts...)
	p.owned = true
	return p, nil
}

// New wraps an existing client.
func New(client *pubsub.Client, opts ...Option) *Publisher {
	p := &Publisher{
		client: client,
		attrs:  make(map[string]string),
		topics: make(map[string]*pubsub.Topic),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish marshals the payload to JSON, publishes it to topic and waits for
// the server-assigned message id.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: make(map[string]string, len(p.attrs))}
	for k, v := range p.attrs {
		msg.Attributes[k] = v
	}

	result := p.topic(topic).Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func (p *Publisher) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(name)
		p.topics[name] = t
	}
	return t
}

// Close flushes pending messages and releases the client if Open created it.
func (p *Publisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.mu.Unlock()

	if !p.owned {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
