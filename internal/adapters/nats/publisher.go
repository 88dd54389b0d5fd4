package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

// SubjectRefreshed carries domain.DatasetRefreshed events.
const SubjectRefreshed = "fiets.nodes.refreshed"

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the node data stream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "NODE_DATA",
		Subjects:  []string{"fiets.nodes.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist — try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishDatasetRefreshed announces a completed dataset refresh.
func (p *Publisher) PublishDatasetRefreshed(ctx context.Context, nodeCount, tileCount int, source string) error {
	event := domain.DatasetRefreshed{
		NodeCount: nodeCount,
		TileCount: tileCount,
		Source:    source,
		At:        time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectRefreshed, data)
	return err
}

// PublishBroadcast sends raw bytes to every live listener (the
// WebSocket relay), bypassing JetStream.
func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish("fiets.updates.broadcast", data)
}

// Close drains the connection.
func (p *Publisher) Close() {
	p.conn.Close()
}

// RawConn returns a plain NATS connection for subscribers that relay
// messages without JetStream semantics.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
