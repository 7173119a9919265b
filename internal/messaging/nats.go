package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/models"
)

const (
	turnStream       = "CHAT_TURNS"
	turnSubjectRoot  = "chat.turns"
	anonymousSubject = "anonymous"
)

// TurnSubject returns the subject a turn of the given session is published on
func TurnSubject(sessionID string) string {
	if sessionID == "" {
		sessionID = anonymousSubject
	}
	return fmt.Sprintf("%s.%s", turnSubjectRoot, sessionID)
}

// NATSClient publishes and consumes chat turn events
type NATSClient struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry

	subs   map[string]*nats.Subscription
	subsMu sync.Mutex
}

// NewNATSClient connects to NATS. A server without JetStream still works;
// turns are then published on core NATS only.
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	log := logger.WithField("component", "nats")

	opts := []nats.Option{
		nats.Name("cryptobuddy"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	nc := &NATSClient{
		conn:   conn,
		logger: log,
		subs:   make(map[string]*nats.Subscription),
	}

	if js, err := conn.JetStream(); err == nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     turnStream,
			Subjects: []string{turnSubjectRoot + ".>"},
			Storage:  nats.FileStorage,
			MaxAge:   7 * 24 * time.Hour,
			MaxMsgs:  100000,
			Replicas: 1,
		})
		switch {
		case err == nil, errors.Is(err, nats.ErrStreamNameAlreadyInUse):
			nc.js = js
		default:
			log.WithError(err).Warn("JetStream unavailable, publishing turns on core NATS")
		}
	}

	return nc, nil
}

// PublishTurn publishes a delivered turn on its session subject
func (nc *NATSClient) PublishTurn(ctx context.Context, event models.TurnEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal turn event: %w", err)
	}

	subject := TurnSubject(event.SessionID)
	if nc.js == nil {
		if err := nc.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish turn: %w", err)
		}
		return nil
	}

	future, err := nc.js.PublishAsync(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish turn: %w", err)
	}

	select {
	case <-future.Ok():
		return nil
	case err := <-future.Err():
		return fmt.Errorf("failed to publish turn: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
		return fmt.Errorf("publish timeout for subject %s", subject)
	}
}

// SubscribeTurns delivers every turn event to handler until Close
func (nc *NATSClient) SubscribeTurns(handler func(models.TurnEvent)) error {
	subject := turnSubjectRoot + ".>"

	sub, err := nc.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event models.TurnEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			nc.logger.WithError(err).WithField("subject", msg.Subject).Warn("Dropping malformed turn event")
			return
		}
		handler(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	nc.subsMu.Lock()
	nc.subs[subject] = sub
	nc.subsMu.Unlock()

	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// Close drops subscriptions and closes the connection
func (nc *NATSClient) Close() error {
	nc.subsMu.Lock()
	for _, sub := range nc.subs {
		sub.Unsubscribe()
	}
	nc.subs = make(map[string]*nats.Subscription)
	nc.subsMu.Unlock()

	nc.conn.Close()
	return nil
}
