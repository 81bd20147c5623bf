// Package queue provides the asynchronous ingress path: submissions arrive
// on a JetStream subject, a worker runs them through the pipeline, and the
// resulting verdicts are published for downstream consumers.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

// BusConfig configures the NATS connection. With Embedded set, an in-process
// server is started and URL is ignored.
type BusConfig struct {
	URL            string
	Embedded       bool
	Port           int
	DataDir        string
	SubmitSubject  string
	VerdictSubject string
}

// Bus wraps NATS JetStream for submission intake and verdict publishing.
type Bus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	ns     *server.Server
	cfg    BusConfig
	logger zerolog.Logger
	mu     sync.Mutex
	subs   []*nats.Subscription
}

// NewBus connects to NATS (starting an embedded server first if configured)
// and ensures the submission and verdict streams exist.
func NewBus(cfg BusConfig, logger zerolog.Logger) (*Bus, error) {
	if cfg.SubmitSubject == "" {
		cfg.SubmitSubject = "bastion.submissions"
	}
	if cfg.VerdictSubject == "" {
		cfg.VerdictSubject = "bastion.verdicts"
	}

	bus := &Bus{
		cfg:    cfg,
		logger: logger.With().Str("component", "queue").Logger(),
	}

	if cfg.Embedded {
		if cfg.DataDir != "" {
			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return nil, fmt.Errorf("creating NATS data dir: %w", err)
			}
		}
		port := cfg.Port
		if port == 0 {
			port = server.RANDOM_PORT
		}
		opts := &server.Options{
			Host:      "127.0.0.1",
			Port:      port,
			JetStream: true,
			StoreDir:  cfg.DataDir,
			NoLog:     true,
			NoSigs:    true,
		}
		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("creating embedded NATS server: %w", err)
		}
		ns.Start()
		if !ns.ReadyForConnections(10 * time.Second) {
			return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
		}
		bus.ns = ns
		bus.logger.Info().Str("addr", ns.ClientURL()).Msg("embedded NATS server started")
	}

	url := cfg.URL
	if cfg.Embedded {
		url = bus.ns.ClientURL()
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				bus.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			bus.logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	bus.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	bus.js = js

	if err := bus.ensureStream("BASTION_SUBMISSIONS", cfg.SubmitSubject, 24*time.Hour); err != nil {
		return nil, err
	}
	if err := bus.ensureStream("BASTION_VERDICTS", cfg.VerdictSubject, 7*24*time.Hour); err != nil {
		return nil, err
	}

	bus.logger.Info().Str("url", url).Msg("connected to NATS JetStream")
	return bus, nil
}

// ensureStream creates the stream or updates it when an older config exists.
func (b *Bus) ensureStream(name, subject string, maxAge time.Duration) error {
	cfg := &nats.StreamConfig{
		Name:      name,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAge,
		Storage:   nats.FileStorage,
		Discard:   nats.DiscardOld,
	}
	if _, err := b.js.AddStream(cfg); err != nil {
		if _, updateErr := b.js.UpdateStream(cfg); updateErr != nil {
			return fmt.Errorf("creating/updating stream %s: %w (original: %v)", name, updateErr, err)
		}
	}
	return nil
}

// PublishSubmission enqueues a submission for asynchronous analysis.
func (b *Bus) PublishSubmission(sub content.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshaling submission: %w", err)
	}
	if _, err := b.js.Publish(b.cfg.SubmitSubject, data); err != nil {
		return fmt.Errorf("publishing submission %s: %w", sub.ID, err)
	}
	b.logger.Debug().Str("request_id", sub.ID).Msg("submission published")
	return nil
}

// PublishVerdict publishes a completed verdict for downstream consumers.
func (b *Bus) PublishVerdict(v content.RiskVerdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling verdict: %w", err)
	}
	if _, err := b.js.Publish(b.cfg.VerdictSubject, data); err != nil {
		return fmt.Errorf("publishing verdict %s: %w", v.RequestID, err)
	}
	return nil
}

// SubscribeSubmissions consumes queued submissions with a durable consumer.
// Messages that fail to decode are dropped after a nak.
func (b *Bus) SubscribeSubmissions(durableName string, handler func(content.Submission)) error {
	sub, err := b.js.Subscribe(b.cfg.SubmitSubject, func(msg *nats.Msg) {
		var s content.Submission
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			b.logger.Error().Err(err).Msg("failed to unmarshal submission")
			_ = msg.Nak()
			return
		}
		handler(s)
		_ = msg.Ack()
	}, nats.DeliverNew(), nats.AckExplicit(), nats.Durable(durableName))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.cfg.SubmitSubject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug().Str("subject", b.cfg.SubmitSubject).Str("durable", durableName).Msg("subscribed")
	return nil
}

// IsConnected reports whether the NATS connection is active.
func (b *Bus) IsConnected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

// Close drains subscriptions and shuts down the connection and any embedded
// server.
func (b *Bus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.mu.Unlock()

	if b.nc != nil {
		b.nc.Close()
	}
	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
		b.logger.Info().Msg("embedded NATS server stopped")
	}
	return nil
}
