// internal/mqtt/feed.go

package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"RailSentinelAPI/internal/config"
	"RailSentinelAPI/internal/ingest"
	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/models"
)

// FeedObserver counts feed outcomes for monitoring. All methods must be
// safe for concurrent use.
type FeedObserver interface {
	FeedMessageAccepted(kind string)
	FeedMessageRejected(kind, reason string)
}

// Feed subscribes the snapshot assembler to the fleet position and
// signal state topics. Malformed or stale messages are dropped one at a
// time; the subscription itself stays up.
type Feed struct {
	client    *Client
	assembler *ingest.Assembler
	cfg       *config.MQTTConfig
	obs       FeedObserver
	log       *logger.Logger
}

func NewFeed(client *Client, assembler *ingest.Assembler, cfg *config.MQTTConfig, obs FeedObserver, log *logger.Logger) *Feed {
	return &Feed{
		client:    client,
		assembler: assembler,
		cfg:       cfg,
		obs:       obs,
		log:       log,
	}
}

// Start subscribes to both feed topics.
func (f *Feed) Start() error {
	if err := f.client.Subscribe(f.cfg.FleetTopic, f.handlePosition); err != nil {
		return fmt.Errorf("fleet topic subscription failed: %w", err)
	}
	if err := f.client.Subscribe(f.cfg.SignalTopic, f.handleSignal); err != nil {
		return fmt.Errorf("signal topic subscription failed: %w", err)
	}
	f.log.Info("Feed subscriptions active: %s, %s", f.cfg.FleetTopic, f.cfg.SignalTopic)
	return nil
}

func (f *Feed) handlePosition(topic string, payload []byte) error {
	var msg models.FleetPositionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.reject("position", "decode")
		return fmt.Errorf("malformed position payload on %s: %w", topic, err)
	}

	if err := f.assembler.ProcessFleetMessage(msg); err != nil {
		f.reject("position", rejectReason(err))
		return err
	}
	f.accept("position")
	return nil
}

func (f *Feed) handleSignal(topic string, payload []byte) error {
	var msg models.SignalStateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.reject("signal", "decode")
		return fmt.Errorf("malformed signal payload on %s: %w", topic, err)
	}

	if err := f.assembler.ProcessSignalMessage(msg); err != nil {
		f.reject("signal", rejectReason(err))
		return err
	}
	f.accept("signal")
	return nil
}

func rejectReason(err error) string {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, ingest.ErrStaleMessage):
		return "stale"
	default:
		return "other"
	}
}

func (f *Feed) accept(kind string) {
	if f.obs != nil {
		f.obs.FeedMessageAccepted(kind)
	}
}

func (f *Feed) reject(kind, reason string) {
	if f.obs != nil {
		f.obs.FeedMessageRejected(kind, reason)
	}
}
