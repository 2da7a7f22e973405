package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
)

// RetainedPublisher publishes retained messages.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Subscriber registers message handlers.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// SeenToucher records that a device was heard from.
type SeenToucher interface {
	TouchSeen(ctx context.Context, deviceID string, status device.Status) device.BestEffort
}

// stateMessage is the retained payload on devremote/state/{deviceId}.
type stateMessage struct {
	DeviceID  string        `json:"deviceId"`
	Mode      device.Mode   `json:"mode"`
	Params    device.Params `json:"params"`
	UpdatedAt string        `json:"updatedAt"`
}

// StatePublisher mirrors device state changes to the broker.
// It implements device.StateNotifier.
type StatePublisher struct {
	pub RetainedPublisher
}

// NewStatePublisher creates a publisher on pub.
func NewStatePublisher(pub RetainedPublisher) *StatePublisher {
	return &StatePublisher{pub: pub}
}

// NotifyStateChanged publishes st as the retained state of deviceID.
// The owner is not part of the topic; broker ACLs scope agents to their device.
func (p *StatePublisher) NotifyStateChanged(_ context.Context, _, deviceID string, st device.State) error {
	payload, err := json.Marshal(stateMessage{
		DeviceID:  deviceID,
		Mode:      st.Mode,
		Params:    st.Params,
		UpdatedAt: st.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encoding state message: %w", err)
	}
	return p.pub.PublishRetained(Topics{}.DeviceState(deviceID), payload)
}

// AgentStatusListener turns agent status messages into lastSeen updates.
//
// Payloads are JSON objects with an optional "status" of "online" or
// "offline"; any other message only refreshes lastSeen.
type AgentStatusListener struct {
	sub    Subscriber
	seen   SeenToucher
	qos    byte
	logger Logger
}

// NewAgentStatusListener creates a listener.
func NewAgentStatusListener(sub Subscriber, seen SeenToucher) *AgentStatusListener {
	return &AgentStatusListener{sub: sub, seen: seen, qos: 1, logger: noopLogger{}}
}

// SetLogger sets the logger for the listener.
func (l *AgentStatusListener) SetLogger(logger Logger) {
	l.logger = logger
}

// Start subscribes to every agent status topic. Touches run with ctx.
func (l *AgentStatusListener) Start(ctx context.Context) error {
	topic := Topics{}.AllAgentStatus()
	if err := l.sub.Subscribe(topic, l.qos, func(t string, payload []byte) error {
		return l.handle(ctx, t, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	l.logger.Info("listening for agent status", "topic", topic)
	return nil
}

func (l *AgentStatusListener) handle(ctx context.Context, topic string, payload []byte) error {
	deviceID, ok := DeviceIDFromAgentTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected agent topic %q", topic)
	}

	var status device.Status
	if gjson.ValidBytes(payload) {
		switch s := device.Status(gjson.GetBytes(payload, "status").String()); s {
		case device.StatusOnline, device.StatusOffline:
			status = s
		}
	}

	l.logger.Debug("agent status received", "device_id", deviceID, "status", status)
	return l.seen.TouchSeen(ctx, deviceID, status).Err
}
