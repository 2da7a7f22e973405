package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
)

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]byte
	handlers  map[string]MessageHandler
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][]byte{}, handlers: map[string]MessageHandler{}}
}

func (b *fakeBroker) PublishRetained(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published[topic] = payload
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte, handler MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.handlers[topic] = handler
	return nil
}

type touch struct {
	deviceID string
	status   device.Status
}

type fakeToucher struct {
	touches []touch
}

func (f *fakeToucher) TouchSeen(_ context.Context, deviceID string, status device.Status) device.BestEffort {
	f.touches = append(f.touches, touch{deviceID, status})
	return device.BestEffort{Op: "touch last_seen"}
}

func TestStatePublisher_PublishesRetainedState(t *testing.T) {
	broker := newFakeBroker()
	p := NewStatePublisher(broker)

	st := device.State{
		Mode:      device.ModeRGB,
		Params:    device.Params{"r": float64(255)},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := p.NotifyStateChanged(context.Background(), "owner", "dev-1", st); err != nil {
		t.Fatalf("NotifyStateChanged() error = %v", err)
	}

	raw, ok := broker.published["devremote/state/dev-1"]
	if !ok {
		t.Fatalf("nothing published, got %v", broker.published)
	}
	var msg stateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.DeviceID != "dev-1" || msg.Mode != device.ModeRGB || msg.Params["r"] != float64(255) {
		t.Errorf("message = %+v", msg)
	}
	if msg.UpdatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("UpdatedAt = %q", msg.UpdatedAt)
	}
}

func TestStatePublisher_ReturnsBrokerError(t *testing.T) {
	broker := newFakeBroker()
	broker.err = ErrNotConnected

	err := NewStatePublisher(broker).NotifyStateChanged(context.Background(), "o", "d", device.State{})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestAgentStatusListener(t *testing.T) {
	broker := newFakeBroker()
	seen := &fakeToucher{}
	l := NewAgentStatusListener(broker, seen)

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	handler, ok := broker.handlers[Topics{}.AllAgentStatus()]
	if !ok {
		t.Fatal("listener did not subscribe to agent status")
	}

	messages := []struct {
		topic   string
		payload string
	}{
		{"devremote/agent/dev-1/status", `{"status":"online"}`},
		{"devremote/agent/dev-2/status", `{"status":"offline","uptime":12}`},
		{"devremote/agent/dev-3/status", `{"status":"rebooting"}`},
		{"devremote/agent/dev-4/status", `heartbeat`},
	}
	for _, m := range messages {
		if err := handler(m.topic, []byte(m.payload)); err != nil {
			t.Errorf("handler(%s) error = %v", m.topic, err)
		}
	}

	want := []touch{
		{"dev-1", device.StatusOnline},
		{"dev-2", device.StatusOffline},
		{"dev-3", ""},
		{"dev-4", ""},
	}
	if len(seen.touches) != len(want) {
		t.Fatalf("touches = %v", seen.touches)
	}
	for i := range want {
		if seen.touches[i] != want[i] {
			t.Errorf("touch[%d] = %+v, want %+v", i, seen.touches[i], want[i])
		}
	}

	if err := handler("devremote/agent/status", nil); err == nil {
		t.Error("malformed topic should be reported")
	}
}

func TestAgentStatusListener_SubscribeFailure(t *testing.T) {
	broker := newFakeBroker()
	broker.err = ErrNotConnected

	err := NewAgentStatusListener(broker, &fakeToucher{}).Start(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Start() error = %v", err)
	}
}
