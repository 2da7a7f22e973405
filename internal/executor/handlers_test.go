package executor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/config"
)

func TestScriptStrategy_BuildInvocation(t *testing.T) {
	s := ScriptStrategy{
		Name:    "led_control",
		Command: "python3",
		Script:  "./scripts/led_control.py",
		Env:     map[string]string{"pin": "LED_PIN", "pixels": "LED_PIXELS", "chip": "LED_CHIP"},
	}
	meta := map[string]any{
		"pin":    "D18",
		"pixels": float64(60),
		"room":   "office",
	}

	inv, err := s.BuildInvocation(SetColor{R: 255, G: 0, B: 10}, meta)
	if err != nil {
		t.Fatalf("BuildInvocation() error = %v", err)
	}

	if inv.Binary != "python3" {
		t.Errorf("Binary = %q, want python3", inv.Binary)
	}
	wantArgs := []string{"./scripts/led_control.py", "set_color", "255", "0", "10"}
	if !reflect.DeepEqual(inv.Args, wantArgs) {
		t.Errorf("Args = %v, want %v", inv.Args, wantArgs)
	}
	// Unmapped meta keys never reach the child; absent keys are skipped.
	wantEnv := []string{"LED_PIN=D18", "LED_PIXELS=60"}
	if !reflect.DeepEqual(inv.Env, wantEnv) {
		t.Errorf("Env = %v, want %v", inv.Env, wantEnv)
	}
}

func TestScriptStrategy_DirectCommand(t *testing.T) {
	s := ScriptStrategy{Name: "ledctl", Command: "/usr/local/bin/ledctl"}

	inv, err := s.BuildInvocation(On{}, nil)
	if err != nil {
		t.Fatalf("BuildInvocation() error = %v", err)
	}
	if !reflect.DeepEqual(inv.Args, []string{"on"}) {
		t.Errorf("Args = %v, want [on]", inv.Args)
	}
	if len(inv.Env) != 0 {
		t.Errorf("Env = %v, want empty", inv.Env)
	}

	if _, err := (ScriptStrategy{Name: "broken"}).BuildInvocation(On{}, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("empty command error = %v, want ErrUnsupported", err)
	}
}

func TestHandlers_ResolveLongestPrefix(t *testing.T) {
	generic := ScriptStrategy{Name: "led", Command: "generic"}
	strip := ScriptStrategy{Name: "led_control", Command: "strip"}

	h := NewHandlers()
	h.Register("led", generic)
	h.Register("led_control", strip)

	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"led_control", "strip", false},
		{"led_control_v2", "strip", false},
		{"led_matrix", "generic", false},
		{"phone_agent", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s, err := h.Resolve(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupported) {
					t.Fatalf("Resolve(%q) error = %v, want ErrUnsupported", tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.key, err)
			}
			if got := s.(ScriptStrategy).Command; got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestHandlersFromConfig(t *testing.T) {
	h := HandlersFromConfig(map[string]config.HandlerConfig{
		"led_control": {Command: "python3", Script: "led.py", Env: map[string]string{"pin": "LED_PIN"}},
		"relay":       {Command: "/usr/bin/relayctl"},
	})

	if got := h.Prefixes(); !reflect.DeepEqual(got, []string{"led_control", "relay"}) {
		t.Errorf("Prefixes() = %v", got)
	}

	s, err := h.Resolve("led_control")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	inv, err := s.BuildInvocation(Wave{Speed: 0.5}, map[string]any{"pin": 18})
	if err != nil {
		t.Fatalf("BuildInvocation() error = %v", err)
	}
	if !reflect.DeepEqual(inv.Args, []string{"led.py", "wave", "0.5"}) || !reflect.DeepEqual(inv.Env, []string{"LED_PIN=18"}) {
		t.Errorf("invocation = %+v", inv)
	}
}
