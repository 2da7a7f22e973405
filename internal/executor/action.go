package executor

import (
	"fmt"
	"math"
	"strconv"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
)

// Action names understood by the LED controller.
const (
	ActionOn            = "on"
	ActionOff           = "off"
	ActionSetColor      = "set_color"
	ActionSetBrightness = "set_brightness"
	ActionWave          = "wave"
	ActionHue           = "hue"
)

// Defaults applied when a parameter is absent.
const (
	DefaultChannel    = 255
	DefaultBrightness = 128
	DefaultWaveSpeed  = 0.5
)

// Action is one parsed device action. The set of implementations is closed.
type Action interface {
	// Name returns the wire name of the action.
	Name() string
	isAction()
}

// On powers the output on.
type On struct{}

// Off powers the output off.
type Off struct{}

// SetColor fills the strip with one colour. Channels are 0..255.
type SetColor struct {
	R, G, B int
}

// SetBrightness sets global brightness, 0..255.
type SetBrightness struct {
	Value int
}

// Wave runs the moving gradient effect.
type Wave struct {
	Speed float64
}

func (On) Name() string            { return ActionOn }
func (Off) Name() string           { return ActionOff }
func (SetColor) Name() string      { return ActionSetColor }
func (SetBrightness) Name() string { return ActionSetBrightness }
func (Wave) Name() string          { return ActionWave }

func (On) isAction()            {}
func (Off) isAction()           {}
func (SetColor) isAction()      {}
func (SetBrightness) isAction() {}
func (Wave) isAction()          {}

// ParseAction builds an Action from its name and request params.
//
// Missing params take their defaults. Present params must be numeric
// (numbers or numeric strings) or ErrInvalidParams is returned. Colour
// channels and brightness are rounded and clamped to 0..255.
func ParseAction(name string, params map[string]any) (Action, error) {
	p := device.Params(params)

	switch name {
	case ActionOn:
		return On{}, nil
	case ActionOff:
		return Off{}, nil
	case ActionSetColor:
		r, err := channel(p, "r", DefaultChannel)
		if err != nil {
			return nil, err
		}
		g, err := channel(p, "g", DefaultChannel)
		if err != nil {
			return nil, err
		}
		b, err := channel(p, "b", DefaultChannel)
		if err != nil {
			return nil, err
		}
		return SetColor{R: r, G: g, B: b}, nil
	case ActionSetBrightness:
		v, err := channel(p, "value", DefaultBrightness)
		if err != nil {
			return nil, err
		}
		return SetBrightness{Value: v}, nil
	case ActionWave:
		speed, err := number(p, "speed", DefaultWaveSpeed)
		if err != nil {
			return nil, err
		}
		return Wave{Speed: math.Max(0, speed)}, nil
	case ActionHue:
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
}

// Args returns the positional arguments for a, starting with its name.
func Args(a Action) []string {
	switch a := a.(type) {
	case SetColor:
		return []string{a.Name(), strconv.Itoa(a.R), strconv.Itoa(a.G), strconv.Itoa(a.B)}
	case SetBrightness:
		return []string{a.Name(), strconv.Itoa(a.Value)}
	case Wave:
		return []string{a.Name(), strconv.FormatFloat(a.Speed, 'f', -1, 64)}
	default:
		return []string{a.Name()}
	}
}

// StateEffect returns the display state a successful run of a leaves
// behind: the mode to switch to (empty keeps the current one) and the
// params to merge.
func StateEffect(a Action) (device.Mode, device.Params) {
	switch a := a.(type) {
	case On:
		return "", device.Params{"power": "on"}
	case Off:
		return "", device.Params{"power": "off"}
	case SetColor:
		return device.ModeRGB, device.Params{"r": a.R, "g": a.G, "b": a.B}
	case SetBrightness:
		return "", device.Params{"brightness": a.Value}
	case Wave:
		return device.ModeWave, device.Params{"speed": a.Speed}
	default:
		return "", nil
	}
}

func number(p device.Params, key string, def float64) (float64, error) {
	if v, ok := p[key]; !ok || v == nil {
		return def, nil
	}
	f, ok := p.Number(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParams, key)
	}
	return f, nil
}

func channel(p device.Params, key string, def int) (int, error) {
	f, err := number(p, key, float64(def))
	if err != nil {
		return 0, err
	}
	return int(math.Max(0, math.Min(255, math.Round(f)))), nil
}
