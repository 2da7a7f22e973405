package device

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Status is the reachability of a device as last reported.
type Status string

// Device status values.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Mode is the logical display mode of a device.
type Mode string

// Supported display modes.
const (
	ModeRGB  Mode = "rgb"
	ModeWave Mode = "wave"
	ModeHue  Mode = "hue"
)

// DefaultMode is used when neither the request nor the stored state names a mode.
const DefaultMode = ModeRGB

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeRGB, ModeWave, ModeHue:
		return true
	}
	return false
}

// Kind is a category of device such as an LED strip or a phone agent.
// Kinds are seeded by migration and read-only at runtime.
type Kind struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	IsSmart bool   `json:"isSmart"`
}

// ActionDecl declares that a device supports an action and names the
// handler family that executes it.
type ActionDecl struct {
	Action      string         `json:"action"`
	HandlerKey  string         `json:"handlerKey"`
	ParamSchema map[string]any `json:"paramSchema"`
}

// Device is a controllable device owned by exactly one user.
//
// Capabilities, Actions and State are populated on reads; they are not
// written through Create.
type Device struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"ownerId"`
	KindKey     string         `json:"kindKey"`
	KindLabel   string         `json:"kindLabel,omitempty"`
	IsSmart     bool           `json:"isSmart"`
	DisplayName string         `json:"displayName"`
	Status      Status         `json:"status"`
	LastSeen    *time.Time     `json:"lastSeen"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"createdAt"`

	Capabilities []string     `json:"capabilities"`
	Actions      []ActionDecl `json:"actions"`
	State        *State       `json:"state"`
}

// ActionTarget is everything the dispatcher needs about one declared
// action of one owned device, resolved in a single lookup.
type ActionTarget struct {
	DeviceID    string
	OwnerID     string
	Meta        map[string]any
	Action      string
	HandlerKey  string
	ParamSchema map[string]any
}

// Params is a free-form parameter bag such as {"r":255,"g":0,"b":0,"brightness":128}.
type Params map[string]any

// Clone returns a shallow copy of p. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns {...p, ...patch}: keys in patch replace keys in p,
// keys absent from patch are preserved. Nested values are not merged.
func (p Params) Merge(patch Params) Params {
	out := p.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Number returns p[key] as a finite float64. Numbers, json.Number and
// numeric strings are accepted; anything else reports false.
func (p Params) Number(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// State is the current logical display state of a device.
type State struct {
	Mode      Mode      `json:"mode"`
	Params    Params    `json:"params"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// StateHistoryEntry records one state transition.
type StateHistoryEntry struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	PrevMode   Mode      `json:"prevMode,omitempty"`
	NextMode   Mode      `json:"nextMode"`
	PrevParams Params    `json:"prevParams,omitempty"`
	NextParams Params    `json:"nextParams"`
	ChangedBy  string    `json:"changedBy,omitempty"`
	ChangedAt  time.Time `json:"changedAt"`
}

// PairingCode is a short-lived numeric code that lets an agent claim a device.
type PairingCode struct {
	ID        string    `json:"-"`
	Code      string    `json:"code"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"-"`
}

// NewDevice is the input to Registry.CreateDevice.
type NewDevice struct {
	KindKey     string         `json:"kindKey"`
	DisplayName string         `json:"displayName"`
	Meta        map[string]any `json:"meta"`
}
