package executor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/config"
	"github.com/onur02004/MainRoadmap-sub000/internal/process"
)

// Strategy builds the process invocation for one family of handlers.
type Strategy interface {
	BuildInvocation(a Action, meta map[string]any) (process.Invocation, error)
}

// ScriptStrategy runs a fixed program with the action as positional
// arguments. Device meta reaches the child through environment
// variables only.
type ScriptStrategy struct {
	// Name is used for logging.
	Name string

	// Command is the program to run.
	Command string

	// Script, when set, is passed before the action arguments. Used when
	// Command is an interpreter.
	Script string

	// Env maps device meta keys to environment variable names.
	Env map[string]string
}

// BuildInvocation implements Strategy.
func (s ScriptStrategy) BuildInvocation(a Action, meta map[string]any) (process.Invocation, error) {
	if s.Command == "" {
		return process.Invocation{}, fmt.Errorf("%w: handler %q has no command", ErrUnsupported, s.Name)
	}

	args := make([]string, 0, 5)
	if s.Script != "" {
		args = append(args, s.Script)
	}
	args = append(args, Args(a)...)

	return process.Invocation{
		Name:   s.Name,
		Binary: s.Command,
		Args:   args,
		Env:    metaEnv(s.Env, meta),
	}, nil
}

// metaEnv renders the mapped meta keys as KEY=value pairs in a stable order.
func metaEnv(mapping map[string]string, meta map[string]any) []string {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := meta[k]
		if !ok || v == nil {
			continue
		}
		env = append(env, mapping[k]+"="+envValue(v))
	}
	return env
}

func envValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// Handlers maps handler-key prefixes to strategies.
// It is safe for concurrent use.
type Handlers struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewHandlers creates an empty registry.
func NewHandlers() *Handlers {
	return &Handlers{strategies: make(map[string]Strategy)}
}

// HandlersFromConfig registers a ScriptStrategy for every configured handler.
func HandlersFromConfig(cfg map[string]config.HandlerConfig) *Handlers {
	h := NewHandlers()
	for prefix, hc := range cfg {
		h.Register(prefix, ScriptStrategy{
			Name:    prefix,
			Command: hc.Command,
			Script:  hc.Script,
			Env:     hc.Env,
		})
	}
	return h
}

// Register binds prefix to s, replacing any previous binding.
func (h *Handlers) Register(prefix string, s Strategy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.strategies[prefix] = s
}

// Resolve returns the strategy whose prefix is the longest prefix of
// handlerKey. Returns ErrUnsupported when nothing matches.
func (h *Handlers) Resolve(handlerKey string) (Strategy, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	best := -1
	var found Strategy
	for prefix, s := range h.strategies {
		if prefix == "" || !strings.HasPrefix(handlerKey, prefix) {
			continue
		}
		if len(prefix) > best {
			best = len(prefix)
			found = s
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no executor for handler %q", ErrUnsupported, handlerKey)
	}
	return found, nil
}

// Prefixes returns the registered prefixes, sorted.
func (h *Handlers) Prefixes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.strategies))
	for p := range h.strategies {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
