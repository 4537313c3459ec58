// Package featureflags evaluates FEATURE_FLAGS rollouts.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Flags known to the application.
const (
	// DiscoverCache serves the anonymous discover feed from Redis.
	DiscoverCache = "discover_cache"
	// RealtimePush pushes event and message notifications over WebSocket.
	RealtimePush = "realtime_push"
	// StatisticsCache caches the statistics dashboard per user.
	StatisticsCache = "statistics_cache"
)

// Defaults applies when FEATURE_FLAGS does not mention a flag.
const Defaults = "discover_cache=on,realtime_push=on,statistics_cache=off"

// Manager evaluates flags defined as a comma-separated key=value list, e.g.
// "discover_cache=on,realtime_push=25%,statistics_cache=off".
type Manager struct {
	flags map[string]string
}

// NewManager parses raw on top of Defaults.
func NewManager(raw string) *Manager {
	flags := parse(Defaults)
	maps.Copy(flags, parse(raw))
	return &Manager{flags: flags}
}

func parse(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// Enabled reports whether name is on for userID. Values are on/true/1,
// off/false/0 or N% for a deterministic per-user rollout. Percentage
// rollouts never include anonymous users (userID 0) below 100%.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil, pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Raw returns a copy of the configured flags.
func (m *Manager) Raw() map[string]string {
	return maps.Clone(m.flags)
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
