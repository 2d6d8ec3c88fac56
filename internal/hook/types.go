// Package hook runs external executables when session events happen, such
// as showing a desktop notification with the focus feedback when a session
// completes.
//
// Each hook lives in its own directory under the hook directory, with a
// hook.json manifest naming its executable and the events it handles. The
// executable receives one JSON Request on stdin and answers with one JSON
// Response on stdout.
package hook

import (
	"encoding/json"
	"slices"
)

// Session events.
const (
	EventSessionStarted   = "session.started"
	EventSessionCompleted = "session.completed"
)

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is sent to a hook on stdin.
type Request struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Config    json.RawMessage `json:"config,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribed to event.
func (h *Hook) Handles(event string) bool {
	return slices.Contains(h.Manifest.Events, event)
}
