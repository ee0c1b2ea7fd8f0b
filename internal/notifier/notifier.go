// Package notifier defines the outbound/inbound port toward the chat
// platform (spec.md §4.J). The core only depends on this interface; a
// collaborator implementing the actual chat-platform bindings lives
// outside this module.
package notifier

import "context"

// Level is the severity of an outbound notification.
type Level string

// Notification levels, ordered least to most severe.
const (
	LevelInfo     Level = "info"
	LevelSuccess  Level = "success"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// StartRequest is the inbound shape of a start request arriving from
// either principal via the chat platform.
type StartRequest struct {
	ScriptKey     string
	RequesterID   string
	RequesterTag  string
	ChannelID     string
	PublicRequest bool
	BypassLimits  bool
	Priority      int
	TargetLabel   string
	CommandArgs   []string
	ExtraEnv      map[string]string
}

// StartResult is the outcome handed back to the caller of onStartRequest.
type StartResult struct {
	State    string // "started", "queued", or "rejected"
	RunID    int64
	PID      int
	QueueID  int64
	Position int
	Code     string // rejection code, set only when State == "rejected"
	Message  string
}

// PresenceState and PresenceMode mirror the recognized presence_state /
// presence_mode settings (spec.md §6).
type PresenceState string
type PresenceMode string

const (
	PresenceOnline    PresenceState = "online"
	PresenceIdle      PresenceState = "idle"
	PresenceDND       PresenceState = "dnd"
	PresenceInvisible PresenceState = "invisible"
)

const (
	ModeWatching   PresenceMode = "watching"
	ModePlaying    PresenceMode = "playing"
	ModeListening  PresenceMode = "listening"
	ModeCompeting  PresenceMode = "competing"
)

// Notifier is the core's only dependency on the chat platform. Every
// outbound method is fire-and-forget: the core never blocks on it and
// never treats its failure as fatal.
type Notifier interface {
	// Notify sends a free-form message at the given level. Implementations
	// should dedupe within a short window keyed by content hash and retry
	// transient failures in the background.
	Notify(ctx context.Context, level Level, text string)

	// Critical sends text at LevelCritical after adding a mention of the
	// configured critical user/group.
	Critical(ctx context.Context, text string)

	// PresenceUpdate is best-effort; failures must never propagate.
	PresenceUpdate(ctx context.Context, state PresenceState, mode PresenceMode, activity string)

	// OnStartRequest and OnStopRequest are registered by the engine so the
	// chat-platform collaborator can route inbound UI actions into it; the
	// core does not call these itself.
}

// StartRequestHandler is implemented by the engine and invoked by the
// chat-platform collaborator for inbound start requests.
type StartRequestHandler interface {
	OnStartRequest(ctx context.Context, req StartRequest) StartResult
}

// StopRequestHandler is implemented by the engine and invoked by the
// chat-platform collaborator for inbound stop requests.
type StopRequestHandler interface {
	OnStopRequest(ctx context.Context, scriptKey string) bool
}
