package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Post is one new message observed in a watched source channel.
type Post struct {
	SourceID    int64  `json:"source_id"`
	SourceName  string `json:"source_name"` // public username without the @ sigil, empty for private channels
	SourceTitle string `json:"source_title"`
	MessageID   int    `json:"message_id"`
	Text        string `json:"text"`
	PostedAt    time.Time `json:"posted_at"`
}

// Entity describes a resolved Telegram chat.
type Entity struct {
	ID        int64
	Title     string
	Username  string // empty when the chat has no public handle
	IsChannel bool   // channel or supergroup, i.e. watchable
}

// HasPublicHandle reports whether the entity can be addressed by @username.
func (e Entity) HasPublicHandle() bool {
	return e.Username != ""
}

// RenderMode selects how a post is turned into outbound notifications.
type RenderMode string

const (
	ModeLink    RenderMode = "link"    // caption plus permalink
	ModeForward RenderMode = "forward" // verbatim forward of the original post
	ModeText    RenderMode = "text"    // template text only
)

// ParseRenderMode validates a stored or user-supplied mode string.
func ParseRenderMode(s string) (RenderMode, error) {
	switch RenderMode(s) {
	case ModeLink, ModeForward, ModeText:
		return RenderMode(s), nil
	}
	return "", fmt.Errorf("unknown render mode %q", s)
}

// DirectiveKind distinguishes the two delivery primitives of the transport.
type DirectiveKind int

const (
	DirectiveSend DirectiveKind = iota
	DirectiveForward
)

// Directive is one unit of outbound content produced by the formatter.
// A send directive carries its text; a forward directive carries nothing,
// the dispatcher forwards the triggering post verbatim.
type Directive struct {
	Kind DirectiveKind
	Text string
}

// HistoryEntry is one immutable audit record of an administrative mutation.
type HistoryEntry struct {
	ID        int64
	Action    string
	Category  string
	Items     []string
	Before    string
	After     string
	CreatedAt time.Time
}

// Actions recorded in the history log.
const (
	ActionAdd       = "add"
	ActionRemove    = "remove"
	ActionRemoveAll = "remove_all"
	ActionUpdate    = "update"
)

// Categories of administrative mutations.
const (
	CategoryChannels    = "channels"
	CategorySubscribers = "subscribers"
	CategoryTemplate    = "template"
	CategoryMode        = "mode"
)

// EncodeItems serializes the affected-items list for storage.
func EncodeItems(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(items)
	return string(data)
}

// DecodeItems is the inverse of EncodeItems; malformed input yields nil.
func DecodeItems(s string) []string {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	return items
}
