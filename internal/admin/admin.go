// Package admin implements the conversational admin menu: a per-admin state
// machine that gates which free-text input is interpreted as which mutation
// of the relay settings.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/nvoronov/chanrelay/internal/models"
	"github.com/nvoronov/chanrelay/internal/store"
)

const accessDenied = "Access denied."

// Resynchronizer rebuilds the live event subscription after a watch-list
// mutation.
type Resynchronizer interface {
	Resynchronize(watchList []string) error
}

// Resolver checks an identifier against the platform before it is accepted
// into the watch list.
type Resolver interface {
	ResolveEntity(ctx context.Context, identifier string) (models.Entity, error)
}

// History records administrative mutations and serves the history view.
type History interface {
	Append(ctx context.Context, e models.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}

// UI renders menus and plain replies into the admin's chat.
type UI interface {
	RenderMenu(ctx context.Context, chatID int64, m Menu) error
	Reply(ctx context.Context, chatID int64, text string) error
}

// Menu is one rendered keyboard.
type Menu struct {
	ID      string
	Text    string
	Buttons [][]Button
}

// Button is one pressable menu entry; Data comes back via HandleCallback.
type Button struct {
	Label string
	Data  string
}

type state int

const (
	stateIdle state = iota
	stateAwaitUser
	stateAwaitChannel
	stateAwaitText
	stateAwaitSelect
)

// session is the conversational state of one admin. Never persisted.
type session struct {
	state    state
	category string          // list the awaited input mutates
	pending  map[string]bool // multi-select toggles
}

func (s *session) reset() {
	s.state = stateIdle
	s.category = ""
	s.pending = nil
}

// Manager routes admin messages and menu callbacks through the state machine.
// One mutation is in flight at a time across all admins.
type Manager struct {
	mu       sync.Mutex
	store    *store.Store
	history  History
	registry Resynchronizer
	resolver Resolver
	ui       UI
	admins   map[int64]struct{}
	sessions map[int64]*session
}

func New(st *store.Store, hist History, registry Resynchronizer, resolver Resolver, ui UI, adminIDs []int64) *Manager {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Manager{
		store:    st,
		history:  hist,
		registry: registry,
		resolver: resolver,
		ui:       ui,
		admins:   admins,
		sessions: make(map[int64]*session),
	}
}

// authorized is the single gate every mutating entry point goes through. The
// acting identity is re-checked per message, never cached in the session.
func (m *Manager) authorized(userID int64) bool {
	_, ok := m.admins[userID]
	return ok
}

// session returns the caller's conversational state, creating it on first
// interaction. Caller holds m.mu.
func (m *Manager) session(userID int64) *session {
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{}
		m.sessions[userID] = s
	}
	return s
}

// HandleMessage consumes one free-text message from a private chat.
func (m *Manager) HandleMessage(ctx context.Context, userID, chatID int64, text string) {
	if !m.authorized(userID) {
		m.reply(ctx, chatID, accessDenied)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session(userID)
	text = strings.TrimSpace(text)

	if text == "/cancel" && sess.state != stateIdle {
		sess.reset()
		m.reply(ctx, chatID, "Cancelled.")
		m.showMainMenu(ctx, chatID)
		return
	}

	switch sess.state {
	case stateAwaitUser:
		m.finishAddSubscriber(ctx, chatID, sess, text)
	case stateAwaitChannel:
		m.finishAddChannels(ctx, chatID, sess, text)
	case stateAwaitText:
		m.finishSetTemplate(ctx, chatID, sess, text)
	default:
		m.showMainMenu(ctx, chatID)
	}
}

// finishAddSubscriber applies the AwaitingUser input. Input without the @
// sigil re-prompts and keeps the state.
func (m *Manager) finishAddSubscriber(ctx context.Context, chatID int64, sess *session, input string) {
	if !strings.HasPrefix(input, "@") || len(input) < 2 {
		m.reply(ctx, chatID, "A subscriber must be an @username. Try again or send /cancel.")
		return
	}

	id := store.Normalize(input)
	err := m.store.Update(func(s *store.Settings) error {
		return s.AddSubscriber(id)
	})
	sess.reset()

	switch {
	case errors.Is(err, store.ErrAlreadyPresent):
		m.reply(ctx, chatID, fmt.Sprintf("%s is already a subscriber.", id))
	case err != nil:
		slog.Error("add subscriber failed", "subscriber", id, "err", err)
		m.reply(ctx, chatID, "Could not save the change: "+err.Error())
	default:
		m.appendHistory(ctx, models.HistoryEntry{
			Action:   models.ActionAdd,
			Category: models.CategorySubscribers,
			Items:    []string{id},
		})
		m.reply(ctx, chatID, fmt.Sprintf("Added subscriber %s.", id))
	}
}

// finishAddChannels applies the AwaitingChannel input: a comma-separated list
// processed item by item. One bad item does not abort the rest; the admin
// gets an itemized report and history records only the items that made it in.
func (m *Manager) finishAddChannels(ctx context.Context, chatID int64, sess *session, input string) {
	var added, report []string

	for _, raw := range strings.Split(input, ",") {
		id := store.Normalize(raw)
		if id == "" {
			continue
		}

		entity, err := m.resolver.ResolveEntity(ctx, id)
		if err != nil {
			report = append(report, fmt.Sprintf("%s: cannot resolve", id))
			continue
		}
		if !entity.IsChannel {
			report = append(report, fmt.Sprintf("%s: not a channel or group", id))
			continue
		}

		canonical := canonicalSource(entity, id)
		err = m.store.Update(func(s *store.Settings) error {
			return s.AddChannel(canonical)
		})
		switch {
		case errors.Is(err, store.ErrAlreadyPresent):
			report = append(report, fmt.Sprintf("%s: already watched", canonical))
		case err != nil:
			slog.Error("add channel failed", "channel", canonical, "err", err)
			report = append(report, fmt.Sprintf("%s: save failed", canonical))
		default:
			added = append(added, canonical)
			report = append(report, fmt.Sprintf("added %s", canonical))
		}
	}

	sess.reset()

	if len(report) == 0 {
		m.reply(ctx, chatID, "Nothing to add.")
		return
	}
	if len(added) > 0 {
		if err := m.registry.Resynchronize(m.store.Snapshot().Channels); err != nil {
			report = append(report, "warning: resubscription failed: "+err.Error())
		}
		m.appendHistory(ctx, models.HistoryEntry{
			Action:   models.ActionAdd,
			Category: models.CategoryChannels,
			Items:    added,
		})
	}
	m.reply(ctx, chatID, strings.Join(report, "\n"))
}

// finishSetTemplate applies the AwaitingText input. A single dash clears the
// template.
func (m *Manager) finishSetTemplate(ctx context.Context, chatID int64, sess *session, input string) {
	next := input
	if next == "-" {
		next = ""
	}

	before := m.store.Snapshot().Template
	err := m.store.Update(func(s *store.Settings) error {
		s.Template = next
		return nil
	})
	sess.reset()

	if err != nil {
		slog.Error("set template failed", "err", err)
		m.reply(ctx, chatID, "Could not save the change: "+err.Error())
		return
	}
	m.appendHistory(ctx, models.HistoryEntry{
		Action:   models.ActionUpdate,
		Category: models.CategoryTemplate,
		Before:   before,
		After:    next,
	})
	if next == "" {
		m.reply(ctx, chatID, "Template cleared.")
	} else {
		m.reply(ctx, chatID, "Template updated.")
	}
}

// canonicalSource stores public sources as @username and private ones by
// numeric ID.
func canonicalSource(entity models.Entity, fallback string) string {
	if entity.HasPublicHandle() {
		return "@" + strings.ToLower(entity.Username)
	}
	if entity.ID != 0 {
		return strconv.FormatInt(entity.ID, 10)
	}
	return fallback
}

func (m *Manager) appendHistory(ctx context.Context, e models.HistoryEntry) {
	if err := m.history.Append(ctx, e); err != nil {
		// the audit log is not load bearing, keep going
		slog.Warn("history append failed", "action", e.Action, "category", e.Category, "err", err)
	}
}

func (m *Manager) reply(ctx context.Context, chatID int64, text string) {
	if err := m.ui.Reply(ctx, chatID, text); err != nil {
		slog.Warn("reply failed", "chat", chatID, "err", err)
	}
}
