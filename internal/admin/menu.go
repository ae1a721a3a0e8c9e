package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nvoronov/chanrelay/internal/models"
	"github.com/nvoronov/chanrelay/internal/store"
)

// Callback data values understood by HandleCallback.
const (
	cbMainMenu      = "menu:main"
	cbAddSubscriber = "sub:add"
	cbRemoveSubs    = "sub:remove"
	cbAddChannels   = "chan:add"
	cbRemoveChans   = "chan:remove"
	cbClearChannels = "chan:clear"
	cbSetTemplate   = "tmpl:set"
	cbHistory       = "history"
	cbModePrefix    = "mode:"
	cbSelectPrefix  = "sel:"
	cbSelectConfirm = "sel:confirm"
	cbSelectCancel  = "sel:cancel"
)

// HandleCallback consumes one menu button press.
func (m *Manager) HandleCallback(ctx context.Context, userID, chatID int64, data string) {
	if !m.authorized(userID) {
		m.reply(ctx, chatID, accessDenied)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session(userID)

	switch {
	case data == cbMainMenu:
		sess.reset()
		m.showMainMenu(ctx, chatID)

	case data == cbAddSubscriber:
		sess.reset()
		sess.state = stateAwaitUser
		m.reply(ctx, chatID, "Send the @username to add as a subscriber, or /cancel.")

	case data == cbAddChannels:
		sess.reset()
		sess.state = stateAwaitChannel
		m.reply(ctx, chatID, "Send channel usernames or IDs, comma-separated, or /cancel.")

	case data == cbSetTemplate:
		sess.reset()
		sess.state = stateAwaitText
		current := m.store.Snapshot().Template
		if current == "" {
			current = "(empty)"
		}
		m.reply(ctx, chatID, fmt.Sprintf(
			"Current template:\n%s\n\nSend the new template text. Placeholders: %s, %s. Send - to clear, /cancel to keep.",
			current, "{channel_name}", "{post_link}"))

	case data == cbRemoveSubs:
		m.beginSelection(ctx, chatID, sess, models.CategorySubscribers)

	case data == cbRemoveChans:
		m.beginSelection(ctx, chatID, sess, models.CategoryChannels)

	case data == cbClearChannels:
		m.clearChannels(ctx, chatID, sess)

	case data == cbHistory:
		m.showHistory(ctx, chatID)

	case data == cbSelectConfirm:
		m.confirmSelection(ctx, chatID, sess)

	case data == cbSelectCancel:
		sess.reset()
		m.reply(ctx, chatID, "Cancelled.")
		m.showMainMenu(ctx, chatID)

	case strings.HasPrefix(data, cbModePrefix):
		m.setMode(ctx, chatID, sess, strings.TrimPrefix(data, cbModePrefix))

	case strings.HasPrefix(data, cbSelectPrefix):
		m.toggleSelection(ctx, chatID, sess, strings.TrimPrefix(data, cbSelectPrefix))

	default:
		slog.Debug("unknown callback", "data", data)
	}
}

func (m *Manager) showMainMenu(ctx context.Context, chatID int64) {
	s := m.store.Snapshot()

	template := s.Template
	if template == "" {
		template = "(empty)"
	}
	text := fmt.Sprintf(
		"Channel relay\n\nWatched channels: %s\nSubscribers: %s\nMode: %s\nTemplate: %s",
		orNone(s.Channels), orNone(s.Subscribers), s.Mode, template)

	menu := Menu{
		ID:   "main",
		Text: text,
		Buttons: [][]Button{
			{{Label: "Add channels", Data: cbAddChannels}, {Label: "Remove channels", Data: cbRemoveChans}},
			{{Label: "Remove all channels", Data: cbClearChannels}},
			{{Label: "Add subscriber", Data: cbAddSubscriber}, {Label: "Remove subscribers", Data: cbRemoveSubs}},
			{{Label: "Set template", Data: cbSetTemplate}},
			{{Label: "Mode: link", Data: "mode:link"}, {Label: "forward", Data: "mode:forward"}, {Label: "text", Data: "mode:text"}},
			{{Label: "History", Data: cbHistory}},
		},
	}
	if err := m.ui.RenderMenu(ctx, chatID, menu); err != nil {
		slog.Warn("render menu failed", "chat", chatID, "err", err)
	}
}

// beginSelection enters the multi-select removal state for one list.
func (m *Manager) beginSelection(ctx context.Context, chatID int64, sess *session, category string) {
	s := m.store.Snapshot()
	items := s.Channels
	if category == models.CategorySubscribers {
		items = s.Subscribers
	}
	if len(items) == 0 {
		m.reply(ctx, chatID, "Nothing to remove.")
		return
	}

	sess.reset()
	sess.state = stateAwaitSelect
	sess.category = category
	sess.pending = make(map[string]bool)
	m.renderSelection(ctx, chatID, sess, items)
}

// toggleSelection flips one item in the pending set without leaving the
// state.
func (m *Manager) toggleSelection(ctx context.Context, chatID int64, sess *session, item string) {
	if sess.state != stateAwaitSelect {
		return
	}
	sess.pending[item] = !sess.pending[item]

	s := m.store.Snapshot()
	items := s.Channels
	if sess.category == models.CategorySubscribers {
		items = s.Subscribers
	}
	m.renderSelection(ctx, chatID, sess, items)
}

func (m *Manager) renderSelection(ctx context.Context, chatID int64, sess *session, items []string) {
	buttons := make([][]Button, 0, len(items)+1)
	for _, item := range items {
		label := item
		if sess.pending[item] {
			label = "[x] " + item
		}
		buttons = append(buttons, []Button{{Label: label, Data: cbSelectPrefix + item}})
	}
	buttons = append(buttons, []Button{
		{Label: "Confirm", Data: cbSelectConfirm},
		{Label: "Cancel", Data: cbSelectCancel},
	})

	menu := Menu{
		ID:      "select:" + sess.category,
		Text:    "Pick the entries to remove, then confirm.",
		Buttons: buttons,
	}
	if err := m.ui.RenderMenu(ctx, chatID, menu); err != nil {
		slog.Warn("render menu failed", "chat", chatID, "err", err)
	}
}

// confirmSelection applies the pending removal as one batch: persist, then
// resynchronize when the watch list changed, then one history entry covering
// all removed items.
func (m *Manager) confirmSelection(ctx context.Context, chatID int64, sess *session) {
	if sess.state != stateAwaitSelect {
		return
	}

	var selected []string
	for item, on := range sess.pending {
		if on {
			selected = append(selected, item)
		}
	}
	if len(selected) == 0 {
		m.reply(ctx, chatID, "Nothing selected.")
		return
	}
	sort.Strings(selected)

	category := sess.category
	var removed []string
	err := m.store.Update(func(s *store.Settings) error {
		if category == models.CategoryChannels {
			removed = s.RemoveChannels(selected)
		} else {
			removed = s.RemoveSubscribers(selected)
		}
		return nil
	})
	sess.reset()

	if err != nil {
		slog.Error("batch remove failed", "category", category, "err", err)
		m.reply(ctx, chatID, "Could not save the change: "+err.Error())
		return
	}
	if len(removed) == 0 {
		m.reply(ctx, chatID, "Selected entries were not found.")
		return
	}

	report := fmt.Sprintf("Removed %s.", strings.Join(removed, ", "))
	if category == models.CategoryChannels {
		if err := m.registry.Resynchronize(m.store.Snapshot().Channels); err != nil {
			report += "\nwarning: resubscription failed: " + err.Error()
		}
	}
	m.appendHistory(ctx, models.HistoryEntry{
		Action:   models.ActionRemove,
		Category: category,
		Items:    removed,
	})
	m.reply(ctx, chatID, report)
	m.showMainMenu(ctx, chatID)
}

func (m *Manager) clearChannels(ctx context.Context, chatID int64, sess *session) {
	sess.reset()

	var removed []string
	err := m.store.Update(func(s *store.Settings) error {
		removed = s.ClearChannels()
		return nil
	})
	if err != nil {
		slog.Error("clear channels failed", "err", err)
		m.reply(ctx, chatID, "Could not save the change: "+err.Error())
		return
	}
	if len(removed) == 0 {
		m.reply(ctx, chatID, "The watch list is already empty.")
		return
	}

	report := "Stopped watching all channels."
	if err := m.registry.Resynchronize(nil); err != nil {
		report += "\nwarning: resubscription failed: " + err.Error()
	}
	m.appendHistory(ctx, models.HistoryEntry{
		Action:   models.ActionRemoveAll,
		Category: models.CategoryChannels,
		Items:    removed,
	})
	m.reply(ctx, chatID, report)
}

func (m *Manager) setMode(ctx context.Context, chatID int64, sess *session, value string) {
	sess.reset()

	mode, err := models.ParseRenderMode(value)
	if err != nil {
		m.reply(ctx, chatID, "Unknown mode.")
		return
	}

	before := m.store.Snapshot().Mode
	if before == mode {
		m.reply(ctx, chatID, fmt.Sprintf("Mode is already %s.", mode))
		return
	}

	if err := m.store.Update(func(s *store.Settings) error {
		s.Mode = mode
		return nil
	}); err != nil {
		slog.Error("set mode failed", "err", err)
		m.reply(ctx, chatID, "Could not save the change: "+err.Error())
		return
	}
	m.appendHistory(ctx, models.HistoryEntry{
		Action:   models.ActionUpdate,
		Category: models.CategoryMode,
		Before:   string(before),
		After:    string(mode),
	})
	m.reply(ctx, chatID, fmt.Sprintf("Mode set to %s.", mode))
}

func (m *Manager) showHistory(ctx context.Context, chatID int64) {
	entries, err := m.history.Recent(ctx, 10)
	if err != nil {
		slog.Warn("history read failed", "err", err)
		m.reply(ctx, chatID, "Could not read the history.")
		return
	}
	if len(entries) == 0 {
		m.reply(ctx, chatID, "No history yet.")
		return
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Action, e.Category)
		switch {
		case len(e.Items) > 0:
			line += ": " + strings.Join(e.Items, ", ")
		case e.Action == models.ActionUpdate:
			line += fmt.Sprintf(": %q -> %q", e.Before, e.After)
		}
		lines = append(lines, line)
	}
	m.reply(ctx, chatID, strings.Join(lines, "\n"))
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
