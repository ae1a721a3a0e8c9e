// Package telegram adapts the Bot API to the collaborator surfaces the core
// consumes: the event source watched by the subscription registry, the
// transport used by the dispatcher and the menu renderer used by the admin
// state machine.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nvoronov/chanrelay/internal/admin"
	"github.com/nvoronov/chanrelay/internal/models"
	"github.com/nvoronov/chanrelay/internal/watch"
)

// CommandHandler consumes admin-facing updates.
type CommandHandler interface {
	HandleMessage(ctx context.Context, userID, chatID int64, text string)
	HandleCallback(ctx context.Context, userID, chatID int64, data string)
}

// PostHandler consumes one qualifying channel post.
type PostHandler func(ctx context.Context, post models.Post)

// subscription is one live filter over inbound channel posts. Once closed it
// matches nothing, so a torn-down subscription delivers no further events.
type subscription struct {
	sources map[string]struct{}
	closed  atomic.Bool
}

func (s *subscription) Sources() []string {
	out := make([]string, 0, len(s.sources))
	for src := range s.sources {
		out = append(out, src)
	}
	return out
}

func (s *subscription) matches(post models.Post) bool {
	if s.closed.Load() {
		return false
	}
	if post.SourceName != "" {
		if _, ok := s.sources["@"+strings.ToLower(post.SourceName)]; ok {
			return true
		}
	}
	_, ok := s.sources[strconv.FormatInt(post.SourceID, 10)]
	return ok
}

// Client is the long-polling Bot API client.
type Client struct {
	api         *tgbotapi.BotAPI
	pollTimeout int

	commands CommandHandler
	posts    PostHandler

	mu     sync.RWMutex
	filter *subscription
}

func New(token string, pollTimeout int) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Client{api: api, pollTimeout: pollTimeout}, nil
}

// Bind wires the update sinks. Must be called before Run.
func (c *Client) Bind(commands CommandHandler, posts PostHandler) {
	c.commands = commands
	c.posts = posts
}

// Username returns the bot's own account name.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Subscribe installs a post filter scoped to exactly the given sources and
// returns its handle. Implements watch.EventSource.
func (c *Client) Subscribe(sources []string) (watch.Handle, error) {
	sub := &subscription{sources: make(map[string]struct{}, len(sources))}
	for _, src := range sources {
		sub.sources[strings.ToLower(src)] = struct{}{}
	}

	c.mu.Lock()
	c.filter = sub
	c.mu.Unlock()
	return sub, nil
}

// Unsubscribe invalidates a handle returned by Subscribe.
func (c *Client) Unsubscribe(h watch.Handle) {
	sub, ok := h.(*subscription)
	if !ok {
		return
	}
	sub.closed.Store(true)

	c.mu.Lock()
	if c.filter == sub {
		c.filter = nil
	}
	c.mu.Unlock()
}

// SendMessage delivers plain text to a recipient addressed by @username.
func (c *Client) SendMessage(ctx context.Context, recipient, text string) error {
	msg := tgbotapi.NewMessageToChannel(recipient, text)
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}
	return nil
}

// ForwardMessage forwards the original post verbatim.
func (c *Client) ForwardMessage(ctx context.Context, recipient string, post models.Post) error {
	fwd := tgbotapi.ForwardConfig{
		BaseChat:   tgbotapi.BaseChat{ChannelUsername: recipient},
		FromChatID: post.SourceID,
		MessageID:  post.MessageID,
	}
	if _, err := c.api.Send(fwd); err != nil {
		return fmt.Errorf("forward to %s: %w", recipient, err)
	}
	return nil
}

// ResolveEntity looks an identifier up on the platform.
func (c *Client) ResolveEntity(ctx context.Context, identifier string) (models.Entity, error) {
	var cfg tgbotapi.ChatInfoConfig
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		cfg.ChatConfig = tgbotapi.ChatConfig{ChatID: id}
	} else {
		if !strings.HasPrefix(identifier, "@") {
			identifier = "@" + identifier
		}
		cfg.ChatConfig = tgbotapi.ChatConfig{SuperGroupUsername: identifier}
	}

	chat, err := c.api.GetChat(cfg)
	if err != nil {
		return models.Entity{}, fmt.Errorf("resolve %s: %w", identifier, err)
	}
	return models.Entity{
		ID:        chat.ID,
		Title:     chat.Title,
		Username:  chat.UserName,
		IsChannel: chat.IsChannel() || chat.IsSuperGroup(),
	}, nil
}

// Reply sends plain text into a chat. Implements the admin UI surface.
func (c *Client) Reply(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("reply to %d: %w", chatID, err)
	}
	return nil
}

// RenderMenu sends a menu as an inline keyboard.
func (c *Client) RenderMenu(ctx context.Context, chatID int64, m admin.Menu) error {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Buttons))
	for _, row := range m.Buttons {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}

	msg := tgbotapi.NewMessage(chatID, m.Text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("render menu %s: %w", m.ID, err)
	}
	return nil
}

// Run polls for updates until ctx is cancelled. Updates are handled one at a
// time; channel posts and admin commands interleave at send boundaries only.
func (c *Client) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	updates := c.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.ChannelPost != nil:
		c.handleChannelPost(ctx, update.ChannelPost)

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if _, err := c.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			slog.Debug("callback ack failed", "err", err)
		}
		if cb.Message != nil {
			c.commands.HandleCallback(ctx, cb.From.ID, cb.Message.Chat.ID, cb.Data)
		}

	case update.Message != nil && update.Message.Chat.IsPrivate() && update.Message.From != nil:
		c.commands.HandleMessage(ctx, update.Message.From.ID, update.Message.Chat.ID, update.Message.Text)
	}
}

func (c *Client) handleChannelPost(ctx context.Context, msg *tgbotapi.Message) {
	c.mu.RLock()
	sub := c.filter
	c.mu.RUnlock()
	if sub == nil {
		return
	}

	post := models.Post{
		SourceID:    msg.Chat.ID,
		SourceName:  msg.Chat.UserName,
		SourceTitle: msg.Chat.Title,
		MessageID:   msg.MessageID,
		Text:        messageText(msg),
		PostedAt:    msg.Time(),
	}
	if !sub.matches(post) {
		return
	}
	c.posts(ctx, post)
}

func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}
