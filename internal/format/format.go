// Package format turns a channel post into outbound delivery directives.
// Pure functions, no I/O: the dispatcher decides who receives the result.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvoronov/chanrelay/internal/models"
)

// Template placeholders, matching the original notification text format.
const (
	PlaceholderChannel = "{channel_name}"
	PlaceholderLink    = "{post_link}"
)

// Render maps one post onto zero or more directives according to the render
// mode and the configured template.
//
// Link: one message with the substituted template and the post permalink; an
// empty template falls back to a default phrase, never an empty message.
// Forward: the post is forwarded verbatim, plus the template as a standalone
// message when it is non-empty.
// Text: the template alone; an empty template means no notification at all.
func Render(post models.Post, mode models.RenderMode, template string) []models.Directive {
	switch mode {
	case models.ModeForward:
		directives := []models.Directive{{Kind: models.DirectiveForward}}
		if template != "" {
			directives = append(directives, models.Directive{
				Kind: models.DirectiveSend,
				Text: substitute(template, post),
			})
		}
		return directives

	case models.ModeText:
		if template == "" {
			return nil
		}
		return []models.Directive{{
			Kind: models.DirectiveSend,
			Text: substitute(template, post),
		}}

	default: // models.ModeLink
		var text string
		switch {
		case template == "":
			text = fmt.Sprintf("New post in %s\n%s", post.SourceTitle, Permalink(post))
		case strings.Contains(template, PlaceholderLink):
			text = substitute(template, post)
		default:
			text = substitute(template, post) + "\n" + Permalink(post)
		}
		return []models.Directive{{Kind: models.DirectiveSend, Text: text}}
	}
}

// Permalink builds the t.me link for a post. Sources without a public handle
// use the internal /c/<id>/<msg> form, which is always well formed.
func Permalink(post models.Post) string {
	if post.SourceName != "" {
		return fmt.Sprintf("https://t.me/%s/%d", post.SourceName, post.MessageID)
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", internalID(post.SourceID), post.MessageID)
}

// internalID strips the -100 prefix Telegram puts on channel chat IDs.
func internalID(chatID int64) int64 {
	s := strconv.FormatInt(chatID, 10)
	if trimmed, ok := strings.CutPrefix(s, "-100"); ok {
		if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return id
		}
	}
	if chatID < 0 {
		return -chatID
	}
	return chatID
}

func substitute(template string, post models.Post) string {
	return strings.NewReplacer(
		PlaceholderChannel, post.SourceTitle,
		PlaceholderLink, Permalink(post),
	).Replace(template)
}
