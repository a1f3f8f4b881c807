package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkraev/registrar-bot/internal/conversation"
	"github.com/mkraev/registrar-bot/internal/sysutil"
)

// Sender delivers conversation replies over the Bot API. For private chats
// the chat id equals the user's external id, so the core never needs to know
// about chats.
type Sender struct {
	API *Client
	Log zerolog.Logger
}

// Send renders the reply's menu descriptor into Bot API markup and posts it.
func (s *Sender) Send(ctx context.Context, externalID int64, r conversation.Reply) error {
	return s.API.SendMessage(ctx, externalID, r.Text, markupFor(r.Menu))
}

// markupFor translates the core's opaque menu descriptor into the concrete
// keyboard type the Bot API expects.
func markupFor(m *conversation.Menu) any {
	switch {
	case m == nil:
		return nil
	case len(m.Inline) > 0:
		rows := make([][]InlineKeyboardButton, 0, len(m.Inline))
		for _, row := range m.Inline {
			btns := make([]InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				btns = append(btns, InlineKeyboardButton{
					Text:         b.Label,
					CallbackData: b.Action,
					URL:          b.URL,
				})
			}
			rows = append(rows, btns)
		}
		return InlineKeyboardMarkup{InlineKeyboard: rows}
	case len(m.Reply) > 0:
		rows := make([][]KeyboardButton, 0, len(m.Reply))
		for _, row := range m.Reply {
			btns := make([]KeyboardButton, 0, len(row))
			for _, b := range row {
				btns = append(btns, KeyboardButton{
					Text:           b.Label,
					RequestContact: b.RequestContact,
				})
			}
			rows = append(rows, btns)
		}
		return ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true, OneTimeKeyboard: m.OneTime}
	case m.RemoveReply:
		return ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}

// parseCommand extracts the command keyword from message text: "/start" and
// "/start@my_bot arg" both yield "start". The second return reports whether
// the text is a command at all. Keywords stay case-sensitive; only the bot
// mention is matched loosely.
func parseCommand(text, botUsername string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	keyword := strings.TrimPrefix(text, "/")
	if i := strings.IndexAny(keyword, " \t\n"); i >= 0 {
		keyword = keyword[:i]
	}
	if at := strings.Index(keyword, "@"); at >= 0 {
		mention := keyword[at+1:]
		if botUsername != "" && !strings.EqualFold(mention, botUsername) {
			return "", false
		}
		keyword = keyword[:at]
	}
	if keyword == "" {
		return "", false
	}
	return keyword, true
}

// EventFromUpdate maps one Bot API update onto a conversation event. The
// second return is the callback query id to acknowledge ("" when none); the
// third reports whether the update produced an event at all.
func EventFromUpdate(u Update, botUsername string) (conversation.Event, string, bool) {
	if cq := u.CallbackQuery; cq != nil && cq.From != nil && !cq.From.IsBot {
		return conversation.Event{
			ExternalID:  cq.From.ID,
			DisplayName: DisplayName(cq.From),
			Kind:        conversation.KindAction,
			Action:      cq.Data,
		}, cq.ID, true
	}

	msg := u.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return conversation.Event{}, "", false
	}
	if msg.Chat != nil && msg.Chat.Type != "" && msg.Chat.Type != "private" {
		// One-on-one bot: group traffic is ignored.
		return conversation.Event{}, "", false
	}

	ev := conversation.Event{
		ExternalID:  msg.From.ID,
		DisplayName: DisplayName(msg.From),
	}
	switch {
	case msg.Contact != nil:
		ev.Kind = conversation.KindContact
		ev.Contact = &conversation.Contact{
			Phone:     msg.Contact.PhoneNumber,
			FirstName: msg.Contact.FirstName,
			LastName:  msg.Contact.LastName,
		}
	default:
		if keyword, ok := parseCommand(msg.Text, botUsername); ok {
			ev.Kind = conversation.KindCommand
			ev.Command = keyword
		} else {
			if strings.TrimSpace(msg.Text) == "" {
				// Stickers, photos and the like carry no text to consume.
				return conversation.Event{}, "", false
			}
			ev.Kind = conversation.KindText
			ev.Text = msg.Text
		}
	}
	return ev, "", true
}

// Poller drives the long-poll loop: fetch updates, map them to events, hand
// them to the dispatcher. Delivery of replies happens on the dispatcher's
// workers, never here, so a slow user cannot stall polling.
type Poller struct {
	API         *Client
	Dispatcher  *conversation.Dispatcher
	Log         zerolog.Logger
	PollTimeout time.Duration
}

// Run polls until ctx is cancelled. The getMe probe fails fast on a bad
// token; transient getUpdates errors are logged and retried with a short
// pause.
func (p *Poller) Run(ctx context.Context) error {
	timeout := p.PollTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	me, err := p.API.GetMe(ctx)
	if err != nil {
		return err
	}
	botUsername := sysutil.FirstNonEmpty(me.Username)
	p.Log.Info().
		Str("bot_username", botUsername).
		Int64("bot_id", me.ID).
		Dur("poll_timeout", timeout).
		Msg("telegram polling started")

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, next, err := p.API.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !IsPollTimeout(err) {
				p.Log.Warn().Err(err).Msg("getUpdates failed")
				time.Sleep(1 * time.Second)
			}
			continue
		}
		offset = next

		for _, u := range updates {
			ev, callbackID, ok := EventFromUpdate(u, botUsername)
			if !ok {
				p.Log.Debug().Int64("update_id", u.UpdateID).Msg("update ignored")
				continue
			}
			if callbackID != "" {
				if err := p.API.AnswerCallbackQuery(ctx, callbackID, ""); err != nil {
					p.Log.Warn().Err(err).Msg("answerCallbackQuery failed")
				}
			}
			p.Dispatcher.Dispatch(ev)
		}
	}
}
