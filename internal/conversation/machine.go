// Package conversation – Machine
//
// This file implements the finite state machine that routes one inbound
// event to its owning handler. Dispatch priority is fixed: contact shares
// are accepted in any state, commands and button actions always match, and
// free text goes to the state-scoped handler when the sender is not idle.
//
// Every recoverable failure yields exactly one reply describing the problem;
// persistence failures are logged and answered with a generic failure reply
// so one user's storage trouble never leaks into another user's dispatch.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mkraev/registrar-bot/internal/phone"
	"github.com/mkraev/registrar-bot/internal/services"
	"github.com/mkraev/registrar-bot/internal/sysutil"
)

// allNotesRenderLimit caps the rendered cross-user listing. The archive
// itself is unbounded; this is a presentation cut, not a query limit.
const allNotesRenderLimit = 3500

const (
	msgGreeting        = "I am the registrar bot!"
	msgAskNote         = "Please enter your note text:"
	msgNoteSaved       = "✅ Your note has been saved!"
	msgNotRegistered   = "You are not registered yet."
	msgAskPhoneManual  = "Type your phone number:"
	msgInvalidPhone    = "That does not look like a phone number. Try again:"
	msgChooseNext      = "Choose what to do next:"
	msgAccountDeleted  = "Your account has been deleted. Send /start to register again."
	msgUnknownCommand  = "Unknown command."
	msgUnknownAction   = "That button is no longer supported."
	msgIdleText        = "I was not expecting a message. Send /start for the menu."
	msgStorageTrouble  = "Something went wrong on our side. Please try again later."
	msgNoUsers         = "No users found."
	msgNoNotes         = "No notes yet."
	msgLinks           = "Media:"
	msgShareOrType     = "Please share your phone number:"
	msgOrTypeManually  = "Or enter it manually:"
	msgRegisterPrompt  = "Hi, %s. Shall we get you registered?"
	msgAlreadyRegAs    = "Hello! You are already registered as %s"
	msgFarewell        = "Goodbye, %s!"
	msgPhoneRegistered = "Thanks, %s! Your phone number: %s"
)

// Machine owns the conversation state transitions. It consults the state
// store for the sender's current state, invokes the user and archive
// services as needed, and emits reply instructions for the transport.
type Machine struct {
	Users   *services.UserService
	Archive *services.ArchiveService
	States  *StateStore
	Log     zerolog.Logger
}

// NewMachine wires a machine over its collaborators.
func NewMachine(users *services.UserService, archive *services.ArchiveService, states *StateStore, log zerolog.Logger) *Machine {
	return &Machine{Users: users, Archive: archive, States: states, Log: log}
}

// Handle consumes one inbound event and returns the replies to send. It
// never returns an error: failures are translated into reply text here and
// logged with the sender's external id.
func (m *Machine) Handle(ctx context.Context, ev Event) []Reply {
	switch ev.Kind {
	case KindContact:
		// A contact share is accepted regardless of current state.
		return m.handleContact(ctx, ev)
	case KindCommand:
		return m.handleCommand(ctx, ev)
	case KindAction:
		return m.handleAction(ctx, ev)
	case KindText:
		return m.handleText(ctx, ev)
	default:
		m.Log.Warn().Int64("external_id", ev.ExternalID).Str("kind", string(ev.Kind)).Msg("unhandled event kind")
		return []Reply{{Text: msgUnknownCommand}}
	}
}

// --- state-scoped text handling ---

func (m *Machine) handleText(ctx context.Context, ev Event) []Reply {
	switch m.States.Get(ev.ExternalID) {
	case StateAwaitingNoteText:
		return m.consumeNoteText(ctx, ev)
	case StateAwaitingManualPhone:
		return m.consumeManualPhone(ctx, ev)
	default:
		return []Reply{{Text: msgIdleText}}
	}
}

func (m *Machine) consumeNoteText(ctx context.Context, ev Event) []Reply {
	_, err := m.Archive.Append(ctx, ev.ExternalID, ev.Text)
	switch {
	case errors.Is(err, services.ErrNotRegistered):
		// Abort the pending note: there is no profile to attach it to.
		m.States.Set(ev.ExternalID, StateIdle)
		return []Reply{{Text: msgNotRegistered}}
	case errors.Is(err, services.ErrEmptyNote):
		return []Reply{{Text: msgAskNote}}
	case err != nil:
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("note append failed")
		m.States.Set(ev.ExternalID, StateIdle)
		return []Reply{{Text: msgStorageTrouble}}
	}
	m.States.Set(ev.ExternalID, StateIdle)
	return []Reply{{Text: msgNoteSaved, Menu: MainMenu()}}
}

func (m *Machine) consumeManualPhone(ctx context.Context, ev Event) []Reply {
	canonical, err := phone.Normalize(ev.Text)
	if err != nil {
		// Unbounded retry: the state stays put, one error reply goes out.
		return []Reply{{Text: msgInvalidPhone}}
	}
	user, err := m.Users.Register(ctx, ev.ExternalID, ev.DisplayName, &canonical)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("manual registration failed")
		m.States.Set(ev.ExternalID, StateIdle)
		return []Reply{{Text: msgStorageTrouble}}
	}
	m.States.Set(ev.ExternalID, StateIdle)
	return []Reply{
		{Text: fmt.Sprintf(msgPhoneRegistered, user.DisplayName, canonical)},
		{Text: msgChooseNext, Menu: MainMenu()},
	}
}

// --- contact share ---

func (m *Machine) handleContact(ctx context.Context, ev Event) []Reply {
	if ev.Contact == nil || strings.TrimSpace(ev.Contact.Phone) == "" {
		m.Log.Warn().Int64("external_id", ev.ExternalID).Msg("contact event without phone")
		return []Reply{{Text: msgInvalidPhone}}
	}
	canonical, err := phone.Normalize(ev.Contact.Phone)
	if err != nil {
		// Platform contact cards carry digits; treat residue as user error.
		return []Reply{{Text: msgInvalidPhone}}
	}

	name := contactDisplayName(ev)
	user, err := m.Users.Register(ctx, ev.ExternalID, name, &canonical)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("contact registration failed")
		return []Reply{{Text: msgStorageTrouble}}
	}

	// Clear any pending state: registration supersedes whatever was awaited.
	m.States.Set(ev.ExternalID, StateIdle)
	return []Reply{
		{Text: fmt.Sprintf(msgPhoneRegistered, user.DisplayName, canonical), Menu: RemoveKeyboardMenu()},
		{Text: msgChooseNext, Menu: MainMenu()},
	}
}

// contactDisplayName prefers the sender's profile name and falls back to the
// shared card's name, title-casing the card fields (they often arrive
// lowercase).
func contactDisplayName(ev Event) string {
	caser := cases.Title(language.Und, cases.NoLower)
	var fromCard string
	if ev.Contact != nil {
		fromCard = strings.TrimSpace(strings.TrimSpace(caser.String(ev.Contact.FirstName)) + " " + strings.TrimSpace(caser.String(ev.Contact.LastName)))
	}
	return sysutil.FirstNonEmpty(ev.DisplayName, fromCard, "Unknown")
}

// --- button actions ---

func (m *Machine) handleAction(ctx context.Context, ev Event) []Reply {
	switch ev.Action {
	case ActionEntry:
		return m.actionEntry(ctx, ev)
	case ActionExit:
		// Purely conversational close; state unchanged.
		return []Reply{{Text: fmt.Sprintf(msgFarewell, sysutil.FirstNonEmpty(ev.DisplayName, "friend"))}}
	case ActionRegister:
		// Offer both registration paths; state unchanged.
		return []Reply{
			{Text: msgShareOrType, Menu: SharePhoneMenu()},
			{Text: msgOrTypeManually, Menu: ManualPhoneMenu()},
		}
	case ActionSendNote:
		m.States.Set(ev.ExternalID, StateAwaitingNoteText)
		return []Reply{{Text: msgAskNote}}
	case ActionManualPhone:
		m.States.Set(ev.ExternalID, StateAwaitingManualPhone)
		return []Reply{{Text: msgAskPhoneManual}}
	case ActionDelete:
		return m.actionDelete(ctx, ev)
	default:
		m.Log.Warn().Int64("external_id", ev.ExternalID).Str("action", ev.Action).Msg("unknown action id")
		return []Reply{{Text: msgUnknownAction}}
	}
}

func (m *Machine) actionEntry(ctx context.Context, ev Event) []Reply {
	user, err := m.Users.Get(ctx, ev.ExternalID)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("profile lookup failed")
		return []Reply{{Text: msgStorageTrouble}}
	}
	if user != nil {
		return []Reply{{Text: fmt.Sprintf(msgAlreadyRegAs, user.DisplayName), Menu: MainMenu()}}
	}
	return []Reply{{Text: fmt.Sprintf(msgRegisterPrompt, sysutil.FirstNonEmpty(ev.DisplayName, "there")), Menu: RegisterOfferMenu()}}
}

func (m *Machine) actionDelete(ctx context.Context, ev Event) []Reply {
	removed, err := m.Users.Delete(ctx, ev.ExternalID)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("account delete failed")
		return []Reply{{Text: msgStorageTrouble}}
	}
	m.States.Set(ev.ExternalID, StateIdle)
	if !removed {
		return []Reply{{Text: msgNotRegistered}}
	}
	return []Reply{{Text: msgAccountDeleted}}
}

// --- commands (stateless reads and flow entry points) ---

func (m *Machine) handleCommand(ctx context.Context, ev Event) []Reply {
	switch ev.Command {
	case CmdStart:
		return []Reply{{Text: msgGreeting, Menu: GreetingMenu()}}
	case CmdShowLinks:
		return []Reply{{Text: msgLinks, Menu: LinksMenu()}}
	case CmdListUsers:
		return m.commandListUsers(ctx, ev)
	case CmdShowMyInfo:
		return m.commandShowMyInfo(ctx, ev)
	case CmdListMyNotes:
		return m.commandListMyNotes(ctx, ev)
	case CmdListAllNotes:
		return m.commandListAllNotes(ctx, ev)
	default:
		return []Reply{{Text: msgUnknownCommand}}
	}
}

func (m *Machine) commandListUsers(ctx context.Context, ev Event) []Reply {
	users, err := m.Users.List(ctx)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("user listing failed")
		return []Reply{{Text: msgStorageTrouble}}
	}
	if len(users) == 0 {
		return []Reply{{Text: msgNoUsers}}
	}
	var b strings.Builder
	b.WriteString("👥 Registered users:\n\n")
	for _, u := range users {
		phoneStr := "no phone"
		if u.Phone != nil {
			phoneStr = *u.Phone
		}
		fmt.Fprintf(&b, "🆔 %d\n👤 %s\n📞 %s\n\n", u.ExternalID, u.DisplayName, phoneStr)
	}
	return []Reply{{Text: strings.TrimRight(b.String(), "\n")}}
}

func (m *Machine) commandShowMyInfo(ctx context.Context, ev Event) []Reply {
	user, err := m.Users.Get(ctx, ev.ExternalID)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("profile lookup failed")
		return []Reply{{Text: msgStorageTrouble}}
	}
	if user == nil {
		return []Reply{{Text: msgNotRegistered}}
	}
	phoneStr := "no phone"
	if user.Phone != nil {
		phoneStr = *user.Phone
	}
	return []Reply{{Text: fmt.Sprintf("🧾 Your info:\nName: %s\nPhone: %s", user.DisplayName, phoneStr)}}
}

func (m *Machine) commandListMyNotes(ctx context.Context, ev Event) []Reply {
	user, err := m.Users.Get(ctx, ev.ExternalID)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("profile lookup failed")
		return []Reply{{Text: msgStorageTrouble}}
	}
	if user == nil {
		return []Reply{{Text: msgNotRegistered}}
	}
	notes, err := m.Archive.Recent(ctx, ev.ExternalID, 0)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("note listing failed")
		return []Reply{{Text: msgStorageTrouble}}
	}
	if len(notes) == 0 {
		return []Reply{{Text: msgNoNotes}}
	}
	var b strings.Builder
	b.WriteString("🗒 Your recent notes:\n\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "%s — %s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.Text)
	}
	return []Reply{{Text: strings.TrimRight(b.String(), "\n")}}
}

func (m *Machine) commandListAllNotes(ctx context.Context, ev Event) []Reply {
	notes, err := m.Archive.All(ctx)
	if err != nil {
		m.Log.Error().Err(err).Int64("external_id", ev.ExternalID).Msg("archive listing failed")
		return []Reply{{Text: msgStorageTrouble}}
	}
	if len(notes) == 0 {
		return []Reply{{Text: msgNoNotes}}
	}
	var b strings.Builder
	b.WriteString("🗂 All notes:\n\n")
	for _, n := range notes {
		line := fmt.Sprintf("%s (%s): %s\n", n.OwnerName, n.Note.CreatedAt.Format("2006-01-02 15:04"), n.Note.Text)
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(line) > allNotesRenderLimit {
			b.WriteString("…")
			break
		}
		b.WriteString(line)
	}
	return []Reply{{Text: strings.TrimRight(b.String(), "\n")}}
}
