package conversation

// EventKind discriminates inbound events as delivered by the transport.
type EventKind string

const (
	// KindCommand is a textual keyword instruction (e.g. "start").
	KindCommand EventKind = "command"
	// KindAction is a menu button press identified by an action id.
	KindAction EventKind = "action"
	// KindText is a plain free-text message.
	KindText EventKind = "text"
	// KindContact is a shared contact card carrying a phone number.
	KindContact EventKind = "contact"
)

// Action ids the core consumes. The transport treats them as opaque button
// payloads; only the strings below have meaning here.
const (
	ActionEntry       = "entry"
	ActionExit        = "exit"
	ActionRegister    = "registration"
	ActionSendNote    = "send"
	ActionDelete      = "delete"
	ActionManualPhone = "enter-phone-manually"
)

// Command keywords (case-sensitive, matched after the transport strips its
// own prefix syntax).
const (
	CmdStart        = "start"
	CmdListUsers    = "list-users"
	CmdShowMyInfo   = "show-my-info"
	CmdShowLinks    = "show-links"
	CmdListMyNotes  = "list-my-notes"
	CmdListAllNotes = "list-all-notes"
)

// Contact is the payload of a contact-share event.
type Contact struct {
	Phone     string
	FirstName string
	LastName  string
}

// Event is one inbound user interaction. Exactly one of Command, Action,
// Text, or Contact is meaningful, selected by Kind.
type Event struct {
	ExternalID  int64
	DisplayName string
	Kind        EventKind

	Command string
	Action  string
	Text    string
	Contact *Contact
}
