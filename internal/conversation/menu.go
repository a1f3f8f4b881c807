package conversation

// Button is one pressable element in a menu descriptor. A button either
// carries an action id, opens a URL, or requests the user's contact card.
type Button struct {
	Label          string
	Action         string
	URL            string
	RequestContact bool
}

// Menu is an opaque keyboard descriptor attached to a reply. The core only
// decides which action ids a menu offers; rendering is the transport's
// concern. Inline rows attach to the message itself, Reply rows replace the
// user's input keyboard, and RemoveReply clears a previously sent one.
type Menu struct {
	Inline      [][]Button
	Reply       [][]Button
	RemoveReply bool
	OneTime     bool
}

// Reply is one outbound message instruction produced by the machine.
type Reply struct {
	Text string
	Menu *Menu
}

// GreetingMenu is offered in response to the start command.
func GreetingMenu() *Menu {
	return &Menu{Inline: [][]Button{
		{{Label: "Hello", Action: ActionEntry}},
		{{Label: "Bye", Action: ActionExit}},
	}}
}

// RegisterOfferMenu is offered to users without a stored profile.
func RegisterOfferMenu() *Menu {
	return &Menu{Inline: [][]Button{
		{{Label: "Register", Action: ActionRegister}},
		{{Label: "Bye", Action: ActionExit}},
	}}
}

// MainMenu is the standard menu for registered users.
func MainMenu() *Menu {
	return &Menu{Inline: [][]Button{
		{{Label: "Send a note", Action: ActionSendNote}},
		{{Label: "Delete my account", Action: ActionDelete}},
		{{Label: "Bye", Action: ActionExit}},
	}}
}

// SharePhoneMenu is a one-time reply keyboard requesting the contact card.
func SharePhoneMenu() *Menu {
	return &Menu{
		Reply: [][]Button{
			{{Label: "📱 Share my number", RequestContact: true}},
		},
		OneTime: true,
	}
}

// ManualPhoneMenu offers typing the phone number instead of sharing it.
func ManualPhoneMenu() *Menu {
	return &Menu{Inline: [][]Button{
		{{Label: "Type it manually", Action: ActionManualPhone}},
	}}
}

// RemoveKeyboardMenu clears any previously sent reply keyboard.
func RemoveKeyboardMenu() *Menu {
	return &Menu{RemoveReply: true}
}

// LinksMenu lists external media links.
func LinksMenu() *Menu {
	return &Menu{Inline: [][]Button{
		{{Label: "News", URL: "https://russian.rt.com/"}},
		{{Label: "Music", URL: "https://my.mail.ru/music/"}},
		{{Label: "Video", URL: "https://www.tiktok.com/"}},
	}}
}
