package bot

// Update is one raw webhook payload from the chat platform. At most one of
// the optional fields is set.
type Update struct {
	UpdateID int64            `json:"update_id"`
	Message  *IncomingMessage `json:"message,omitempty"`
	Callback *CallbackQuery   `json:"callback_query,omitempty"`
}

// Chat identifies the conversation an update came from.
type Chat struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// IncomingMessage is a plain text message sent to the bot.
type IncomingMessage struct {
	Chat Chat   `json:"chat"`
	Text string `json:"text"`
}

// CallbackQuery is a button press on a previously sent message.
type CallbackQuery struct {
	ID      string           `json:"id"`
	From    Chat             `json:"from"`
	Message *IncomingMessage `json:"message,omitempty"`
	Data    string           `json:"data"`
}

// EventKind discriminates the decoded event union.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventMessage
	EventCallback
)

// Event is the decoded form of an Update. Chat is nil when the update
// carries no usable chat reference; callers must check before replying.
type Event struct {
	Kind       EventKind
	Chat       *Chat
	Text       string
	CallbackID string
}

// DecodeEvent classifies an update and resolves its chat reference in one
// place. Every update kind the bot understands is handled here; anything
// else decodes to EventUnknown with no chat.
func DecodeEvent(u Update) Event {
	switch {
	case u.Message != nil:
		chat := u.Message.Chat
		return Event{
			Kind: EventMessage,
			Chat: &chat,
			Text: u.Message.Text,
		}
	case u.Callback != nil:
		// Prefer the chat the original message lives in; fall back to
		// the pressing user's private chat.
		chat := u.Callback.From
		if u.Callback.Message != nil {
			chat = u.Callback.Message.Chat
		}
		return Event{
			Kind:       EventCallback,
			Chat:       &chat,
			Text:       u.Callback.Data,
			CallbackID: u.Callback.ID,
		}
	default:
		return Event{Kind: EventUnknown}
	}
}
