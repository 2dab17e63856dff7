package entities

type Message struct {
	ID       string
	From     string
	Content  string
	Platform string // e.g., "web", "telegram", "whatsapp", "cli"
}

// Suggestion is a quick-reply chip: Label is shown, Send is posted back as the next message.
type Suggestion struct {
	Label string `json:"label"`
	Send  string `json:"send"`
}

// Reply is the outcome of one dialog turn.
type Reply struct {
	Text        string
	Context     ConversationContext
	Suggestions []Suggestion
	Rule        string // name of the rule that produced the reply, for logs
}
