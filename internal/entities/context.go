package entities

// Awaiting tags the continuation state a previous turn left the conversation in.
type Awaiting string

const (
	AwaitingNone          Awaiting = ""
	AwaitingBranchAddress Awaiting = "branch_address"
	AwaitingDeptContact   Awaiting = "dept_contact"
	AwaitingProductManual Awaiting = "product_manual"
)

// ParseAwaiting maps a wire tag to a known state. Unknown tags are AwaitingNone.
func ParseAwaiting(s string) Awaiting {
	switch Awaiting(s) {
	case AwaitingBranchAddress, AwaitingDeptContact, AwaitingProductManual:
		return Awaiting(s)
	}
	return AwaitingNone
}

// Wire keys of the caller-owned context object.
const (
	keyAwaiting        = "awaiting"
	keyLastBranch      = "lastBranch"
	keyLastDept        = "lastDept"
	keyLastProductID   = "lastProductId"
	keyLastUserMessage = "lastUserMessage"
)

// ConversationContext is the caller-owned state round-tripped on every turn.
// Keys the bot does not know about are kept in Extra and echoed back.
type ConversationContext struct {
	Awaiting        Awaiting
	LastBranch      string
	LastDept        string
	LastProductID   string
	LastUserMessage string
	Extra           map[string]any
}

// ParseContext coerces whatever the caller sent into a context. Anything that
// is not a JSON object yields an empty context; non-primitive values are dropped.
func ParseContext(raw any) ConversationContext {
	var c ConversationContext
	m, ok := raw.(map[string]any)
	if !ok {
		return c
	}
	for k, v := range m {
		switch k {
		case keyAwaiting:
			c.Awaiting = ParseAwaiting(stringOrEmpty(v))
		case keyLastBranch:
			c.LastBranch = stringOrEmpty(v)
		case keyLastDept:
			c.LastDept = stringOrEmpty(v)
		case keyLastProductID:
			c.LastProductID = stringOrEmpty(v)
		case keyLastUserMessage:
			c.LastUserMessage = stringOrEmpty(v)
		default:
			if isPrimitive(v) {
				if c.Extra == nil {
					c.Extra = make(map[string]any)
				}
				c.Extra[k] = v
			}
		}
	}
	return c
}

// Map renders the context for the wire. Empty known fields are omitted.
func (c ConversationContext) Map() map[string]any {
	out := make(map[string]any, len(c.Extra)+5)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Awaiting != AwaitingNone {
		out[keyAwaiting] = string(c.Awaiting)
	}
	setIfNotEmpty(out, keyLastBranch, c.LastBranch)
	setIfNotEmpty(out, keyLastDept, c.LastDept)
	setIfNotEmpty(out, keyLastProductID, c.LastProductID)
	setIfNotEmpty(out, keyLastUserMessage, c.LastUserMessage)
	return out
}

// Clone returns a copy whose Extra map can be mutated independently.
func (c ConversationContext) Clone() ConversationContext {
	if c.Extra != nil {
		extra := make(map[string]any, len(c.Extra))
		for k, v := range c.Extra {
			extra[k] = v
		}
		c.Extra = extra
	}
	return c
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int64, int32:
		return true
	}
	return false
}

func setIfNotEmpty(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}
