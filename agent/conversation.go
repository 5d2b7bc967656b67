package agent

import "github.com/aslamsikder/VoiceRAG-Agent-System/llm"

// Conversation is an ordered, immutable list of turns. Append returns a new
// value and leaves the receiver untouched.
type Conversation struct {
	turns []llm.Message
}

func NewConversation(turns ...llm.Message) Conversation {
	return Conversation{turns: append([]llm.Message(nil), turns...)}
}

func (c Conversation) Append(turns ...llm.Message) Conversation {
	next := make([]llm.Message, 0, len(c.turns)+len(turns))
	next = append(next, c.turns...)
	next = append(next, turns...)
	return Conversation{turns: next}
}

// Messages returns a copy of the turns.
func (c Conversation) Messages() []llm.Message {
	return append([]llm.Message(nil), c.turns...)
}

func (c Conversation) Len() int {
	return len(c.turns)
}
