// Package server defines the chat message and identifier types shared by the
// hub and connection handlers.
package server

import (
	"fmt"
	"strconv"
)

const (
	// QuitSentinel is the payload a client sends to leave the chat.
	QuitSentinel = ":quit"

	joinedText = "has joined the chat"
	leftText   = "has left the chat"
)

// ClientID identifies one accepted connection for the lifetime of the process.
// Identifiers are assigned sequentially from zero and never reused.
type ClientID uint64

func (id ClientID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ChatMessage is a message published through the hub. It holds only owned
// values so the same message can be handed to every subscriber.
type ChatMessage struct {
	Origin     ClientID
	Text       string
	OriginAddr string
}

// Format renders the message the way receiving clients display it.
func (m ChatMessage) Format() string {
	return fmt.Sprintf("[Client %d]: %s", m.Origin, m.Text)
}
