package chathub

import "stringchat/backend/internal/models"

// Client is the interface for one active connection. It abstracts the
// underlying transport so the hub can manage clients uniformly and
// tests can drive the hub without sockets.
type Client interface {
	// GetAnonID returns the ephemeral connection id. It is only valid
	// for the lifetime of the transport connection.
	GetAnonID() string

	// GetSendChannel returns the channel the hub writes outbound
	// envelopes to. It is a send-only channel.
	GetSendChannel() chan<- models.Envelope

	// Run starts the client's read and write pumps.
	Run()

	// Close shuts the client down. Safe to call more than once.
	Close()
}
