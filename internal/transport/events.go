package transport

import "github.com/MKhiriev/kegsync/models"

// EventKind labels the connection lifecycle and server-notification signals
// the core subscribes to.
type EventKind int

const (
	// EventConnected fires when the transport establishes a connection.
	EventConnected EventKind = iota
	// EventAuthenticated fires once the connection is authenticated and
	// authenticated-only requests may be issued.
	EventAuthenticated
	// EventDisconnected fires when the connection drops. Stores pause on
	// this signal and resume on the next EventAuthenticated.
	EventDisconnected
	// EventDigestUpdate fires when the server reports new data for a
	// (collection, keg type) pair. Digest carries the reported maximum.
	EventDigestUpdate
)

// Event is one entry of the transport's notification stream.
type Event struct {
	Kind   EventKind
	Digest models.Digest
}
