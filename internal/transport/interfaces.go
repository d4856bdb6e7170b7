// SPDX-License-Identifier: Apache-2.0

// Package transport provides the logical request/response contract the sync
// core depends on for talking to a keg server, plus an HTTP/REST
// implementation.
//
// The primary abstraction is [Transport], which decouples the keg and store
// layers from the underlying protocol. Error values defined in errors.go are
// mapped from HTTP status codes by mapHTTPError so that callers can use
// [errors.Is] for transport-agnostic error handling (e.g.
// [ErrVersionConflict] for 409, [ErrNotFound] for 404).
package transport

import (
	"context"

	"github.com/MKhiriev/kegsync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

// Transport defines protocol-agnostic communication with the keg server.
// Implementations are responsible for serialisation, authentication header
// management, and mapping transport-level errors to the sentinel values
// defined in this package.
type Transport interface {
	// SetToken stores the bearer token that will be attached to all
	// subsequent authenticated requests.
	SetToken(token string)

	// CreateKeg asks the server to allocate a fresh keg id inside
	// collectionID for kegType. The returned id is immutable for the
	// lifetime of the keg.
	CreateKeg(ctx context.Context, collectionID, kegType string) (models.KegAllocation, error)

	// UpdateKeg writes a full keg record. The server rejects the write with
	// [ErrVersionConflict] if req.Version is not exactly one above the
	// server-side version. On success the returned collection version is
	// non-decreasing across writes to the same type within a collection.
	UpdateKeg(ctx context.Context, req models.UpdateKegRequest) (models.UpdateKegResult, error)

	// GetKeg fetches a single raw keg record by id. Returns [ErrNotFound]
	// if the keg does not exist.
	GetKeg(ctx context.Context, collectionID, kegID string) (models.KegRecord, error)

	// DeleteKeg issues a server-side delete for the keg. Local in-memory
	// presence is the caller's responsibility.
	DeleteKeg(ctx context.Context, collectionID, kegID string) error

	// ListKegs lists raw keg records in collectionID narrowed by opts.
	// Results are ordered ascending by keg id. opts.MinKegID is an
	// exclusive lower bound: only records with a strictly greater keg id
	// are returned, so pagers that pass the last id of the previous page
	// always terminate.
	ListKegs(ctx context.Context, collectionID string, opts models.KegListOptions) ([]models.KegRecord, error)

	// QueryKegsByProp lists raw keg records of kegType whose unencrypted
	// props match every entry of filter.
	QueryKegsByProp(ctx context.Context, collectionID, kegType string, filter map[string]string) ([]models.KegRecord, error)

	// FetchUpdatedIDs returns the ids of kegs of kegType whose collection
	// version is above sinceVersion, across all collections visible to the
	// local identity.
	FetchUpdatedIDs(ctx context.Context, kegType, sinceVersion string) ([]string, error)

	// FetchDescriptor fetches the separated descriptor blob for a
	// latest-format file. Returns [ErrNotFound] if no descriptor exists.
	FetchDescriptor(ctx context.Context, fileID string) (models.FileDescriptor, error)

	// SaveDescriptor writes a descriptor blob. Returns [ErrVersionConflict]
	// if another client already wrote a descriptor for the same file at or
	// above this version.
	SaveDescriptor(ctx context.Context, d models.FileDescriptor) error

	// Events returns the stream of connection lifecycle and digest-update
	// signals. The channel is closed when the transport shuts down.
	Events() <-chan Event

	// Close stops background work and closes the event stream.
	Close() error
}
