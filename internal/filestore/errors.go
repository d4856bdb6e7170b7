package filestore

import "errors"

var (
	// ErrFolderCollision is returned when a folder is created with a name
	// that already exists among its siblings (case-insensitive).
	ErrFolderCollision = errors.New("folder name already exists among siblings")

	// ErrUnknownFile is returned by lookups and transfers referencing a
	// file id the store has never seen.
	ErrUnknownFile = errors.New("unknown file id")

	// ErrUnknownFolder is returned when a folder id does not resolve in
	// the current tree.
	ErrUnknownFolder = errors.New("unknown folder id")
)
