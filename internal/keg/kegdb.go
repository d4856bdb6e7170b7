// SPDX-License-Identifier: Apache-2.0

package keg

import (
	"context"
	"fmt"

	"github.com/MKhiriev/kegsync/internal/crypto"
	"github.com/MKhiriev/kegsync/internal/logger"
	"github.com/MKhiriev/kegsync/internal/transport"
	"github.com/MKhiriev/kegsync/models"
)

// Kind labels the namespace flavour a collection belongs to.
type Kind string

const (
	KindPersonal Kind = "personal"
	KindChat     Kind = "chat"
	KindVolume   Kind = "volume"
)

// KegDb is the collection namespace a keg belongs to: personal, a shared
// chat, or a shared volume. It holds the encryption key and the boot
// metadata used to encrypt, decrypt and authorize kegs within it. The key's
// lifetime matches the collection's lifetime; losing it permanently loses
// access to the collection's encrypted kegs.
type KegDb struct {
	ID   string
	Kind Kind

	// Key is the collection encryption key. Exclusively owned by the
	// collection; kegs borrow it for sealing unless they carry an
	// override key.
	Key []byte

	// Boot holds the participant/key metadata singleton. Set by the owner
	// of the collection handle once the boot keg has been initialized.
	Boot *BootKeg

	transport transport.Transport
	cipher    crypto.Cipher
	logger    *logger.Logger
}

// NewKegDb constructs a collection handle. key may be nil for collections
// that only hold plaintext kegs.
func NewKegDb(id string, kind Kind, key []byte, t transport.Transport, c crypto.Cipher, log *logger.Logger) *KegDb {
	return &KegDb{
		ID:        id,
		Kind:      kind,
		Key:       key,
		transport: t,
		cipher:    c,
		logger:    log,
	}
}

// AllocateID asks the server for a fresh keg id of kegType within this
// collection. The returned id is immutable for the keg's lifetime.
func (db *KegDb) AllocateID(ctx context.Context, kegType string) (models.KegAllocation, error) {
	alloc, err := db.transport.CreateKeg(ctx, db.ID, kegType)
	if err != nil {
		return models.KegAllocation{}, fmt.Errorf("allocate keg id in %s: %w", db.ID, err)
	}
	return alloc, nil
}
