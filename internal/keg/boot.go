package keg

import (
	"encoding/json"

	"github.com/MKhiriev/kegsync/internal/digest"
	"github.com/MKhiriev/kegsync/internal/retry"
	"github.com/MKhiriev/kegsync/models"
)

// BootKeg is the membership singleton of a collection: the participant
// roster and the per-participant wrapped collection keys laid down when
// the collection was created. It is stored plaintext (the wrapped keys
// inside are sealed per participant) and signed by the collection creator.
type BootKeg struct {
	*SyncedKeg

	Data models.BootData
}

// NewBootKeg constructs the boot singleton handle for db.
func NewBootKeg(db *KegDb, runner *retry.Runner, tracker *digest.Tracker) *BootKeg {
	b := &BootKeg{}
	b.SyncedKeg = NewSyncedKeg(db, models.KegTypeBoot, true, b, runner, tracker)
	return b
}

// SerializeKegPayload implements [PayloadCarrier].
func (b *BootKeg) SerializeKegPayload() (map[string]any, error) {
	return map[string]any{
		"kind":          b.Data.Kind,
		"participants":  b.Data.Participants,
		"encryptedKeys": b.Data.EncryptedKey,
		"signature":     b.Data.Signature,
	}, nil
}

// DeserializeKegPayload implements [PayloadCarrier].
func (b *BootKeg) DeserializeKegPayload(fields map[string]json.RawMessage) error {
	var data models.BootData
	if raw, ok := fields["kind"]; ok {
		if err := json.Unmarshal(raw, &data.Kind); err != nil {
			return err
		}
	}
	if raw, ok := fields["participants"]; ok {
		if err := json.Unmarshal(raw, &data.Participants); err != nil {
			return err
		}
	}
	if raw, ok := fields["encryptedKeys"]; ok {
		if err := json.Unmarshal(raw, &data.EncryptedKey); err != nil {
			return err
		}
	}
	if raw, ok := fields["signature"]; ok {
		if err := json.Unmarshal(raw, &data.Signature); err != nil {
			return err
		}
	}

	b.Data = data
	return nil
}
