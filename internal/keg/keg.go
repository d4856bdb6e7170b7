// SPDX-License-Identifier: Apache-2.0

// Package keg implements the versioned, optionally encrypted data objects
// ("kegs") mirrored from the server, the collections (KegDb) that own them,
// and the singleton synced-keg specialization.
//
// Encrypted kegs commit to their own metadata: an anti-tamper header with
// the keg's id and type is embedded inside the encrypted envelope, so a
// server that serves ciphertext A under id/type B is detected without any
// additional signature scheme.
package keg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MKhiriev/kegsync/models"
)

// sysKey is the reserved payload field carrying the anti-tamper header.
const sysKey = "_sys"

// tamperHeader binds a ciphertext to the id/type it was sealed for.
type tamperHeader struct {
	KegID string `json:"kegId"`
	Type  string `json:"type"`
}

// PayloadCarrier is implemented by the concrete keg types (files, folder
// trees, account data). It converts between the type's logical fields and
// the keg's JSON payload object.
type PayloadCarrier interface {
	// SerializeKegPayload returns the payload fields to persist. A nil map
	// means the keg is written empty (no payload).
	SerializeKegPayload() (map[string]any, error)

	// DeserializeKegPayload applies decrypted, verified payload fields.
	// The reserved system field has already been removed.
	DeserializeKegPayload(fields map[string]json.RawMessage) error
}

// Keg is a single versioned data object identified by an id within a
// collection and a type tag. The id is assigned once, server-side, on the
// first save and is immutable thereafter. Version increments by exactly one
// on every successful save; version 1 means created but never populated.
type Keg struct {
	DB *KegDb

	ID                string
	Type              string
	Version           int64
	CollectionVersion string

	// Plaintext kegs skip encryption and the anti-tamper header entirely.
	Plaintext bool

	// OverrideKey, when set, replaces the collection key for this keg.
	OverrideKey []byte

	// Props are never encrypted and are queryable server-side.
	Props map[string]string

	Owner   string
	Deleted bool
	Hidden  bool

	carrier PayloadCarrier
	empty   bool
}

// NewKeg constructs an unsaved keg of kegType inside db. carrier supplies
// the logical payload; it is usually the embedding type itself.
func NewKeg(db *KegDb, kegType string, plaintext bool, carrier PayloadCarrier) *Keg {
	return &Keg{
		DB:        db,
		Type:      kegType,
		Plaintext: plaintext,
		Props:     make(map[string]string),
		carrier:   carrier,
	}
}

// IsEmpty reports whether the keg was created but never populated.
func (k *Keg) IsEmpty() bool {
	return k.empty || k.Version <= 1
}

func (k *Keg) key() []byte {
	if k.OverrideKey != nil {
		return k.OverrideKey
	}
	return k.DB.Key
}

// Save writes the keg to the server. If the keg has no id yet, an id is
// allocated first. The write carries the local version incremented by one;
// a concurrent writer wins the race and this save fails with
// transport.ErrVersionConflict (not reconciled; the caller decides).
// Transport failures are returned as-is; retrying is the caller's policy.
func (k *Keg) Save(ctx context.Context) error {
	if k.ID == "" {
		alloc, err := k.DB.AllocateID(ctx, k.Type)
		if err != nil {
			return err
		}
		k.ID = alloc.KegID
		k.Version = alloc.Version
		k.CollectionVersion = alloc.CollectionVersion
	}

	payload, err := k.buildPayload()
	if err != nil {
		return fmt.Errorf("serialize keg %s: %w", k.ID, err)
	}

	result, err := k.DB.transport.UpdateKeg(ctx, models.UpdateKegRequest{
		CollectionID: k.DB.ID,
		KegID:        k.ID,
		Type:         k.Type,
		Payload:      payload,
		Props:        k.Props,
		Version:      k.Version + 1,
	})
	if err != nil {
		return fmt.Errorf("save keg %s: %w", k.ID, err)
	}

	k.Version++
	k.CollectionVersion = result.CollectionVersion
	k.empty = false
	return nil
}

// buildPayload serializes the carrier's fields, embeds the anti-tamper
// header for encrypted kegs, and seals the envelope.
func (k *Keg) buildPayload() (string, error) {
	fields, err := k.carrier.SerializeKegPayload()
	if err != nil {
		return "", err
	}
	if fields == nil {
		return "", nil
	}

	if k.Plaintext {
		raw, err := json.Marshal(fields)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	fields[sysKey] = tamperHeader{KegID: k.ID, Type: k.Type}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}

	return k.DB.cipher.Encrypt(raw, k.key())
}

// Load fetches the raw record by id and hydrates the keg from it.
func (k *Keg) Load(ctx context.Context) error {
	if k.ID == "" {
		return ErrNoID
	}

	rec, err := k.DB.transport.GetKeg(ctx, k.DB.ID, k.ID)
	if err != nil {
		return fmt.Errorf("load keg %s: %w", k.ID, err)
	}

	return k.HydrateFromRecord(rec)
}

// HydrateFromRecord applies a raw server record to the keg.
//
// The record is fully verified before any field is mutated: an id mismatch
// against an already-assigned local id fails with ErrIdentityMismatch, and
// for encrypted payloads the embedded anti-tamper header must exactly match
// the record's outer id and this keg's type or hydration fails with
// ErrTampered. In both cases the keg is left untouched.
func (k *Keg) HydrateFromRecord(rec models.KegRecord) error {
	if k.ID != "" && rec.KegID != k.ID {
		return fmt.Errorf("%w: local %s, record %s", ErrIdentityMismatch, k.ID, rec.KegID)
	}

	if rec.Payload == "" {
		// Created but never populated. No decrypt attempted.
		k.applyRecordMeta(rec)
		k.empty = true
		return nil
	}

	var raw []byte
	if k.Plaintext {
		raw = []byte(rec.Payload)
	} else {
		var err error
		raw, err = k.DB.cipher.Decrypt(rec.Payload, k.key())
		if err != nil {
			return fmt.Errorf("decrypt keg %s: %w", rec.KegID, err)
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode keg %s payload: %w", rec.KegID, err)
	}

	if !k.Plaintext {
		if err := verifyTamperHeader(fields, rec.KegID, k.Type); err != nil {
			return err
		}
		delete(fields, sysKey)
	}

	if err := k.carrier.DeserializeKegPayload(fields); err != nil {
		return fmt.Errorf("apply keg %s payload: %w", rec.KegID, err)
	}

	k.applyRecordMeta(rec)
	k.empty = false
	return nil
}

func (k *Keg) applyRecordMeta(rec models.KegRecord) {
	k.ID = rec.KegID
	k.Version = rec.Version
	k.CollectionVersion = rec.CollectionVersion
	k.Owner = rec.Owner
	k.Deleted = rec.Deleted
	k.Hidden = rec.Hidden
	if rec.Props != nil {
		k.Props = rec.Props
	}
}

func verifyTamperHeader(fields map[string]json.RawMessage, kegID, kegType string) error {
	sys, ok := fields[sysKey]
	if !ok {
		return fmt.Errorf("%w: keg %s has no embedded header", ErrTampered, kegID)
	}

	var header tamperHeader
	if err := json.Unmarshal(sys, &header); err != nil {
		return fmt.Errorf("%w: keg %s header malformed", ErrTampered, kegID)
	}

	if header.KegID != kegID || header.Type != kegType {
		return fmt.Errorf("%w: keg %s/%s, header claims %s/%s",
			ErrTampered, kegID, kegType, header.KegID, header.Type)
	}

	return nil
}

// Remove issues a delete request for the keg. In-memory presence is not
// altered; callers owning an index are responsible for removing the keg
// from it.
func (k *Keg) Remove(ctx context.Context) error {
	if k.ID == "" {
		return ErrNoID
	}

	if err := k.DB.transport.DeleteKeg(ctx, k.DB.ID, k.ID); err != nil {
		return fmt.Errorf("remove keg %s: %w", k.ID, err)
	}
	return nil
}
