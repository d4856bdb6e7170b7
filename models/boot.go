package models

// BootData is the logical payload of a collection's boot keg: the
// participant roster and per-participant encrypted collection keys laid
// down when the collection was created. The collection key lives exactly
// as long as the collection; there is no recovery path for a lost key.
type BootData struct {
	Kind         string            `json:"kind"`
	Participants []string          `json:"participants,omitempty"`
	EncryptedKey map[string]string `json:"encryptedKeys,omitempty"`
	Signature    string            `json:"signature,omitempty"`
}
