package models

// Digest tracks synchronization progress for one (collection, keg type)
// pair. MaxUpdateID is the highest collection version the server has
// reported for the pair; KnownUpdateID is the highest the local store has
// fully applied. KnownUpdateID never exceeds MaxUpdateID; equality means
// the local mirror is caught up.
type Digest struct {
	CollectionID  string `json:"collectionId"`
	KegType       string `json:"kegType"`
	MaxUpdateID   string `json:"maxUpdateId"`
	KnownUpdateID string `json:"knownUpdateId"`
}

// CaughtUp reports whether the local store has applied everything the
// server has announced for this pair.
func (d Digest) CaughtUp() bool {
	return CompareUpdateIDs(d.KnownUpdateID, d.MaxUpdateID) >= 0
}
