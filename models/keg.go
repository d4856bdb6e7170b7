package models

// Keg type tags used by the core stores. Additional application-defined
// types are allowed; these are the ones the module itself synchronizes.
const (
	KegTypeFile       = "file"
	KegTypeFolders    = "folders"
	KegTypeBoot       = "boot"
	KegTypeAccount    = "account_data"
	KegTypeChatGroups = "chat_groups"
)

// KegRecord is the raw server-side representation of a keg as delivered by
// the transport. Payload is either a plain JSON document (plaintext kegs) or
// a base64 blob of nonce-prefixed AES-GCM ciphertext. Props are never
// encrypted and are queryable server-side.
type KegRecord struct {
	KegID             string            `json:"kegId"`
	CollectionID      string            `json:"collectionId"`
	Type              string            `json:"type"`
	Owner             string            `json:"owner"`
	Version           int64             `json:"version"`
	CollectionVersion string            `json:"collectionVersion"`
	Payload           string            `json:"payload,omitempty"`
	Props             map[string]string `json:"props,omitempty"`
	Deleted           bool              `json:"deleted,omitempty"`
	Hidden            bool              `json:"hidden,omitempty"`
}

// KegAllocation is the server's answer to a create-keg request: the newly
// assigned immutable keg id plus the starting version stamps.
type KegAllocation struct {
	KegID             string `json:"kegId"`
	Version           int64  `json:"version"`
	CollectionVersion string `json:"collectionVersion"`
}

// UpdateKegRequest carries a full keg write. Version must be the local
// version incremented by one; the server rejects stale versions with a
// conflict.
type UpdateKegRequest struct {
	CollectionID string            `json:"collectionId"`
	KegID        string            `json:"kegId"`
	Type         string            `json:"type"`
	Payload      string            `json:"payload,omitempty"`
	Props        map[string]string `json:"props,omitempty"`
	Version      int64             `json:"version"`
}

// UpdateKegResult is the server's answer to a successful keg write.
type UpdateKegResult struct {
	CollectionVersion string `json:"collectionVersion"`
}

// KegListOptions narrows a list-kegs request. MinKegID (an exclusive lower
// bound on keg id) and Limit implement ascending-id paging for initial
// loads; CollectionVersionAbove selects the delta for incremental catch-up.
// The zero value lists everything of Type.
type KegListOptions struct {
	Type                   string `json:"type"`
	MinKegID               string `json:"minKegId,omitempty"`
	Limit                  int    `json:"limit,omitempty"`
	CollectionVersionAbove string `json:"collectionVersionAbove,omitempty"`
	IncludeDeleted         bool   `json:"includeDeleted,omitempty"`
	IncludeHidden          bool   `json:"includeHidden,omitempty"`
}
