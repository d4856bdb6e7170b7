package models

// FolderNode is the serialized form of one folder inside the folder-tree
// keg. Parentage is implicit in the nesting; file membership is not stored
// here (each file keg carries its own folderId prop).
type FolderNode struct {
	FolderID  string       `json:"folderId"`
	Name      string       `json:"name"`
	CreatedAt int64        `json:"createdAt"`
	Folders   []FolderNode `json:"folders,omitempty"`
}
