package models

// File format generations. Legacy files keep all metadata inside the file
// keg itself; latest files split descriptive metadata into a separately
// encrypted descriptor blob with its own key.
const (
	FileFormatLegacy int = 0
	FileFormatLatest int = 1
)

// FileDescriptor is the separately stored, separately encrypted metadata
// side-object of a latest-format file. Blob is a base64 ciphertext sealed
// with the file's descriptor key; Version is a server-assigned stamp that
// advances on every descriptor write.
type FileDescriptor struct {
	FileID  string `json:"fileId"`
	Version string `json:"version"`
	Blob    string `json:"blob"`
}

// DescriptorPayload is the plaintext content of a descriptor blob before
// encryption.
type DescriptorPayload struct {
	FileID     string `json:"fileId"`
	Name       string `json:"name"`
	UploadedAt int64  `json:"uploadedAt,omitempty"`
}
