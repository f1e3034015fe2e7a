package entity

// StoredFile is the result of uploading a file to the file store
type StoredFile struct {
	FileID   string `json:"fileId"`
	FileURL  string `json:"fileUrl"`
	FolderID string `json:"folderId,omitempty"`
}

// Mail is an outbound plain-text email
type Mail struct {
	From    string
	To      []string
	Subject string
	Body    string
}
