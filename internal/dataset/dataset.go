// Package dataset defines the entity model shared by the synchronization
// layer: datasets, projects and the opaque notebook cells a project owns.
package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CellType discriminates notebook cell kinds. The sync layer never interprets
// cell contents; the type travels with the record for the UI's benefit.
type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
)

// NotebookCell is persisted atomically with its owning project.
type NotebookCell struct {
	ID       string         `json:"id"`
	Type     CellType       `json:"type"`
	Content  string         `json:"content"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Dataset describes one uploaded (or cleaned-and-resaved) tabular payload.
// Identity is the opaque ID, independent of the display filename. At most one
// payload is active per ID; replacement overwrites rather than versions.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	Mirrored  bool      `json:"mirrored"` // true once the payload reached the remote blob store
	UpdatedAt time.Time `json:"updated_at"`
}

// Project binds exactly one dataset to an ordered cell sequence. DatasetID
// may be healed after a recovery search relocates the payload.
type Project struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	DatasetID string         `json:"dataset_id"`
	Cells     []NotebookCell `json:"cells"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewDatasetID returns a fresh opaque dataset identifier.
func NewDatasetID() string { return "ds_" + uuid.NewString() }

// NewProjectID returns a fresh opaque project identifier.
func NewProjectID() string { return "proj_" + uuid.NewString() }

// NewCellID returns a fresh cell identifier.
func NewCellID() string { return "cell_" + uuid.NewString() }

// SanitizeFilename maps every character outside [A-Za-z0-9._-] to '_' so the
// result is safe as the final segment of a blob object key.
func SanitizeFilename(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// FolderPrefix returns the blob key prefix owning all payloads for a dataset
// folder: "{userID}/{folderID}/".
func FolderPrefix(userID, folderID string) string {
	return fmt.Sprintf("%s/%s/", userID, folderID)
}

// ObjectKey returns the canonical writable blob key for a dataset payload.
func ObjectKey(userID, folderID, filename string) string {
	return FolderPrefix(userID, folderID) + SanitizeFilename(filename)
}
