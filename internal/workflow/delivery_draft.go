package workflow

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
)

// FileUpload is a file picked for a delivery
type FileUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  []byte
}

// DraftFile is an attachment staged on a delivery draft
type DraftFile struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mime_type"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
	// Key and URL are set once the content has been written to blob storage
	Key     string `json:"key,omitempty"`
	URL     string `json:"url,omitempty"`
	Content []byte `json:"-"`
}

// Staged reports whether the file content is already in blob storage
func (f DraftFile) Staged() bool {
	return f.URL != ""
}

// DeliveryDraft is a delivery composed by the seller before submit
type DeliveryDraft struct {
	Files          []DraftFile `json:"files"`
	Message        string      `json:"message"`
	MarkAsComplete bool        `json:"mark_as_complete"`
}

// AddFiles appends files with fresh ids, no description and public visibility
func (d *DeliveryDraft) AddFiles(files []FileUpload) *DeliveryDraft {
	for _, f := range files {
		d.Files = append(d.Files, DraftFile{
			ID:       uuid.NewString(),
			Filename: f.Filename,
			Size:     f.Size,
			MimeType: f.MimeType,
			IsPublic: true,
			Content:  f.Content,
		})
	}
	return d
}

// RemoveFile drops a staged file
func (d *DeliveryDraft) RemoveFile(id string) error {
	i, err := d.find(id)
	if err != nil {
		return err
	}
	d.Files = append(d.Files[:i], d.Files[i+1:]...)
	return nil
}

// UpdateDescription sets the description shown with a file
func (d *DeliveryDraft) UpdateDescription(id, text string) error {
	i, err := d.find(id)
	if err != nil {
		return err
	}
	d.Files[i].Description = text
	return nil
}

// ToggleVisibility flips whether the client can see a file
func (d *DeliveryDraft) ToggleVisibility(id string) error {
	i, err := d.find(id)
	if err != nil {
		return err
	}
	d.Files[i].IsPublic = !d.Files[i].IsPublic
	return nil
}

// Validate requires at least one file or a non-blank message
func (d *DeliveryDraft) Validate() error {
	if len(d.Files) == 0 && strings.TrimSpace(d.Message) == "" {
		return apperrors.ValidationFields("delivery is empty", map[string]string{
			"message": "add a message or at least one file",
		})
	}
	for _, f := range d.Files {
		if strings.TrimSpace(f.Filename) == "" {
			return apperrors.ValidationFields("invalid file", map[string]string{
				"files": "every file needs a name",
			})
		}
		if !f.Staged() && f.Content == nil {
			return apperrors.ValidationFields("invalid file", map[string]string{
				"files": f.Filename + " has no content",
			})
		}
	}
	return nil
}

// Clone returns a deep copy of the draft, sharing file contents
func (d *DeliveryDraft) Clone() *DeliveryDraft {
	c := *d
	c.Files = make([]DraftFile, len(d.Files))
	copy(c.Files, d.Files)
	return &c
}

// MarshalFiles encodes the staged file descriptors for storage
func (d *DeliveryDraft) MarshalFiles() ([]byte, error) {
	files := d.Files
	if files == nil {
		files = []DraftFile{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode draft files")
	}
	return data, nil
}

// UnmarshalFiles decodes file descriptors written by MarshalFiles
func UnmarshalFiles(data []byte) ([]DraftFile, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var files []DraftFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, errors.Wrap(err, "failed to decode draft files")
	}
	return files, nil
}

func (d *DeliveryDraft) find(id string) (int, error) {
	for i := range d.Files {
		if d.Files[i].ID == id {
			return i, nil
		}
	}
	return -1, apperrors.NotFound("file %s not found", id)
}
