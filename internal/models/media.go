package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Media is an outbound attachment held in memory for the duration of a send
type Media struct {
	Name     string `json:"name"`
	MimeType string `json:"mimetype"`
	Data     []byte `json:"data"`
}

// IsImage reports whether the media should be sent as an image message
func (m *Media) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(m.MimeType), "image/")
}

// Descriptor returns the persisted summary of the media
func (m *Media) Descriptor() *MediaDescriptor {
	if m == nil {
		return nil
	}
	return &MediaDescriptor{
		Name:      m.Name,
		MimeType:  m.MimeType,
		SizeBytes: int64(len(m.Data)),
	}
}

// MediaDescriptor stores the attachment metadata of a campaign
type MediaDescriptor struct {
	Name      string `json:"name"`
	MimeType  string `json:"mimetype"`
	SizeBytes int64  `json:"size"`
}

// Scan implements sql.Scanner interface for MediaDescriptor
func (d *MediaDescriptor) Scan(value interface{}) error {
	return scanJSON(value, d)
}

// Value implements driver.Valuer interface for MediaDescriptor
func (d MediaDescriptor) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}
