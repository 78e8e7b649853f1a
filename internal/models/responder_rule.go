package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResponderRule maps an inbound keyword to an automatic reply for one session
type ResponderRule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Seq       int64     `gorm:"->;column:seq" json:"-"`
	SessionID string    `gorm:"type:varchar(255);not null;index:idx_rules_session" json:"session_id"`
	Tenant    string    `gorm:"type:varchar(255);not null" json:"tenant"`
	Keyword   string    `gorm:"type:varchar(255);not null" json:"keyword"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for ResponderRule
func (ResponderRule) TableName() string {
	return "responder_rules"
}

// BeforeCreate hook to generate UUID if not set
func (r *ResponderRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
