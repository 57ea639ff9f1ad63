package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ticket is a durable, one-time request to provision a container. Closed is
// monotonic: once a ticket has been consumed into a container it can never
// reopen, and consuming it again is a conflict.
type Ticket struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"size:128;not null;index" json:"name"`
	CPUCores  int       `gorm:"not null" json:"cpu_cores"`
	RAMBytes  int64     `gorm:"not null" json:"ram_bytes"`
	ROMBytes  int64     `gorm:"not null" json:"rom_bytes"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Closed    bool      `gorm:"default:false;not null" json:"closed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// OwnerUsername returns the denormalized owner name for listings. Empty when
// the owner relation was not loaded.
func (t *Ticket) OwnerUsername() string {
	if t.Owner == nil {
		return ""
	}
	return t.Owner.Username
}
