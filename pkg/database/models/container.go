package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Container config keys stored in the Config blob.
const (
	ConfigCPUCores = "cpu_cores"
	ConfigRAMBytes = "ram_bytes"
	ConfigROMBytes = "rom_bytes"
)

// Container is the local record of a provisioned container. The hypervisor
// remains authoritative for liveness; this record carries ownership,
// credentials and the requested resource configuration. Deletion is a hard
// delete and must follow a successful remote delete.
type Container struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	VMID        int        `gorm:"uniqueIndex;not null" json:"vmid"`
	Node        string     `gorm:"size:64;not null" json:"node"`
	Name        string     `gorm:"size:128;not null;index" json:"name"`
	Description string     `gorm:"size:512" json:"description"`
	Password    string     `json:"-"`
	Tags        StringList `gorm:"type:text" json:"tags"`
	Config      JSONMap    `gorm:"type:text" json:"config"`
	OwnerID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	IsTemplate  bool       `gorm:"default:false" json:"is_template"`
	IsProtected bool       `gorm:"default:false" json:"is_protected"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (c *Container) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// OwnerUsername returns the denormalized owner name for listings. Empty when
// the owner relation was not loaded.
func (c *Container) OwnerUsername() string {
	if c.Owner == nil {
		return ""
	}
	return c.Owner.Username
}

func (c *Container) CPUCores() int64 { return c.Config.Int64(ConfigCPUCores) }
func (c *Container) RAMBytes() int64 { return c.Config.Int64(ConfigRAMBytes) }
func (c *Container) ROMBytes() int64 { return c.Config.Int64(ConfigROMBytes) }
