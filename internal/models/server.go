package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ServerStatus represents the lifecycle state of a game server
type ServerStatus string

const (
	ServerStatusActive    ServerStatus = "active"
	ServerStatusSuspended ServerStatus = "suspended"
	ServerStatusExpired   ServerStatus = "expired"
)

// Plan represents a purchasable resource bundle
type Plan struct {
	ID          uint            `gorm:"column:id;primaryKey" json:"id"`
	Name        string          `gorm:"column:name;size:100;not null" json:"name"`
	Tier        string          `gorm:"column:tier;size:100;not null" json:"tier"`
	Price       float64         `gorm:"column:price;type:decimal(15,2);not null" json:"price"` // per 30-day month
	RAM         int             `gorm:"column:ram;not null" json:"ram"`                        // MB
	Cores       int             `gorm:"column:cores;not null" json:"cores"`
	Disk        int             `gorm:"column:disk;not null" json:"disk"` // MB
	Features    json.RawMessage `gorm:"column:features;type:json" json:"features"`
	Popular     bool            `gorm:"column:popular;default:false" json:"popular"`
	Icon        string          `gorm:"column:icon;size:50;default:fa-cube" json:"icon"`
	Description string          `gorm:"column:description;size:500" json:"description"`
	SortOrder   int             `gorm:"column:sort_order;default:0" json:"sort_order"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}

// Server represents a purchased game server. Resource and price fields are a
// snapshot of the plan in effect at the last purchase or tariff change; later
// plan edits do not touch existing servers.
type Server struct {
	ID     uint   `gorm:"column:id;primaryKey" json:"id"`
	UserID uint   `gorm:"column:user_id;not null;index;constraint:OnDelete:CASCADE" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Name   string `gorm:"column:name;size:100;not null" json:"name"`

	// Plan snapshot
	PlanID   *uint   `gorm:"column:plan_id;index" json:"plan_id"`
	PlanName string  `gorm:"column:plan_name;size:100" json:"plan_name"`
	PlanTier string  `gorm:"column:plan_tier;size:100" json:"plan_tier"`
	CoreName string  `gorm:"column:core_name;size:100" json:"core_name"`
	RAM      int     `gorm:"column:ram;default:0" json:"ram"`
	Cores    int     `gorm:"column:cores;default:0" json:"cores"`
	Disk     int     `gorm:"column:disk;default:0" json:"disk"`
	Price    float64 `gorm:"column:price;type:decimal(15,2);default:0" json:"price"`
	Months   int     `gorm:"column:months;default:1" json:"months"`

	Status    ServerStatus `gorm:"column:status;size:20;default:active;index" json:"status"`
	AutoRenew bool         `gorm:"column:auto_renew;default:false" json:"auto_renew"`
	ExpiresAt time.Time    `gorm:"column:expires_at;index" json:"expires_at"`

	// Remote panel linkage; nil PanelServerID means no provisioned instance
	PanelServerID   *int   `gorm:"column:panel_server_id" json:"panel_server_id"`
	PanelIdentifier string `gorm:"column:panel_identifier;size:50" json:"panel_identifier"`
	PanelUUID       string `gorm:"column:panel_uuid;size:50" json:"panel_uuid"`
	NodeID          *int   `gorm:"column:node_id" json:"node_id"`
	IP              string `gorm:"column:ip;size:50" json:"ip"`
	Port            int    `gorm:"column:port;default:0" json:"port"`

	// Notified 24h before expiry at most once per cycle
	ExpiryNotifiedAt *time.Time `gorm:"column:expiry_notified_at" json:"-"`

	// Optimistic lock counter for snapshot mutations
	Version int `gorm:"column:version;default:0" json:"-"`

	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Server) TableName() string {
	return "servers"
}

// Provisioned reports whether the server is linked to a remote panel instance
func (s *Server) Provisioned() bool {
	return s.PanelServerID != nil
}
