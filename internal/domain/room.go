package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomReserved    RoomStatus = "reserved"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

type Branch struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" gorm:"uniqueIndex"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Room struct {
	ID         int64           `json:"id"`
	Code       string          `json:"code" gorm:"uniqueIndex"`
	BranchCode string          `json:"branch_code"`
	Number     string          `json:"number"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(14,2)"`
	Status     RoomStatus      `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
