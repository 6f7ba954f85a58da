package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoomType string

const (
	RoomSingle RoomType = "SINGLE"
	RoomDouble RoomType = "DOUBLE"
	RoomTwin   RoomType = "TWIN"
	RoomSuite  RoomType = "SUITE"
	RoomDeluxe RoomType = "DELUXE"
	RoomFamily RoomType = "FAMILY"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomSingle, RoomDouble, RoomTwin, RoomSuite, RoomDeluxe, RoomFamily:
		return true
	}
	return false
}

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "AVAILABLE"
	RoomReserved    RoomStatus = "RESERVED"
	RoomOccupied    RoomStatus = "OCCUPIED"
	RoomMaintenance RoomStatus = "MAINTENANCE"
)

const (
	MinRoomCapacity = 1
	MaxRoomCapacity = 10
)

type Room struct {
	ID          int64           `json:"id" gorm:"primaryKey"`
	Number      string          `json:"number" gorm:"size:32;uniqueIndex;not null"`
	Type        RoomType        `json:"type" gorm:"size:32;not null"`
	Capacity    int             `json:"capacity" gorm:"not null"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Status      RoomStatus      `json:"status" gorm:"size:32;not null;index"`
	Description string          `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
