package room

// ---------- ROOMS ----------

type CreateRoomRequest struct {
	Number      string `json:"number" binding:"required" validate:"max=20"`
	Type        string `json:"type" binding:"required" validate:"room_type"`
	Capacity    int    `json:"capacity" binding:"required" validate:"min=1,max=10"`
	Price       string `json:"price" binding:"required" validate:"positive_amount"`
	Description string `json:"description" validate:"max=2000"`
}

type UpdateRoomRequest struct {
	Number      *string `json:"number,omitempty"`
	Type        *string `json:"type,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
	Price       *string `json:"price,omitempty"`
	Description *string `json:"description,omitempty"`
}

type MaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

type ListRoomsQuery struct {
	Status      string `form:"status"`
	Type        string `form:"type"`
	MinCapacity int    `form:"min_capacity"`
}
