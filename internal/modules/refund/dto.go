package refund

type RequestRefundRequest struct {
	BookingID int64  `json:"booking_id" binding:"required"`
	PaymentID *int64 `json:"payment_id"`
	Amount    string `json:"amount" binding:"required" validate:"positive_amount"`
	Method    string `json:"refund_method" binding:"required"`
	Notes     string `json:"notes" validate:"max=1000"`
}

type ProcessRefundRequest struct {
	// Method optionally overrides the method chosen at request time.
	Method string `json:"refund_method"`
}
