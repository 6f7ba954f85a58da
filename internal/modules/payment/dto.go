package payment

type InitiatePaymentRequest struct {
	BookingID     int64  `json:"booking_id" binding:"required" example:"123"`
	Amount        string `json:"amount" binding:"required" validate:"positive_amount" example:"450.00"`
	PaymentMethod string `json:"payment_method" binding:"required" example:"CARD"`
}

type ConfirmPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" example:"pm_card_visa"`
}

type FailPaymentRequest struct {
	Reason string `json:"reason" validate:"max=500" example:"card reported stolen"`
}
