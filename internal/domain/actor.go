package domain

import "strings"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleStaff     Role = "STAFF"
	RoleConcierge Role = "CONCIERGE"
	RoleGuest     Role = "GUEST"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleStaff, RoleConcierge, RoleGuest:
		return r, true
	}
	return "", false
}

type Permission string

const (
	PermBookingManage  Permission = "booking:manage"
	PermBookingCheckIn Permission = "booking:checkin"
	PermPaymentManage  Permission = "payment:manage"
	PermRefundRequest  Permission = "refund:request"
	PermRefundProcess  Permission = "refund:process"
	PermRoomManage     Permission = "room:manage"
	PermReportView     Permission = "report:view"
	PermSweepRun       Permission = "sweep:run"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermBookingManage, PermBookingCheckIn, PermPaymentManage, PermRefundRequest,
		PermRefundProcess, PermRoomManage, PermReportView, PermSweepRun,
	},
	RoleManager: {
		PermBookingManage, PermBookingCheckIn, PermPaymentManage, PermRefundRequest,
		PermRefundProcess, PermRoomManage, PermReportView,
	},
	RoleStaff:     {PermBookingManage, PermBookingCheckIn, PermPaymentManage, PermRefundRequest},
	RoleConcierge: {PermBookingCheckIn},
	RoleGuest:     nil,
}

// ActorContext is the verified identity a ledger call is made on behalf of.
type ActorContext struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// SystemActor is used by scheduled jobs and gateway callbacks.
func SystemActor() ActorContext {
	return ActorContext{UserID: 0, Role: RoleAdmin}
}

func (a ActorContext) Can(p Permission) bool {
	for _, granted := range rolePermissions[a.Role] {
		if granted == p {
			return true
		}
	}
	return false
}

// OwnerOr allows the owner of a resource or anyone holding p.
func (a ActorContext) OwnerOr(ownerID int64, p Permission) bool {
	if a.UserID != 0 && a.UserID == ownerID {
		return true
	}
	return a.Can(p)
}

func (a ActorContext) Require(p Permission) error {
	if !a.Can(p) {
		return &AuthorizationError{Action: string(p)}
	}
	return nil
}

func (a ActorContext) RequireOwnerOr(ownerID int64, p Permission) error {
	if !a.OwnerOr(ownerID, p) {
		return &AuthorizationError{Action: string(p)}
	}
	return nil
}
