package repository

import (
	"context"
	"time"

	"hotelbooking/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type BookingFilter struct {
	Statuses []domain.BookingStatus
	RoomID   int64
	UserID   int64
	// From/To select bookings whose stay intersects [From, To).
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, id).Error
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *BookingRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.Booking{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "booking", ID: id}
	}
	return nil
}

func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]domain.Booking, error) {
	q := r.db.WithContext(ctx).Model(&domain.Booking{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.RoomID > 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.To != nil {
		q = q.Where("check_in < ?", f.To.UTC())
	}
	if f.From != nil {
		q = q.Where("check_out > ?", f.From.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []domain.Booking
	if err := q.Order("check_in asc, id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// HasOverlap reports whether another holding booking claims any day of [checkIn, checkOut).
func (r *BookingRepository) HasOverlap(ctx context.Context, roomID int64, checkIn, checkOut time.Time, excludeID int64) (bool, error) {
	q := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("room_id = ?", roomID).
		Where("status IN ?", domain.HoldingStatuses).
		Where("check_in < ? AND check_out > ?", checkOut.UTC(), checkIn.UTC())
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// BusyRoomIDs returns rooms with a holding booking intersecting [checkIn, checkOut).
func (r *BookingRepository) BusyRoomIDs(ctx context.Context, checkIn, checkOut time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Distinct("room_id").
		Where("status IN ?", domain.HoldingStatuses).
		Where("check_in < ? AND check_out > ?", checkOut.UTC(), checkIn.UTC()).
		Pluck("room_id", &ids).Error
	return ids, err
}

func (r *BookingRepository) CountHoldingForRoom(ctx context.Context, roomID int64) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("room_id = ? AND status IN ?", roomID, domain.HoldingStatuses).
		Count(&cnt).Error
	return cnt, err
}

// ListExpiredCheckedIn returns guests still checked in after their checkout date.
func (r *BookingRepository) ListExpiredCheckedIn(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND check_out < ?", domain.BookingCheckedIn, now.UTC()).
		Order("check_out asc, id asc").
		Find(&out).Error
	return out, err
}

func (r *BookingRepository) ListByRoomAndStatus(ctx context.Context, roomID int64, status domain.BookingStatus) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, status).
		Order("id asc").
		Find(&out).Error
	return out, err
}

func (r *BookingRepository) UpdatePaidAmount(ctx context.Context, id int64, paid decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ?", id).
		Update("paid_amount", paid).Error
}
