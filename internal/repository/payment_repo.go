package repository

import (
	"context"
	"time"

	"hotelbooking/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	return uniqueConflict(err, "payment transaction id already exists")
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &p, nil
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, id).Error
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &p, nil
}

func (r *PaymentRepository) GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", transactionID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, "payment", transactionID)
	}
	return &p, nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *domain.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// SumByStatus adds up ledger rows in Go so the result never goes through a float.
func (r *PaymentRepository) SumByStatus(ctx context.Context, bookingID int64, statuses ...domain.PaymentStatus) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("booking_id = ? AND status IN ?", bookingID, statuses).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return domain.SumAmounts(amounts...), nil
}

func (r *PaymentRepository) ExistsWithStatus(ctx context.Context, bookingID int64, statuses ...domain.PaymentStatus) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("booking_id = ? AND status IN ?", bookingID, statuses).
		Count(&cnt).Error
	return cnt > 0, err
}

// LatestWithStatus returns the most recent payment of a booking in one of statuses, or nil.
// methods optionally narrows the search.
func (r *PaymentRepository) LatestWithStatus(ctx context.Context, bookingID int64, statuses []domain.PaymentStatus, methods ...domain.PaymentMethod) (*domain.Payment, error) {
	q := r.db.WithContext(ctx).Where("booking_id = ? AND status IN ?", bookingID, statuses)
	if len(methods) > 0 {
		q = q.Where("payment_method IN ?", methods)
	}
	var out []domain.Payment
	err := q.Order("id desc").Limit(1).Find(&out).Error
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (r *PaymentRepository) ListProcessedBetween(ctx context.Context, from, to time.Time, statuses ...domain.PaymentStatus) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND processed_at >= ? AND processed_at < ?", statuses, from.UTC(), to.UTC()).
		Order("processed_at asc, id asc").
		Find(&out).Error
	return out, err
}

// DeleteUncollected removes PENDING and FAILED attempts of a booking.
func (r *PaymentRepository) DeleteUncollected(ctx context.Context, bookingID int64) error {
	return r.db.WithContext(ctx).
		Where("booking_id = ? AND status IN ?", bookingID, []domain.PaymentStatus{domain.PaymentPending, domain.PaymentFailed}).
		Delete(&domain.Payment{}).Error
}
