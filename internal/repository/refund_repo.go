package repository

import (
	"context"
	"time"

	"hotelbooking/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, rf *domain.Refund) error {
	err := r.db.WithContext(ctx).Create(rf).Error
	return uniqueConflict(err, "refund transaction id already exists")
}

func (r *RefundRepository) GetByID(ctx context.Context, id int64) (*domain.Refund, error) {
	var rf domain.Refund
	if err := r.db.WithContext(ctx).First(&rf, id).Error; err != nil {
		return nil, notFound(err, "refund", id)
	}
	return &rf, nil
}

func (r *RefundRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Refund, error) {
	var rf domain.Refund
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rf, id).Error
	if err != nil {
		return nil, notFound(err, "refund", id)
	}
	return &rf, nil
}

// GetByReferenceForUpdate finds a refund by our transaction id or by the processor's refund id.
func (r *RefundRepository) GetByReferenceForUpdate(ctx context.Context, ref string) (*domain.Refund, error) {
	var rf domain.Refund
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ? OR (gateway_refund_id <> '' AND gateway_refund_id = ?)", ref, ref).
		First(&rf).Error
	if err != nil {
		return nil, notFound(err, "refund", ref)
	}
	return &rf, nil
}

func (r *RefundRepository) Save(ctx context.Context, rf *domain.Refund) error {
	return r.db.WithContext(ctx).Save(rf).Error
}

func (r *RefundRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.Refund, error) {
	var out []domain.Refund
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

func (r *RefundRepository) SumByStatus(ctx context.Context, bookingID int64, statuses ...domain.RefundStatus) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&domain.Refund{}).
		Where("booking_id = ? AND status IN ?", bookingID, statuses).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return domain.SumAmounts(amounts...), nil
}

func (r *RefundRepository) SumForPayment(ctx context.Context, paymentID int64, statuses ...domain.RefundStatus) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&domain.Refund{}).
		Where("payment_id = ? AND status IN ?", paymentID, statuses).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return domain.SumAmounts(amounts...), nil
}

func (r *RefundRepository) ListProcessedBetween(ctx context.Context, from, to time.Time, statuses ...domain.RefundStatus) ([]domain.Refund, error) {
	var out []domain.Refund
	err := r.db.WithContext(ctx).
		Where("status IN ? AND processed_at >= ? AND processed_at < ?", statuses, from.UTC(), to.UTC()).
		Order("processed_at asc, id asc").
		Find(&out).Error
	return out, err
}
