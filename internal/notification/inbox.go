package notification

import (
	"context"
	"encoding/json"

	"hotelbooking/internal/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Inbox stores in-app notifications. It is the Sender for user recipients.
type Inbox struct {
	db *gorm.DB
}

func NewInbox(db *gorm.DB) *Inbox {
	return &Inbox{db: db}
}

func (i *Inbox) Send(ctx context.Context, msg Message) error {
	userID, err := parseUserRecipient(msg.Recipient)
	if err != nil {
		return err
	}
	data := datatypes.JSON("{}")
	if len(msg.Data) > 0 {
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return err
		}
		data = raw
	}
	return i.db.WithContext(ctx).Create(&domain.Notification{
		UserID:  userID,
		Type:    msg.Template,
		Title:   msg.Subject,
		Message: msg.Body,
		Data:    data,
	}).Error
}

func (i *Inbox) GetUserNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, int64, error) {
	var list []domain.Notification
	if err := i.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	var unread int64
	err := i.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error
	return list, unread, err
}

func (i *Inbox) MarkAsRead(ctx context.Context, id, userID int64) error {
	res := i.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "notification", ID: id}
	}
	return nil
}

func (i *Inbox) MarkAllAsRead(ctx context.Context, userID int64) error {
	return i.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}
