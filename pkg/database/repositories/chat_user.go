package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
)

type ChatUserRepository struct {
	db *gorm.DB
}

func NewChatUserRepository(db *gorm.DB) *ChatUserRepository {
	return &ChatUserRepository{db: db}
}

func (r *ChatUserRepository) Create(ctx context.Context, chatUser *models.ChatUser) error {
	return r.db.WithContext(ctx).Create(chatUser).Error
}

func (r *ChatUserRepository) GetByChatID(ctx context.Context, chatID int64) (*models.ChatUser, error) {
	var chatUser models.ChatUser
	err := r.db.WithContext(ctx).Preload("User").Where("chat_id = ?", chatID).First(&chatUser).Error
	if err != nil {
		return nil, err
	}
	return &chatUser, nil
}

func (r *ChatUserRepository) GetByUsername(ctx context.Context, username string) (*models.ChatUser, error) {
	var chatUser models.ChatUser
	err := r.db.WithContext(ctx).Preload("User").Where("username = ?", username).First(&chatUser).Error
	if err != nil {
		return nil, err
	}
	return &chatUser, nil
}

func (r *ChatUserRepository) List(ctx context.Context, isAdmin *bool, limit, offset int) ([]models.ChatUser, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.WithContext(ctx).Preload("User")
	if isAdmin != nil {
		query = query.Where("is_admin = ?", *isAdmin)
	}
	var chatUsers []models.ChatUser
	err := query.Limit(limit).Offset(offset).Find(&chatUsers).Error
	return chatUsers, err
}

func (r *ChatUserRepository) Update(ctx context.Context, chatUser *models.ChatUser) error {
	result := r.db.WithContext(ctx).Model(&models.ChatUser{}).
		Where("chat_id = ?", chatUser.ChatID).
		Updates(map[string]interface{}{
			"username":  chatUser.Username,
			"full_name": chatUser.FullName,
			"is_admin":  chatUser.IsAdmin,
			"meta":      chatUser.Meta,
			"user_id":   chatUser.UserID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ChatUserRepository) Delete(ctx context.Context, chatID int64) error {
	result := r.db.WithContext(ctx).Delete(&models.ChatUser{}, "chat_id = ?", chatID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
