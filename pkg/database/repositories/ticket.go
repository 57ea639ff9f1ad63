package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
)

type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).Preload("Owner").Where("id = ?", id).First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *TicketRepository) List(ctx context.Context, limit, offset int) ([]models.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).Preload("Owner").Limit(limit).Offset(offset).Find(&tickets).Error
	return tickets, err
}

// Update persists the mutable ticket fields. The closed flag only ever moves
// from false to true here; reopening is not a supported transition.
func (r *TicketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	result := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ?", ticket.ID).
		Updates(map[string]interface{}{
			"name":   ticket.Name,
			"closed": ticket.Closed,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TicketRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Ticket{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
