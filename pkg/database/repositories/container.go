package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
)

// ContainerFilter narrows a container search. Nil fields are ignored.
type ContainerFilter struct {
	Name       string
	OwnerID    *uuid.UUID
	IsTemplate *bool
}

type ContainerRepository struct {
	db *gorm.DB
}

func NewContainerRepository(db *gorm.DB) *ContainerRepository {
	return &ContainerRepository{db: db}
}

func (r *ContainerRepository) Create(ctx context.Context, container *models.Container) error {
	return r.db.WithContext(ctx).Create(container).Error
}

func (r *ContainerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Container, error) {
	var container models.Container
	err := r.db.WithContext(ctx).Preload("Owner").Where("id = ?", id).First(&container).Error
	if err != nil {
		return nil, err
	}
	return &container, nil
}

func (r *ContainerRepository) GetByVMID(ctx context.Context, vmid int) (*models.Container, error) {
	var container models.Container
	err := r.db.WithContext(ctx).Preload("Owner").Where("vm_id = ?", vmid).First(&container).Error
	if err != nil {
		return nil, err
	}
	return &container, nil
}

func (r *ContainerRepository) Search(ctx context.Context, filter ContainerFilter, limit, offset int) ([]models.Container, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Preload("Owner")
	if filter.Name != "" {
		query = query.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.IsTemplate != nil {
		query = query.Where("is_template = ?", *filter.IsTemplate)
	}

	var containers []models.Container
	err := query.Limit(limit).Offset(offset).Find(&containers).Error
	return containers, err
}

func (r *ContainerRepository) Update(ctx context.Context, container *models.Container) error {
	result := r.db.WithContext(ctx).Model(&models.Container{}).
		Where("id = ?", container.ID).
		Updates(map[string]interface{}{
			"name":         container.Name,
			"description":  container.Description,
			"tags":         container.Tags,
			"config":       container.Config,
			"is_template":  container.IsTemplate,
			"is_protected": container.IsProtected,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContainerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Container{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContainerRepository) DeleteByVMID(ctx context.Context, vmid int) error {
	result := r.db.WithContext(ctx).Delete(&models.Container{}, "vm_id = ?", vmid)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
