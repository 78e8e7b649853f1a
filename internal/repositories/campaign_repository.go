package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"whatsapp-campaigns/internal/models"
)

// CampaignRepository handles database operations for campaign records
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{
		db: db,
	}
}

// Record persists the outcome of a delivery run
func (r *CampaignRepository) Record(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// Latest retrieves the most recent campaign of a tenant
func (r *CampaignRepository) Latest(ctx context.Context, tenant string) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).
		Where("tenant = ?", tenant).
		Order("created_at DESC").
		First(&campaign).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &campaign, nil
}

// History retrieves up to limit campaigns of a tenant, newest first
func (r *CampaignRepository) History(ctx context.Context, tenant string, limit int) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	query := r.db.WithContext(ctx).
		Where("tenant = ?", tenant).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&campaigns).Error; err != nil {
		return nil, err
	}

	return campaigns, nil
}
