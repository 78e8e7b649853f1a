package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"whatsapp-campaigns/internal/models"
)

// ResponderRuleRepository handles database operations for auto-responder rules
type ResponderRuleRepository struct {
	db *gorm.DB
}

// NewResponderRuleRepository creates a new responder rule repository
func NewResponderRuleRepository(db *gorm.DB) *ResponderRuleRepository {
	return &ResponderRuleRepository{
		db: db,
	}
}

// Create creates a new rule
func (r *ResponderRuleRepository) Create(ctx context.Context, rule *models.ResponderRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// ListBySession retrieves the rules of a session in creation order
func (r *ResponderRuleRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.ResponderRule, error) {
	var rules []*models.ResponderRule
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&rules).Error

	if err != nil {
		return nil, err
	}

	return rules, nil
}

// Update replaces keyword and response of a rule owned by sessionID
func (r *ResponderRuleRepository) Update(ctx context.Context, id uuid.UUID, sessionID, keyword, response string) (*models.ResponderRule, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ResponderRule{}).
		Where("id = ? AND session_id = ?", id, sessionID).
		Updates(map[string]interface{}{
			"keyword":  keyword,
			"response": response,
		})

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var rule models.ResponderRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Delete removes a rule owned by sessionID
func (r *ResponderRuleRepository) Delete(ctx context.Context, id uuid.UUID, sessionID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND session_id = ?", id, sessionID).
		Delete(&models.ResponderRule{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
