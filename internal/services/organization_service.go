package services

import (
	"fmt"

	"recessims/server/internal/models"

	"gorm.io/gorm"
)

// OrganizationService управляет справочником организаций
type OrganizationService struct {
	db *gorm.DB
}

// NewOrganizationService создает новый экземпляр OrganizationService
func NewOrganizationService(db *gorm.DB) *OrganizationService {
	return &OrganizationService{db: db}
}

// GetOrganizations возвращает список организаций с фильтрацией по типу и tier
func (s *OrganizationService) GetOrganizations(orgType string, tier *int, limit int) ([]models.Organization, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.Model(&models.Organization{}).
		Order("created_at DESC").
		Limit(limit)

	if orgType != "" {
		query = query.Where("type = ?", orgType)
	}
	if tier != nil {
		query = query.Where("tier = ?", *tier)
	}

	var orgs []models.Organization
	if err := query.Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения организаций: %w", err)
	}
	return orgs, nil
}

// GetOrganization возвращает организацию по ID
func (s *OrganizationService) GetOrganization(orgID string) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.First(&org, "id = ?", orgID).Error; err != nil {
		return nil, fmt.Errorf("%w: организация %s", ErrNotFound, orgID)
	}
	return &org, nil
}

// CreateOrganization создает организацию
func (s *OrganizationService) CreateOrganization(org *models.Organization) error {
	if org.Name == "" {
		return fmt.Errorf("%w: не указано название организации", ErrValidation)
	}
	if org.Type != models.OrgTypeCommittee && org.Type != models.OrgTypePrime && org.Type != models.OrgTypeSub {
		return fmt.Errorf("%w: неизвестный тип организации: %s", ErrValidation, org.Type)
	}
	if org.Tier < 0 || org.Tier > 2 {
		return fmt.Errorf("%w: tier должен быть 0, 1 или 2", ErrValidation)
	}

	if err := s.db.Create(org).Error; err != nil {
		return fmt.Errorf("ошибка создания организации: %w", err)
	}
	return nil
}

// UpdateOrganization обновляет реквизиты и контакты организации
func (s *OrganizationService) UpdateOrganization(orgID string, updates map[string]interface{}) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.First(&org, "id = ?", orgID).Error; err != nil {
		return nil, fmt.Errorf("%w: организация %s", ErrNotFound, orgID)
	}

	// Тип и tier после создания не меняются
	delete(updates, "id")
	delete(updates, "type")
	delete(updates, "tier")

	if err := s.db.Model(&org).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления организации: %w", err)
	}
	return &org, nil
}
