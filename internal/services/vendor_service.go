package services

import (
	"fmt"

	"recessims/server/internal/models"

	"gorm.io/gorm"
)

// VendorService управляет справочником подрядчиков
type VendorService struct {
	db *gorm.DB
}

// NewVendorService создает новый экземпляр VendorService
func NewVendorService(db *gorm.DB) *VendorService {
	return &VendorService{db: db}
}

// GetVendors возвращает список подрядчиков с фильтрацией
func (s *VendorService) GetVendors(vendorType string, activeOnly bool, limit int) ([]models.Vendor, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.Model(&models.Vendor{}).
		Order("name ASC").
		Limit(limit)

	if vendorType != "" {
		query = query.Where("type = ?", vendorType)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var vendors []models.Vendor
	if err := query.Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения подрядчиков: %w", err)
	}
	return vendors, nil
}

// GetVendor возвращает подрядчика по ID
func (s *VendorService) GetVendor(vendorID string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := s.db.First(&vendor, "id = ?", vendorID).Error; err != nil {
		return nil, fmt.Errorf("%w: подрядчик %s", ErrNotFound, vendorID)
	}
	return &vendor, nil
}

// CreateVendor создает подрядчика.
// Налоговая классификация обязательна: от нее зависит ставка удержания
// в заказах (individual — удержание у источника, corporate — нет).
func (s *VendorService) CreateVendor(vendor *models.Vendor) error {
	if vendor.Name == "" {
		return fmt.Errorf("%w: не указано имя подрядчика", ErrValidation)
	}
	if vendor.Type != models.VendorTypeStudio && vendor.Type != models.VendorTypeFreelancer {
		return fmt.Errorf("%w: неизвестный тип подрядчика: %s", ErrValidation, vendor.Type)
	}
	if vendor.TaxType != models.TaxTypeCorporate && vendor.TaxType != models.TaxTypeIndividual {
		return fmt.Errorf("%w: неизвестная налоговая классификация: %s", ErrValidation, vendor.TaxType)
	}
	if vendor.DefaultRate != nil && !vendor.DefaultRate.IsPositive() {
		return fmt.Errorf("%w: базовая расценка должна быть положительной", ErrValidation)
	}

	if err := s.db.Create(vendor).Error; err != nil {
		return fmt.Errorf("ошибка создания подрядчика: %w", err)
	}
	return nil
}

// UpdateVendor обновляет данные подрядчика
func (s *VendorService) UpdateVendor(vendorID string, updates map[string]interface{}) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := s.db.First(&vendor, "id = ?", vendorID).Error; err != nil {
		return nil, fmt.Errorf("%w: подрядчик %s", ErrNotFound, vendorID)
	}

	delete(updates, "id")

	if err := s.db.Model(&vendor).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления подрядчика: %w", err)
	}
	return &vendor, nil
}
