package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"recessims/server/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrderService управляет жизненным циклом заказов-нарядов
type PurchaseOrderService struct {
	db        *gorm.DB
	sequences *SequenceService
	events    *EventPublisher
}

// NewPurchaseOrderService создает новый экземпляр PurchaseOrderService
func NewPurchaseOrderService(db *gorm.DB, sequences *SequenceService, events *EventPublisher) *PurchaseOrderService {
	return &PurchaseOrderService{
		db:        db,
		sequences: sequences,
		events:    events,
	}
}

// CreateOrderInput представляет входные данные для создания заказа
type CreateOrderInput struct {
	ProjectID          string             `json:"project_id" binding:"required"`
	VendorID           string             `json:"vendor_id" binding:"required"`
	ProcessType        models.ProcessType `json:"process_type" binding:"required"`
	Quantity           int                `json:"quantity" binding:"required"`
	Unit               string             `json:"unit"`
	UnitPrice          decimal.Decimal    `json:"unit_price" binding:"required"`
	DifficultyRate     decimal.Decimal    `json:"difficulty_rate"`
	UrgencyRate        decimal.Decimal    `json:"urgency_rate"`
	WithholdingTaxRate decimal.Decimal    `json:"withholding_tax_rate"`
	Deadline           *time.Time         `json:"deadline"`
	Description        string             `json:"description"`
	Notes              string             `json:"notes"`
}

// UpdateOrderInput представляет частичное обновление заказа.
// Nil-поля не трогаются (частичное обновление, как PATCH).
type UpdateOrderInput struct {
	Quantity           *int                `json:"quantity"`
	UnitPrice          *decimal.Decimal    `json:"unit_price"`
	DifficultyRate     *decimal.Decimal    `json:"difficulty_rate"`
	UrgencyRate        *decimal.Decimal    `json:"urgency_rate"`
	WithholdingTaxRate *decimal.Decimal    `json:"withholding_tax_rate"`
	Deadline           *time.Time          `json:"deadline"`
	Description        *string             `json:"description"`
	Notes              *string             `json:"notes"`
	Status             *models.OrderStatus `json:"status"`
}

// validateOrderPricing проверяет расценочные поля по диапазонам бизнес-правил.
// Значения вне диапазона отклоняются, а не приводятся к границе.
func validateOrderPricing(quantity int, unitPrice, difficultyRate, urgencyRate, withholdingRate decimal.Decimal) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: количество должно быть положительным", ErrValidation)
	}
	if !unitPrice.IsPositive() {
		return fmt.Errorf("%w: цена за единицу должна быть положительной", ErrValidation)
	}
	if difficultyRate.LessThan(models.DifficultyRateMin) || difficultyRate.GreaterThan(models.DifficultyRateMax) {
		return fmt.Errorf("%w: коэффициент сложности должен быть в диапазоне [1.0, 2.0]", ErrValidation)
	}
	if urgencyRate.LessThan(models.UrgencyRateMin) || urgencyRate.GreaterThan(models.UrgencyRateMax) {
		return fmt.Errorf("%w: коэффициент срочности должен быть в диапазоне [1.0, 1.5]", ErrValidation)
	}
	if withholdingRate.IsNegative() || withholdingRate.GreaterThan(models.WithholdingMax) {
		return fmt.Errorf("%w: ставка удержания должна быть в диапазоне [0, 0.10]", ErrValidation)
	}
	return nil
}

// CreateOrder создает новый заказ-наряд в статусе draft.
// Номер документа выдается атомарным счетчиком в той же транзакции.
func (s *PurchaseOrderService) CreateOrder(input CreateOrderInput, orderedBy string) (*models.PurchaseOrder, error) {
	if !models.ValidProcessType(input.ProcessType) {
		return nil, fmt.Errorf("%w: неизвестный этап производства: %s", ErrValidation, input.ProcessType)
	}

	// Незаданные коэффициенты означают «без наценки»
	if input.DifficultyRate.IsZero() {
		input.DifficultyRate = models.DifficultyRateMin
	}
	if input.UrgencyRate.IsZero() {
		input.UrgencyRate = models.UrgencyRateMin
	}

	if err := validateOrderPricing(input.Quantity, input.UnitPrice, input.DifficultyRate, input.UrgencyRate, input.WithholdingTaxRate); err != nil {
		return nil, err
	}

	// Ссылки проверяются явными запросами, а не каскадами ORM
	var project models.Project
	if err := s.db.First(&project, "id = ?", input.ProjectID).Error; err != nil {
		return nil, fmt.Errorf("%w: проект %s", ErrNotFound, input.ProjectID)
	}
	var vendor models.Vendor
	if err := s.db.First(&vendor, "id = ?", input.VendorID).Error; err != nil {
		return nil, fmt.Errorf("%w: подрядчик %s", ErrNotFound, input.VendorID)
	}

	now := time.Now().UTC()
	order := &models.PurchaseOrder{
		ProjectID:          input.ProjectID,
		VendorID:           input.VendorID,
		ProcessType:        input.ProcessType,
		Quantity:           input.Quantity,
		Unit:               input.Unit,
		UnitPrice:          input.UnitPrice,
		DifficultyRate:     input.DifficultyRate,
		UrgencyRate:        input.UrgencyRate,
		VATRate:            models.DefaultVATRate,
		WithholdingTaxRate: input.WithholdingTaxRate,
		Status:             models.OrderStatusDraft,
		OrderedBy:          orderedBy,
		OrderedAt:          &now,
		Deadline:           input.Deadline,
		Description:        input.Description,
		Notes:              input.Notes,
	}
	order.CalculateAmounts()

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			log.Printf("❌ Транзакция откачена из-за panic: %v", r)
		}
	}()

	orderNo, err := s.sequences.NextNumber(tx, models.SequencePrefixOrder)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	order.OrderNo = orderNo

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: номер документа %s уже занят", ErrConflict, orderNo)
		}
		return nil, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("✅ Создан заказ-наряд: %s (ID: %s, сумма: %s)", order.OrderNo, order.ID, order.NetAmount)
	s.events.Publish(DocumentEvent{
		Type:       "order_created",
		DocumentNo: order.OrderNo,
		Status:     string(order.Status),
		Amount:     order.NetAmount.String(),
		OccurredAt: now,
	})
	return order, nil
}

// GetOrders возвращает список заказов с фильтрацией по статусу/проекту/подрядчику
func (s *PurchaseOrderService) GetOrders(status, projectID, vendorID string, limit, offset int) ([]models.PurchaseOrder, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.Model(&models.PurchaseOrder{}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var orders []models.PurchaseOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения заказов: %w", err)
	}
	return orders, nil
}

// GetOrder возвращает заказ по ID
func (s *PurchaseOrderService) GetOrder(orderID string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("%w: заказ %s", ErrNotFound, orderID)
	}
	return &order, nil
}

// UpdateOrder обновляет заказ. Разрешено только в статусах draft и pending.
// При изменении любого расценочного поля производные суммы пересчитываются
// до записи — в БД не попадает свежая ставка со старыми суммами.
func (s *PurchaseOrderService) UpdateOrder(orderID string, input UpdateOrderInput) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("%w: заказ %s", ErrNotFound, orderID)
	}

	if order.Status != models.OrderStatusDraft && order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: заказ в статусе %s нельзя редактировать", ErrInvalidState, order.Status)
	}
	statusBefore := order.Status

	pricingChanged := false
	if input.Quantity != nil {
		order.Quantity = *input.Quantity
		pricingChanged = true
	}
	if input.UnitPrice != nil {
		order.UnitPrice = *input.UnitPrice
		pricingChanged = true
	}
	if input.DifficultyRate != nil {
		order.DifficultyRate = *input.DifficultyRate
		pricingChanged = true
	}
	if input.UrgencyRate != nil {
		order.UrgencyRate = *input.UrgencyRate
		pricingChanged = true
	}
	if input.WithholdingTaxRate != nil {
		order.WithholdingTaxRate = *input.WithholdingTaxRate
		pricingChanged = true
	}
	if input.Deadline != nil {
		order.Deadline = input.Deadline
	}
	if input.Description != nil {
		order.Description = *input.Description
	}
	if input.Notes != nil {
		order.Notes = *input.Notes
	}

	// Через update меняется только draft → pending (подача на утверждение).
	// Утверждение и отмена идут через отдельные операции со своими проверками.
	if input.Status != nil && *input.Status != order.Status {
		if *input.Status != models.OrderStatusPending || !order.Status.CanTransitionTo(*input.Status) {
			return nil, fmt.Errorf("%w: переход %s → %s через обновление запрещен", ErrInvalidState, order.Status, *input.Status)
		}
		order.Status = *input.Status
	}

	if pricingChanged {
		if err := validateOrderPricing(order.Quantity, order.UnitPrice, order.DifficultyRate, order.UrgencyRate, order.WithholdingTaxRate); err != nil {
			return nil, err
		}
		order.CalculateAmounts()
	}

	// Запись с условием на статус, прочитанный выше: если заказ успели
	// утвердить или отменить параллельно, устаревшая копия структуры
	// не затрет чужой переход (и поля утверждения вместе с ним)
	result := s.db.Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", orderID, statusBefore).
		Updates(map[string]interface{}{
			"quantity":             order.Quantity,
			"unit_price":           order.UnitPrice,
			"difficulty_rate":      order.DifficultyRate,
			"urgency_rate":         order.UrgencyRate,
			"withholding_tax_rate": order.WithholdingTaxRate,
			"base_amount":          order.BaseAmount,
			"adjusted_amount":      order.AdjustedAmount,
			"vat_amount":           order.VATAmount,
			"withholding_tax":      order.WithholdingTax,
			"net_amount":           order.NetAmount,
			"deadline":             order.Deadline,
			"description":          order.Description,
			"notes":                order.Notes,
			"status":               order.Status,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка обновления заказа: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: заказ уже обработан параллельной операцией", ErrInvalidState)
	}
	return &order, nil
}

// ApproveOrder утверждает заказ (pending → approved).
// Требует уровень роли не ниже L5 (чем меньше число, тем выше полномочия).
// Проверка статуса повторяется в UPDATE с условием: из двух одновременных
// утверждений пройдет только одно, второе увидит RowsAffected == 0.
func (s *PurchaseOrderService) ApproveOrder(orderID string, actor *models.User) (*models.PurchaseOrder, error) {
	if !actor.CanApprove() {
		return nil, fmt.Errorf("%w: утверждение заказов требует уровень роли L%d и выше", ErrPermission, models.ApproverMaxRoleLevel)
	}

	var order models.PurchaseOrder
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("%w: заказ %s", ErrNotFound, orderID)
	}

	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: утвердить можно только заказ в статусе pending (текущий: %s)", ErrInvalidState, order.Status)
	}

	now := time.Now().UTC()
	result := s.db.Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":      models.OrderStatusApproved,
			"approved_by": actor.ID,
			"approved_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка утверждения заказа: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Заказ успел сменить статус в параллельном запросе
		return nil, fmt.Errorf("%w: заказ уже обработан параллельной операцией", ErrInvalidState)
	}

	order.Status = models.OrderStatusApproved
	order.ApprovedBy = &actor.ID
	order.ApprovedAt = &now

	log.Printf("✅ Заказ утвержден: %s (утвердил: %s)", order.OrderNo, actor.Email)
	s.events.Publish(DocumentEvent{
		Type:       "order_approved",
		DocumentNo: order.OrderNo,
		Status:     string(order.Status),
		Amount:     order.NetAmount.String(),
		OccurredAt: now,
	})
	return &order, nil
}

// StartOrder переводит утвержденный заказ в работу (approved → in_progress)
func (s *PurchaseOrderService) StartOrder(orderID string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("%w: заказ %s", ErrNotFound, orderID)
	}

	if !order.Status.CanTransitionTo(models.OrderStatusInProgress) {
		return nil, fmt.Errorf("%w: начать работы можно только по утвержденному заказу (текущий: %s)", ErrInvalidState, order.Status)
	}

	result := s.db.Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Update("status", models.OrderStatusInProgress)
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка перевода заказа в работу: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: заказ уже обработан параллельной операцией", ErrInvalidState)
	}

	order.Status = models.OrderStatusInProgress
	log.Printf("✅ Заказ в работе: %s", order.OrderNo)
	return &order, nil
}

// CancelOrder отменяет заказ. Отмена недоступна для завершенных,
// оплаченных и уже отмененных заказов.
func (s *PurchaseOrderService) CancelOrder(orderID string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("%w: заказ %s", ErrNotFound, orderID)
	}

	if !order.Status.CanTransitionTo(models.OrderStatusCancelled) {
		return nil, fmt.Errorf("%w: заказ в статусе %s нельзя отменить", ErrInvalidState, order.Status)
	}

	result := s.db.Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Update("status", models.OrderStatusCancelled)
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка отмены заказа: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: заказ уже обработан параллельной операцией", ErrInvalidState)
	}

	order.Status = models.OrderStatusCancelled
	log.Printf("✅ Заказ отменен: %s", order.OrderNo)
	s.events.Publish(DocumentEvent{
		Type:       "order_cancelled",
		DocumentNo: order.OrderNo,
		Status:     string(order.Status),
		Amount:     order.NetAmount.String(),
		OccurredAt: time.Now().UTC(),
	})
	return &order, nil
}

// PreviewInput представляет входные данные предварительного расчета
type PreviewInput struct {
	Quantity           int             `json:"quantity" binding:"required"`
	UnitPrice          decimal.Decimal `json:"unit_price" binding:"required"`
	DifficultyRate     decimal.Decimal `json:"difficulty_rate"`
	UrgencyRate        decimal.Decimal `json:"urgency_rate"`
	WithholdingTaxRate decimal.Decimal `json:"withholding_tax_rate"`
}

// OrderCalculation представляет результат предварительного расчета
type OrderCalculation struct {
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	BaseAmount         decimal.Decimal `json:"base_amount"`
	DifficultyRate     decimal.Decimal `json:"difficulty_rate"`
	UrgencyRate        decimal.Decimal `json:"urgency_rate"`
	AdjustedAmount     decimal.Decimal `json:"adjusted_amount"`
	VATRate            decimal.Decimal `json:"vat_rate"`
	VATAmount          decimal.Decimal `json:"vat_amount"`
	WithholdingTaxRate decimal.Decimal `json:"withholding_tax_rate"`
	WithholdingTax     decimal.Decimal `json:"withholding_tax"`
	NetAmount          decimal.Decimal `json:"net_amount"`
}

// PreviewCalculation выполняет предварительный расчет сумм без создания
// заказа: ни записи в БД, ни выдачи номера документа
func (s *PurchaseOrderService) PreviewCalculation(input PreviewInput) (*OrderCalculation, error) {
	if input.DifficultyRate.IsZero() {
		input.DifficultyRate = models.DifficultyRateMin
	}
	if input.UrgencyRate.IsZero() {
		input.UrgencyRate = models.UrgencyRateMin
	}

	if err := validateOrderPricing(input.Quantity, input.UnitPrice, input.DifficultyRate, input.UrgencyRate, input.WithholdingTaxRate); err != nil {
		return nil, err
	}

	amounts := models.CalculateOrderAmounts(
		input.Quantity,
		input.UnitPrice,
		input.DifficultyRate,
		input.UrgencyRate,
		models.DefaultVATRate,
		input.WithholdingTaxRate,
	)

	return &OrderCalculation{
		Quantity:           input.Quantity,
		UnitPrice:          input.UnitPrice,
		BaseAmount:         amounts.BaseAmount,
		DifficultyRate:     input.DifficultyRate,
		UrgencyRate:        input.UrgencyRate,
		AdjustedAmount:     amounts.AdjustedAmount,
		VATRate:            models.DefaultVATRate,
		VATAmount:          amounts.VATAmount,
		WithholdingTaxRate: input.WithholdingTaxRate,
		WithholdingTax:     amounts.WithholdingTax,
		NetAmount:          amounts.NetAmount,
	}, nil
}
