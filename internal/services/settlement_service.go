package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"recessims/server/internal/models"
	"recessims/server/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const summaryCacheTTL = 30 * time.Second

// SettlementService управляет расчетами с подрядчиками
type SettlementService struct {
	db        *gorm.DB
	sequences *SequenceService
	cache     *utils.RedisClient // Может быть nil — сервер работает без кеша
	events    *EventPublisher
}

// NewSettlementService создает новый экземпляр SettlementService
func NewSettlementService(db *gorm.DB, sequences *SequenceService, cache *utils.RedisClient, events *EventPublisher) *SettlementService {
	return &SettlementService{
		db:        db,
		sequences: sequences,
		cache:     cache,
		events:    events,
	}
}

// CreateSettlementInput представляет входные данные для создания расчета
type CreateSettlementInput struct {
	OrderID          string          `json:"order_id" binding:"required"`
	CompletedCuts    int             `json:"completed_cuts" binding:"required"`
	CompletedSheets  int             `json:"completed_sheets"`
	PenaltyAmount    decimal.Decimal `json:"penalty_amount"`
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount"`
	PaymentMethod    string          `json:"payment_method"`
	Notes            string          `json:"notes"`
}

// UpdateSettlementInput представляет частичное обновление расчета
type UpdateSettlementInput struct {
	CompletedCuts    *int                     `json:"completed_cuts"`
	CompletedSheets  *int                     `json:"completed_sheets"`
	PenaltyAmount    *decimal.Decimal         `json:"penalty_amount"`
	AdjustmentAmount *decimal.Decimal         `json:"adjustment_amount"`
	PaymentMethod    *string                  `json:"payment_method"`
	PaymentDate      *time.Time               `json:"payment_date"`
	PaymentReference *string                  `json:"payment_reference"`
	Notes            *string                  `json:"notes"`
	Status           *models.SettlementStatus `json:"status"`
}

// CreateSettlement создает расчет по утвержденному заказу.
//
// Требования:
//   - заказ существует и находится в статусе approved или completed
//   - по заказу еще нет расчета (один расчет на заказ)
//
// Пять денежных полей копируются из заказа как есть; итоговая сумма
// считается с учетом штрафов и корректировок. Побочный эффект:
// заказ переводится в completed — все в одной транзакции.
func (s *SettlementService) CreateSettlement(input CreateSettlementInput, actor *models.User) (*models.Settlement, error) {
	if input.CompletedCuts <= 0 {
		return nil, fmt.Errorf("%w: количество выполненных катов должно быть положительным", ErrValidation)
	}
	if input.CompletedSheets < 0 {
		return nil, fmt.Errorf("%w: количество листов не может быть отрицательным", ErrValidation)
	}
	if input.PenaltyAmount.IsNegative() {
		return nil, fmt.Errorf("%w: сумма штрафа не может быть отрицательной", ErrValidation)
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			log.Printf("❌ Транзакция откачена из-за panic: %v", r)
		}
	}()

	var order models.PurchaseOrder
	if err := tx.First(&order, "id = ?", input.OrderID).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: заказ %s", ErrNotFound, input.OrderID)
	}

	if order.Status != models.OrderStatusApproved && order.Status != models.OrderStatusCompleted {
		tx.Rollback()
		return nil, fmt.Errorf("%w: расчет создается только по утвержденному заказу (текущий: %s)", ErrInvalidState, order.Status)
	}

	// Один расчет на заказ
	var existing int64
	if err := tx.Model(&models.Settlement{}).Where("order_id = ?", input.OrderID).Count(&existing).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка проверки существующих расчетов: %w", err)
	}
	if existing > 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: по заказу %s уже существует расчет", ErrConflict, order.OrderNo)
	}

	settlementNo, err := s.sequences.NextNumber(tx, models.SequencePrefixSettlement)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	settlement := &models.Settlement{
		SettlementNo:    settlementNo,
		OrderID:         order.ID,
		VendorID:        order.VendorID,
		ProjectID:       order.ProjectID,
		CompletedCuts:   input.CompletedCuts,
		CompletedSheets: input.CompletedSheets,
		// Суммы копируются из заказа на момент создания расчета
		BaseAmount:     order.BaseAmount,
		AdjustedAmount: order.AdjustedAmount,
		VATAmount:      order.VATAmount,
		WithholdingTax: order.WithholdingTax,
		NetAmount:      order.NetAmount,
		// Удержания и корректировки
		PenaltyAmount:    input.PenaltyAmount,
		AdjustmentAmount: input.AdjustmentAmount,
		PaymentMethod:    input.PaymentMethod,
		Notes:            input.Notes,
		SettledBy:        &actor.ID,
		Status:           models.SettlementStatusPending,
	}
	settlement.CalculateFinalAmount()

	if err := tx.Create(settlement).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: по заказу %s уже существует расчет", ErrConflict, order.OrderNo)
		}
		return nil, fmt.Errorf("ошибка создания расчета: %w", err)
	}

	// Создание расчета фиксирует завершение работ по заказу. Условие на
	// статус повторяется в UPDATE: если заказ успели отменить после чтения
	// выше, расчет откатывается вместо перевода cancelled → completed
	orderResult := tx.Model(&models.PurchaseOrder{}).
		Where("id = ? AND status IN ?", order.ID, []models.OrderStatus{models.OrderStatusApproved, models.OrderStatusCompleted}).
		Update("status", models.OrderStatusCompleted)
	if orderResult.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка обновления статуса заказа: %w", orderResult.Error)
	}
	if orderResult.RowsAffected == 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: заказ уже обработан параллельной операцией", ErrInvalidState)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	s.invalidateSummaryCache()
	log.Printf("✅ Создан расчет: %s по заказу %s (к выплате: %s)", settlement.SettlementNo, order.OrderNo, settlement.FinalAmount)
	s.events.Publish(DocumentEvent{
		Type:       "settlement_created",
		DocumentNo: settlement.SettlementNo,
		Status:     string(settlement.Status),
		Amount:     settlement.FinalAmount.String(),
		OccurredAt: time.Now().UTC(),
	})
	return settlement, nil
}

// GetSettlements возвращает список расчетов с фильтрацией
func (s *SettlementService) GetSettlements(status, projectID, vendorID string, limit, offset int) ([]models.Settlement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.Model(&models.Settlement{}).
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

	var settlements []models.Settlement
	if err := query.Find(&settlements).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения расчетов: %w", err)
	}
	return settlements, nil
}

// GetSettlement возвращает расчет по ID
func (s *SettlementService) GetSettlement(settlementID string) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := s.db.First(&settlement, "id = ?", settlementID).Error; err != nil {
		return nil, fmt.Errorf("%w: расчет %s", ErrNotFound, settlementID)
	}
	return &settlement, nil
}

// UpdateSettlement обновляет расчет. Разрешено в статусах pending и approved.
// При изменении штрафа или корректировки итоговая сумма пересчитывается.
func (s *SettlementService) UpdateSettlement(settlementID string, input UpdateSettlementInput) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := s.db.First(&settlement, "id = ?", settlementID).Error; err != nil {
		return nil, fmt.Errorf("%w: расчет %s", ErrNotFound, settlementID)
	}

	if settlement.Status != models.SettlementStatusPending && settlement.Status != models.SettlementStatusApproved {
		return nil, fmt.Errorf("%w: расчет в статусе %s нельзя редактировать", ErrInvalidState, settlement.Status)
	}
	statusBefore := settlement.Status

	amountsChanged := false
	if input.CompletedCuts != nil {
		if *input.CompletedCuts <= 0 {
			return nil, fmt.Errorf("%w: количество выполненных катов должно быть положительным", ErrValidation)
		}
		settlement.CompletedCuts = *input.CompletedCuts
	}
	if input.CompletedSheets != nil {
		if *input.CompletedSheets < 0 {
			return nil, fmt.Errorf("%w: количество листов не может быть отрицательным", ErrValidation)
		}
		settlement.CompletedSheets = *input.CompletedSheets
	}
	if input.PenaltyAmount != nil {
		if input.PenaltyAmount.IsNegative() {
			return nil, fmt.Errorf("%w: сумма штрафа не может быть отрицательной", ErrValidation)
		}
		settlement.PenaltyAmount = *input.PenaltyAmount
		amountsChanged = true
	}
	if input.AdjustmentAmount != nil {
		settlement.AdjustmentAmount = *input.AdjustmentAmount
		amountsChanged = true
	}
	if input.PaymentMethod != nil {
		settlement.PaymentMethod = *input.PaymentMethod
	}
	if input.PaymentDate != nil {
		settlement.PaymentDate = input.PaymentDate
	}
	if input.PaymentReference != nil {
		settlement.PaymentReference = *input.PaymentReference
	}
	if input.Notes != nil {
		settlement.Notes = *input.Notes
	}

	// Перевод в paid идет только через CompleteSettlement с проверкой прав,
	// остальные переходы валидируются по таблице переходов
	if input.Status != nil && *input.Status != settlement.Status {
		if *input.Status == models.SettlementStatusPaid || !settlement.Status.CanTransitionTo(*input.Status) {
			return nil, fmt.Errorf("%w: переход %s → %s через обновление запрещен", ErrInvalidState, settlement.Status, *input.Status)
		}
		settlement.Status = *input.Status
	}

	if amountsChanged {
		settlement.CalculateFinalAmount()
	}

	// Запись с условием на статус, прочитанный выше: параллельная оплата
	// или спор не будут затерты устаревшей копией структуры
	result := s.db.Model(&models.Settlement{}).
		Where("id = ? AND status = ?", settlementID, statusBefore).
		Updates(map[string]interface{}{
			"completed_cuts":    settlement.CompletedCuts,
			"completed_sheets":  settlement.CompletedSheets,
			"penalty_amount":    settlement.PenaltyAmount,
			"adjustment_amount": settlement.AdjustmentAmount,
			"final_amount":      settlement.FinalAmount,
			"payment_method":    settlement.PaymentMethod,
			"payment_date":      settlement.PaymentDate,
			"payment_reference": settlement.PaymentReference,
			"notes":             settlement.Notes,
			"status":            settlement.Status,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка обновления расчета: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: расчет уже обработан параллельной операцией", ErrInvalidState)
	}

	s.invalidateSummaryCache()
	return &settlement, nil
}

// CompleteSettlement закрывает расчет как оплаченный (approved → paid).
// Требует уровень роли не ниже L5. Побочный эффект: заказ-источник
// переводится в settled — в одной транзакции с расчетом.
func (s *SettlementService) CompleteSettlement(settlementID string, actor *models.User) (*models.Settlement, error) {
	if !actor.CanApprove() {
		return nil, fmt.Errorf("%w: закрытие расчетов требует уровень роли L%d и выше", ErrPermission, models.ApproverMaxRoleLevel)
	}

	var settlement models.Settlement
	if err := s.db.First(&settlement, "id = ?", settlementID).Error; err != nil {
		return nil, fmt.Errorf("%w: расчет %s", ErrNotFound, settlementID)
	}

	if settlement.Status != models.SettlementStatusApproved {
		return nil, fmt.Errorf("%w: оплатить можно только утвержденный расчет (текущий: %s)", ErrInvalidState, settlement.Status)
	}

	now := time.Now().UTC()

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			log.Printf("❌ Транзакция откачена из-за panic: %v", r)
		}
	}()

	result := tx.Model(&models.Settlement{}).
		Where("id = ? AND status = ?", settlementID, models.SettlementStatusApproved).
		Updates(map[string]interface{}{
			"status":       models.SettlementStatusPaid,
			"completed_at": now,
			"approved_by":  actor.ID,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка закрытия расчета: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: расчет уже обработан параллельной операцией", ErrInvalidState)
	}

	// Оплата расчета закрывает заказ-источник
	orderResult := tx.Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", settlement.OrderID, models.OrderStatusCompleted).
		Update("status", models.OrderStatusSettled)
	if orderResult.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка обновления статуса заказа: %w", orderResult.Error)
	}
	if orderResult.RowsAffected == 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: заказ уже обработан параллельной операцией", ErrInvalidState)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	settlement.Status = models.SettlementStatusPaid
	settlement.CompletedAt = &now
	settlement.ApprovedBy = &actor.ID

	s.invalidateSummaryCache()
	log.Printf("✅ Расчет оплачен: %s (закрыл: %s)", settlement.SettlementNo, actor.Email)
	s.events.Publish(DocumentEvent{
		Type:       "settlement_paid",
		DocumentNo: settlement.SettlementNo,
		Status:     string(settlement.Status),
		Amount:     settlement.FinalAmount.String(),
		OccurredAt: now,
	})
	return &settlement, nil
}

// DisputeSettlement переводит расчет в статус disputed.
// Спорные расчеты закрываются отменой после разбирательства.
func (s *SettlementService) DisputeSettlement(settlementID string, reason string) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := s.db.First(&settlement, "id = ?", settlementID).Error; err != nil {
		return nil, fmt.Errorf("%w: расчет %s", ErrNotFound, settlementID)
	}

	if !settlement.Status.CanTransitionTo(models.SettlementStatusDisputed) {
		return nil, fmt.Errorf("%w: расчет в статусе %s нельзя оспорить", ErrInvalidState, settlement.Status)
	}
	statusBefore := settlement.Status

	settlement.Status = models.SettlementStatusDisputed
	if reason != "" {
		if settlement.Notes != "" {
			settlement.Notes += "\n\nПричина спора: " + reason
		} else {
			settlement.Notes = "Причина спора: " + reason
		}
	}

	result := s.db.Model(&models.Settlement{}).
		Where("id = ? AND status = ?", settlementID, statusBefore).
		Updates(map[string]interface{}{
			"status": settlement.Status,
			"notes":  settlement.Notes,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка оспаривания расчета: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: расчет уже обработан параллельной операцией", ErrInvalidState)
	}

	s.invalidateSummaryCache()
	log.Printf("⚠️ Расчет оспорен: %s", settlement.SettlementNo)
	return &settlement, nil
}

// SettlementSummary представляет сводку по расчетам для дашборда
type SettlementSummary struct {
	TotalSettlements    int64           `json:"total_settlements"`
	PendingCount        int64           `json:"pending_count"`
	ApprovedCount       int64           `json:"approved_count"`
	PaidCount           int64           `json:"paid_count"`
	TotalPendingAmount  decimal.Decimal `json:"total_pending_amount"`
	TotalApprovedAmount decimal.Decimal `json:"total_approved_amount"`
	TotalPaidAmount     decimal.Decimal `json:"total_paid_amount"`
}

func summaryCacheKey(projectID string) string {
	if projectID == "" {
		return "settlements:summary"
	}
	return "settlements:summary:" + projectID
}

// GetSummary возвращает количество и суммы расчетов по статусам,
// опционально в разрезе проекта. Чтение без побочных эффектов;
// результат кешируется в Redis на короткий срок.
func (s *SettlementService) GetSummary(projectID string) (*SettlementSummary, error) {
	if s.cache != nil {
		var cached SettlementSummary
		if err := s.cache.GetJSON(summaryCacheKey(projectID), &cached); err == nil {
			return &cached, nil
		}
	}

	type statusRow struct {
		Status models.SettlementStatus
		Count  int64
		Total  decimal.Decimal
	}

	query := s.db.Model(&models.Settlement{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(final_amount), 0) AS total").
		Group("status")
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}

	var rows []statusRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка агрегации расчетов: %w", err)
	}

	summary := &SettlementSummary{
		TotalPendingAmount:  decimal.Zero,
		TotalApprovedAmount: decimal.Zero,
		TotalPaidAmount:     decimal.Zero,
	}
	for _, row := range rows {
		summary.TotalSettlements += row.Count
		switch row.Status {
		case models.SettlementStatusPending:
			summary.PendingCount = row.Count
			summary.TotalPendingAmount = row.Total
		case models.SettlementStatusApproved:
			summary.ApprovedCount = row.Count
			summary.TotalApprovedAmount = row.Total
		case models.SettlementStatusPaid:
			summary.PaidCount = row.Count
			summary.TotalPaidAmount = row.Total
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(summaryCacheKey(projectID), summary, summaryCacheTTL); err != nil {
			log.Printf("⚠️ Не удалось закешировать сводку расчетов: %v", err)
		}
	}
	return summary, nil
}

// invalidateSummaryCache сбрасывает кеш сводки после мутаций.
// Ключи по проектам живут не дольше TTL, сбрасываем только общий.
func (s *SettlementService) invalidateSummaryCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(summaryCacheKey("")); err != nil {
		log.Printf("⚠️ Не удалось сбросить кеш сводки расчетов: %v", err)
	}
}

// ExportSettlements выгружает реестр расчетов в Excel для бухгалтерии
func (s *SettlementService) ExportSettlements(projectID string) ([]byte, error) {
	settlements, err := s.GetSettlements("", projectID, "", 500, 0)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Settlements"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Номер", "Заказ", "Статус", "Катов", "Листов",
		"База", "С коэффициентами", "НДС", "Удержание", "К выплате (net)",
		"Штраф", "Корректировка", "Итого", "Способ оплаты", "Дата оплаты",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("ошибка формирования выгрузки: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("ошибка формирования выгрузки: %w", err)
		}
	}

	for i, st := range settlements {
		row := i + 2
		paymentDate := ""
		if st.PaymentDate != nil {
			paymentDate = st.PaymentDate.Format("2006-01-02")
		}
		values := []interface{}{
			st.SettlementNo, st.OrderID, string(st.Status), st.CompletedCuts, st.CompletedSheets,
			st.BaseAmount.String(), st.AdjustedAmount.String(), st.VATAmount.String(),
			st.WithholdingTax.String(), st.NetAmount.String(),
			st.PenaltyAmount.String(), st.AdjustmentAmount.String(), st.FinalAmount.String(),
			st.PaymentMethod, paymentDate,
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return nil, fmt.Errorf("ошибка формирования выгрузки: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("ошибка формирования выгрузки: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка записи Excel-файла: %w", err)
	}
	return buf.Bytes(), nil
}
