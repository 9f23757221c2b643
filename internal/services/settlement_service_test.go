package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"recessims/server/internal/models"

	"gorm.io/gorm"
)

func TestCreateSettlementCopiesAmountsAndCompletesOrder(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	settlement, err := svc.CreateSettlement(CreateSettlementInput{
		OrderID:          order.ID,
		CompletedCuts:    50,
		PenaltyAmount:    d("50000"),
		AdjustmentAmount: d("10000"),
		PaymentMethod:    "bank_transfer",
	}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	wantNo := fmt.Sprintf("ST-%d-0001", time.Now().UTC().Year())
	if settlement.SettlementNo != wantNo {
		t.Errorf("settlement_no = %s, want %s", settlement.SettlementNo, wantNo)
	}
	if settlement.Status != models.SettlementStatusPending {
		t.Errorf("status = %s, want pending", settlement.Status)
	}

	// Пять сумм копируются из заказа как есть
	if !settlement.BaseAmount.Equal(order.BaseAmount) ||
		!settlement.AdjustedAmount.Equal(order.AdjustedAmount) ||
		!settlement.VATAmount.Equal(order.VATAmount) ||
		!settlement.WithholdingTax.Equal(order.WithholdingTax) ||
		!settlement.NetAmount.Equal(order.NetAmount) {
		t.Error("суммы расчета не совпадают с суммами заказа")
	}

	// final = net - penalty + adjustment = 960300 - 50000 + 10000
	if !settlement.FinalAmount.Equal(d("920300")) {
		t.Errorf("final_amount = %s, want 920300", settlement.FinalAmount)
	}

	// Создание расчета фиксирует завершение работ по заказу
	reloaded, err := orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if reloaded.Status != models.OrderStatusCompleted {
		t.Errorf("статус заказа = %s, want completed", reloaded.Status)
	}
}

func TestCreateSettlementOnePerOrder(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk); err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}
	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk); !errors.Is(err, ErrConflict) {
		t.Errorf("второй расчет по заказу: err = %v, want ErrConflict", err)
	}
}

func TestCreateSettlementWrongOrderState(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	project := createTestProject(t, db)
	vendor := createTestVendor(t, db)

	order, err := orderSvc.CreateOrder(CreateOrderInput{
		ProjectID:   project.ID,
		VendorID:    vendor.ID,
		ProcessType: models.ProcessGenga,
		Quantity:    10,
		UnitPrice:   d("1000"),
	}, desk.ID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// По черновику расчет не создается
	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 10}, desk); !errors.Is(err, ErrInvalidState) {
		t.Errorf("расчет по draft: err = %v, want ErrInvalidState", err)
	}

	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: "00000000-0000-0000-0000-0000000000ff", CompletedCuts: 10}, desk); !errors.Is(err, ErrNotFound) {
		t.Errorf("расчет по несуществующему заказу: err = %v, want ErrNotFound", err)
	}
}

func TestCreateSettlementValidation(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 0}, desk); !errors.Is(err, ErrValidation) {
		t.Errorf("нулевой объем: err = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 10, PenaltyAmount: d("-1")}, desk); !errors.Is(err, ErrValidation) {
		t.Errorf("отрицательный штраф: err = %v, want ErrValidation", err)
	}
}

func TestUpdateSettlementRecalculatesFinal(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	settlement, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	penalty := d("60000")
	updated, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{PenaltyAmount: &penalty})
	if err != nil {
		t.Fatalf("UpdateSettlement: %v", err)
	}
	if !updated.FinalAmount.Equal(d("900300")) {
		t.Errorf("final_amount = %s, want 900300", updated.FinalAmount)
	}
}

func TestUpdateSettlementCannotSetPaid(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	settlement, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	paid := models.SettlementStatusPaid
	if _, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{Status: &paid}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("paid через update: err = %v, want ErrInvalidState", err)
	}

	// Утверждение через update разрешено (pending -> approved)
	approved := models.SettlementStatusApproved
	updated, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{Status: &approved})
	if err != nil {
		t.Fatalf("pending -> approved: %v", err)
	}
	if updated.Status != models.SettlementStatusApproved {
		t.Errorf("status = %s, want approved", updated.Status)
	}
}

func TestCompleteSettlementSettlesOrder(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	worker := createTestUser(t, db, "worker@studio.test", 6)
	order := createApprovedOrder(t, db, orderSvc, desk)

	settlement, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	// pending нельзя оплатить
	if _, err := svc.CompleteSettlement(settlement.ID, desk); !errors.Is(err, ErrInvalidState) {
		t.Errorf("complete pending: err = %v, want ErrInvalidState", err)
	}

	approved := models.SettlementStatusApproved
	if _, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{Status: &approved}); err != nil {
		t.Fatalf("approve settlement: %v", err)
	}

	// Недостаточный уровень роли
	if _, err := svc.CompleteSettlement(settlement.ID, worker); !errors.Is(err, ErrPermission) {
		t.Errorf("L6: err = %v, want ErrPermission", err)
	}

	paid, err := svc.CompleteSettlement(settlement.ID, desk)
	if err != nil {
		t.Fatalf("CompleteSettlement: %v", err)
	}
	if paid.Status != models.SettlementStatusPaid {
		t.Errorf("status = %s, want paid", paid.Status)
	}
	if paid.CompletedAt == nil {
		t.Error("completed_at не заполнен")
	}

	// Оплата расчета закрывает заказ
	reloaded, err := orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if reloaded.Status != models.OrderStatusSettled {
		t.Errorf("статус заказа = %s, want settled", reloaded.Status)
	}

	// Повторная оплата
	if _, err := svc.CompleteSettlement(settlement.ID, desk); !errors.Is(err, ErrInvalidState) {
		t.Errorf("повторный complete: err = %v, want ErrInvalidState", err)
	}
}

func TestDisputeSettlement(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	settlement, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	disputed, err := svc.DisputeSettlement(settlement.ID, "объем занижен")
	if err != nil {
		t.Fatalf("DisputeSettlement: %v", err)
	}
	if disputed.Status != models.SettlementStatusDisputed {
		t.Errorf("status = %s, want disputed", disputed.Status)
	}
	if disputed.Notes == "" {
		t.Error("причина спора не записана в notes")
	}

	// Спорный расчет нельзя редактировать или оспорить повторно
	if _, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("update disputed: err = %v, want ErrInvalidState", err)
	}
	if _, err := svc.DisputeSettlement(settlement.ID, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("повторный dispute: err = %v, want ErrInvalidState", err)
	}
}

func TestGetSummary(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)

	first := createApprovedOrder(t, db, orderSvc, desk)
	second := createApprovedOrder(t, db, orderSvc, desk)

	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: first.ID, CompletedCuts: 50}, desk); err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}
	settlement, err := svc.CreateSettlement(CreateSettlementInput{OrderID: second.ID, CompletedCuts: 50}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	approved := models.SettlementStatusApproved
	if _, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{Status: &approved}); err != nil {
		t.Fatalf("approve settlement: %v", err)
	}
	if _, err := svc.CompleteSettlement(settlement.ID, desk); err != nil {
		t.Fatalf("CompleteSettlement: %v", err)
	}

	summary, err := svc.GetSummary("")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalSettlements != 2 {
		t.Errorf("total_settlements = %d, want 2", summary.TotalSettlements)
	}
	if summary.PendingCount != 1 || summary.PaidCount != 1 {
		t.Errorf("pending/paid = %d/%d, want 1/1", summary.PendingCount, summary.PaidCount)
	}
	if !summary.TotalPaidAmount.Equal(d("960300")) {
		t.Errorf("total_paid_amount = %s, want 960300", summary.TotalPaidAmount)
	}

	// Сводка по чужому проекту пуста
	other, err := svc.GetSummary("00000000-0000-0000-0000-0000000000ff")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if other.TotalSettlements != 0 {
		t.Errorf("чужой проект: total_settlements = %d, want 0", other.TotalSettlements)
	}
}

func TestExportSettlements(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk); err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	data, err := svc.ExportSettlements("")
	if err != nil {
		t.Fatalf("ExportSettlements: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("пустая выгрузка")
	}
	// XLSX — это zip-архив
	if data[0] != 'P' || data[1] != 'K' {
		t.Errorf("выгрузка не похожа на xlsx: первые байты %q", data[:2])
	}
}

// Отмена заказа, проскочившая между чтением внутри CreateSettlement и
// переводом заказа в completed, не должна быть затерта: транзакция
// откатывается целиком, расчет не сохраняется.
func TestCreateSettlementConcurrentCancel(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	armed := false
	if err := db.Callback().Query().After("gorm:query").Register("race_cancel", func(cb *gorm.DB) {
		if !armed || cb.Statement.Table != "purchase_orders" {
			return
		}
		armed = false
		res := cb.Session(&gorm.Session{NewDB: true}).Model(&models.PurchaseOrder{}).
			Where("id = ?", order.ID).
			Update("status", models.OrderStatusCancelled)
		if res.Error != nil {
			t.Errorf("отмена заказа: %v", res.Error)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	armed = true
	if _, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk); !errors.Is(err, ErrInvalidState) {
		t.Errorf("расчет поверх отмены: err = %v, want ErrInvalidState", err)
	}

	var count int64
	db.Model(&models.Settlement{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 0 {
		t.Errorf("после отката осталось %d расчетов", count)
	}
	var reloaded models.PurchaseOrder
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status == models.OrderStatusCompleted {
		t.Error("отмененный заказ переведен в completed")
	}
}

// Конкурирующий спор между чтением расчета внутри UpdateSettlement
// и записью: проигравшее обновление отклоняется, статус и причина
// спора остаются нетронутыми.
func TestUpdateSettlementConcurrentDispute(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	settlement, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	armed := false
	if err := db.Callback().Query().After("gorm:query").Register("race_dispute", func(cb *gorm.DB) {
		if !armed || cb.Statement.Table != "settlements" {
			return
		}
		armed = false
		if _, err := svc.DisputeSettlement(settlement.ID, "объем не подтвержден"); err != nil {
			t.Errorf("DisputeSettlement: %v", err)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	armed = true
	penalty := d("60000")
	if _, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{PenaltyAmount: &penalty}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("обновление поверх спора: err = %v, want ErrInvalidState", err)
	}

	var reloaded models.Settlement
	if err := db.First(&reloaded, "id = ?", settlement.ID).Error; err != nil {
		t.Fatalf("reload settlement: %v", err)
	}
	if reloaded.Status != models.SettlementStatusDisputed {
		t.Errorf("статус = %s, want disputed", reloaded.Status)
	}
	if reloaded.Notes == "" {
		t.Error("причина спора затерта устаревшей записью")
	}
	if !reloaded.FinalAmount.Equal(settlement.FinalAmount) {
		t.Errorf("final_amount = %s, want %s (штраф проигравшего обновления не применен)", reloaded.FinalAmount, settlement.FinalAmount)
	}
}

// Симметричный случай: расчет успевает сменить статус, пока
// DisputeSettlement держит устаревшую копию.
func TestDisputeSettlementConcurrentTransition(t *testing.T) {
	db := setupTestDB(t)
	seqs := NewSequenceService(db)
	orderSvc := NewPurchaseOrderService(db, seqs, nil)
	svc := NewSettlementService(db, seqs, nil, nil)
	desk := createTestUser(t, db, "desk@studio.test", 4)
	order := createApprovedOrder(t, db, orderSvc, desk)

	settlement, err := svc.CreateSettlement(CreateSettlementInput{OrderID: order.ID, CompletedCuts: 50}, desk)
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	armed := false
	if err := db.Callback().Query().After("gorm:query").Register("race_approve_settlement", func(cb *gorm.DB) {
		if !armed || cb.Statement.Table != "settlements" {
			return
		}
		armed = false
		approved := models.SettlementStatusApproved
		if _, err := svc.UpdateSettlement(settlement.ID, UpdateSettlementInput{Status: &approved}); err != nil {
			t.Errorf("UpdateSettlement: %v", err)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	armed = true
	if _, err := svc.DisputeSettlement(settlement.ID, "объем не подтвержден"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("спор поверх утверждения: err = %v, want ErrInvalidState", err)
	}

	var reloaded models.Settlement
	if err := db.First(&reloaded, "id = ?", settlement.ID).Error; err != nil {
		t.Fatalf("reload settlement: %v", err)
	}
	if reloaded.Status != models.SettlementStatusApproved {
		t.Errorf("статус = %s, want approved", reloaded.Status)
	}
	if reloaded.Notes != "" {
		t.Errorf("notes = %q, want пусто (причина спора не записана)", reloaded.Notes)
	}
}
