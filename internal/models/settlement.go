package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementStatus представляет статус расчета с подрядчиком
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"   // Ожидает обработки
	SettlementStatusApproved  SettlementStatus = "approved"  // Утвержден к оплате
	SettlementStatusPaid      SettlementStatus = "paid"      // Оплачен
	SettlementStatusDisputed  SettlementStatus = "disputed"  // Оспаривается подрядчиком
	SettlementStatusCancelled SettlementStatus = "cancelled" // Отменен
)

// settlementTransitions описывает допустимые переходы статусов расчета.
// Из disputed выход только в cancelled: спорные расчеты закрываются
// заново созданным документом после разбирательства.
var settlementTransitions = map[SettlementStatus][]SettlementStatus{
	SettlementStatusPending:   {SettlementStatusApproved, SettlementStatusDisputed, SettlementStatusCancelled},
	SettlementStatusApproved:  {SettlementStatusPaid, SettlementStatusDisputed, SettlementStatusCancelled},
	SettlementStatusPaid:      {},
	SettlementStatusDisputed:  {SettlementStatusCancelled},
	SettlementStatusCancelled: {},
}

// CanTransitionTo проверяет допустимость перехода по таблице переходов
func (s SettlementStatus) CanTransitionTo(next SettlementStatus) bool {
	for _, allowed := range settlementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal проверяет, является ли статус конечным
func (s SettlementStatus) IsTerminal() bool {
	return len(settlementTransitions[s]) == 0
}

// Settlement представляет расчет (정산) по одному заказу-наряду:
// фактически выполненный объем, удержания и итоговая сумма к выплате
type Settlement struct {
	ID           string `json:"id" gorm:"type:uuid;primaryKey"`
	SettlementNo string `json:"settlement_no" gorm:"type:varchar(20);uniqueIndex;not null"` // ST-2026-0001

	// Ссылки (плоские FK, связанные записи запрашиваются отдельно)
	OrderID   string `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"` // Один расчет на заказ
	VendorID  string `json:"vendor_id" gorm:"type:uuid;not null;index"`
	ProjectID string `json:"project_id" gorm:"type:uuid;not null;index"`

	// Фактически выполненный объем
	CompletedCuts   int `json:"completed_cuts" gorm:"not null"`
	CompletedSheets int `json:"completed_sheets" gorm:"default:0"` // Для фазовки и заливки

	// Суммы, скопированные из заказа на момент создания расчета
	BaseAmount     decimal.Decimal `json:"base_amount" gorm:"type:decimal(12,2);not null"`
	AdjustedAmount decimal.Decimal `json:"adjusted_amount" gorm:"type:decimal(12,2);not null"`
	VATAmount      decimal.Decimal `json:"vat_amount" gorm:"type:decimal(12,2);not null"`
	WithholdingTax decimal.Decimal `json:"withholding_tax" gorm:"type:decimal(12,2);default:0"`
	NetAmount      decimal.Decimal `json:"net_amount" gorm:"type:decimal(12,2);not null"`

	// Удержания и корректировки
	PenaltyAmount    decimal.Decimal `json:"penalty_amount" gorm:"type:decimal(12,2);default:0"`    // Штраф за срыв сроков
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount" gorm:"type:decimal(12,2);default:0"` // Прочие корректировки (любой знак)
	FinalAmount      decimal.Decimal `json:"final_amount" gorm:"type:decimal(12,2);not null"`       // net - penalty + adjustment

	Status SettlementStatus `json:"status" gorm:"type:varchar(20);default:'pending';not null;index"`

	// Ответственные лица
	SettledBy  *string `json:"settled_by" gorm:"type:uuid"`
	ApprovedBy *string `json:"approved_by" gorm:"type:uuid"`

	// Данные о платеже
	PaymentMethod    string     `json:"payment_method" gorm:"type:varchar(50)"` // bank_transfer, cash, ...
	PaymentDate      *time.Time `json:"payment_date" gorm:"type:date"`
	PaymentReference string     `json:"payment_reference" gorm:"type:varchar(100)"`

	Notes string `json:"notes" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName указывает имя таблицы
func (Settlement) TableName() string {
	return "settlements"
}

// BeforeCreate генерирует UUID и устанавливает статус по умолчанию
func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = SettlementStatusPending
	}
	return nil
}

// CalculateFinalAmount рассчитывает итоговую сумму к выплате.
//
// Формула: final_amount = net_amount - penalty_amount + adjustment_amount
func (s *Settlement) CalculateFinalAmount() {
	s.FinalAmount = s.NetAmount.Sub(s.PenaltyAmount).Add(s.AdjustmentAmount)
}
