package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus представляет статус заказа-наряда
type OrderStatus string

const (
	OrderStatusDraft      OrderStatus = "draft"       // Черновик
	OrderStatusPending    OrderStatus = "pending"     // Ожидает утверждения
	OrderStatusApproved   OrderStatus = "approved"    // Утвержден
	OrderStatusInProgress OrderStatus = "in_progress" // Работы ведутся
	OrderStatusCompleted  OrderStatus = "completed"   // Работы завершены
	OrderStatusSettled    OrderStatus = "settled"     // Оплачен (расчет закрыт)
	OrderStatusCancelled  OrderStatus = "cancelled"   // Отменен
)

// orderTransitions описывает допустимые переходы статусов заказа.
// Все проверки статусов идут через эту таблицу, а не через разрозненные if-ы.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:      {OrderStatusPending, OrderStatusCancelled},
	OrderStatusPending:    {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved:   {OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {OrderStatusSettled},
	OrderStatusSettled:    {},
	OrderStatusCancelled:  {},
}

// CanTransitionTo проверяет допустимость перехода по таблице переходов
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal проверяет, является ли статус конечным
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// ProcessType представляет этап производственного процесса
type ProcessType string

const (
	ProcessLayout    ProcessType = "layout"    // Лейаут
	ProcessGenga     ProcessType = "genga"     // Ключевая анимация (原画)
	ProcessDouga     ProcessType = "douga"     // Фазовка (動画)
	ProcessColor     ProcessType = "color"     // Заливка
	ProcessBG        ProcessType = "bg"        // Фоны
	ProcessComposite ProcessType = "composite" // Композитинг
)

// ValidProcessType проверяет, что указан известный этап производства
func ValidProcessType(p ProcessType) bool {
	switch p {
	case ProcessLayout, ProcessGenga, ProcessDouga, ProcessColor, ProcessBG, ProcessComposite:
		return true
	}
	return false
}

// Границы ставок по бизнес-правилам (발주 — заказ-наряд подрядчику)
var (
	DifficultyRateMin = decimal.NewFromFloat(1.0)
	DifficultyRateMax = decimal.NewFromFloat(2.0)
	UrgencyRateMin    = decimal.NewFromFloat(1.0)
	UrgencyRateMax    = decimal.NewFromFloat(1.5)
	WithholdingMax    = decimal.NewFromFloat(0.10)

	// НДС фиксирован бизнес-правилом и не принимается от клиента
	DefaultVATRate = decimal.NewFromFloat(0.10)
)

// PurchaseOrder представляет заказ-наряд подрядчику на объем работ одного этапа
type PurchaseOrder struct {
	ID      string `json:"id" gorm:"type:uuid;primaryKey"`
	OrderNo string `json:"order_no" gorm:"type:varchar(20);uniqueIndex;not null"` // PO-2026-0001

	ProjectID string `json:"project_id" gorm:"type:uuid;not null;index"`
	VendorID  string `json:"vendor_id" gorm:"type:uuid;not null;index"`

	// Объем работ
	ProcessType ProcessType `json:"process_type" gorm:"type:varchar(20);not null"`
	Quantity    int         `json:"quantity" gorm:"not null"`                        // Количество катов/листов
	Unit        string      `json:"unit" gorm:"type:varchar(20);default:'cut'"`     // 'cut' или 'sheet'

	// Расценки — база
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	BaseAmount decimal.Decimal `json:"base_amount" gorm:"type:decimal(12,2);not null"` // quantity × unit_price

	// Расценки — коэффициенты
	DifficultyRate decimal.Decimal `json:"difficulty_rate" gorm:"type:decimal(3,2);default:1.0"` // 1.0-2.0
	UrgencyRate    decimal.Decimal `json:"urgency_rate" gorm:"type:decimal(3,2);default:1.0"`    // 1.0-1.5
	AdjustedAmount decimal.Decimal `json:"adjusted_amount" gorm:"type:decimal(12,2);not null"`   // base × difficulty × urgency

	// Расценки — налоги
	VATRate            decimal.Decimal `json:"vat_rate" gorm:"type:decimal(5,4);default:0.10"`
	VATAmount          decimal.Decimal `json:"vat_amount" gorm:"type:decimal(12,2);not null"`
	WithholdingTaxRate decimal.Decimal `json:"withholding_tax_rate" gorm:"type:decimal(5,4);default:0"` // 3.3% для фрилансеров
	WithholdingTax     decimal.Decimal `json:"withholding_tax" gorm:"type:decimal(12,2);default:0"`

	// Расценки — итог
	NetAmount decimal.Decimal `json:"net_amount" gorm:"type:decimal(12,2);not null"` // adjusted + vat - withholding

	Status OrderStatus `json:"status" gorm:"type:varchar(20);default:'draft';not null;index"`

	// Ответственные лица
	OrderedBy  string  `json:"ordered_by" gorm:"type:uuid;not null"`
	ApprovedBy *string `json:"approved_by" gorm:"type:uuid"`

	// Даты
	OrderedAt  *time.Time `json:"ordered_at"`
	ApprovedAt *time.Time `json:"approved_at"`
	Deadline   *time.Time `json:"deadline" gorm:"type:date"`

	Description string `json:"description" gorm:"type:text"`
	Notes       string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// BeforeCreate генерирует UUID и устанавливает значения по умолчанию
func (po *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if po.ID == "" {
		po.ID = uuid.New().String()
	}
	if po.Status == "" {
		po.Status = OrderStatusDraft
	}
	if po.Unit == "" {
		po.Unit = "cut"
	}
	if po.VATRate.IsZero() {
		po.VATRate = DefaultVATRate
	}
	return nil
}

// OrderAmounts содержит пять производных денежных полей заказа
type OrderAmounts struct {
	BaseAmount     decimal.Decimal `json:"base_amount"`
	AdjustedAmount decimal.Decimal `json:"adjusted_amount"`
	VATAmount      decimal.Decimal `json:"vat_amount"`
	WithholdingTax decimal.Decimal `json:"withholding_tax"`
	NetAmount      decimal.Decimal `json:"net_amount"`
}

// CalculateOrderAmounts рассчитывает все суммы заказа по бизнес-правилам.
// Чистая функция: валидация диапазонов — забота вызывающего кода.
//
// Формула:
//  1. base_amount = quantity × unit_price
//  2. adjusted_amount = base_amount × difficulty_rate × urgency_rate
//  3. vat_amount = adjusted_amount × vat_rate (10%)
//  4. withholding_tax = adjusted_amount × withholding_rate (3.3% для фрилансеров)
//  5. net_amount = adjusted_amount + vat_amount - withholding_tax
func CalculateOrderAmounts(quantity int, unitPrice, difficultyRate, urgencyRate, vatRate, withholdingRate decimal.Decimal) OrderAmounts {
	base := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	adjusted := base.Mul(difficultyRate).Mul(urgencyRate).Round(2)
	vat := adjusted.Mul(vatRate).Round(2)
	withholding := adjusted.Mul(withholdingRate).Round(2)
	net := adjusted.Add(vat).Sub(withholding)

	return OrderAmounts{
		BaseAmount:     base,
		AdjustedAmount: adjusted,
		VATAmount:      vat,
		WithholdingTax: withholding,
		NetAmount:      net,
	}
}

// CalculateAmounts пересчитывает производные суммы заказа из текущих входных полей.
// Вызывается при любом изменении quantity/unit_price/коэффициентов —
// устаревшие производные суммы никогда не должны попадать в БД.
func (po *PurchaseOrder) CalculateAmounts() {
	amounts := CalculateOrderAmounts(
		po.Quantity,
		po.UnitPrice,
		po.DifficultyRate,
		po.UrgencyRate,
		po.VATRate,
		po.WithholdingTaxRate,
	)
	po.BaseAmount = amounts.BaseAmount
	po.AdjustedAmount = amounts.AdjustedAmount
	po.VATAmount = amounts.VATAmount
	po.WithholdingTax = amounts.WithholdingTax
	po.NetAmount = amounts.NetAmount
}
