package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VendorType представляет тип подрядчика
type VendorType string

const (
	VendorTypeStudio     VendorType = "studio"     // Студия-субподрядчик
	VendorTypeFreelancer VendorType = "freelancer" // Фрилансер
)

// TaxType представляет налоговую классификацию подрядчика
type TaxType string

const (
	TaxTypeCorporate  TaxType = "corporate"  // Юрлицо — подоходный налог не удерживается
	TaxTypeIndividual TaxType = "individual" // Физлицо — удержание у источника (3.3%)
)

// Vendor представляет подрядчика (студию или фрилансера), получающего заказы
type Vendor struct {
	ID string `json:"id" gorm:"type:uuid;primaryKey"`

	Name   string     `json:"name" gorm:"type:varchar(200);not null"`
	NameJP string     `json:"name_jp" gorm:"type:varchar(200)"`
	Type   VendorType `json:"type" gorm:"type:varchar(20);not null"`
	Tier   int        `json:"tier" gorm:"not null"` // Обычно tier 2

	// Связь с организацией (если студия)
	OrgID *string `json:"org_id" gorm:"type:uuid;index"`

	// Контакты
	ContactPerson string `json:"contact_person" gorm:"type:varchar(100)"`
	Phone         string `json:"phone" gorm:"type:varchar(20)"`
	Email         string `json:"email" gorm:"type:varchar(255)"`

	// Реквизиты
	BusinessNo string  `json:"business_no" gorm:"type:varchar(50)"`
	TaxType    TaxType `json:"tax_type" gorm:"type:varchar(20);not null"`

	// Банковские данные
	BankName      string `json:"bank_name" gorm:"type:varchar(100)"`
	BankAccount   string `json:"bank_account" gorm:"type:varchar(100)"`
	AccountHolder string `json:"account_holder" gorm:"type:varchar(100)"`

	// Базовая расценка за единицу (если согласована)
	DefaultRate *decimal.Decimal `json:"default_rate" gorm:"type:decimal(10,2)"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Vendor) TableName() string {
	return "vendors"
}

// BeforeCreate генерирует UUID
func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
