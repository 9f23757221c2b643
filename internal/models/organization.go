package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrgType представляет тип организации в цепочке подряда
type OrgType string

const (
	OrgTypeCommittee OrgType = "committee" // Производственный комитет
	OrgTypePrime     OrgType = "prime"     // Студия-генподрядчик
	OrgTypeSub       OrgType = "sub"       // Студия-субподрядчик
)

// Organization представляет компанию или студию
//
// Tier 0: производственные комитеты (телеканалы, дистрибьюторы, издатели)
// Tier 1: студии-генподрядчики
// Tier 2: студии-субподрядчики и группы фрилансеров
type Organization struct {
	ID string `json:"id" gorm:"type:uuid;primaryKey"`

	Name   string  `json:"name" gorm:"type:varchar(200);not null"`
	NameJP string  `json:"name_jp" gorm:"type:varchar(200)"`
	Type   OrgType `json:"type" gorm:"type:varchar(20);not null"`
	Tier   int     `json:"tier" gorm:"not null"` // 0, 1 или 2

	// Реквизиты
	BusinessNo string `json:"business_no" gorm:"type:varchar(50)"` // Регистрационный номер
	TaxID      string `json:"tax_id" gorm:"type:varchar(50)"`

	// Банковские данные
	BankName      string `json:"bank_name" gorm:"type:varchar(100)"`
	BankAccount   string `json:"bank_account" gorm:"type:varchar(100)"`
	AccountHolder string `json:"account_holder" gorm:"type:varchar(100)"`

	// Контакты
	ContactPerson string `json:"contact_person" gorm:"type:varchar(100)"`
	Phone         string `json:"phone" gorm:"type:varchar(20)"`
	Email         string `json:"email" gorm:"type:varchar(255)"`
	Address       string `json:"address" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Organization) TableName() string {
	return "organizations"
}

// BeforeCreate генерирует UUID
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}
