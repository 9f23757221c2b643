package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStatus представляет статус аккаунта пользователя
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"    // Активный
	UserStatusInactive  UserStatus = "inactive"  // Временно отключен
	UserStatusSuspended UserStatus = "suspended" // Заблокирован
)

// ApproverMaxRoleLevel — максимальный (численно) уровень роли, которому
// разрешено утверждать заказы и закрывать расчеты.
// Чем меньше число, тем выше полномочия: L0 — высшее руководство, L7 — рядовой исполнитель.
const ApproverMaxRoleLevel = 5

// User представляет пользователя системы на любом из уровней цепочки подряда
//
// Tier 0: производственный комитет
// Tier 1: студия-генподрядчик (CEO, EP, PD, Desk, PM)
// Tier 2: субподрядчики и фрилансеры
type User struct {
	ID string `json:"id" gorm:"type:uuid;primaryKey"`

	// Аутентификация
	Email        string `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"type:varchar(255);not null"`

	// Профиль
	Name   string `json:"name" gorm:"type:varchar(100);not null"`
	NameJP string `json:"name_jp" gorm:"type:varchar(100)"` // Имя на японском
	Phone  string `json:"phone" gorm:"type:varchar(20)"`

	// Роль и иерархия
	RoleLevel int     `json:"role_level" gorm:"not null"` // L0-L7
	Tier      int     `json:"tier" gorm:"not null"`       // 0, 1 или 2
	OrgID     *string `json:"org_id" gorm:"type:uuid;index"`

	Status      UserStatus `json:"status" gorm:"type:varchar(20);default:'active';not null"`
	IsSuperuser bool       `json:"is_superuser" gorm:"default:false"`

	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	LastLogin *time.Time `json:"last_login"`
}

// TableName указывает имя таблицы
func (User) TableName() string {
	return "users"
}

// BeforeCreate генерирует UUID и устанавливает статус по умолчанию
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// IsActive проверяет, что аккаунт активен
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// CanApprove проверяет полномочия на утверждение заказов и расчетов
func (u *User) CanApprove() bool {
	return u.RoleLevel <= ApproverMaxRoleLevel
}
