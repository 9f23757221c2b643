package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectType представляет тип аниме-проекта
type ProjectType string

const (
	ProjectTypeTVA   ProjectType = "TVA"   // ТВ-сериал
	ProjectTypeMovie ProjectType = "Movie" // Полнометражный фильм
	ProjectTypeOVA   ProjectType = "OVA"
	ProjectTypeWeb   ProjectType = "Web"
)

// ProjectStatus представляет статус проекта или эпизода
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Project представляет производственный проект (тайтл)
type Project struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectNo string `json:"project_no" gorm:"type:varchar(20);uniqueIndex;not null"` // PRJ-2026-001

	Name   string `json:"name" gorm:"type:varchar(200);not null"`
	NameJP string `json:"name_jp" gorm:"type:varchar(200)"`

	ClientOrgID string      `json:"client_org_id" gorm:"type:uuid;not null;index"`
	Type        ProjectType `json:"type" gorm:"type:varchar(20);not null"`

	TotalEpisodes *int            `json:"total_episodes"`
	TotalCuts     int             `json:"total_cuts" gorm:"default:0"`
	CompletedCuts int             `json:"completed_cuts" gorm:"default:0"`
	Progress      decimal.Decimal `json:"progress" gorm:"type:decimal(5,2);default:0"` // Процент 0-100

	Status   ProjectStatus    `json:"status" gorm:"type:varchar(20);default:'planning';not null"`
	Budget   *decimal.Decimal `json:"budget" gorm:"type:decimal(15,2)"`
	Deadline *time.Time       `json:"deadline" gorm:"type:date"`

	Description string `json:"description" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate генерирует UUID и устанавливает статус по умолчанию
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = ProjectStatusPlanning
	}
	return nil
}

// Episode представляет эпизод внутри проекта
type Episode struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID string `json:"project_id" gorm:"type:uuid;not null;index"`

	EpisodeNo int    `json:"episode_no" gorm:"not null"`
	Name      string `json:"name" gorm:"type:varchar(200)"`
	NameJP    string `json:"name_jp" gorm:"type:varchar(200)"`

	TotalCuts     int             `json:"total_cuts" gorm:"default:0"`
	CompletedCuts int             `json:"completed_cuts" gorm:"default:0"`
	Progress      decimal.Decimal `json:"progress" gorm:"type:decimal(5,2);default:0"`

	Deadline *time.Time    `json:"deadline" gorm:"type:date"`
	Status   ProjectStatus `json:"status" gorm:"type:varchar(20);default:'planning';not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Episode) TableName() string {
	return "episodes"
}

// BeforeCreate генерирует UUID
func (e *Episode) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// CutStatus представляет статус ката в производстве
type CutStatus string

const (
	CutStatusAssigned   CutStatus = "assigned"
	CutStatusInProgress CutStatus = "in_progress"
	CutStatusQC1Pending CutStatus = "qc1_pending"
	CutStatusQC2Pending CutStatus = "qc2_pending"
	CutStatusQC3Pending CutStatus = "qc3_pending"
	CutStatusCompleted  CutStatus = "completed"
	CutStatusRework     CutStatus = "rework"
)

// Cut представляет кат — минимальную единицу работы в производстве
type Cut struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey"`
	EpisodeID string `json:"episode_id" gorm:"type:uuid;not null;index"`

	CutNo   string `json:"cut_no" gorm:"type:varchar(20);not null"`
	SceneNo string `json:"scene_no" gorm:"type:varchar(20)"`

	ProcessType     ProcessType     `json:"process_type" gorm:"type:varchar(20);not null"`
	DifficultyLevel decimal.Decimal `json:"difficulty_level" gorm:"type:decimal(3,2);default:1.0"` // 1.0-2.0

	AssignedTo *string   `json:"assigned_to" gorm:"type:uuid"`
	Status     CutStatus `json:"status" gorm:"type:varchar(20);default:'assigned';not null"`

	SubmittedAt *time.Time `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Notes string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Cut) TableName() string {
	return "cuts"
}

// BeforeCreate генерирует UUID
func (c *Cut) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
