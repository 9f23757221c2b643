package services

import (
	"fmt"
	"log"

	"recessims/server/internal/models"

	"gorm.io/gorm"
)

// ProjectService управляет проектами, эпизодами и катами
type ProjectService struct {
	db        *gorm.DB
	sequences *SequenceService
}

// NewProjectService создает новый экземпляр ProjectService
func NewProjectService(db *gorm.DB, sequences *SequenceService) *ProjectService {
	return &ProjectService{db: db, sequences: sequences}
}

// GetProjects возвращает список проектов с фильтрацией по статусу и типу
func (s *ProjectService) GetProjects(status, projectType string, limit int) ([]models.Project, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.Model(&models.Project{}).
		Order("created_at DESC").
		Limit(limit)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if projectType != "" {
		query = query.Where("type = ?", projectType)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения проектов: %w", err)
	}
	return projects, nil
}

// GetProject возвращает проект по ID
func (s *ProjectService) GetProject(projectID string) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, fmt.Errorf("%w: проект %s", ErrNotFound, projectID)
	}
	return &project, nil
}

// CreateProject создает проект и выдает ему номер PRJ-YYYY-NNNN
func (s *ProjectService) CreateProject(project *models.Project, createdBy string) error {
	if project.Name == "" {
		return fmt.Errorf("%w: не указано название проекта", ErrValidation)
	}
	if project.ClientOrgID == "" {
		return fmt.Errorf("%w: не указан заказчик проекта", ErrValidation)
	}

	var client models.Organization
	if err := s.db.First(&client, "id = ?", project.ClientOrgID).Error; err != nil {
		return fmt.Errorf("%w: организация %s", ErrNotFound, project.ClientOrgID)
	}

	project.CreatedBy = createdBy

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			log.Printf("❌ Транзакция откачена из-за panic: %v", r)
		}
	}()

	projectNo, err := s.sequences.NextNumber(tx, models.SequencePrefixProject)
	if err != nil {
		tx.Rollback()
		return err
	}
	project.ProjectNo = projectNo

	if err := tx.Create(project).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка создания проекта: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("✅ Создан проект: %s (%s)", project.ProjectNo, project.Name)
	return nil
}

// UpdateProject обновляет проект
func (s *ProjectService) UpdateProject(projectID string, updates map[string]interface{}) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, fmt.Errorf("%w: проект %s", ErrNotFound, projectID)
	}

	delete(updates, "id")
	delete(updates, "project_no")
	delete(updates, "created_by")

	if err := s.db.Model(&project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления проекта: %w", err)
	}
	return &project, nil
}

// GetEpisodes возвращает эпизоды проекта
func (s *ProjectService) GetEpisodes(projectID string) ([]models.Episode, error) {
	var episodes []models.Episode
	if err := s.db.Where("project_id = ?", projectID).
		Order("episode_no ASC").
		Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения эпизодов: %w", err)
	}
	return episodes, nil
}

// CreateEpisode добавляет эпизод в проект
func (s *ProjectService) CreateEpisode(episode *models.Episode) error {
	if episode.EpisodeNo <= 0 {
		return fmt.Errorf("%w: номер эпизода должен быть положительным", ErrValidation)
	}

	var project models.Project
	if err := s.db.First(&project, "id = ?", episode.ProjectID).Error; err != nil {
		return fmt.Errorf("%w: проект %s", ErrNotFound, episode.ProjectID)
	}

	if err := s.db.Create(episode).Error; err != nil {
		return fmt.Errorf("ошибка создания эпизода: %w", err)
	}
	return nil
}

// GetCuts возвращает каты эпизода, опционально по этапу производства
func (s *ProjectService) GetCuts(episodeID, processType string) ([]models.Cut, error) {
	query := s.db.Where("episode_id = ?", episodeID).Order("cut_no ASC")
	if processType != "" {
		query = query.Where("process_type = ?", processType)
	}

	var cuts []models.Cut
	if err := query.Find(&cuts).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения катов: %w", err)
	}
	return cuts, nil
}

// CreateCut добавляет кат в эпизод
func (s *ProjectService) CreateCut(cut *models.Cut) error {
	if cut.CutNo == "" {
		return fmt.Errorf("%w: не указан номер ката", ErrValidation)
	}
	if !models.ValidProcessType(cut.ProcessType) {
		return fmt.Errorf("%w: неизвестный этап производства: %s", ErrValidation, cut.ProcessType)
	}

	var episode models.Episode
	if err := s.db.First(&episode, "id = ?", cut.EpisodeID).Error; err != nil {
		return fmt.Errorf("%w: эпизод %s", ErrNotFound, cut.EpisodeID)
	}

	if err := s.db.Create(cut).Error; err != nil {
		return fmt.Errorf("ошибка создания ката: %w", err)
	}
	return nil
}
