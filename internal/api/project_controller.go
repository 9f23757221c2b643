package api

import (
	"net/http"
	"strconv"

	"recessims/server/internal/models"
	"recessims/server/internal/services"

	"github.com/gin-gonic/gin"
)

// ProjectController управляет проектами, эпизодами и катами
type ProjectController struct {
	projectService *services.ProjectService
}

// NewProjectController создает новый контроллер
func NewProjectController(projectService *services.ProjectService) *ProjectController {
	return &ProjectController{
		projectService: projectService,
	}
}

// GetProjects возвращает список проектов
// GET /api/v1/projects?status=...&project_type=...&limit=...
func (c *ProjectController) GetProjects(ctx *gin.Context) {
	status := ctx.Query("status")
	projectType := ctx.Query("project_type")

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	projects, err := c.projectService.GetProjects(status, projectType, limit)
	if err != nil {
		respondError(ctx, err, "Ошибка получения проектов")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"projects": projects,
	})
}

// GetProject возвращает проект по ID
// GET /api/v1/projects/:id
func (c *ProjectController) GetProject(ctx *gin.Context) {
	project, err := c.projectService.GetProject(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Проект не найден")
		return
	}

	ctx.JSON(http.StatusOK, project)
}

// CreateProject создает новый проект
// POST /api/v1/projects
func (c *ProjectController) CreateProject(ctx *gin.Context) {
	var project models.Project
	if err := ctx.ShouldBindJSON(&project); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	user := CurrentUser(ctx)
	if err := c.projectService.CreateProject(&project, user.ID); err != nil {
		respondError(ctx, err, "Ошибка создания проекта")
		return
	}

	ctx.JSON(http.StatusCreated, project)
}

// UpdateProject обновляет проект
// PUT /api/v1/projects/:id
func (c *ProjectController) UpdateProject(ctx *gin.Context) {
	var updates map[string]interface{}
	if err := ctx.ShouldBindJSON(&updates); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	project, err := c.projectService.UpdateProject(ctx.Param("id"), updates)
	if err != nil {
		respondError(ctx, err, "Ошибка обновления проекта")
		return
	}

	ctx.JSON(http.StatusOK, project)
}

// GetEpisodes возвращает эпизоды проекта
// GET /api/v1/projects/:id/episodes
func (c *ProjectController) GetEpisodes(ctx *gin.Context) {
	episodes, err := c.projectService.GetEpisodes(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Ошибка получения эпизодов")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"episodes": episodes,
	})
}

// CreateEpisode добавляет эпизод в проект
// POST /api/v1/projects/:id/episodes
func (c *ProjectController) CreateEpisode(ctx *gin.Context) {
	var episode models.Episode
	if err := ctx.ShouldBindJSON(&episode); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	episode.ProjectID = ctx.Param("id")
	if err := c.projectService.CreateEpisode(&episode); err != nil {
		respondError(ctx, err, "Ошибка создания эпизода")
		return
	}

	ctx.JSON(http.StatusCreated, episode)
}

// GetCuts возвращает каты эпизода
// GET /api/v1/episodes/:id/cuts?process_type=...
func (c *ProjectController) GetCuts(ctx *gin.Context) {
	cuts, err := c.projectService.GetCuts(ctx.Param("id"), ctx.Query("process_type"))
	if err != nil {
		respondError(ctx, err, "Ошибка получения катов")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"cuts": cuts,
	})
}

// CreateCut добавляет кат в эпизод
// POST /api/v1/episodes/:id/cuts
func (c *ProjectController) CreateCut(ctx *gin.Context) {
	var cut models.Cut
	if err := ctx.ShouldBindJSON(&cut); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	cut.EpisodeID = ctx.Param("id")
	if err := c.projectService.CreateCut(&cut); err != nil {
		respondError(ctx, err, "Ошибка создания ката")
		return
	}

	ctx.JSON(http.StatusCreated, cut)
}
