package api

import (
	"net/http"
	"strconv"

	"recessims/server/internal/models"
	"recessims/server/internal/services"

	"github.com/gin-gonic/gin"
)

// OrganizationController управляет организациями цепочки подряда
type OrganizationController struct {
	orgService *services.OrganizationService
}

// NewOrganizationController создает новый контроллер
func NewOrganizationController(orgService *services.OrganizationService) *OrganizationController {
	return &OrganizationController{
		orgService: orgService,
	}
}

// GetOrganizations возвращает список организаций
// GET /api/v1/organizations?org_type=...&tier=...&limit=...
func (c *OrganizationController) GetOrganizations(ctx *gin.Context) {
	orgType := ctx.Query("org_type")

	var tier *int
	if tierStr := ctx.Query("tier"); tierStr != "" {
		if value, err := strconv.Atoi(tierStr); err == nil {
			tier = &value
		}
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	orgs, err := c.orgService.GetOrganizations(orgType, tier, limit)
	if err != nil {
		respondError(ctx, err, "Ошибка получения организаций")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"organizations": orgs,
	})
}

// GetOrganization возвращает организацию по ID
// GET /api/v1/organizations/:id
func (c *OrganizationController) GetOrganization(ctx *gin.Context) {
	org, err := c.orgService.GetOrganization(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Организация не найдена")
		return
	}

	ctx.JSON(http.StatusOK, org)
}

// CreateOrganization создает новую организацию
// POST /api/v1/organizations
func (c *OrganizationController) CreateOrganization(ctx *gin.Context) {
	var org models.Organization
	if err := ctx.ShouldBindJSON(&org); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	if err := c.orgService.CreateOrganization(&org); err != nil {
		respondError(ctx, err, "Ошибка создания организации")
		return
	}

	ctx.JSON(http.StatusCreated, org)
}

// UpdateOrganization обновляет организацию
// PUT /api/v1/organizations/:id
func (c *OrganizationController) UpdateOrganization(ctx *gin.Context) {
	var updates map[string]interface{}
	if err := ctx.ShouldBindJSON(&updates); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	org, err := c.orgService.UpdateOrganization(ctx.Param("id"), updates)
	if err != nil {
		respondError(ctx, err, "Ошибка обновления организации")
		return
	}

	ctx.JSON(http.StatusOK, org)
}
