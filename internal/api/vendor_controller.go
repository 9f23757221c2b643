package api

import (
	"net/http"
	"strconv"

	"recessims/server/internal/models"
	"recessims/server/internal/services"

	"github.com/gin-gonic/gin"
)

// VendorController управляет исполнителями (студии и фрилансеры)
type VendorController struct {
	vendorService *services.VendorService
}

// NewVendorController создает новый контроллер
func NewVendorController(vendorService *services.VendorService) *VendorController {
	return &VendorController{
		vendorService: vendorService,
	}
}

// GetVendors возвращает список исполнителей
// GET /api/v1/vendors?vendor_type=...&active_only=true&limit=...
func (c *VendorController) GetVendors(ctx *gin.Context) {
	vendorType := ctx.Query("vendor_type")
	activeOnly := ctx.Query("active_only") == "true"

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	vendors, err := c.vendorService.GetVendors(vendorType, activeOnly, limit)
	if err != nil {
		respondError(ctx, err, "Ошибка получения исполнителей")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"vendors": vendors,
	})
}

// GetVendor возвращает исполнителя по ID
// GET /api/v1/vendors/:id
func (c *VendorController) GetVendor(ctx *gin.Context) {
	vendor, err := c.vendorService.GetVendor(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Исполнитель не найден")
		return
	}

	ctx.JSON(http.StatusOK, vendor)
}

// CreateVendor создает нового исполнителя
// POST /api/v1/vendors
func (c *VendorController) CreateVendor(ctx *gin.Context) {
	var vendor models.Vendor
	if err := ctx.ShouldBindJSON(&vendor); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	if err := c.vendorService.CreateVendor(&vendor); err != nil {
		respondError(ctx, err, "Ошибка создания исполнителя")
		return
	}

	ctx.JSON(http.StatusCreated, vendor)
}

// UpdateVendor обновляет исполнителя
// PUT /api/v1/vendors/:id
func (c *VendorController) UpdateVendor(ctx *gin.Context) {
	var updates map[string]interface{}
	if err := ctx.ShouldBindJSON(&updates); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	vendor, err := c.vendorService.UpdateVendor(ctx.Param("id"), updates)
	if err != nil {
		respondError(ctx, err, "Ошибка обновления исполнителя")
		return
	}

	ctx.JSON(http.StatusOK, vendor)
}
