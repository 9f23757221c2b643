package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"recessims/server/internal/services"

	"github.com/gin-gonic/gin"
)

// SettlementController управляет расчетами по заказам
type SettlementController struct {
	settlementService *services.SettlementService
}

// NewSettlementController создает новый контроллер
func NewSettlementController(settlementService *services.SettlementService) *SettlementController {
	return &SettlementController{
		settlementService: settlementService,
	}
}

// GetSettlements возвращает список расчетов
// GET /api/v1/settlements?status=...&project_id=...&vendor_id=...&limit=...&offset=...
func (c *SettlementController) GetSettlements(ctx *gin.Context) {
	status := ctx.Query("status")
	projectID := ctx.Query("project_id")
	vendorID := ctx.Query("vendor_id")

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	settlements, err := c.settlementService.GetSettlements(status, projectID, vendorID, limit, offset)
	if err != nil {
		respondError(ctx, err, "Ошибка получения расчетов")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"settlements": settlements,
	})
}

// GetSettlement возвращает расчет по ID
// GET /api/v1/settlements/:id
func (c *SettlementController) GetSettlement(ctx *gin.Context) {
	settlement, err := c.settlementService.GetSettlement(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Расчет не найден")
		return
	}

	ctx.JSON(http.StatusOK, settlement)
}

// CreateSettlement создает расчет по заказу.
// Заказ при этом переводится в completed в той же транзакции.
// POST /api/v1/settlements
func (c *SettlementController) CreateSettlement(ctx *gin.Context) {
	var input services.CreateSettlementInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	user := CurrentUser(ctx)
	settlement, err := c.settlementService.CreateSettlement(input, user)
	if err != nil {
		respondError(ctx, err, "Ошибка создания расчета")
		return
	}

	BroadcastDocumentEvent("settlement_created", settlement.SettlementNo, string(settlement.Status))

	ctx.JSON(http.StatusCreated, settlement)
}

// UpdateSettlement обновляет расчет (только pending и approved)
// PUT /api/v1/settlements/:id
func (c *SettlementController) UpdateSettlement(ctx *gin.Context) {
	var input services.UpdateSettlementInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	settlement, err := c.settlementService.UpdateSettlement(ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err, "Ошибка обновления расчета")
		return
	}

	ctx.JSON(http.StatusOK, settlement)
}

// CompleteSettlement отмечает расчет оплаченным (approved -> paid).
// Связанный заказ переводится в settled.
// POST /api/v1/settlements/:id/complete
func (c *SettlementController) CompleteSettlement(ctx *gin.Context) {
	user := CurrentUser(ctx)

	settlement, err := c.settlementService.CompleteSettlement(ctx.Param("id"), user)
	if err != nil {
		respondError(ctx, err, "Ошибка завершения расчета")
		return
	}

	BroadcastDocumentEvent("settlement_paid", settlement.SettlementNo, string(settlement.Status))

	ctx.JSON(http.StatusOK, settlement)
}

// DisputeRequest представляет запрос на оспаривание расчета
type DisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DisputeSettlement переводит расчет в disputed
// POST /api/v1/settlements/:id/dispute
func (c *SettlementController) DisputeSettlement(ctx *gin.Context) {
	var req DisputeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	settlement, err := c.settlementService.DisputeSettlement(ctx.Param("id"), req.Reason)
	if err != nil {
		respondError(ctx, err, "Ошибка оспаривания расчета")
		return
	}

	BroadcastDocumentEvent("settlement_disputed", settlement.SettlementNo, string(settlement.Status))

	ctx.JSON(http.StatusOK, settlement)
}

// GetSummary возвращает сводку по расчетам (количество и суммы по статусам)
// GET /api/v1/settlements/summary?project_id=...
func (c *SettlementController) GetSummary(ctx *gin.Context) {
	summary, err := c.settlementService.GetSummary(ctx.Query("project_id"))
	if err != nil {
		respondError(ctx, err, "Ошибка получения сводки")
		return
	}

	ctx.JSON(http.StatusOK, summary)
}

// ExportSettlements выгружает расчеты в Excel
// GET /api/v1/settlements/export?project_id=...
func (c *SettlementController) ExportSettlements(ctx *gin.Context) {
	data, err := c.settlementService.ExportSettlements(ctx.Query("project_id"))
	if err != nil {
		respondError(ctx, err, "Ошибка экспорта расчетов")
		return
	}

	filename := fmt.Sprintf("settlements_%s.xlsx", time.Now().Format("20060102_150405"))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
