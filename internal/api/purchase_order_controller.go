package api

import (
	"net/http"
	"strconv"

	"recessims/server/internal/services"

	"github.com/gin-gonic/gin"
)

// PurchaseOrderController управляет заказами на производство
type PurchaseOrderController struct {
	orderService *services.PurchaseOrderService
}

// NewPurchaseOrderController создает новый контроллер
func NewPurchaseOrderController(orderService *services.PurchaseOrderService) *PurchaseOrderController {
	return &PurchaseOrderController{
		orderService: orderService,
	}
}

// GetPurchaseOrders возвращает список заказов
// GET /api/v1/purchase-orders?status=...&project_id=...&vendor_id=...&limit=...&offset=...
func (c *PurchaseOrderController) GetPurchaseOrders(ctx *gin.Context) {
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

	orders, err := c.orderService.GetOrders(status, projectID, vendorID, limit, offset)
	if err != nil {
		respondError(ctx, err, "Ошибка получения заказов")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"orders": orders,
	})
}

// GetPurchaseOrder возвращает заказ по ID
// GET /api/v1/purchase-orders/:id
func (c *PurchaseOrderController) GetPurchaseOrder(ctx *gin.Context) {
	order, err := c.orderService.GetOrder(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Заказ не найден")
		return
	}

	ctx.JSON(http.StatusOK, order)
}

// CreatePurchaseOrder создает новый заказ в статусе draft
// POST /api/v1/purchase-orders
func (c *PurchaseOrderController) CreatePurchaseOrder(ctx *gin.Context) {
	var input services.CreateOrderInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	user := CurrentUser(ctx)
	order, err := c.orderService.CreateOrder(input, user.ID)
	if err != nil {
		respondError(ctx, err, "Ошибка создания заказа")
		return
	}

	BroadcastDocumentEvent("order_created", order.OrderNo, string(order.Status))

	ctx.JSON(http.StatusCreated, order)
}

// UpdatePurchaseOrder обновляет заказ (только draft и pending)
// PUT /api/v1/purchase-orders/:id
func (c *PurchaseOrderController) UpdatePurchaseOrder(ctx *gin.Context) {
	var input services.UpdateOrderInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	order, err := c.orderService.UpdateOrder(ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err, "Ошибка обновления заказа")
		return
	}

	ctx.JSON(http.StatusOK, order)
}

// ApprovePurchaseOrder утверждает заказ (pending -> approved)
// POST /api/v1/purchase-orders/:id/approve
func (c *PurchaseOrderController) ApprovePurchaseOrder(ctx *gin.Context) {
	user := CurrentUser(ctx)

	order, err := c.orderService.ApproveOrder(ctx.Param("id"), user)
	if err != nil {
		respondError(ctx, err, "Ошибка утверждения заказа")
		return
	}

	BroadcastDocumentEvent("order_approved", order.OrderNo, string(order.Status))

	ctx.JSON(http.StatusOK, order)
}

// StartPurchaseOrder переводит заказ в работу (approved -> in_progress)
// POST /api/v1/purchase-orders/:id/start
func (c *PurchaseOrderController) StartPurchaseOrder(ctx *gin.Context) {
	order, err := c.orderService.StartOrder(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Ошибка запуска заказа")
		return
	}

	BroadcastDocumentEvent("order_started", order.OrderNo, string(order.Status))

	ctx.JSON(http.StatusOK, order)
}

// CancelPurchaseOrder отменяет заказ
// POST /api/v1/purchase-orders/:id/cancel
func (c *PurchaseOrderController) CancelPurchaseOrder(ctx *gin.Context) {
	order, err := c.orderService.CancelOrder(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Ошибка отмены заказа")
		return
	}

	BroadcastDocumentEvent("order_cancelled", order.OrderNo, string(order.Status))

	ctx.JSON(http.StatusOK, order)
}

// CalculatePurchaseOrder выполняет предварительный расчет сумм без создания заказа
// POST /api/v1/purchase-orders/calculate
func (c *PurchaseOrderController) CalculatePurchaseOrder(ctx *gin.Context) {
	var input services.PreviewInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	calculation, err := c.orderService.PreviewCalculation(input)
	if err != nil {
		respondError(ctx, err, "Ошибка расчета")
		return
	}

	ctx.JSON(http.StatusOK, calculation)
}
