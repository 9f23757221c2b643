package api

import (
	"errors"
	"net/http"
	"strings"

	"recessims/server/internal/models"
	"recessims/server/internal/services"
	"recessims/server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const currentUserKey = "currentUser"

// AuthRequired проверяет Bearer токен и загружает пользователя из БД.
// Роль НЕ берется из токена: права перечитываются на каждый запрос,
// чтобы смена role_level или блокировка аккаунта действовали сразу.
func AuthRequired(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Требуется заголовок Authorization",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Неверный формат заголовка Authorization, ожидается Bearer токен",
			})
			return
		}

		claims, err := utils.ParseToken(jwtSecret, parts[1])
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Недействительный или просроченный токен",
				"details": err.Error(),
			})
			return
		}

		var user models.User
		if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Пользователь токена не найден",
			})
			return
		}

		if !user.IsActive() {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Аккаунт отключен",
			})
			return
		}

		ctx.Set(currentUserKey, &user)
		ctx.Next()
	}
}

// CurrentUser возвращает пользователя, установленного AuthRequired
func CurrentUser(ctx *gin.Context) *models.User {
	value, exists := ctx.Get(currentUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// respondError транслирует ошибки сервисов в HTTP статусы.
// Неизвестные ошибки считаются внутренними (500).
func respondError(ctx *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}

	ctx.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// CORSMiddleware разрешает кросс-доменные запросы от фронтенда
func CORSMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		ctx.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		ctx.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}
