package api

import (
	"errors"
	"net/http"
	"time"

	"recessims/server/internal/models"
	"recessims/server/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthController управляет API endpoints для авторизации
type AuthController struct {
	db              *gorm.DB
	jwtSecret       string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewAuthController создает новый контроллер авторизации
func NewAuthController(db *gorm.DB, jwtSecret string, accessTTL, refreshTTL time.Duration) *AuthController {
	return &AuthController{
		db:              db,
		jwtSecret:       jwtSecret,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

// RegisterRequest представляет запрос на регистрацию пользователя
type RegisterRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,min=8"`
	Name      string  `json:"name" binding:"required"`
	NameJP    string  `json:"name_jp"`
	Phone     string  `json:"phone"`
	RoleLevel int     `json:"role_level" binding:"min=0,max=7"`
	Tier      int     `json:"tier" binding:"min=0,max=2"`
	OrgID     *string `json:"org_id"`
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse представляет ответ с парой токенов
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user"`
}

// Register регистрирует нового пользователя
// POST /api/v1/auth/register
func (ac *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": "Ошибка хеширования пароля",
		})
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		NameJP:       req.NameJP,
		Phone:        req.Phone,
		RoleLevel:    req.RoleLevel,
		Tier:         req.Tier,
		OrgID:        req.OrgID,
	}

	if err := ac.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ctx.JSON(http.StatusConflict, gin.H{
				"error": "Пользователь с таким email уже существует",
			})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Ошибка создания пользователя",
			"details": err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, user)
}

// Login обрабатывает вход пользователя
// POST /api/v1/auth/login
func (ac *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	var user models.User
	if err := ac.db.First(&user, "email = ?", req.Email).Error; err != nil {
		// Одинаковый ответ для несуществующего email и неверного пароля
		ctx.JSON(http.StatusUnauthorized, gin.H{
			"error": "Неверный email или пароль",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{
			"error": "Неверный email или пароль",
		})
		return
	}

	if !user.IsActive() {
		ctx.JSON(http.StatusForbidden, gin.H{
			"error": "Аккаунт отключен",
		})
		return
	}

	accessToken, err := utils.CreateToken(ac.jwtSecret, user.ID, user.Email, ac.accessTokenTTL)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": "Ошибка создания токена",
		})
		return
	}

	refreshToken, err := utils.CreateToken(ac.jwtSecret, user.ID, user.Email, ac.refreshTokenTTL)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": "Ошибка создания токена",
		})
		return
	}

	// Обновляем время последнего входа
	now := time.Now()
	ac.db.Model(&user).Update("last_login", &now)

	ctx.JSON(http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User:         &user,
	})
}

// Me возвращает профиль текущего пользователя
// GET /api/v1/auth/me
func (ac *AuthController) Me(ctx *gin.Context) {
	user := CurrentUser(ctx)
	if user == nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{
			"error": "Требуется авторизация",
		})
		return
	}
	ctx.JSON(http.StatusOK, user)
}

// Logout завершает сессию.
// Токены stateless, поэтому сервер лишь подтверждает выход:
// клиент обязан удалить токены у себя.
// POST /api/v1/auth/logout
func (ac *AuthController) Logout(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Выход выполнен",
	})
}
