package handler

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"meter-billing/internal/models"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler 负责登录/注册相关接口
type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	TokenTTL  time.Duration
}

// NewAuthHandler 构造函数
func NewAuthHandler(db *gorm.DB, jwtSecret string, ttlHours int) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &AuthHandler{
		DB:        db,
		JWTSecret: jwtSecret,
		TokenTTL:  time.Duration(ttlHours) * time.Hour,
	}
}

// ---------- 注册 ----------

type registerReq struct {
	Username        string `json:"username" binding:"required"`         // 3-20 位，字母数字下划线
	Password        string `json:"password" binding:"required"`         // 8-32 且强度检查
	ConfirmPassword string `json:"confirm_password" binding:"required"` // 必须和 Password 一致
	DisplayName     string `json:"display_name" binding:"max=64"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	// 用户名规则：3-20 位，仅字母、数字、下划线
	usernameRe := regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	if !usernameRe.MatchString(req.Username) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "用户名必须为3-20位字母、数字或下划线")
		return
	}

	// 密码强度检查
	if !isStrongPassword(req.Password) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "密码需8-32位，且包含大写、小写字母和数字")
		return
	}

	// 两次输入一致
	if req.Password != req.ConfirmPassword {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "两次输入的密码不一致")
		return
	}

	// 不区分大小写唯一：使用 LOWER(username) 检查
	var count int64
	if err := h.DB.Model(&models.User{}).
		Where("LOWER(username) = LOWER(?)", req.Username).
		Count(&count).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}
	if count > 0 {
		util.Error(c, http.StatusConflict, util.CodeConflict, "用户名已存在")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	// 第一个注册的用户是管理员，其余默认抄表员
	var total int64
	if err := h.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}
	role := models.RoleReader
	if total == 0 {
		role = models.RoleAdmin
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		Role:         role,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存用户失败")
		return
	}

	util.Success(c, util.Response{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

// isStrongPassword 检查密码强度：8-32 位，包含大写、小写字母和数字
func isStrongPassword(pw string) bool {
	if len(pw) < 8 || len(pw) > 32 {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, ch := range pw {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasUpper = true
		case ch >= 'a' && ch <= 'z':
			hasLower = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// ---------- 登录 ----------

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	var user models.User
	err := h.DB.Where("LOWER(username) = LOWER(?)", strings.TrimSpace(req.Username)).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "用户名或密码错误")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		}
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "用户名或密码错误")
		return
	}

	token, err := util.GenerateToken(h.JWTSecret, user.ID, user.Role, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成令牌失败")
		return
	}

	now := time.Now()
	_ = h.DB.Model(&user).Updates(map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": c.ClientIP(),
	}).Error

	util.Success(c, util.Response{
		"token": token,
		"user": gin.H{
			"id":           user.ID,
			"username":     user.Username,
			"display_name": user.DisplayName,
			"role":         user.Role,
		},
	})
}

// GetMe 返回当前登录用户
func GetMe(c *gin.Context) {
	v, ok := c.Get("currentUser")
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}
	util.Success(c, util.Response{
		"id":           user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
		"role":         user.Role,
	})
}
