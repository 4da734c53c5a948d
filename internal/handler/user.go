package handler

import (
	"net/http"

	"meter-billing/internal/models"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler 负责用户管理接口（仅管理员）
type UserHandler struct {
	DB *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

type userResp struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (h *UserHandler) List(c *gin.Context) {
	var users []models.User
	if err := h.DB.Order("id ASC").Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}
	items := make([]userResp, 0, len(users))
	for _, u := range users {
		items = append(items, userResp{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role})
	}
	util.Success(c, util.Response{"items": items, "total": len(items)})
}

type setRoleReq struct {
	Role string `json:"role" binding:"required,oneof=admin reader"`
}

// SetRole 修改用户角色
func (h *UserHandler) SetRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req setRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}
	res := h.DB.Model(&models.User{}).Where("id = ?", id).Update("role", req.Role)
	if res.Error != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败")
		return
	}
	if res.RowsAffected == 0 {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户不存在")
		return
	}
	util.Success(c, util.Response{"message": "保存成功"})
}

// Delete 删除用户账号。不能删除自己。
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, _ := c.Get("currentUser")
	if me, okU := v.(*models.User); okU && me != nil && me.ID == id {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "不能删除当前登录的账号")
		return
	}
	res := h.DB.Delete(&models.User{}, id)
	if res.Error != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除失败")
		return
	}
	if res.RowsAffected == 0 {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户不存在")
		return
	}
	util.Success(c, util.Response{"message": "删除成功"})
}
