package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// SettingHandler 负责系统选项接口
type SettingHandler struct {
	Settings *ledger.Settings
}

func NewSettingHandler(settings *ledger.Settings) *SettingHandler {
	return &SettingHandler{Settings: settings}
}

// List 返回全部选项（含默认值）
func (h *SettingHandler) List(c *gin.Context) {
	all, err := h.Settings.All(c.Request.Context())
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"settings": all})
}

type putSettingReq struct {
	Key   string `json:"key" binding:"required,max=64"`
	Value string `json:"value" binding:"max=255"`
}

// Put 写入一个选项
func (h *SettingHandler) Put(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req putSettingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	if err := h.Settings.Put(c.Request.Context(), caller, req.Key, req.Value); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "保存成功"})
}
