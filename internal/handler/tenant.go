package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// TenantHandler 负责租户管理接口
type TenantHandler struct {
	Tenants *ledger.Tenants
}

func NewTenantHandler(tenants *ledger.Tenants) *TenantHandler {
	return &TenantHandler{Tenants: tenants}
}

type tenantReq struct {
	Name          string `json:"name" binding:"required,max=64"`
	Type          string `json:"type" binding:"required,oneof=office storefront"`
	Address       string `json:"address" binding:"max=255"`
	ContactPerson string `json:"contact_person" binding:"required,max=64"`
	Phone         string `json:"phone" binding:"required,max=32"`
	Email         string `json:"email" binding:"omitempty,email,max=128"`
}

func (r tenantReq) input() ledger.TenantInput {
	return ledger.TenantInput{
		Name:          r.Name,
		Type:          r.Type,
		Address:       r.Address,
		ContactPerson: r.ContactPerson,
		Phone:         r.Phone,
		Email:         r.Email,
	}
}

func (h *TenantHandler) Create(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req tenantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	t, err := h.Tenants.Create(c.Request.Context(), caller, req.input())
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"tenant": t})
}

func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.Tenants.Get(c.Request.Context(), id)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"tenant": t})
}

func (h *TenantHandler) Update(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req tenantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	t, err := h.Tenants.Update(c.Request.Context(), caller, id, req.input())
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"tenant": t})
}

type deactivateReq struct {
	Deactivated *bool `json:"deactivated" binding:"required"`
}

// Deactivate 停用/启用租户（软删除，历史数据保留）
func (h *TenantHandler) Deactivate(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req deactivateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	if err := h.Tenants.SetDeactivated(c.Request.Context(), caller, id, *req.Deactivated); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "操作成功"})
}

func (h *TenantHandler) Delete(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Tenants.Delete(c.Request.Context(), caller, id); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "删除成功"})
}

// List 查询租户列表，支持名称/地址/联系人/电话模糊搜索
func (h *TenantHandler) List(c *gin.Context) {
	f := ledger.TenantFilter{
		Keyword:         c.Query("keyword"),
		Type:            c.Query("type"),
		IncludeInactive: c.Query("include_inactive") == "true",
	}
	tenants, err := h.Tenants.List(c.Request.Context(), f)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"items": tenants, "total": len(tenants)})
}
