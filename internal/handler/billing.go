package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// BillingHandler 负责月度算费接口
type BillingHandler struct {
	Engine *ledger.BillingEngine
}

func NewBillingHandler(engine *ledger.BillingEngine) *BillingHandler {
	return &BillingHandler{Engine: engine}
}

type computeReq struct {
	Month    string `json:"month" binding:"required"`
	TenantID uint   `json:"tenant_id"` // 为 0 时对全部租户算费
}

// Compute 对指定月份算费；可重复执行，已缴状态不会被重置
func (h *BillingHandler) Compute(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req computeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}

	var res *ledger.BillingResult
	var err error
	if req.TenantID != 0 {
		res, err = h.Engine.ComputeForTenant(c.Request.Context(), caller, req.TenantID, req.Month)
	} else {
		res, err = h.Engine.ComputeForMonth(c.Request.Context(), caller, req.Month)
	}
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"result": res})
}

// GetCharge 查询某租户某月的账单
func (h *BillingHandler) GetCharge(c *gin.Context) {
	tid, err := parseUint(c.Query("tenant_id"))
	if err != nil || tid == 0 {
		util.Error(c, 400, util.CodeInvalidParam, "tenant_id 不合法")
		return
	}
	month := c.Query("month")
	if err := util.ValidateMonth(month); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "月份格式错误，应为 YYYY-MM")
		return
	}
	charge, err := h.Engine.Charge(c.Request.Context(), tid, month)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"charge": charge})
}
