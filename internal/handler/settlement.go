package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SettlementHandler 负责月度结算接口
type SettlementHandler struct {
	Settlements *ledger.SettlementLedger
}

func NewSettlementHandler(settlements *ledger.SettlementLedger) *SettlementHandler {
	return &SettlementHandler{Settlements: settlements}
}

type settlementReq struct {
	Month       string `json:"month" binding:"required"`
	SettleDate  string `json:"settle_date" binding:"required"`
	TotalAmount string `json:"total_amount"` // 缺省为该月缴费合计
	Cashier     string `json:"cashier" binding:"max=64"`
	Notes       string `json:"notes" binding:"max=255"`
}

// Upsert 建立或更新月度结算；结算后该月记录锁定
func (h *SettlementHandler) Upsert(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req settlementReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	date, err := ledger.ParseDate(req.SettleDate)
	if err != nil {
		util.FromError(c, err)
		return
	}
	in := ledger.SettlementInput{
		Month:      req.Month,
		SettleDate: date,
		Cashier:    req.Cashier,
		Notes:      req.Notes,
	}
	if req.TotalAmount != "" {
		total, err := decimal.NewFromString(req.TotalAmount)
		if err != nil {
			util.Error(c, 400, util.CodeInvalidParam, "结算金额不是有效数字")
			return
		}
		in.TotalAmount = &total
	}
	s, err := h.Settlements.Upsert(c.Request.Context(), caller, in)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"settlement": s})
}

func (h *SettlementHandler) Delete(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Settlements.Delete(c.Request.Context(), caller, id); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "删除成功"})
}

func (h *SettlementHandler) List(c *gin.Context) {
	settlements, err := h.Settlements.List(c.Request.Context())
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"items": settlements, "total": len(settlements)})
}

// IsLocked 查询某月是否已结算锁定
func (h *SettlementHandler) IsLocked(c *gin.Context) {
	month := c.Query("month")
	if err := util.ValidateMonth(month); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "月份格式错误，应为 YYYY-MM")
		return
	}
	locked, err := h.Settlements.IsLocked(c.Request.Context(), month)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"month": month, "locked": locked})
}
