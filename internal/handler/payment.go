package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PaymentHandler 负责缴费接口
type PaymentHandler struct {
	Payments *ledger.PaymentLedger
}

func NewPaymentHandler(payments *ledger.PaymentLedger) *PaymentHandler {
	return &PaymentHandler{Payments: payments}
}

type recordPaymentReq struct {
	ChargeID    uint   `json:"charge_id" binding:"required"`
	PaymentDate string `json:"payment_date" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Method      string `json:"method" binding:"required,oneof=cash bank wechat alipay"`
	Payer       string `json:"payer" binding:"max=64"`
	Notes       string `json:"notes" binding:"max=255"`
}

// Record 登记一笔缴费，账单状态同事务内更新
func (h *PaymentHandler) Record(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req recordPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	if err := util.ValidateDate(req.PaymentDate); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "缴费日期格式错误，应为 YYYY-MM-DD")
		return
	}
	date, err := ledger.ParseDate(req.PaymentDate)
	if err != nil {
		util.FromError(c, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "缴费金额不是有效数字")
		return
	}
	if err := util.ValidateAmount(amount); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "缴费金额必须为正数且小于一千万")
		return
	}
	p, err := h.Payments.Record(c.Request.Context(), caller, ledger.RecordPaymentInput{
		ChargeID:    req.ChargeID,
		PaymentDate: date,
		Amount:      amount,
		Method:      req.Method,
		Payer:       req.Payer,
		Notes:       req.Notes,
	})
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"payment": p})
}

func (h *PaymentHandler) Delete(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Payments.Delete(c.Request.Context(), caller, id); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "删除成功"})
}

// DeleteCharge 删除未缴且无缴费记录的账单
func (h *PaymentHandler) DeleteCharge(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Payments.DeleteCharge(c.Request.Context(), caller, id); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "删除成功"})
}

// ListByCharge 查询某账单的全部缴费记录
func (h *PaymentHandler) ListByCharge(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	payments, err := h.Payments.ListByCharge(c.Request.Context(), id)
	if err != nil {
		util.FromError(c, err)
		return
	}
	paid, err := h.Payments.Paid(c.Request.Context(), id)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{
		"items": payments,
		"total": len(payments),
		"paid":  paid.String(),
	})
}
