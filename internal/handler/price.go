package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PriceHandler 负责单价管理接口
type PriceHandler struct {
	Prices *ledger.Prices
}

func NewPriceHandler(prices *ledger.Prices) *PriceHandler {
	return &PriceHandler{Prices: prices}
}

type priceReq struct {
	Resource  string `json:"resource" binding:"required,oneof=water electricity"`
	Scope     string `json:"scope" binding:"required,oneof=all office storefront"`
	UnitPrice string `json:"unit_price" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
}

// Put 新增一条价格版本；同范围的现行价格自动截止
func (h *PriceHandler) Put(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req priceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "单价不是有效数字")
		return
	}
	start, err := ledger.ParseDate(req.StartDate)
	if err != nil {
		util.FromError(c, err)
		return
	}
	p, err := h.Prices.Put(c.Request.Context(), caller, ledger.PriceInput{
		Resource:  req.Resource,
		Scope:     req.Scope,
		UnitPrice: unitPrice,
		StartDate: start,
	})
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"price": p})
}

// Current 查询某资源对某租户类型的现行单价
func (h *PriceHandler) Current(c *gin.Context) {
	resource := c.Query("resource")
	tenantType := c.Query("tenant_type")
	price, ok, err := h.Prices.Current(c.Request.Context(), resource, tenantType)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{
		"unit_price": price.String(),
		"found":      ok,
	})
}

func (h *PriceHandler) List(c *gin.Context) {
	prices, err := h.Prices.List(c.Request.Context(), c.Query("resource"))
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"items": prices, "total": len(prices)})
}
