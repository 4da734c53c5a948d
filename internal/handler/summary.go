package handler

import (
	"time"

	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// SummaryHandler 负责欠费/汇总/看板接口
type SummaryHandler struct {
	Summaries *ledger.Summaries
}

func NewSummaryHandler(summaries *ledger.Summaries) *SummaryHandler {
	return &SummaryHandler{Summaries: summaries}
}

// Arrears 查询欠费列表，可按月份过滤
func (h *SummaryHandler) Arrears(c *gin.Context) {
	rows, err := h.Summaries.Arrears(c.Request.Context(), c.Query("month"))
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"items": rows, "total": len(rows)})
}

// MonthlyReceived 查询某月实收，按缴费方式和租户类型分组
func (h *SummaryHandler) MonthlyReceived(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	res, err := h.Summaries.MonthlyReceived(c.Request.Context(), month)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"received": res})
}

// Dashboard 返回首页看板数据
func (h *SummaryHandler) Dashboard(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	res, err := h.Summaries.Dashboard(c.Request.Context(), month)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"dashboard": res})
}
