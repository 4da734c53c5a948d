package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ReadingHandler 负责抄表记录接口
type ReadingHandler struct {
	Readings *ledger.ReadingLedger
}

func NewReadingHandler(readings *ledger.ReadingLedger) *ReadingHandler {
	return &ReadingHandler{Readings: readings}
}

type recordReadingReq struct {
	MeterID     uint   `json:"meter_id" binding:"required"`
	ReadingDate string `json:"reading_date" binding:"required"`
	Current     string `json:"current" binding:"required"`
	Adjustment  string `json:"adjustment"`
	Reader      string `json:"reader" binding:"max=64"`
	Remark      string `json:"remark" binding:"max=255"`
	Force       bool   `json:"force"` // 确认异常用量或负调整
}

// Record 登记一次抄表；同表同月重复提交为更新
func (h *ReadingHandler) Record(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req recordReadingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	date, err := ledger.ParseDate(req.ReadingDate)
	if err != nil {
		util.FromError(c, err)
		return
	}
	current, err := decimal.NewFromString(req.Current)
	if err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "本期读数不是有效数字")
		return
	}
	adjustment := decimal.Zero
	if req.Adjustment != "" {
		adjustment, err = decimal.NewFromString(req.Adjustment)
		if err != nil {
			util.Error(c, 400, util.CodeInvalidParam, "调整量不是有效数字")
			return
		}
	}

	r, err := h.Readings.Record(c.Request.Context(), caller, ledger.RecordReadingInput{
		MeterID:     req.MeterID,
		ReadingDate: date,
		Current:     current,
		Adjustment:  adjustment,
		Reader:      req.Reader,
		Remark:      req.Remark,
		Force:       req.Force,
	})
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"reading": r})
}

func (h *ReadingHandler) Delete(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Readings.Delete(c.Request.Context(), caller, id); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "删除成功"})
}

func (h *ReadingHandler) List(c *gin.Context) {
	var f ledger.ReadingFilter
	if mid := c.Query("meter_id"); mid != "" {
		id, err := parseUint(mid)
		if err != nil {
			util.Error(c, 400, util.CodeInvalidParam, "meter_id 不合法")
			return
		}
		f.MeterID = id
	}
	if tid := c.Query("tenant_id"); tid != "" {
		id, err := parseUint(tid)
		if err != nil {
			util.Error(c, 400, util.CodeInvalidParam, "tenant_id 不合法")
			return
		}
		f.TenantID = id
	}
	f.Month = c.Query("month")
	readings, err := h.Readings.List(c.Request.Context(), f)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"items": readings, "total": len(readings)})
}
