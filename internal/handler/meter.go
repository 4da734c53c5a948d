package handler

import (
	"meter-billing/internal/ledger"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MeterHandler 负责水电表管理接口
type MeterHandler struct {
	Meters *ledger.Meters
}

func NewMeterHandler(meters *ledger.Meters) *MeterHandler {
	return &MeterHandler{Meters: meters}
}

type meterReq struct {
	MeterNo        string `json:"meter_no" binding:"required,max=32"`
	Kind           string `json:"kind" binding:"required,oneof=water electricity"`
	TenantID       uint   `json:"tenant_id" binding:"required"`
	Location       string `json:"location" binding:"max=128"`
	InitialReading string `json:"initial_reading"`
	Status         string `json:"status" binding:"omitempty,oneof=normal damaged replaced"`
}

func (r meterReq) input(c *gin.Context) (ledger.MeterInput, bool) {
	initial := decimal.Zero
	if r.InitialReading != "" {
		d, err := decimal.NewFromString(r.InitialReading)
		if err != nil {
			util.Error(c, 400, util.CodeInvalidParam, "初始读数不是有效数字")
			return ledger.MeterInput{}, false
		}
		initial = d
	}
	return ledger.MeterInput{
		MeterNo:        r.MeterNo,
		Kind:           r.Kind,
		TenantID:       r.TenantID,
		Location:       r.Location,
		InitialReading: initial,
		Status:         r.Status,
	}, true
}

func (h *MeterHandler) Create(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	var req meterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	in, ok := req.input(c)
	if !ok {
		return
	}
	m, err := h.Meters.Create(c.Request.Context(), caller, in)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"meter": m})
}

func (h *MeterHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	m, err := h.Meters.Get(c.Request.Context(), id)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"meter": m})
}

func (h *MeterHandler) Update(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req meterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, 400, util.CodeInvalidParam, "参数错误")
		return
	}
	in, ok := req.input(c)
	if !ok {
		return
	}
	m, err := h.Meters.Update(c.Request.Context(), caller, id, in)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"meter": m})
}

func (h *MeterHandler) Delete(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Meters.Delete(c.Request.Context(), caller, id); err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "删除成功"})
}

func (h *MeterHandler) List(c *gin.Context) {
	var f ledger.MeterFilter
	if tid := c.Query("tenant_id"); tid != "" {
		id, err := parseUint(tid)
		if err != nil {
			util.Error(c, 400, util.CodeInvalidParam, "tenant_id 不合法")
			return
		}
		f.TenantID = id
	}
	f.Kind = c.Query("kind")
	f.Keyword = c.Query("keyword")
	meters, err := h.Meters.List(c.Request.Context(), f)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"items": meters, "total": len(meters)})
}

// LastReading 返回某表最近一次读数（无记录时为初始读数）
func (h *MeterHandler) LastReading(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	last, err := h.Meters.LastReading(c.Request.Context(), id)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"last_reading": last.String()})
}
