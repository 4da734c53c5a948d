package util

import (
	"net/http"

	"meter-billing/internal/apperr"

	"github.com/gin-gonic/gin"
)

// 通用返回结构里的 data 使用 map
type Response map[string]interface{}

// 业务错误码
const (
	CodeOK            = 0
	CodeInvalidParam  = 40001
	CodeConflict      = 40002
	CodeAuth          = 40101
	CodeForbidden     = 40301
	CodeNotFound      = 40401
	CodeLocked        = 42301
	CodeHasDependents = 42302
	CodeAnomaly       = 42801
	CodeServerErr     = 50001
)

// Success 统一成功返回
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error 统一错误返回
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// FromError 把 ledger 的领域错误映射为统一错误返回。
// Anomaly 额外携带均值和阈值，前端据此提示是否强制提交。
func FromError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.NotFound:
		Error(c, http.StatusNotFound, CodeNotFound, err.Error())
	case apperr.Conflict:
		Error(c, http.StatusConflict, CodeConflict, err.Error())
	case apperr.Invalid:
		Error(c, http.StatusBadRequest, CodeInvalidParam, err.Error())
	case apperr.Integrity, apperr.HasDependents:
		Error(c, http.StatusConflict, CodeHasDependents, err.Error())
	case apperr.Locked:
		Error(c, http.StatusLocked, CodeLocked, err.Error())
	case apperr.Unauthorized:
		Error(c, http.StatusForbidden, CodeForbidden, err.Error())
	case apperr.Anomaly:
		detail, _ := apperr.AnomalyDetail(err)
		c.JSON(http.StatusOK, gin.H{
			"code":    CodeAnomaly,
			"message": err.Error(),
			"anomaly": gin.H{
				"usage":     detail.Usage.String(),
				"mean":      detail.Mean.String(),
				"threshold": detail.Threshold.String(),
				"samples":   detail.Samples,
			},
		})
	default:
		Error(c, http.StatusInternalServerError, CodeServerErr, "服务器内部错误")
	}
}
