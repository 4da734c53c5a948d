package handler

import (
	"net/http"
	"strconv"

	"meter-billing/internal/ledger"
	"meter-billing/internal/models"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// currentCaller 从 context 取出登录用户并转换为 ledger.Caller。
// 未登录时直接写出错误响应并返回 nil。
func currentCaller(c *gin.Context) *ledger.Caller {
	v, ok := c.Get("currentUser")
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return nil
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return nil
	}
	return &ledger.Caller{ID: user.ID, Role: user.Role}
}

// parseUint 解析查询参数里的数字 ID。
func parseUint(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	return uint(id), err
}

// pathID 解析路径中的数字 ID。
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return 0, false
	}
	return uint(id), true
}
