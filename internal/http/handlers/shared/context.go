package shared

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// OperatorHeader 调用方传入的操作人标识
	OperatorHeader = "X-Operator"
	// OperatorKey 中间件校验后写入上下文的操作人
	OperatorKey = "operator"
)

// ParsePathUint 读取路径中的正整数参数。
func ParsePathUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}

// QueryUint 读取查询参数中的非负整数，缺失或非法时返回 0。
func QueryUint(c *gin.Context, name string) uint {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}

// Operator 读取操作人标识，未提供或未通过校验时记为 system。
func Operator(c *gin.Context) string {
	if operator := c.GetString(OperatorKey); operator != "" {
		return operator
	}
	return "system"
}
