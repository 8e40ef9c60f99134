package admin

import (
	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/gin-gonic/gin"
)

// GetIncentiveSetting 获取激励参数
func (h *Handler) GetIncentiveSetting(c *gin.Context) {
	setting, err := h.SettingService.GetIncentiveSetting()
	if err != nil {
		respondServiceError(c, err, "fetch incentive setting failed")
		return
	}
	response.Success(c, setting)
}

// UpdateIncentiveSetting 更新激励参数，提交值会先归一化再校验
func (h *Handler) UpdateIncentiveSetting(c *gin.Context) {
	var req service.IncentiveSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	operator := handlershared.Operator(c)
	setting, err := h.SettingService.UpdateIncentiveSettingAs(req, operator)
	if err != nil {
		respondServiceError(c, err, "update incentive setting failed")
		return
	}
	requestLog(c).Infow("admin_incentive_setting_updated", "operator", operator)
	response.Success(c, setting)
}
