package admin

import (
	"errors"

	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type serviceErrorRule struct {
	target error
	code   int
}

// serviceErrorRules 业务错误到响应码的映射，按顺序匹配
var serviceErrorRules = []serviceErrorRule{
	{service.ErrMemberNotFound, response.CodeNotFound},
	{service.ErrReferrerNotFound, response.CodeNotFound},
	{service.ErrCommissionNotFound, response.CodeNotFound},
	{service.ErrProfitShareNotFound, response.CodeNotFound},
	{service.ErrCycleNotFound, response.CodeNotFound},
	{service.ErrWalletAccountNotFound, response.CodeNotFound},
	{service.ErrMonthlySettlementNotFound, response.CodeNotFound},

	{service.ErrCommissionStatusConflict, response.CodeConflict},
	{service.ErrProfitShareStatusConflict, response.CodeConflict},
	{service.ErrCycleStatusConflict, response.CodeConflict},
	{service.ErrQuarterExists, response.CodeConflict},
	{service.ErrLoyaltyCycleExists, response.CodeConflict},
	{service.ErrPurchaseInProgress, response.CodeConflict},
	{service.ErrSettlementInProgress, response.CodeConflict},

	{service.ErrInvalidPurchase, response.CodeBadRequest},
	{service.ErrInvalidSubscriptionStatus, response.CodeBadRequest},
	{service.ErrInvalidMemberInput, response.CodeBadRequest},
	{service.ErrInvalidPeriod, response.CodeBadRequest},
	{service.ErrInvalidQuarter, response.CodeBadRequest},
	{service.ErrInvalidProfitAmount, response.CodeBadRequest},
	{service.ErrInvalidDistributionMethod, response.CodeBadRequest},
	{service.ErrNoEligibleMembers, response.CodeBadRequest},
	{service.ErrZeroBPPool, response.CodeBadRequest},
	{incentive.ErrEmptyWeightPool, response.CodeBadRequest},
	{service.ErrLoyaltyNotQualified, response.CodeBadRequest},
	{service.ErrInvalidActivityType, response.CodeBadRequest},
	{service.ErrIncentiveConfigInvalid, response.CodeBadRequest},
	{service.ErrWalletInvalidAmount, response.CodeBadRequest},
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// respondServiceError 按业务错误类型返回响应码，未识别的错误视为内部错误
func respondServiceError(c *gin.Context, err error, fallbackMsg string) {
	for _, rule := range serviceErrorRules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, err.Error(), err)
			return
		}
	}
	respondError(c, response.CodeInternal, fallbackMsg, err)
}

func parsePathUint(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParsePathUint(c, name)
}
