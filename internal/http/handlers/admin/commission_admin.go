package admin

import (
	"strings"
	"time"

	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/queue"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/gin-gonic/gin"
)

// CancelCommissionRequest 取消佣金请求
type CancelCommissionRequest struct {
	Reason string `json:"reason"`
}

// SettleMonthlyBonusesRequest 月度奖金结算请求
type SettleMonthlyBonusesRequest struct {
	Period string `json:"period" binding:"required"` // YYYY-MM
	Async  bool   `json:"async"`
}

// ListCommissions 佣金列表
func (h *Handler) ListCommissions(c *gin.Context) {
	page, pageSize := handlershared.ReadPagination(c)
	filter := repository.CommissionListFilter{
		Page:       page,
		PageSize:   pageSize,
		EarnerID:   handlershared.QueryUint(c, "earner_id"),
		SourceID:   handlershared.QueryUint(c, "source_id"),
		PurchaseID: handlershared.QueryUint(c, "purchase_id"),
		Type:       strings.ToUpper(strings.TrimSpace(c.Query("type"))),
		Status:     strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Period:     strings.TrimSpace(c.Query("period")),
	}
	if from, ok := parseQueryTime(c, "created_from"); ok {
		filter.CreatedFrom = &from
	}
	if to, ok := parseQueryTime(c, "created_to"); ok {
		filter.CreatedTo = &to
	}
	rows, total, err := h.CommissionService.ListCommissions(filter)
	if err != nil {
		respondServiceError(c, err, "fetch commissions failed")
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// PayCommission 标记佣金已支付
func (h *Handler) PayCommission(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid commission id", nil)
		return
	}
	commission, err := h.CommissionService.MarkCommissionPaid(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "pay commission failed")
		return
	}
	response.Success(c, commission)
}

// CancelCommission 取消佣金
func (h *Handler) CancelCommission(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid commission id", nil)
		return
	}
	var req CancelCommissionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}
	commission, err := h.CommissionService.CancelCommission(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(c, err, "cancel commission failed")
		return
	}
	response.Success(c, commission)
}

// SettleMonthlyBonuses 结算指定月份的团队业绩奖金与领导奖金
func (h *Handler) SettleMonthlyBonuses(c *gin.Context) {
	var req SettleMonthlyBonusesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueMonthlySettle(queue.MonthlySettlePayload{Period: req.Period}); err != nil {
			respondError(c, response.CodeInternal, "enqueue monthly settlement failed", err)
			return
		}
		response.Queued(c, gin.H{"period": req.Period})
		return
	}
	summary, err := h.BonusService.SettleMonthlyBonuses(c.Request.Context(), strings.TrimSpace(req.Period))
	if err != nil {
		respondServiceError(c, err, "monthly settlement failed")
		return
	}
	requestLog(c).Infow("admin_monthly_bonus_settled", "period", summary.Period, "members", summary.Members)
	response.Success(c, summary)
}

// GetMonthlySettlement 查询某月结算累计记录
func (h *Handler) GetMonthlySettlement(c *gin.Context) {
	record, err := h.BonusService.GetMonthlySettlement(strings.TrimSpace(c.Param("period")))
	if err != nil {
		respondServiceError(c, err, "fetch monthly settlement failed")
		return
	}
	response.Success(c, record)
}

func parseQueryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
