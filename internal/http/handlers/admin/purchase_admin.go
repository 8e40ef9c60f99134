package admin

import (
	"strings"
	"time"

	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/queue"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePurchaseRequest 购买事件请求
type CreatePurchaseRequest struct {
	PurchaseNo  string     `json:"purchase_no" binding:"required"`
	UserID      uint       `json:"user_id" binding:"required"`
	Amount      string     `json:"amount" binding:"required"`
	PackageType string     `json:"package_type" binding:"required"`
	OccurredAt  *time.Time `json:"occurred_at"`
	Async       bool       `json:"async"` // 队列可用时异步处理
}

// CreatePurchase 接收购买事件并计算推荐佣金
func (h *Handler) CreatePurchase(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid amount", err)
		return
	}
	var occurredAt time.Time
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	if req.Async && h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueuePurchaseCommission(queue.PurchaseCommissionPayload{
			PurchaseNo:  strings.TrimSpace(req.PurchaseNo),
			UserID:      req.UserID,
			Amount:      amount.String(),
			PackageType: req.PackageType,
			OccurredAt:  occurredAt,
		})
		if err != nil {
			respondError(c, response.CodeInternal, "enqueue purchase failed", err)
			return
		}
		response.Queued(c, gin.H{"purchase_no": req.PurchaseNo})
		return
	}

	result, err := h.CommissionService.ProcessPurchase(c.Request.Context(), service.PurchaseInput{
		PurchaseNo:  req.PurchaseNo,
		UserID:      req.UserID,
		Amount:      amount,
		PackageType: req.PackageType,
		OccurredAt:  occurredAt,
	})
	if err != nil {
		respondServiceError(c, err, "process purchase failed")
		return
	}
	response.Success(c, result)
}

// GetMemberUpline 查询会员上级链路
func (h *Handler) GetMemberUpline(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	upline, err := h.CommissionService.ResolveUpline(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "resolve upline failed")
		return
	}
	response.Success(c, gin.H{"user_id": userID, "upline": upline})
}

// GetMemberTier 查询会员等级进度
func (h *Handler) GetMemberTier(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	progress, err := h.TierService.GetTierProgress(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "fetch tier progress failed")
		return
	}
	qualifications, err := h.TierService.ListQualifications(userID, 12)
	if err != nil {
		respondServiceError(c, err, "fetch tier qualifications failed")
		return
	}
	response.Success(c, gin.H{"progress": progress, "qualifications": qualifications})
}

// EvaluateMemberTier 立即评估会员等级，可能连续晋升多级
func (h *Handler) EvaluateMemberTier(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	advancements, err := h.TierService.EvaluateTier(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "evaluate tier failed")
		return
	}
	if advancements == nil {
		advancements = []service.TierAdvancement{}
	}
	response.Success(c, gin.H{"user_id": userID, "advancements": advancements})
}
