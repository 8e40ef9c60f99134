package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/queue"
	"github.com/yieldtree/incentive-engine/internal/repository"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/gin-gonic/gin"
)

// StartCycleRequest 开启忠诚周期请求
type StartCycleRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// RecordActivityRequest 会员活动请求
type RecordActivityRequest struct {
	UserID       uint                   `json:"user_id" binding:"required"`
	ActivityType string                 `json:"activity_type" binding:"required"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata"`
	Date         *time.Time             `json:"date"`
	Async        bool                   `json:"async"`
}

// CloseCycleRequest 暂停或终止周期请求
type CloseCycleRequest struct {
	Reason string `json:"reason"`
}

// StartLoyaltyCycle 为会员开启忠诚周期
func (h *Handler) StartLoyaltyCycle(c *gin.Context) {
	var req StartCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	cycle, err := h.LoyaltyService.StartCycle(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrLoyaltyNotQualified) {
			eligibility, eligErr := h.LoyaltyService.CheckEligibility(c.Request.Context(), req.UserID)
			if eligErr == nil {
				requestLog(c).Warnw("admin_loyalty_cycle_rejected", "user_id", req.UserID, "missing", eligibility.Missing)
				response.ErrorWithData(c, response.CodeBadRequest, err.Error(), eligibility)
				return
			}
		}
		respondServiceError(c, err, "start loyalty cycle failed")
		return
	}
	response.Success(c, cycle)
}

// RecordLoyaltyActivity 记录会员活动，满足条件时发放 LGC
func (h *Handler) RecordLoyaltyActivity(c *gin.Context) {
	var req RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	activityType := strings.ToLower(strings.TrimSpace(req.ActivityType))

	if req.Async && h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueueLoyaltyActivity(queue.LoyaltyActivityPayload{
			UserID:       req.UserID,
			ActivityType: activityType,
			Description:  req.Description,
			Metadata:     req.Metadata,
			Date:         date,
		})
		if err != nil {
			respondError(c, response.CodeInternal, "enqueue activity failed", err)
			return
		}
		response.Queued(c, gin.H{"user_id": req.UserID})
		return
	}

	result, err := h.LoyaltyService.RecordActivity(c.Request.Context(), service.ActivityInput{
		UserID:       req.UserID,
		ActivityType: activityType,
		Description:  req.Description,
		Metadata:     models.JSON(req.Metadata),
		Date:         date,
	})
	if err != nil {
		respondServiceError(c, err, "record activity failed")
		return
	}
	response.Success(c, result)
}

// SweepLoyaltyCycles 结束所有到期周期
func (h *Handler) SweepLoyaltyCycles(c *gin.Context) {
	completed, err := h.LoyaltyService.CompleteExpiredCycles(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "sweep loyalty cycles failed")
		return
	}
	response.Success(c, gin.H{"completed": completed})
}

// SuspendLoyaltyCycle 暂停周期
func (h *Handler) SuspendLoyaltyCycle(c *gin.Context) {
	h.closeLoyaltyCycle(c, h.LoyaltyService.SuspendCycle, "suspend loyalty cycle failed")
}

// TerminateLoyaltyCycle 终止周期
func (h *Handler) TerminateLoyaltyCycle(c *gin.Context) {
	h.closeLoyaltyCycle(c, h.LoyaltyService.TerminateCycle, "terminate loyalty cycle failed")
}

type cycleCloser func(ctx context.Context, id uint, reason string) (*models.LoyaltyGrowthCycle, error)

func (h *Handler) closeLoyaltyCycle(c *gin.Context, closeFn cycleCloser, fallbackMsg string) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid cycle id", nil)
		return
	}
	var req CloseCycleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}
	cycle, err := closeFn(c.Request.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		respondServiceError(c, err, fallbackMsg)
		return
	}
	response.Success(c, cycle)
}

// ListLoyaltyCycles 周期列表
func (h *Handler) ListLoyaltyCycles(c *gin.Context) {
	page, pageSize := handlershared.ReadPagination(c)
	rows, total, err := h.LoyaltyService.ListCycles(repository.CycleListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   handlershared.QueryUint(c, "user_id"),
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
	})
	if err != nil {
		respondServiceError(c, err, "fetch loyalty cycles failed")
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// ListLoyaltyCycleActivities 周期内活动
func (h *Handler) ListLoyaltyCycleActivities(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid cycle id", nil)
		return
	}
	rows, err := h.LoyaltyService.ListCycleActivities(id)
	if err != nil {
		respondServiceError(c, err, "fetch cycle activities failed")
		return
	}
	response.Success(c, rows)
}

// GetMemberLoyalty 会员忠诚资格与当前周期
func (h *Handler) GetMemberLoyalty(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	eligibility, err := h.LoyaltyService.CheckEligibility(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "check loyalty eligibility failed")
		return
	}
	var active *models.LoyaltyGrowthCycle
	cycle, err := h.LoyaltyService.GetActiveCycle(c.Request.Context(), userID)
	switch {
	case err == nil:
		active = cycle
	case errors.Is(err, service.ErrCycleNotFound):
	default:
		respondServiceError(c, err, "fetch active cycle failed")
		return
	}
	response.Success(c, gin.H{
		"eligibility":  eligibility,
		"qualified":    eligibility.Qualified(),
		"active_cycle": active,
	})
}
