package admin

import (
	"strconv"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/constants"
	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/queue"
	"github.com/yieldtree/incentive-engine/internal/repository"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateProfitShareRequest 创建季度分红请求
type CreateProfitShareRequest struct {
	Year               int    `json:"year" binding:"required"`
	Quarter            int    `json:"quarter" binding:"required"`
	TotalProjectProfit string `json:"total_project_profit" binding:"required"`
	DistributionMethod string `json:"distribution_method"` // bp_based / level_based
	Notes              string `json:"notes"`
}

// DistributeProfitShareRequest 发放请求
type DistributeProfitShareRequest struct {
	Async bool `json:"async"`
}

// CreateProfitShare 计算季度分红并生成会员明细
func (h *Handler) CreateProfitShare(c *gin.Context) {
	var req CreateProfitShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	profit, err := decimal.NewFromString(strings.TrimSpace(req.TotalProjectProfit))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid total project profit", err)
		return
	}
	share, err := h.ProfitShareService.CreateQuarterlyProfitShare(c.Request.Context(), service.QuarterInput{
		Year:               req.Year,
		Quarter:            req.Quarter,
		TotalProjectProfit: profit,
		Method:             constants.DistributionMethod(strings.ToLower(strings.TrimSpace(req.DistributionMethod))),
		Notes:              req.Notes,
		CreatedBy:          handlershared.Operator(c),
	})
	if err != nil {
		respondServiceError(c, err, "create profit share failed")
		return
	}
	response.Success(c, share)
}

// ListProfitShares 季度分红批次列表
func (h *Handler) ListProfitShares(c *gin.Context) {
	page, pageSize := handlershared.ReadPagination(c)
	year, _ := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	rows, total, err := h.ProfitShareService.ListQuarterlyProfitShares(repository.ProfitShareListFilter{
		Page:     page,
		PageSize: pageSize,
		Year:     year,
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
	})
	if err != nil {
		respondServiceError(c, err, "fetch profit shares failed")
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// GetProfitShare 季度分红批次详情
func (h *Handler) GetProfitShare(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid profit share id", nil)
		return
	}
	share, err := h.ProfitShareService.GetQuarterlyProfitShare(id)
	if err != nil {
		respondServiceError(c, err, "fetch profit share failed")
		return
	}
	response.Success(c, share)
}

// ListProfitShareMembers 会员分红明细
func (h *Handler) ListProfitShareMembers(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid profit share id", nil)
		return
	}
	page, pageSize := handlershared.ReadPagination(c)
	rows, total, err := h.ProfitShareService.ListMemberShares(id, repository.MemberShareListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   handlershared.QueryUint(c, "user_id"),
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
	})
	if err != nil {
		respondServiceError(c, err, "fetch member shares failed")
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// ApproveProfitShare 审批季度分红
func (h *Handler) ApproveProfitShare(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid profit share id", nil)
		return
	}
	share, err := h.ProfitShareService.ApproveQuarterlyProfitShare(c.Request.Context(), id, handlershared.Operator(c))
	if err != nil {
		respondServiceError(c, err, "approve profit share failed")
		return
	}
	response.Success(c, share)
}

// DistributeProfitShare 发放季度分红到会员 USD 钱包
func (h *Handler) DistributeProfitShare(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid profit share id", nil)
		return
	}
	var req DistributeProfitShareRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}
	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueProfitShareDistribute(queue.ProfitShareDistributePayload{ProfitShareID: id}); err != nil {
			respondError(c, response.CodeInternal, "enqueue distribution failed", err)
			return
		}
		response.Queued(c, gin.H{"profit_share_id": id})
		return
	}
	share, err := h.ProfitShareService.DistributeQuarterlyProfitShare(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "distribute profit share failed")
		return
	}
	response.Success(c, share)
}
