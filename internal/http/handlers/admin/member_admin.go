package admin

import (
	"strings"

	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/repository"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateMemberRequest 创建会员请求
type CreateMemberRequest struct {
	DisplayName        string `json:"display_name" binding:"required"`
	ReferrerID         uint   `json:"referrer_id"`
	SubscriptionStatus string `json:"subscription_status"`
	ProfessionalLevel  int    `json:"professional_level"`
	BusinessPoints     string `json:"business_points"`
	TrainingCompleted  bool   `json:"training_completed"`
}

// UpdateMemberRequest 更新会员请求
type UpdateMemberRequest struct {
	DisplayName        *string `json:"display_name"`
	SubscriptionStatus *string `json:"subscription_status"`
	ProfessionalLevel  *int    `json:"professional_level"`
	BusinessPoints     *string `json:"business_points"`
	TrainingCompleted  *bool   `json:"training_completed"`
	TouchLogin         bool    `json:"touch_login"`
}

// ListMembers 分页查询会员
func (h *Handler) ListMembers(c *gin.Context) {
	page, pageSize := handlershared.ReadPagination(c)
	filter := repository.MemberListFilter{
		Page:               page,
		PageSize:           pageSize,
		ReferrerID:         handlershared.QueryUint(c, "referrer_id"),
		SubscriptionStatus: strings.ToLower(strings.TrimSpace(c.Query("subscription_status"))),
		Tier:               strings.ToLower(strings.TrimSpace(c.Query("tier"))),
		Keyword:            strings.TrimSpace(c.Query("keyword")),
	}
	members, total, err := h.MemberService.ListMembers(filter)
	if err != nil {
		respondServiceError(c, err, "fetch members failed")
		return
	}
	response.SuccessWithPage(c, members, handlershared.BuildPagination(page, pageSize, total))
}

// GetMember 获取会员详情
func (h *Handler) GetMember(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	member, err := h.MemberService.GetMember(id)
	if err != nil {
		respondServiceError(c, err, "fetch member failed")
		return
	}
	response.Success(c, member)
}

// CreateMember 创建会员并同步推荐关系
func (h *Handler) CreateMember(c *gin.Context) {
	var req CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	bp := decimal.Zero
	if raw := strings.TrimSpace(req.BusinessPoints); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid business points", err)
			return
		}
		bp = value
	}
	member, err := h.MemberService.CreateMember(c.Request.Context(), service.CreateMemberInput{
		DisplayName:        req.DisplayName,
		ReferrerID:         req.ReferrerID,
		SubscriptionStatus: req.SubscriptionStatus,
		ProfessionalLevel:  req.ProfessionalLevel,
		BusinessPoints:     bp,
		TrainingCompleted:  req.TrainingCompleted,
	})
	if err != nil {
		respondServiceError(c, err, "create member failed")
		return
	}
	requestLog(c).Infow("admin_member_created", "user_id", member.ID, "referrer_id", req.ReferrerID, "operator", handlershared.Operator(c))
	response.Success(c, member)
}

// UpdateMember 更新会员订阅、积分、培训与登录状态
func (h *Handler) UpdateMember(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	input := service.UpdateMemberInput{
		DisplayName:        req.DisplayName,
		SubscriptionStatus: req.SubscriptionStatus,
		ProfessionalLevel:  req.ProfessionalLevel,
		TrainingCompleted:  req.TrainingCompleted,
		TouchLogin:         req.TouchLogin,
	}
	if req.BusinessPoints != nil {
		value, err := decimal.NewFromString(strings.TrimSpace(*req.BusinessPoints))
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid business points", err)
			return
		}
		input.BusinessPoints = &value
	}
	member, err := h.MemberService.UpdateMember(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err, "update member failed")
		return
	}
	response.Success(c, member)
}
