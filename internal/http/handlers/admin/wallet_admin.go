package admin

import (
	"strings"

	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetMemberWallet 查询会员钱包账户（USD 分红、LGC 忠诚奖励）
func (h *Handler) GetMemberWallet(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	accounts, err := h.WalletService.GetAccounts(userID)
	if err != nil {
		respondServiceError(c, err, "fetch wallet failed")
		return
	}
	response.Success(c, gin.H{
		"user_id":  userID,
		"accounts": accounts,
	})
}

// GetMemberWalletTransactions 查询会员钱包流水
func (h *Handler) GetMemberWalletTransactions(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	page, pageSize := handlershared.ReadPagination(c)
	filter := repository.WalletTransactionListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
		Asset:    strings.ToUpper(strings.TrimSpace(c.Query("asset"))),
		Type:     strings.TrimSpace(c.Query("type")),
	}
	transactions, total, err := h.WalletService.ListTransactions(filter)
	if err != nil {
		respondServiceError(c, err, "fetch wallet transactions failed")
		return
	}
	response.SuccessWithPage(c, transactions, handlershared.BuildPagination(page, pageSize, total))
}
