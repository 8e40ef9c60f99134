package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yieldtree/incentive-engine/internal/cache"
	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/config"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupRouterTest(t *testing.T, name string, now time.Time) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateModels(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cache.UseClient(nil, "")

	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	container := provider.NewContainerWithDB(cfg, db, clock.NewFixed(now), nil)
	return SetupRouter(cfg, container), db
}

func createRouterTestMember(t *testing.T, db *gorm.DB, referrerID *uint, mutate func(*models.Member)) *models.Member {
	t.Helper()
	member := &models.Member{
		ReferrerID:         referrerID,
		SubscriptionStatus: constants.SubscriptionStatusActive,
		CurrentTier:        constants.TierBronze,
		ProfessionalLevel:  1,
	}
	if mutate != nil {
		mutate(member)
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	return member
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(operatorHeader, "ops-alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s http status want 200 got %d", method, path, w.Code)
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s unmarshal response failed: %v body=%s", method, path, err, w.Body.String())
	}
	return resp
}

func TestHealthz(t *testing.T) {
	r, _ := setupRouterTest(t, "router_healthz", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))
	resp := doJSON(t, r, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("healthz status_code want 0 got %d", resp.StatusCode)
	}
}

func TestPurchaseAndCommissionLifecycle(t *testing.T) {
	r, db := setupRouterTest(t, "router_purchase", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))
	sponsor := createRouterTestMember(t, db, nil, nil)
	buyer := createRouterTestMember(t, db, &sponsor.ID, nil)

	body := map[string]interface{}{
		"purchase_no":  "PO-1001",
		"user_id":      buyer.ID,
		"amount":       "1000",
		"package_type": constants.PackageTypeStarter,
	}
	resp := doJSON(t, r, http.MethodPost, "/api/v1/admin/purchases", body)
	if resp.StatusCode != 0 {
		t.Fatalf("purchase failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var result struct {
		Commissions []models.Commission `json:"commissions"`
		Duplicate   bool                `json:"duplicate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("decode purchase result failed: %v", err)
	}
	if len(result.Commissions) != 1 || result.Commissions[0].Amount.String() != "120.00" || result.Duplicate {
		t.Fatalf("unexpected purchase result %+v", result)
	}
	commissionID := result.Commissions[0].ID

	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/purchases", body)
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("decode duplicate result failed: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("replayed purchase must be reported as duplicate")
	}

	resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/admin/commissions?earner_id=%d", sponsor.ID), nil)
	var listed []models.Commission
	if err := json.Unmarshal(resp.Data, &listed); err != nil {
		t.Fatalf("decode commissions failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 commission for sponsor, got %d", len(listed))
	}

	resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/commissions/%d/pay", commissionID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("pay commission failed: %d %s", resp.StatusCode, resp.Msg)
	}
	resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/commissions/%d/cancel", commissionID), map[string]string{"reason": "refund"})
	if resp.StatusCode != 409 {
		t.Fatalf("cancelling a paid commission want 409 got %d", resp.StatusCode)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/commissions/abc/pay", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("invalid id want 400 got %d", resp.StatusCode)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/commissions/9999/pay", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("unknown commission want 404 got %d", resp.StatusCode)
	}

	resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/admin/members/%d/upline", buyer.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("upline failed: %d %s", resp.StatusCode, resp.Msg)
	}
}

func TestPurchaseValidation(t *testing.T) {
	r, _ := setupRouterTest(t, "router_purchase_invalid", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))

	resp := doJSON(t, r, http.MethodPost, "/api/v1/admin/purchases", map[string]interface{}{"purchase_no": "PO-1"})
	if resp.StatusCode != 400 {
		t.Fatalf("missing fields want 400 got %d", resp.StatusCode)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/purchases", map[string]interface{}{
		"purchase_no":  "PO-2",
		"user_id":      1,
		"amount":       "ten",
		"package_type": constants.PackageTypeStarter,
	})
	if resp.StatusCode != 400 {
		t.Fatalf("invalid amount want 400 got %d", resp.StatusCode)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/purchases", map[string]interface{}{
		"purchase_no":  "PO-3",
		"user_id":      404,
		"amount":       "10",
		"package_type": constants.PackageTypeStarter,
	})
	if resp.StatusCode != 404 {
		t.Fatalf("unknown member want 404 got %d", resp.StatusCode)
	}
}

func TestProfitShareLifecycle(t *testing.T) {
	r, db := setupRouterTest(t, "router_profit_share", time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC))
	a := createRouterTestMember(t, db, nil, func(m *models.Member) { m.BusinessPoints = models.NewMoney("30") })
	b := createRouterTestMember(t, db, nil, func(m *models.Member) { m.BusinessPoints = models.NewMoney("70") })

	resp := doJSON(t, r, http.MethodPost, "/api/v1/admin/profit-shares", map[string]interface{}{
		"year":                 2025,
		"quarter":              1,
		"total_project_profit": "100000",
	})
	if resp.StatusCode != 0 {
		t.Fatalf("create profit share failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var share models.QuarterlyProfitShare
	if err := json.Unmarshal(resp.Data, &share); err != nil {
		t.Fatalf("decode share failed: %v", err)
	}
	if share.MemberShareAmount.String() != "60000.00" || share.CreatedBy != "ops-alice" {
		t.Fatalf("unexpected share %+v", share)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/profit-shares", map[string]interface{}{
		"year":                 2025,
		"quarter":              1,
		"total_project_profit": "100000",
	})
	if resp.StatusCode != 409 {
		t.Fatalf("duplicate quarter want 409 got %d", resp.StatusCode)
	}

	resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/admin/profit-shares/%d/members", share.ID), nil)
	var members []models.MemberProfitShare
	if err := json.Unmarshal(resp.Data, &members); err != nil {
		t.Fatalf("decode members failed: %v", err)
	}
	amounts := make(map[uint]string, len(members))
	for _, item := range members {
		amounts[item.UserID] = item.ShareAmount.String()
	}
	if amounts[a.ID] != "18000.00" || amounts[b.ID] != "42000.00" {
		t.Fatalf("unexpected member shares %v", amounts)
	}

	resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/profit-shares/%d/distribute", share.ID), nil)
	if resp.StatusCode != 409 {
		t.Fatalf("distribute before approve want 409 got %d", resp.StatusCode)
	}
	resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/profit-shares/%d/approve", share.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("approve failed: %d %s", resp.StatusCode, resp.Msg)
	}
	resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/profit-shares/%d/distribute", share.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("distribute failed: %d %s", resp.StatusCode, resp.Msg)
	}

	resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/admin/members/%d/wallet", b.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("wallet failed: %d %s", resp.StatusCode, resp.Msg)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/admin/profit-shares?year=2025", nil)
	var shares []models.QuarterlyProfitShare
	if err := json.Unmarshal(resp.Data, &shares); err != nil {
		t.Fatalf("decode shares failed: %v", err)
	}
	if len(shares) != 1 || shares[0].Status != constants.ProfitShareStatusDistributed {
		t.Fatalf("unexpected share list %+v", shares)
	}
}

func TestIncentiveSettingEndpoints(t *testing.T) {
	r, _ := setupRouterTest(t, "router_settings", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))

	resp := doJSON(t, r, http.MethodGet, "/api/v1/admin/settings/incentive", nil)
	var setting map[string]interface{}
	if err := json.Unmarshal(resp.Data, &setting); err != nil {
		t.Fatalf("decode setting failed: %v", err)
	}
	if setting["member_share_percent"] != "60.00" {
		t.Fatalf("default share percent want 60 got %v", setting["member_share_percent"])
	}

	setting["member_share_percent"] = 0
	resp = doJSON(t, r, http.MethodPut, "/api/v1/admin/settings/incentive", setting)
	if resp.StatusCode != 400 {
		t.Fatalf("zero share percent want 400 got %d", resp.StatusCode)
	}

	setting["member_share_percent"] = 65
	resp = doJSON(t, r, http.MethodPut, "/api/v1/admin/settings/incentive", setting)
	if resp.StatusCode != 0 {
		t.Fatalf("update setting failed: %d %s", resp.StatusCode, resp.Msg)
	}
	resp = doJSON(t, r, http.MethodGet, "/api/v1/admin/settings/incentive", nil)
	if err := json.Unmarshal(resp.Data, &setting); err != nil {
		t.Fatalf("decode setting failed: %v", err)
	}
	if setting["member_share_percent"] != "65.00" {
		t.Fatalf("updated share percent want 65 got %v", setting["member_share_percent"])
	}
}

func TestLoyaltyEndpointsRejectUnqualified(t *testing.T) {
	r, db := setupRouterTest(t, "router_loyalty", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))
	member := createRouterTestMember(t, db, nil, nil)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/admin/loyalty/cycles", map[string]interface{}{"user_id": member.ID})
	if resp.StatusCode != 400 {
		t.Fatalf("unqualified member want 400 got %d", resp.StatusCode)
	}
	var detail struct {
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(resp.Data, &detail); err != nil {
		t.Fatalf("decode eligibility failed: %v", err)
	}
	if len(detail.Missing) == 0 {
		t.Fatalf("rejection must list missing requirements")
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/loyalty/activities", map[string]interface{}{
		"user_id":       member.ID,
		"activity_type": constants.ActivityTypeDailyLogin,
	})
	if resp.StatusCode != 0 {
		t.Fatalf("record activity failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var activity struct {
		Logged     bool   `json:"logged"`
		Credited   bool   `json:"credited"`
		SkipReason string `json:"skip_reason"`
	}
	if err := json.Unmarshal(resp.Data, &activity); err != nil {
		t.Fatalf("decode activity failed: %v", err)
	}
	if activity.Credited || activity.SkipReason != "no_active_cycle" {
		t.Fatalf("activity without a cycle must not be credited, got %+v", activity)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/loyalty/cycles/sweep", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("sweep failed: %d %s", resp.StatusCode, resp.Msg)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/loyalty/cycles/77/suspend", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("unknown cycle want 404 got %d", resp.StatusCode)
	}
}

func TestAdminRouteCatalog(t *testing.T) {
	r, _ := setupRouterTest(t, "router_catalog", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))
	items := buildAdminRouteCatalog(r)
	if len(items) == 0 {
		t.Fatalf("catalog should not be empty")
	}
	seen := map[string]string{}
	for _, item := range items {
		seen[item.Method+" "+item.Path] = item.Module
	}
	if seen["POST /api/v1/admin/purchases"] != "purchases" {
		t.Fatalf("purchases route missing from catalog: %v", seen)
	}
	if seen["POST /api/v1/admin/bonuses/monthly"] != "commission" {
		t.Fatalf("bonus route should belong to commission module: %v", seen)
	}
	if seen["GET /api/v1/admin/members/:id/wallet/transactions"] != "wallet" {
		t.Fatalf("member wallet route should belong to wallet module: %v", seen)
	}
}

func TestDeriveAdminRouteModule(t *testing.T) {
	cases := map[string]string{
		"/api/v1/admin/":                          "system",
		"/api/v1/admin/profit-shares/:id/approve": "profit-shares",
		"/api/v1/admin/members/:id/tier/evaluate": "tier",
		"/api/v1/admin/commissions":               "commission",
		"/api/v1/admin/loyalty/cycles/sweep":      "loyalty",
	}
	for path, want := range cases {
		if got := deriveAdminRouteModule(path); got != want {
			t.Fatalf("module of %s want %s got %s", path, want, got)
		}
	}
}

func TestMemberEndpoints(t *testing.T) {
	r, _ := setupRouterTest(t, "router_members", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))

	resp := doJSON(t, r, http.MethodPost, "/api/v1/admin/members", map[string]interface{}{
		"display_name":       "Alice",
		"business_points":    "120",
		"training_completed": true,
	})
	if resp.StatusCode != 0 {
		t.Fatalf("create member failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var alice models.Member
	if err := json.Unmarshal(resp.Data, &alice); err != nil {
		t.Fatalf("decode member failed: %v", err)
	}
	if alice.BusinessPoints.String() != "120.00" || alice.TrainingCompletedAt == nil || alice.CurrentTier != constants.TierBronze {
		t.Fatalf("unexpected member: %+v", alice)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/members", map[string]interface{}{
		"display_name": "Bob",
		"referrer_id":  alice.ID,
	})
	if resp.StatusCode != 0 {
		t.Fatalf("create referred member failed: %d %s", resp.StatusCode, resp.Msg)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/members", map[string]interface{}{
		"display_name": "Mallory",
		"referrer_id":  9999,
	})
	if resp.StatusCode != 404 {
		t.Fatalf("unknown referrer want 404 got %d", resp.StatusCode)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/members", map[string]interface{}{
		"display_name":        "Trent",
		"subscription_status": "paused",
	})
	if resp.StatusCode != 400 {
		t.Fatalf("invalid subscription status want 400 got %d", resp.StatusCode)
	}

	resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/admin/members?referrer_id=%d", alice.ID), nil)
	var referred []models.Member
	if err := json.Unmarshal(resp.Data, &referred); err != nil {
		t.Fatalf("decode list failed: %v", err)
	}
	if len(referred) != 1 || referred[0].DisplayName != "Bob" {
		t.Fatalf("unexpected referred members: %+v", referred)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/admin/members?keyword=lic", nil)
	var matched []models.Member
	if err := json.Unmarshal(resp.Data, &matched); err != nil {
		t.Fatalf("decode keyword list failed: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != alice.ID {
		t.Fatalf("keyword should match alice only: %+v", matched)
	}

	resp = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/admin/members/%d", alice.ID), map[string]interface{}{
		"subscription_status": "expired",
		"touch_login":         true,
	})
	if resp.StatusCode != 0 {
		t.Fatalf("update member failed: %d %s", resp.StatusCode, resp.Msg)
	}
	resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/admin/members/%d", alice.ID), nil)
	var updated models.Member
	if err := json.Unmarshal(resp.Data, &updated); err != nil {
		t.Fatalf("decode member failed: %v", err)
	}
	if updated.SubscriptionStatus != constants.SubscriptionStatusExpired || updated.LastLoginAt == nil {
		t.Fatalf("member update not applied: %+v", updated)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/admin/members/9999", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("unknown member want 404 got %d", resp.StatusCode)
	}
}
