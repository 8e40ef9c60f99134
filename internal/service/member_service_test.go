package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yieldtree/incentive-engine/internal/constants"

	"github.com/shopspring/decimal"
)

func TestMemberServiceCreateSyncsReferral(t *testing.T) {
	env := setupIncentiveServiceTest(t, "member_service_create")
	var synced [][2]uint
	svc := NewMemberService(env.memberRepo, env.clock, func(_ context.Context, userID, referrerID uint) error {
		synced = append(synced, [2]uint{userID, referrerID})
		return errors.New("graph offline")
	})

	root, err := svc.CreateMember(context.Background(), CreateMemberInput{DisplayName: " root ", TrainingCompleted: true})
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	if root.DisplayName != "root" || root.ProfessionalLevel != 1 || root.TrainingCompletedAt == nil {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(synced) != 0 {
		t.Fatalf("root member should not sync referral, got %v", synced)
	}

	child, err := svc.CreateMember(context.Background(), CreateMemberInput{
		DisplayName:    "child",
		ReferrerID:     root.ID,
		BusinessPoints: decimal.RequireFromString("45.5"),
	})
	if err != nil {
		t.Fatalf("sync failure must not fail creation: %v", err)
	}
	if child.ReferrerID == nil || *child.ReferrerID != root.ID || child.BusinessPoints.String() != "45.50" {
		t.Fatalf("unexpected child: %+v", child)
	}
	if len(synced) != 1 || synced[0] != [2]uint{child.ID, root.ID} {
		t.Fatalf("referral sync calls: %v", synced)
	}

	if _, err := svc.CreateMember(context.Background(), CreateMemberInput{ReferrerID: 9999}); !errors.Is(err, ErrReferrerNotFound) {
		t.Fatalf("want ErrReferrerNotFound, got %v", err)
	}
	if _, err := svc.CreateMember(context.Background(), CreateMemberInput{BusinessPoints: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidMemberInput) {
		t.Fatalf("want ErrInvalidMemberInput, got %v", err)
	}
}

func TestMemberServiceUpdate(t *testing.T) {
	env := setupIncentiveServiceTest(t, "member_service_update")
	svc := NewMemberService(env.memberRepo, env.clock, nil)
	member := env.createMember(t, nil)

	status := "INACTIVE"
	level := 3
	trained := true
	updated, err := svc.UpdateMember(context.Background(), member.ID, UpdateMemberInput{
		SubscriptionStatus: &status,
		ProfessionalLevel:  &level,
		TrainingCompleted:  &trained,
		TouchLogin:         true,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.SubscriptionStatus != constants.SubscriptionStatusInactive || updated.ProfessionalLevel != 3 {
		t.Fatalf("unexpected member: %+v", updated)
	}
	if updated.LastLoginAt == nil || !updated.LastLoginAt.Equal(env.clock.Now()) || updated.TrainingCompletedAt == nil {
		t.Fatalf("timestamps not set: %+v", updated)
	}

	bad := "paused"
	if _, err := svc.UpdateMember(context.Background(), member.ID, UpdateMemberInput{SubscriptionStatus: &bad}); !errors.Is(err, ErrInvalidSubscriptionStatus) {
		t.Fatalf("want ErrInvalidSubscriptionStatus, got %v", err)
	}
	if _, err := svc.UpdateMember(context.Background(), 9999, UpdateMemberInput{}); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("want ErrMemberNotFound, got %v", err)
	}
}

func TestMemberServiceUpdateInvalidatesReferrerTierSnapshot(t *testing.T) {
	env := setupIncentiveServiceTest(t, "member_service_snapshot")
	useMemoryCache(t)
	ctx := context.Background()
	svc := NewMemberService(env.memberRepo, env.clock, nil)
	referrer := env.createMember(t, nil)
	child := env.createMember(t, uintPtr(referrer.ID))

	view, err := env.tier.GetTierProgress(ctx, referrer.ID)
	if err != nil || view.Cached || view.ActiveReferrals != 1 {
		t.Fatalf("unexpected first view %+v err=%v", view, err)
	}
	if view, err = env.tier.GetTierProgress(ctx, referrer.ID); err != nil || !view.Cached {
		t.Fatalf("second read must hit the snapshot, got %+v err=%v", view, err)
	}

	expired := string(constants.SubscriptionStatusExpired)
	if _, err := svc.UpdateMember(ctx, child.ID, UpdateMemberInput{SubscriptionStatus: &expired}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	view, err = env.tier.GetTierProgress(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("reload progress failed: %v", err)
	}
	if view.Cached || view.ActiveReferrals != 0 {
		t.Fatalf("referrer snapshot must be refreshed after status change, got %+v", view)
	}
}
