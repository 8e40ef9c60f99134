package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestSetDefaultsUnmarshal(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults failed: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %s", cfg.Database.Driver)
	}
	if cfg.Referral.Source != "database" || cfg.Referral.MaxUplineDepth != 5 {
		t.Fatalf("unexpected referral defaults: %+v", cfg.Referral)
	}
	if cfg.Incentive.MemberSharePercent != "60" || cfg.Incentive.LoyaltyCycleDays != 90 {
		t.Fatalf("unexpected incentive defaults: %+v", cfg.Incentive)
	}
	if cfg.Queue.Queues["critical"] != 6 {
		t.Fatalf("unexpected queue weights: %+v", cfg.Queue.Queues)
	}
	if len(cfg.Incentive.ActivityTypes) != 5 {
		t.Fatalf("unexpected activity types: %v", cfg.Incentive.ActivityTypes)
	}
}
