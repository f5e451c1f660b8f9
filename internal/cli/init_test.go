package cli

import (
	"bytes"
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"cognita/internal/cache"
	"cognita/internal/config"
	"cognita/internal/log"
	"cognita/internal/metrics"
)

func quietLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	return log.New(cfg)
}

func TestNewAggregator(t *testing.T) {
	agg, err := NewAggregator(&config.Config{Timezone: "Europe/Rome", UpcomingHorizonDays: 5})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	if agg.HorizonDays != 5 || agg.SeriesDays != metrics.DefaultSeriesDays {
		t.Fatalf("unexpected aggregator %+v", agg)
	}
	if agg.Calendar.Location().String() != "Europe/Rome" {
		t.Fatalf("location = %s", agg.Calendar.Location())
	}

	if _, err := NewAggregator(&config.Config{Timezone: "Mars/Olympus"}); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestDevUser(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		cfg  config.Config
		want uuid.UUID
	}{
		{"auth enabled", config.Config{DevUserID: id.String()}, uuid.Nil},
		{"auth disabled", config.Config{AuthDisabled: true, DevUserID: id.String()}, id},
		{"bad id", config.Config{AuthDisabled: true, DevUserID: "me"}, uuid.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DevUser(&tt.cfg); got != tt.want {
				t.Errorf("DevUser = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInitDashboardCacheMemory(t *testing.T) {
	store, stop := InitDashboardCache(context.Background(), quietLogger(), &config.Config{CacheBackend: "memory", CacheTTL: time.Minute})
	defer stop()

	if _, ok := store.(*cache.LocalStore[metrics.DashboardSummary]); !ok {
		t.Fatalf("expected local store, got %T", store)
	}
	ctx := context.Background()
	if err := store.Set(ctx, "dashboard:x", metrics.DashboardSummary{Today: "2025-03-12"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, "dashboard:x")
	if err != nil || !ok || got.Today != "2025-03-12" {
		t.Fatalf("Get = %+v, %v, %v", got, ok, err)
	}
}

func TestInitAMQPDisabled(t *testing.T) {
	if c := InitAMQP(quietLogger(), &config.Config{}); c != nil {
		t.Fatalf("expected nil client without AMQP_URL")
	}
}
