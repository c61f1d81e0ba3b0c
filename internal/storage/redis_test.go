package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

const testLauncherID = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

func setupTestStore(t *testing.T, history int64) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewRedisClient(context.Background(), mr.Addr(), "", 0, testLauncherID, history)
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func reportAt(ts time.Time, blocks int64) *estimate.Report {
	return &estimate.Report{
		Timestamp:            ts,
		PeriodLength:         6 * time.Hour,
		TotalSpace:           1000,
		PoolSpace:            10,
		ExpectedBlocksPeriod: 11.52,
		ActualBlocks:         blocks,
		PoolShare:            0.01,
		Price:                30,
	}
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisClient(context.Background(), addr, "", 0, testLauncherID, 10); err == nil {
		t.Error("expected connection error")
	}
}

func TestSaveAndLatestReport(t *testing.T) {
	store, mr := setupTestStore(t, 10)
	ctx := context.Background()

	if _, err := store.LatestReport(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestReport() on empty store error = %v, want ErrNotFound", err)
	}

	base := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.SaveReport(ctx, reportAt(base.Add(time.Duration(i)*time.Hour), int64(i))); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	latest, err := store.LatestReport(ctx)
	if err != nil {
		t.Fatalf("LatestReport() error = %v", err)
	}
	if latest.ActualBlocks != 2 {
		t.Errorf("latest ActualBlocks = %d, want 2", latest.ActualBlocks)
	}
	if !latest.Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("latest Timestamp = %v", latest.Timestamp)
	}

	key := fmt.Sprintf(keyLatest, util.MemberKey(testLauncherID))
	if !mr.Exists(key) {
		t.Errorf("expected key %s to exist", key)
	}
}

func TestRecentReports(t *testing.T) {
	store, _ := setupTestStore(t, 10)
	ctx := context.Background()

	base := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := store.SaveReport(ctx, reportAt(base.Add(time.Duration(i)*time.Hour), int64(i))); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	tests := []struct {
		limit    int64
		expected []int64
	}{
		{3, []int64{4, 3, 2}},
		{10, []int64{4, 3, 2, 1, 0}},
		{0, []int64{}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit_%d", tt.limit), func(t *testing.T) {
			reports, err := store.RecentReports(ctx, tt.limit)
			if err != nil {
				t.Fatalf("RecentReports() error = %v", err)
			}
			if len(reports) != len(tt.expected) {
				t.Fatalf("RecentReports() len = %d, want %d", len(reports), len(tt.expected))
			}
			for i, rep := range reports {
				if rep.ActualBlocks != tt.expected[i] {
					t.Errorf("reports[%d].ActualBlocks = %d, want %d", i, rep.ActualBlocks, tt.expected[i])
				}
			}
		})
	}
}

func TestHistoryTrim(t *testing.T) {
	store, _ := setupTestStore(t, 3)
	ctx := context.Background()

	base := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		if err := store.SaveReport(ctx, reportAt(base.Add(time.Duration(i)*time.Minute), int64(i))); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if !stats.Oldest.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("Oldest = %v, want %v", stats.Oldest, base.Add(3*time.Minute))
	}
	if !stats.Newest.Equal(base.Add(5 * time.Minute)) {
		t.Errorf("Newest = %v, want %v", stats.Newest, base.Add(5*time.Minute))
	}
	if stats.Limit != 3 {
		t.Errorf("Limit = %d, want 3", stats.Limit)
	}
}

func TestStatsEmpty(t *testing.T) {
	store, _ := setupTestStore(t, 0)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 0 || !stats.Oldest.IsZero() {
		t.Errorf("Stats() = %+v, want empty", stats)
	}
	if stats.Limit != DefaultHistory {
		t.Errorf("Limit = %d, want %d", stats.Limit, DefaultHistory)
	}
}

func TestMemberScoping(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()

	other := "ff" + testLauncherID[2:]
	a, err := NewRedisClient(ctx, mr.Addr(), "", 0, testLauncherID, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewRedisClient(ctx, mr.Addr(), "", 0, other, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if a.MemberKey() == b.MemberKey() {
		t.Fatal("different launcher ids share a member key")
	}
	if err := a.SaveReport(ctx, reportAt(time.Now().UTC(), 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.LatestReport(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("member b sees member a's report: %v", err)
	}
}
