package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

const (
	keyPrefix = "xchpool:"

	// Key patterns, formatted with the member key
	keyReports = keyPrefix + "reports:%s"
	keyLatest  = keyPrefix + "latest:%s"
)

// DefaultHistory is the number of reports kept when no limit is given
const DefaultHistory = 1000

// RedisClient stores report snapshots of one member
type RedisClient struct {
	client    *redis.Client
	memberKey string
	history   int64
}

// NewRedisClient connects to Redis and scopes the client to launcherID
func NewRedisClient(ctx context.Context, url, password string, db int, launcherID string, history int64) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if history <= 0 {
		history = DefaultHistory
	}

	util.Infof("Connected to Redis at %s", url)
	return &RedisClient{
		client:    client,
		memberKey: util.MemberKey(launcherID),
		history:   history,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// MemberKey returns the hashed launcher id used in key names
func (r *RedisClient) MemberKey() string {
	return r.memberKey
}

func (r *RedisClient) reportsKey() string {
	return fmt.Sprintf(keyReports, r.memberKey)
}

func (r *RedisClient) latestKey() string {
	return fmt.Sprintf(keyLatest, r.memberKey)
}

// SaveReport appends rep to the history, trims it and updates the latest snapshot
func (r *RedisClient) SaveReport(ctx context.Context, rep *estimate.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, r.reportsKey(), &redis.Z{
		Score:  float64(rep.Timestamp.Unix()),
		Member: data,
	})
	// Keep only the newest entries
	pipe.ZRemRangeByRank(ctx, r.reportsKey(), 0, -(r.history + 1))
	pipe.Set(ctx, r.latestKey(), data, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	util.Debugw("report snapshot saved", "member", r.memberKey, "timestamp", rep.Timestamp.Unix())
	return nil
}

// LatestReport returns the most recently saved report
func (r *RedisClient) LatestReport(ctx context.Context) (*estimate.Report, error) {
	data, err := r.client.Get(ctx, r.latestKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rep estimate.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rep, nil
}

// RecentReports returns up to limit reports, newest first
func (r *RedisClient) RecentReports(ctx context.Context, limit int64) ([]*estimate.Report, error) {
	if limit <= 0 {
		return []*estimate.Report{}, nil
	}

	results, err := r.client.ZRevRange(ctx, r.reportsKey(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	reports := make([]*estimate.Report, 0, len(results))
	for _, result := range results {
		var rep estimate.Report
		if err := json.Unmarshal([]byte(result), &rep); err != nil {
			util.Warnf("skipping undecodable report snapshot: %v", err)
			continue
		}
		reports = append(reports, &rep)
	}
	return reports, nil
}

// Stats summarizes the stored history
func (r *RedisClient) Stats(ctx context.Context) (*HistoryStats, error) {
	key := r.reportsKey()

	pipe := r.client.Pipeline()
	card := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	newest := pipe.ZRevRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	stats := &HistoryStats{
		MemberKey: r.memberKey,
		Count:     card.Val(),
		Limit:     r.history,
	}
	if z := oldest.Val(); len(z) > 0 {
		stats.Oldest = time.Unix(int64(z[0].Score), 0).UTC()
	}
	if z := newest.Val(); len(z) > 0 {
		stats.Newest = time.Unix(int64(z[0].Score), 0).UTC()
	}
	return stats, nil
}
