// Package redis keeps the history of content filter harness runs in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Ingenimax/agent-harness-go/pkg/contentfilter"
)

// ErrReportNotFound is returned by LoadReport for unknown harness ids
var ErrReportNotFound = errors.New("harness report not found")

// Config configures the result store
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every key
	KeyPrefix string

	// TTL expires result lists and reports. Zero keeps them forever.
	TTL time.Duration
}

// DefaultConfig returns a local Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:6379",
		KeyPrefix: "agent-harness:",
		TTL:       30 * 24 * time.Hour,
	}
}

// ResultStore implements contentfilter.ResultStore.
//
// Keys:
//
//	<prefix>harness:<id>:results  list of result JSON, in run order
//	<prefix>harness:<id>:report   report JSON
//	<prefix>harnesses             sorted set of harness ids by start time
type ResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ contentfilter.ResultStore = (*ResultStore)(nil)

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg Config) (*ResultStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

// Close closes the underlying client
func (s *ResultStore) Close() error {
	return s.client.Close()
}

func (s *ResultStore) resultsKey(harnessID string) string {
	return fmt.Sprintf("%sharness:%s:results", s.prefix, harnessID)
}

func (s *ResultStore) reportKey(harnessID string) string {
	return fmt.Sprintf("%sharness:%s:report", s.prefix, harnessID)
}

func (s *ResultStore) indexKey() string {
	return s.prefix + "harnesses"
}

// AppendResult adds a result to its harness run's list and indexes the run
func (s *ResultStore) AppendResult(ctx context.Context, result contentfilter.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	key := s.resultsKey(result.HarnessID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.ZAddNX(ctx, s.indexKey(), &redis.Z{
			Score:  float64(result.StartedAt.Unix()),
			Member: result.HarnessID,
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append result %s: %w", result.ID, err)
	}
	return nil
}

// SaveReport stores the final report of a harness run
func (s *ResultStore) SaveReport(ctx context.Context, report *contentfilter.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.reportKey(report.HarnessID), data, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), &redis.Z{
			Score:  float64(report.StartedAt.Unix()),
			Member: report.HarnessID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.HarnessID, err)
	}
	return nil
}

// LoadReport returns the stored report of a harness run
func (s *ResultStore) LoadReport(ctx context.Context, harnessID string) (*contentfilter.Report, error) {
	data, err := s.client.Get(ctx, s.reportKey(harnessID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, harnessID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", harnessID, err)
	}
	return contentfilter.ParseReport(data)
}

// Results returns the results appended for a harness run, in run order. It
// works for runs that were interrupted before a report was saved.
func (s *ResultStore) Results(ctx context.Context, harnessID string) ([]contentfilter.Result, error) {
	items, err := s.client.LRange(ctx, s.resultsKey(harnessID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load results of %s: %w", harnessID, err)
	}

	results := make([]contentfilter.Result, 0, len(items))
	for _, item := range items {
		var r contentfilter.Result
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("failed to decode result of %s: %w", harnessID, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// ListHarnesses returns up to limit harness ids, newest first. limit <= 0 lists all.
// Runs older than the TTL are dropped from the index first, since their
// results and report have expired.
func (s *ResultStore) ListHarnesses(ctx context.Context, limit int) ([]string, error) {
	if s.ttl > 0 {
		cutoff := s.now().Add(-s.ttl).Unix()
		if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
			return nil, fmt.Errorf("failed to trim expired harness runs: %w", err)
		}
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list harness runs: %w", err)
	}
	return ids, nil
}
