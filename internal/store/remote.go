package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quantaleap/ascent/internal/services"
)

// RemoteTable is the Redis-backed implementation of the partitioned table the
// repository writes through to. Each team is one hash keyed by session ID,
// and a side set tracks the known partitions so unfiltered reads can walk
// them. A partition that does not exist yet simply reads as empty.
type RemoteTable struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// defaultCallTimeout bounds every remote call so an outage resolves into the
// cache fallback instead of hanging a request.
const defaultCallTimeout = 10 * time.Second

type RemoteTableConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
	Log      *zap.SugaredLogger
}

func NewRemoteTable(cfg RemoteTableConfig) *RemoteTable {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "assessments"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	t := &RemoteTable{rdb: rdb, prefix: prefix, timeout: timeout, log: log}

	// An unreachable server at startup is not fatal; every call degrades to
	// the local cache until it comes back.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("remote store unreachable at startup", "addr", cfg.Addr, "error", err)
	}
	return t
}

func (t *RemoteTable) Close() error { return t.rdb.Close() }

func (t *RemoteTable) partitionKey(team string) string {
	return fmt.Sprintf("%s:%s", t.prefix, team)
}

func (t *RemoteTable) indexKey() string {
	return t.prefix + ":teams"
}

// Put inserts or replaces the record at (team, sessionID). Replacing an
// existing row is success, never a duplicate-key error.
func (t *RemoteTable) Put(ctx context.Context, rec *services.AssessmentRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return services.NewInvalidError("encode assessment: " + err.Error())
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	pipe := t.rdb.TxPipeline()
	pipe.HSet(ctx, t.partitionKey(rec.Team), rec.SessionID, body)
	pipe.SAdd(ctx, t.indexKey(), rec.Team)
	if _, err := pipe.Exec(ctx); err != nil {
		return services.NewUnavailableError("remote store put: " + err.Error())
	}
	return nil
}

// List returns every record, optionally narrowed server-side to one row key.
// Missing partitions and a missing index read as an empty result.
func (t *RemoteTable) List(ctx context.Context, filter services.RemoteFilter) ([]*services.AssessmentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	teams, err := t.rdb.SMembers(ctx, t.indexKey()).Result()
	if err != nil {
		return nil, services.NewUnavailableError("remote store list partitions: " + err.Error())
	}
	out := []*services.AssessmentRecord{}
	for _, team := range teams {
		if filter.SessionID != "" {
			body, err := t.rdb.HGet(ctx, t.partitionKey(team), filter.SessionID).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, services.NewUnavailableError("remote store get row: " + err.Error())
			}
			if rec := t.decode(team, filter.SessionID, body); rec != nil {
				out = append(out, rec)
			}
			continue
		}
		rows, err := t.rdb.HGetAll(ctx, t.partitionKey(team)).Result()
		if err != nil {
			return nil, services.NewUnavailableError("remote store scan partition: " + err.Error())
		}
		for sessionID, body := range rows {
			if rec := t.decode(team, sessionID, body); rec != nil {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// Delete removes one row. A row that is already gone counts as success.
func (t *RemoteTable) Delete(ctx context.Context, team, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.rdb.HDel(ctx, t.partitionKey(team), sessionID).Err(); err != nil {
		return services.NewUnavailableError("remote store delete: " + err.Error())
	}
	return nil
}

// decode skips rows that fail to parse rather than failing the whole read; a
// single corrupt row should not blank the dashboards.
func (t *RemoteTable) decode(team, sessionID, body string) *services.AssessmentRecord {
	var rec services.AssessmentRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		t.log.Warnw("skipping undecodable assessment row",
			"team", team, "sessionId", sessionID, "error", err)
		return nil
	}
	return &rec
}
