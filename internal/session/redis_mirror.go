package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cfgpkg "github.com/lbeast-live/link-server/internal/config"
)

// Redis Key 设计
const (
	// link:peer:{name} -> Hash{server_id, peer_id, last_seen, tamper, replays}
	keyPeerPrefix = "link:peer:"
)

// NewRedisClient 按配置创建 Redis 客户端并探活
func NewRedisClient(cfg cfgpkg.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// RedisMirror 把对端状态周期性镜像到 Redis，供场馆监控面读取。
// 镜像是旁路：Redis 不可用只降级告警，不影响链路数据面
type RedisMirror struct {
	client   *redis.Client
	serverID string
	mgr      *Manager
	interval time.Duration
	ttl      time.Duration
	log      *zap.Logger
}

// NewRedisMirror 创建镜像器。serverID 为空时生成 UUID
func NewRedisMirror(client *redis.Client, mgr *Manager, serverID string, interval time.Duration, log *zap.Logger) *RedisMirror {
	if serverID == "" {
		serverID = uuid.New().String()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisMirror{
		client:   client,
		serverID: serverID,
		mgr:      mgr,
		interval: interval,
		ttl:      interval * 5,
		log:      log,
	}
}

// Run 周期刷写，ctx 取消后退出
func (r *RedisMirror) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

func (r *RedisMirror) flush(ctx context.Context) {
	now := time.Now()
	for _, p := range r.mgr.Snapshot(now) {
		key := keyPeerPrefix + p.Name
		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"server_id": r.serverID,
			"peer_id":   p.PeerID,
			"online":    p.Online,
			"last_seen": p.LastSeen.Format(time.RFC3339Nano),
			"tamper":    p.TamperSuspicion,
			"replays":   p.ReplayRejected,
		})
		pipe.Expire(ctx, key, r.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			r.log.Warn("redis mirror flush failed", zap.String("peer", p.Name), zap.Error(err))
			return
		}
	}
}
