package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
)

// StateManager 报警持续性状态管理器
//
// 每个会话在 Redis 中保存上一窗口的阈值突破标志（1 步记忆，带 TTL，
// 超时视为无历史窗口）。同一会话的读-改-写必须在 Lock 保护下进行，
// 防止并发请求对同一会话的状态竞态；不同会话互不阻塞
type StateManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger

	// session_id -> *sync.Mutex
	locks sync.Map
}

// NewStateManager 创建状态管理器
func NewStateManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StateManager {
	return &StateManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Lock 获取会话级互斥锁，返回解锁函数
func (s *StateManager) Lock(sessionID string) func() {
	v, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// stateKey 构建状态键
func (s *StateManager) stateKey(sessionID string) string {
	return fmt.Sprintf("%s%s:persistence", s.config.Cache.StateKeyPrefix, sessionID)
}

// GetPrevBreached 读取会话上一窗口的突破标志
// 状态不存在（新会话或 TTL 过期）时返回 false，即视为无历史窗口
func (s *StateManager) GetPrevBreached(ctx context.Context, sessionID string) (bool, error) {
	val, err := s.redisClient.Get(ctx, s.stateKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get persistence state: %w", err)
	}

	var state models.PersistenceState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return false, fmt.Errorf("failed to unmarshal persistence state: %w", err)
	}

	return state.ThresholdBreached, nil
}

// SetPrevBreached 保存会话当前窗口的突破标志（带 TTL）
func (s *StateManager) SetPrevBreached(ctx context.Context, sessionID string, breached bool) error {
	state := models.PersistenceState{
		ThresholdBreached: breached,
		UpdatedAt:         time.Now().Unix(),
	}

	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal persistence state: %w", err)
	}

	ttl := time.Duration(s.config.Cache.StateTTL) * time.Second
	if err := s.redisClient.Set(ctx, s.stateKey(sessionID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set persistence state: %w", err)
	}

	return nil
}

// DeleteState 删除会话状态（转运结束）
func (s *StateManager) DeleteState(ctx context.Context, sessionID string) error {
	if err := s.redisClient.Del(ctx, s.stateKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete persistence state: %w", err)
	}
	return nil
}
