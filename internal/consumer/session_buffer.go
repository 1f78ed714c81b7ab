package consumer

import (
	"sync"

	"wisefido-vitals/internal/models"
)

// SessionBuffer 按会话缓存最近样本的有界缓冲
//
// 管线每次调用都在完整缓冲上重算，缓冲只保留最近 capacity 个样本；
// 各会话互不影响，单会话内追加串行化
type SessionBuffer struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*sessionState
}

type sessionState struct {
	samples []models.Sample
	total   int64 // 会话累计样本数（驱动按步长评估）
}

// NewSessionBuffer 创建会话缓冲，capacity 为每会话最大样本数
func NewSessionBuffer(capacity int) *SessionBuffer {
	return &SessionBuffer{
		capacity: capacity,
		sessions: make(map[string]*sessionState),
	}
}

// Append 追加一个样本，返回缓冲快照与该会话的累计样本数
// 快照为拷贝，调用方可安全地在锁外使用
func (b *SessionBuffer) Append(sessionID string, sample models.Sample) ([]models.Sample, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.sessions[sessionID]
	if !ok {
		state = &sessionState{}
		b.sessions[sessionID] = state
	}

	state.samples = append(state.samples, sample)
	if len(state.samples) > b.capacity {
		state.samples = state.samples[len(state.samples)-b.capacity:]
	}
	state.total++

	snapshot := make([]models.Sample, len(state.samples))
	copy(snapshot, state.samples)
	return snapshot, state.total
}

// Drop 丢弃一个会话的缓冲（转运结束）
func (b *SessionBuffer) Drop(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
}

// Len 当前缓冲的样本数
func (b *SessionBuffer) Len(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.sessions[sessionID]; ok {
		return len(state.samples)
	}
	return 0
}
