package realtime

import (
	"sync"
)

// Registry 连接注册表，双索引：连接 -> 房间键集合、房间键 -> 连接集合。
// 两个索引只通过 Register/Subscribe/Unsubscribe/Remove 变更，
// 单一 API 面保证索引一致，订阅动作是幂等集合操作。
type Registry struct {
	mu     sync.RWMutex
	conns  map[uint64]map[string]struct{}
	topics map[string]map[uint64]struct{}
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[uint64]map[string]struct{}),
		topics: make(map[string]map[uint64]struct{}),
	}
}

// Register 登记新连接（空订阅集）
func (r *Registry) Register(connID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = make(map[string]struct{})
	}
}

// Subscribe 将连接加入房间，重复加入是 no-op。
// 未 Register 的连接直接忽略（断开清理与订阅乱序时的兜底）。
func (r *Registry) Subscribe(connID uint64, keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics, ok := r.conns[connID]
	if !ok {
		return
	}

	for _, key := range keys {
		topics[key] = struct{}{}
		room, ok := r.topics[key]
		if !ok {
			room = make(map[uint64]struct{})
			r.topics[key] = room
		}
		room[connID] = struct{}{}
	}
}

// Unsubscribe 将连接移出房间，未订阅过的房间是 no-op
func (r *Registry) Unsubscribe(connID uint64, keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics, ok := r.conns[connID]
	if !ok {
		return
	}

	for _, key := range keys {
		delete(topics, key)
		r.dropFromRoomLocked(key, connID)
	}
}

// Remove 移除连接的全部登记，复杂度与该连接的订阅数成正比
func (r *Registry) Remove(connID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics, ok := r.conns[connID]
	if !ok {
		return
	}
	for key := range topics {
		r.dropFromRoomLocked(key, connID)
	}
	delete(r.conns, connID)
}

func (r *Registry) dropFromRoomLocked(key string, connID uint64) {
	room, ok := r.topics[key]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.topics, key)
	}
}

// Members 房间成员快照
func (r *Registry) Members(keys ...string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint64]struct{})
	var out []uint64
	for _, key := range keys {
		for connID := range r.topics[key] {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			out = append(out, connID)
		}
	}
	return out
}

// Topics 连接当前订阅的房间键快照
func (r *Registry) Topics(connID uint64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns[connID]))
	for key := range r.conns[connID] {
		out = append(out, key)
	}
	return out
}

// ClientCount 当前连接数
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SubscriptionCount 当前 (连接, 房间) 订阅对总数
func (r *Registry) SubscriptionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, topics := range r.conns {
		total += len(topics)
	}
	return total
}
