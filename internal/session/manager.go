package session

import (
	"sync"
	"time"
)

// PeerInfo 对端状态快照（运维 API 用）
type PeerInfo struct {
	Name            string    `json:"name"`
	PeerID          string    `json:"peer_id"`
	Online          bool      `json:"online"`
	LastSeen        time.Time `json:"last_seen"`
	TamperSuspicion uint64    `json:"tamper_suspicion"`
	ReplayRejected  uint64    `json:"replay_rejected"`
}

// Manager 对端会话管理最小实现：记录每个受控端最近收帧时间与安全计数，
// 判断是否在线
type Manager struct {
	mu      sync.RWMutex
	peers   map[string]*peerState
	timeout time.Duration
}

type peerState struct {
	peerID   string
	lastSeen time.Time
	tamper   uint64
	replays  uint64
}

// New 创建会话管理器。timeout<=0 取 10s
func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{peers: make(map[string]*peerState), timeout: timeout}
}

func (m *Manager) peer(name string) *peerState {
	p, ok := m.peers[name]
	if !ok {
		p = &peerState{}
		m.peers[name] = p
	}
	return p
}

// Touch 更新对端最近收帧时间
func (m *Manager) Touch(name, peerID string, t time.Time) {
	m.mu.Lock()
	p := m.peer(name)
	p.peerID = peerID
	p.lastSeen = t
	m.mu.Unlock()
}

// OnTamper 累计认证失败（篡改嫌疑）
func (m *Manager) OnTamper(name string) {
	m.mu.Lock()
	m.peer(name).tamper++
	m.mu.Unlock()
}

// OnReplayRejected 累计重放拒绝
func (m *Manager) OnReplayRejected(name string) {
	m.mu.Lock()
	m.peer(name).replays++
	m.mu.Unlock()
}

// IsOnline 判断对端是否在线
func (m *Manager) IsOnline(name string, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[name]
	if !ok || p.lastSeen.IsZero() {
		return false
	}
	return now.Sub(p.lastSeen) <= m.timeout
}

// OnlineCount 当前在线对端数量
func (m *Manager) OnlineCount(now time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, p := range m.peers {
		if !p.lastSeen.IsZero() && now.Sub(p.lastSeen) <= m.timeout {
			count++
		}
	}
	return count
}

// Snapshot 全部对端状态快照
func (m *Manager) Snapshot(now time.Time) []PeerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PeerInfo, 0, len(m.peers))
	for name, p := range m.peers {
		out = append(out, PeerInfo{
			Name:            name,
			PeerID:          p.peerID,
			Online:          !p.lastSeen.IsZero() && now.Sub(p.lastSeen) <= m.timeout,
			LastSeen:        p.lastSeen,
			TamperSuspicion: p.tamper,
			ReplayRejected:  p.replays,
		})
	}
	return out
}
