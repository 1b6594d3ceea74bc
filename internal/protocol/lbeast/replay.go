package lbeast

import (
	"sync"
	"time"
)

// DefaultReplayWindow 时间戳模式的默认接受窗口。
// 协议未规定固定值，按可调参数处理
const DefaultReplayWindow = 100 * time.Millisecond

// tagRingSize HMAC 级别标签去重环的容量。
// 有界滑动窗口而非全量缓存：以极晚到达的合法包偶发误拒，换取内存有界
const tagRingSize = 32

// ReplayMode 重放保护的新鲜度判定模式
type ReplayMode uint8

const (
	// ReplayCounter 严格递增计数（Encrypted 帧以 IV 计数喂入）
	ReplayCounter ReplayMode = iota
	// ReplayTimestamp 毫秒时间戳，须大于上次接受值且落在本地时钟窗口内
	ReplayTimestamp
)

// ReplayGuard 按对端跟踪新鲜度，拒绝重复/过期的已认证帧。
// 仅作用于 HMAC/Encrypted 帧。状态在首个已认证帧到达时惰性创建，
// 不跨重启持久化。计数判定依赖单消费者按到达序处理同一对端的流
type ReplayGuard struct {
	mu     sync.Mutex
	mode   ReplayMode
	window time.Duration
	peers  map[string]*peerWindow
	now    func() time.Time
}

type peerWindow struct {
	last    uint32
	hasLast bool

	// HMAC 帧标签去重环
	tags    [tagRingSize][TagSize]byte
	tagAt   [tagRingSize]time.Time
	tagHead int
}

// NewReplayGuard 构造重放保护。window<=0 时取默认窗口
func NewReplayGuard(mode ReplayMode, window time.Duration) *ReplayGuard {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &ReplayGuard{
		mode:   mode,
		window: window,
		peers:  make(map[string]*peerWindow),
		now:    time.Now,
	}
}

func (g *ReplayGuard) peer(peerID string) *peerWindow {
	w, ok := g.peers[peerID]
	if !ok {
		w = &peerWindow{}
		g.peers[peerID] = w
	}
	return w
}

// Accept 判定 counter/timestamp 是否新鲜并更新窗口。
// 计数模式：严格大于上次接受值；
// 时间戳模式：额外要求与本地时钟偏差不超过窗口
func (g *ReplayGuard) Accept(peerID string, value uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.peer(peerID)
	if w.hasLast && value <= w.last {
		return false
	}
	if g.mode == ReplayTimestamp {
		local := uint32(g.now().UnixMilli())
		var delta uint32
		if local > value {
			delta = local - value
		} else {
			delta = value - local
		}
		if time.Duration(delta)*time.Millisecond > g.window {
			return false
		}
	}
	w.last = value
	w.hasLast = true
	return true
}

// AcceptTag HMAC 级别帧的去重判定：帧不携带计数，
// 在窗口期内按截断标签判重（环形缓冲，最老条目被覆盖）
func (g *ReplayGuard) AcceptTag(peerID string, tag [TagSize]byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.peer(peerID)
	now := g.now()
	for i := 0; i < tagRingSize; i++ {
		if w.tags[i] == tag && !w.tagAt[i].IsZero() && now.Sub(w.tagAt[i]) <= g.window {
			return false
		}
	}
	w.tags[w.tagHead] = tag
	w.tagAt[w.tagHead] = now
	w.tagHead = (w.tagHead + 1) % tagRingSize
	return true
}

// Forget 清除对端状态（会话重建/换密钥后调用）
func (g *ReplayGuard) Forget(peerID string) {
	g.mu.Lock()
	delete(g.peers, peerID)
	g.mu.Unlock()
}

// PeerCount 当前跟踪的对端数量（指标用）
func (g *ReplayGuard) PeerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.peers)
}
