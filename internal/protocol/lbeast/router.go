package lbeast

import "sync"

// Handler 类型化值处理回调。channel 的语义完全由应用层持有，
// 协议不解释编号含义，通道过滤是应用的责任
type Handler func(channel uint8, v Value)

// Router 按值类型分发解码结果到注册的处理器。
// 显式订阅表 (type, callback)，由单一分发线程同步调用，
// 不是隐式全局事件总线
type Router struct {
	mu     sync.RWMutex
	m      map[ValueType][]Handler
	onDrop func(channel uint8, t ValueType)
}

// NewRouter 创建分发器
func NewRouter() *Router { return &Router{m: make(map[ValueType][]Handler)} }

// SetDropHook 设置无处理器时的回调（低频指标用，不做逐事件日志）
func (r *Router) SetDropHook(fn func(channel uint8, t ValueType)) { r.onDrop = fn }

// Register 注册某类型的处理器，可多次注册叠加
func (r *Router) Register(t ValueType, h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.m[t] = append(r.m[t], h)
	r.mu.Unlock()
}

// Dispatch 同步调用该类型的全部处理器。
// 未识别的通道/类型必须静默丢弃而非报错——未来新增通道不能中断协议
func (r *Router) Dispatch(channel uint8, v Value) {
	r.mu.RLock()
	handlers := r.m[v.Type]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		if r.onDrop != nil {
			r.onDrop(channel, v.Type)
		}
		return
	}
	for _, h := range handlers {
		h(channel, v)
	}
}
