// Package link 把编解码、重放保护、分发与传输组装为一条收发流水线。
// 接收路径独立于应用控制循环运行：网络 I/O 永远不阻塞实时逻辑。
package link

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lbeast-live/link-server/internal/protocol/lbeast"
	"github.com/lbeast-live/link-server/internal/transport"
)

// State 端点状态。传输断开表现为状态变更，重连/退避策略归应用层
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateTransportError
	StateClosed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTransportError:
		return "transport-error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config 端点配置
type Config struct {
	// Name 端点名称（日志与会话标识）
	Name string

	// SecurityLevel 配置的安全级别
	SecurityLevel lbeast.SecurityLevel

	// SharedSecret 共享密钥串（None 级别可为空）
	SharedSecret string

	// DebugMode Debug JSON 模式。无条件绕过安全级别——
	// 与非 None 级别并存时端点会持续周期性告警
	DebugMode bool

	// ReplayWindow 重放窗口，<=0 取默认 100ms
	ReplayWindow time.Duration

	// QueueSize 接收队列（SPSC）深度，<=0 取 256
	QueueSize int

	// Layouts 结构布局注册表（可选）。SendLayout 发送前按布局校验记录长度
	Layouts *lbeast.LayoutRegistry
}

// Observer 端点事件回调（指标桥接用），字段可为 nil
type Observer struct {
	FrameSent      func(bytes int)
	FrameReceived  func(bytes int)
	DecodeError    func(err error)
	AuthFailed     func()
	ReplayRejected func()
	Dispatched     func()
	QueueDropped   func()
	StateChanged   func(s State, err error)
}

// Endpoint 一条与嵌入式控制器之间的类型化消息链路。
// 配置期一次性计算 effective 安全级别（debug 优先），各调用点不再分支
type Endpoint struct {
	cfg    Config
	tr     transport.Transport
	codec  *lbeast.Codec
	router *lbeast.Router
	guard  *lbeast.ReplayGuard
	log    *zap.Logger
	obs    Observer

	debug       bool // effective: debug JSON 模式
	warnLimiter *rate.Limiter

	rxq   chan []byte
	state atomic.Int32
	wg    sync.WaitGroup
	once  sync.Once

	// tamperSuspicion 认证失败累计（MAC 失败与解密失败合并计数）
	tamperSuspicion atomic.Uint64
}

// New 构造端点。配置的级别与 debug 开关在此折算为单一生效路径
func New(cfg Config, tr transport.Transport, logger *zap.Logger) (*Endpoint, error) {
	if tr == nil {
		return nil, fmt.Errorf("endpoint %q: nil transport", cfg.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	// 生效路径在此一次性折算：debug 优先于配置级别，后续不再分支
	debug := cfg.DebugMode

	codec, err := lbeast.NewCodec(cfg.SecurityLevel, cfg.SharedSecret)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", cfg.Name, err)
	}

	e := &Endpoint{
		cfg:         cfg,
		tr:          tr,
		codec:       codec,
		router:      lbeast.NewRouter(),
		guard:       lbeast.NewReplayGuard(lbeast.ReplayCounter, cfg.ReplayWindow),
		log:         logger.With(zap.String("endpoint", cfg.Name), zap.String("peer", tr.RemoteID())),
		debug:       debug,
		warnLimiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
		rxq:         make(chan []byte, cfg.QueueSize),
	}
	e.state.Store(int32(StateIdle))

	if debug && cfg.SecurityLevel != lbeast.SecurityNone {
		// 安全降级脚枪：不是错误，但必须响亮
		e.log.Warn("debug mode bypasses configured security level",
			zap.String("configured", cfg.SecurityLevel.String()))
	}
	return e, nil
}

// SetObserver 设置事件回调，须在 Start 前调用
func (e *Endpoint) SetObserver(obs Observer) { e.obs = obs }

// Router 返回分发器，应用在此注册 (type, callback) 订阅
func (e *Endpoint) Router() *lbeast.Router { return e.router }

// State 当前状态
func (e *Endpoint) State() State { return State(e.state.Load()) }

// TamperSuspicion 认证失败累计计数
func (e *Endpoint) TamperSuspicion() uint64 { return e.tamperSuspicion.Load() }

// PeerID 对端标识
func (e *Endpoint) PeerID() string { return e.tr.RemoteID() }

func (e *Endpoint) setState(s State, err error) {
	old := State(e.state.Swap(int32(s)))
	if old == s {
		return
	}
	if e.obs.StateChanged != nil {
		e.obs.StateChanged(s, err)
	}
}

// Start 启动接收流水线：
// 专用接收协程读传输 → 有界 SPSC 队列 → 单一分发协程解码并路由。
// 队列保持同一对端的到达顺序——重放计数判定依赖这一点
func (e *Endpoint) Start() {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return
	}
	if e.obs.StateChanged != nil {
		e.obs.StateChanged(StateRunning, nil)
	}

	e.wg.Add(2)
	go e.recvLoop()
	go e.dispatchLoop()
}

func (e *Endpoint) recvLoop() {
	defer e.wg.Done()
	defer close(e.rxq)

	buf := make([]byte, 4096)
	for {
		n, err := e.tr.Read(buf)
		if n > 0 {
			if e.obs.FrameReceived != nil {
				e.obs.FrameReceived(n)
			}
			pkt := append([]byte(nil), buf[:n]...)
			select {
			case e.rxq <- pkt:
			default:
				// 队列满：丢新包。单向数据流下应用靠周期重发兜底
				if e.obs.QueueDropped != nil {
					e.obs.QueueDropped()
				}
			}
		}
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || e.State() == StateClosed {
				return
			}
			e.log.Warn("transport read error", zap.Error(err))
			e.setState(StateTransportError, err)
			return
		}
	}
}

// dispatchLoop 唯一消费者：同一对端的流只允许一个协程处理
func (e *Endpoint) dispatchLoop() {
	defer e.wg.Done()

	var stream *lbeast.StreamDecoder
	if !e.debug && !e.tr.Datagram() {
		stream = lbeast.NewStreamDecoder(e.codec, e.onDecodeError)
	}
	var lineBuf []byte

	for pkt := range e.rxq {
		switch {
		case e.debug:
			lineBuf = e.dispatchDebug(append(lineBuf, pkt...))
		case stream != nil:
			for _, d := range stream.Feed(pkt) {
				e.deliver(d)
			}
		default:
			d, err := e.codec.Decode(pkt)
			if err != nil {
				e.onDecodeError(err)
				continue
			}
			e.deliver(d)
		}
	}
}

// dispatchDebug 按行切分 Debug JSON，返回未完结的行缓冲
func (e *Endpoint) dispatchDebug(buf []byte) []byte {
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			return buf
		}
		line := buf[:i]
		buf = buf[i+1:]
		d, err := lbeast.DecodeDebug(line)
		if err != nil {
			e.onDecodeError(err)
			continue
		}
		e.deliver(d)
	}
}

func (e *Endpoint) onDecodeError(err error) {
	if e.obs.DecodeError != nil {
		e.obs.DecodeError(err)
	}
	switch {
	case errors.Is(err, lbeast.ErrAuthenticationFailed):
		e.tamperSuspicion.Add(1)
		if e.obs.AuthFailed != nil {
			e.obs.AuthFailed()
		}
		if e.warnLimiter.Allow() {
			e.log.Warn("authentication failed on inbound frame",
				zap.Uint64("tamper_suspicion", e.tamperSuspicion.Load()))
		}
	case errors.Is(err, lbeast.ErrUnknownType):
		// 未识别类型静默丢弃，高频场景不逐条记日志
	default:
		e.log.Debug("dropped malformed frame", zap.Error(err))
	}
}

// deliver 重放判定后路由到订阅者
func (e *Endpoint) deliver(d *lbeast.Decoded) {
	peer := e.tr.RemoteID()
	switch {
	case d.HasCounter:
		if !e.guard.Accept(peer, d.Counter) {
			e.rejectReplay()
			return
		}
	case d.HasTag:
		if !e.guard.AcceptTag(peer, d.Tag) {
			e.rejectReplay()
			return
		}
	}
	e.router.Dispatch(d.Channel, d.Value)
	if e.obs.Dispatched != nil {
		e.obs.Dispatched()
	}
}

func (e *Endpoint) rejectReplay() {
	if e.obs.ReplayRejected != nil {
		e.obs.ReplayRejected()
	}
	// 乱序下偶发属预期，低severity
	e.log.Debug("replay rejected")
}

// send 编码并写出一帧。Debug 模式走 JSON 且周期性重申安全降级
func (e *Endpoint) send(channel uint8, v lbeast.Value) error {
	if s := e.State(); s == StateClosed {
		return transport.ErrClosed
	}

	var frame []byte
	var err error
	if e.debug {
		if e.cfg.SecurityLevel != lbeast.SecurityNone && e.warnLimiter.Allow() {
			e.log.Warn("debug mode bypasses configured security level",
				zap.String("configured", e.cfg.SecurityLevel.String()))
		}
		frame, err = lbeast.EncodeDebug(channel, v)
	} else {
		frame, err = e.codec.Encode(channel, v)
	}
	if err != nil {
		return err
	}

	n, werr := e.tr.Write(frame)
	if werr != nil {
		if !errors.Is(werr, transport.ErrClosed) {
			e.setState(StateTransportError, werr)
		}
		return werr
	}
	if e.obs.FrameSent != nil {
		e.obs.FrameSent(n)
	}
	return nil
}

// SendBool 发送 Bool 值
func (e *Endpoint) SendBool(channel uint8, v bool) error {
	return e.send(channel, lbeast.BoolValue(v))
}

// SendInt32 发送 Int32 值
func (e *Endpoint) SendInt32(channel uint8, v int32) error {
	return e.send(channel, lbeast.Int32Value(v))
}

// SendFloat 发送 Float 值
func (e *Endpoint) SendFloat(channel uint8, v float32) error {
	return e.send(channel, lbeast.FloatValue(v))
}

// SendString 发送 String 值（>255 字节发送前拒绝）
func (e *Endpoint) SendString(channel uint8, v string) error {
	return e.send(channel, lbeast.StringValue(v))
}

// SendBytes 发送原始字节
func (e *Endpoint) SendBytes(channel uint8, v []byte) error {
	return e.send(channel, lbeast.BytesValue(v))
}

// SendStruct 发送定长结构记录（带外约定布局的原始拷贝）
func (e *Endpoint) SendStruct(channel uint8, record []byte) error {
	return e.send(channel, lbeast.StructValue(record))
}

// SendLayout 按注册布局校验记录长度后发送。
// 错位的结构记录在主机侧拦截，不进固件
func (e *Endpoint) SendLayout(layout string, channel uint8, record []byte) error {
	if e.cfg.Layouts == nil {
		return fmt.Errorf("endpoint %q: no layout registry configured", e.cfg.Name)
	}
	if err := e.cfg.Layouts.Validate(layout, record); err != nil {
		return err
	}
	return e.send(channel, lbeast.StructValue(record))
}

// Close 关闭端点：关传输解除挂起读取，等待两个协程退出。幂等
func (e *Endpoint) Close() error {
	var err error
	e.once.Do(func() {
		e.setState(StateClosed, nil)
		err = e.tr.Close()
		e.wg.Wait()
	})
	return err
}
