package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/lbeast-live/link-server/internal/config"
	"github.com/lbeast-live/link-server/internal/httpserver"
	"github.com/lbeast-live/link-server/internal/link"
	"github.com/lbeast-live/link-server/internal/logging"
	"github.com/lbeast-live/link-server/internal/metrics"
	"github.com/lbeast-live/link-server/internal/protocol/lbeast"
	"github.com/lbeast-live/link-server/internal/session"
	pgstorage "github.com/lbeast-live/link-server/internal/storage/pg"
	"github.com/lbeast-live/link-server/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

// run 统一启动流程：指标/会话 → 台账 → 端点 → HTTP → 信号等待
func run(cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting link server", zap.String("env", cfg.App.Env))

	// ========== 阶段1: 基础组件 ==========
	reg := metrics.NewRegistry()
	lm := metrics.NewLinkMetrics(reg)
	sess := session.New(cfg.Link.SessionTimeout)
	log.Info("basic components initialized")

	// 结构布局注册表（可缺省），端点发送结构记录前按布局校验
	var layouts *lbeast.LayoutRegistry
	if cfg.Link.LayoutsPath != "" {
		reg, err := lbeast.LoadLayouts(cfg.Link.LayoutsPath)
		switch {
		case err == nil:
			layouts = reg
			log.Info("struct layouts loaded", zap.String("path", cfg.Link.LayoutsPath))
		case errors.Is(err, os.ErrNotExist):
			// 未部署布局文件时跳过校验
		default:
			log.Warn("load struct layouts failed", zap.Error(err))
		}
	}

	// ========== 阶段2: 控制器台账 ==========
	controllers := cfg.Controllers
	if cfg.Database.Enable {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgstorage.NewPool(ctx, cfg.Database)
		cancel()
		if err != nil {
			log.Error("database initialization failed", zap.Error(err))
			return err
		}
		defer pool.Close()

		repo := &pgstorage.Repository{Pool: pool}
		dbControllers, err := repo.Controllers(context.Background())
		if err != nil {
			log.Error("load controllers from database failed", zap.Error(err))
			return err
		}
		controllers = append(controllers, dbControllers...)
		log.Info("controllers loaded from database", zap.Int("count", len(dbControllers)))
	}
	if len(controllers) == 0 {
		log.Warn("no controllers configured")
	}

	// ========== 阶段3: 链路端点 ==========
	endpoints := make([]*link.Endpoint, 0, len(controllers))
	for _, cc := range controllers {
		ep, err := buildEndpoint(cc, cfg.Link, layouts, sess, lm, log)
		if err != nil {
			log.Error("build endpoint failed", zap.String("controller", cc.Name), zap.Error(err))
			return err
		}
		endpoints = append(endpoints, ep)
	}
	for _, ep := range endpoints {
		ep.Start()
	}
	log.Info("link endpoints started", zap.Int("count", len(endpoints)))

	// 在线数指标巡更
	gaugeCtx, gaugeCancel := context.WithCancel(context.Background())
	defer gaugeCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gaugeCtx.Done():
				return
			case <-ticker.C:
				lm.OnlinePeers.Set(float64(sess.OnlineCount(time.Now())))
			}
		}
	}()

	// ========== 阶段4: Redis 对端状态镜像（可选） ==========
	if cfg.Redis.Enable {
		rdb, err := session.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Error("redis initialization failed", zap.Error(err))
			return err
		}
		defer func() { _ = rdb.Close() }()

		mirror := session.NewRedisMirror(rdb, sess, "", 2*time.Second, log)
		mirrorCtx, mirrorCancel := context.WithCancel(context.Background())
		defer mirrorCancel()
		go mirror.Run(mirrorCtx)
		log.Info("redis peer mirror started")
	}

	// ========== 阶段5: 运维 HTTP ==========
	var metricsHandler = metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler,
		func() bool { return true }, sess)
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 信号处理，优雅关闭 ==========
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	for _, ep := range endpoints {
		_ = ep.Close()
	}
	return nil
}

// buildEndpoint 按控制器配置组装传输与端点，并桥接指标/会话回调
func buildEndpoint(cc cfgpkg.ControllerConfig, lc cfgpkg.LinkConfig, layouts *lbeast.LayoutRegistry, sess *session.Manager, lm *metrics.LinkMetrics, log *zap.Logger) (*link.Endpoint, error) {
	level, err := cc.ParseLevel()
	if err != nil {
		return nil, err
	}

	var tr transport.Transport
	switch cc.Transport {
	case "udp", "":
		local := cc.LocalAddr
		if local == "" {
			local = ":0"
		}
		tr, err = transport.NewUDP(local, cc.Addr)
	case "serial":
		tr, err = transport.NewSerial(cc.Device)
	default:
		err = fmt.Errorf("controller %q: unknown transport %q", cc.Name, cc.Transport)
	}
	if err != nil {
		return nil, err
	}

	ep, err := link.New(link.Config{
		Name:          cc.Name,
		SecurityLevel: level,
		SharedSecret:  cc.Secret,
		DebugMode:     cc.Debug,
		ReplayWindow:  lc.ReplayWindow,
		QueueSize:     lc.QueueSize,
		Layouts:       layouts,
	}, tr, log)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	name := cc.Name
	ep.SetObserver(link.Observer{
		FrameSent: func(n int) {
			lm.FramesSent.WithLabelValues(name).Inc()
			lm.BytesSent.WithLabelValues(name).Add(float64(n))
		},
		FrameReceived: func(n int) {
			lm.FramesReceived.WithLabelValues(name).Inc()
			lm.BytesReceived.WithLabelValues(name).Add(float64(n))
			sess.Touch(name, ep.PeerID(), time.Now())
		},
		DecodeError: func(err error) {
			lm.DecodeErrors.WithLabelValues(name, decodeReason(err)).Inc()
		},
		AuthFailed: func() {
			lm.AuthFailTotal.WithLabelValues(name).Inc()
			sess.OnTamper(name)
		},
		ReplayRejected: func() {
			lm.ReplayRejected.WithLabelValues(name).Inc()
			sess.OnReplayRejected(name)
		},
		QueueDropped: func() {
			lm.QueueDropped.WithLabelValues(name).Inc()
		},
		Dispatched: func() {
			lm.DispatchedTotal.WithLabelValues(name).Inc()
		},
		StateChanged: func(s link.State, err error) {
			if err != nil {
				log.Warn("endpoint state changed", zap.String("endpoint", name),
					zap.String("state", s.String()), zap.Error(err))
			} else {
				log.Info("endpoint state changed", zap.String("endpoint", name),
					zap.String("state", s.String()))
			}
		},
	})
	return ep, nil
}

// decodeReason 错误到指标 label 的映射
func decodeReason(err error) string {
	switch {
	case errors.Is(err, lbeast.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, lbeast.ErrAuthenticationFailed):
		return "auth"
	case errors.Is(err, lbeast.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, lbeast.ErrMalformedFrame):
		return "malformed"
	default:
		return "other"
	}
}
