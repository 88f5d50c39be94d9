package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/utrading/utrading-market-dashboard/config"
	"github.com/utrading/utrading-market-dashboard/internal/alert"
	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/cleaner"
	"github.com/utrading/utrading-market-dashboard/internal/dal"
	"github.com/utrading/utrading-market-dashboard/internal/dao"
	"github.com/utrading/utrading-market-dashboard/internal/feed"
	"github.com/utrading/utrading-market-dashboard/internal/market"
	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/internal/nats"
	"github.com/utrading/utrading-market-dashboard/internal/notify"
	"github.com/utrading/utrading-market-dashboard/internal/realtime"
	"github.com/utrading/utrading-market-dashboard/pkg/goplus"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
	"github.com/utrading/utrading-market-dashboard/pkg/sigproc"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.Parse()

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	logger.Info().Msg("market_dashboard service starting...")

	// 初始化指标
	monitor.InitMetrics()

	// 初始化数据库
	dal.InitMysqlDB(cfg.MySQL)

	// 自动迁移表结构
	dal.AutoMigrate()

	// 初始化 DAO
	dao.InitDAO(dal.MySQL())

	// 创建数据清理器
	dataCleaner := cleaner.NewCleaner(dao.History(), cfg.Alert.RetentionDays, cfg.Alert.MaxHistoryRows)
	dataCleaner.Start()

	// 初始化 NATS
	publisher, err := nats.NewPublisher(cfg.NATS.Endpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("init nats publisher failed")
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 市场数据缓存
	marketCache := cache.NewMarketCache(cfg.Feeds.SentimentPoll * 2)

	// 通知渠道适配器
	notifiers := []notify.Notifier{
		notify.NewEmailNotifier(cfg.Notify),
		notify.NewSMSNotifier(cfg.Notify),
		notify.NewWebhookNotifier(cfg.Notify),
		notify.NewPushNotifier(publisher, cfg.Notify.PushSubjectPrefix),
	}

	// 告警派发器与求值引擎
	dispatcher := alert.NewDispatcher(dao.Rule(), dao.History(), dao.User(),
		notifiers, publisher, cfg.Alert.DispatchTimeout)
	engine := alert.NewEngine(dispatcher, dao.Rule())

	// 实时推送层
	registry := realtime.NewRegistry()
	rtServer := realtime.NewServer(registry, marketCache, realtime.Options{
		WriteWait:  cfg.Server.WriteWait,
		PongWait:   cfg.Server.PongWait,
		SendBuffer: cfg.Server.SendBuffer,
	})
	broadcaster := realtime.NewBroadcaster(registry, rtServer,
		cfg.Server.BroadcastPoolSize, cfg.Alert.LargeLiqValue)

	// 事件队列：每个事件同时喂广播器与告警引擎
	eventQueue := market.NewEventQueue(cfg.Alert.QueueSize, broadcaster, engine)
	eventQueue.Start()

	// 上游数据源
	sources := []feed.Source{
		feed.NewTickerFeed(cfg.Feeds.TickerURL, marketCache, eventQueue),
		feed.NewFundingFeed(cfg.Feeds.FundingURL, marketCache, eventQueue),
		feed.NewLiquidationFeed(cfg.Feeds.LiquidationURL, eventQueue),
		feed.NewSentimentFeed(cfg.Feeds.SentimentURL, cfg.Feeds.SentimentPoll, marketCache, eventQueue),
		feed.NewStablecoinFeed(cfg.Feeds.StablecoinURL, cfg.Feeds.StablecoinPoll, marketCache, eventQueue),
		feed.NewCorrelationFeed(cfg.Feeds.StablecoinPoll, marketCache, eventQueue),
	}
	sources = append(sources, feed.NewOpenInterestFeeds(cfg.Feeds.OpenInterestURL,
		cfg.Feeds.OpenInterestPoll, marketCache, eventQueue)...)
	feeds := feed.NewSupervisor(cfg.Feeds.ReconnectInterval, sources...)
	feeds.Start(ctx)

	// HTTP 入口：实时升级、REST 快照、健康检查与指标共用一个 mux
	healthServer := monitor.NewHealthServer(registry, feeds, publisher)
	apiServer := monitor.NewAPIServer(marketCache)

	mux := http.NewServeMux()
	rtServer.Register(mux)
	apiServer.Register(mux)
	healthServer.Register(mux)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // WebSocket 长连接不设写超时
	}
	goplus.Go(func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	})

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Int("feeds", feeds.FeedCount()).
		Msg("market_dashboard service started successfully")

	// 优雅关闭
	sigproc.GracefulShutdown(func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		// 停止上游数据源与事件队列，不再产生新告警和广播
		cancel()
		feeds.Stop()
		eventQueue.Stop()

		// 等在途投递落盘
		dispatcher.Wait()

		// 断开客户端并关闭 HTTP 入口
		broadcaster.Close()
		rtServer.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		healthServer.Stop(shutdownCtx)
		httpServer.Shutdown(shutdownCtx)

		// 停止后台任务
		dataCleaner.Stop()
		config.Stop()

		// 关闭数据库
		dal.CloseMySQL()

		logger.Info().Msg("market_dashboard service stopped")
	})

	<-ctx.Done()
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}
