package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brewstop/brewstop/internal/api/geoapify"
	"github.com/brewstop/brewstop/internal/api/handlers"
	"github.com/brewstop/brewstop/internal/api/nrel"
	"github.com/brewstop/brewstop/internal/api/overpass"
	"github.com/brewstop/brewstop/internal/config"
	"github.com/brewstop/brewstop/internal/repository"
	"github.com/brewstop/brewstop/internal/service"
	"github.com/brewstop/brewstop/internal/state"
	"github.com/brewstop/brewstop/internal/status"
	"github.com/brewstop/brewstop/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Brewstop", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	stopRepo := repository.NewStopRepository(db)
	amenityRepo := repository.NewAmenityRepository(db)

	// 外部数据源客户端
	nrelClient := nrel.NewClient(cfg.NrelBaseURL, cfg.NrelAPIKey)
	overpassClient := overpass.NewClient(cfg.OverpassURL)
	geoapifyClient := geoapify.NewClient("", cfg.GeoapifyAPIKey)
	if !geoapifyClient.Enabled() {
		logger.Warn("GEOAPIFY_API_KEY not set, amenity enrichment disabled")
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 运行状态管理器
	runs := state.NewManager(func(task, from, to string) {
		logger.Info("Run phase changed", zap.String("task", task), zap.String("from", from), zap.String("to", to))
	})
	wsHub.SetInitDataProvider(func() *ws.InitData {
		return &ws.InitData{Runs: runs.GetAllStates()}
	})

	// 创建管线服务
	syncService := service.NewRegistrySyncService(logger, nrelClient, stopRepo, runs, wsHub)
	syncService.SetLookback(cfg.RegistryLookbackDays)
	syncService.SetPageDelay(cfg.PageDelay)
	seeder := service.NewAmenitySeeder(logger, overpassClient, stopRepo, amenityRepo, runs, cfg.MatchRadiusMeters)
	seeder.SetWsHub(wsHub)
	refresher := service.NewScoreRefresher(logger, geoapifyClient, stopRepo, amenityRepo, status.NewMockProvider(), runs)
	refresher.SetStaleness(cfg.ScoreStaleness, cfg.ScoreRefreshLimit)
	refresher.SetWsHub(wsHub)
	reports := service.NewReportService(logger, stopRepo, amenityRepo)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		stopRepo,
		amenityRepo,
		syncService,
		seeder,
		refresher,
		reports,
		runs,
		wsHub,
		cfg.CronSecret,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 取消在途的管线运行
	cancel()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
