package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/repository"
	"github.com/brewstop/brewstop/internal/service"
	"github.com/brewstop/brewstop/internal/state"
	"github.com/brewstop/brewstop/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger      *zap.Logger
	stopRepo    *repository.StopRepository
	amenityRepo *repository.AmenityRepository
	syncService *service.RegistrySyncService
	seeder      *service.AmenitySeeder
	refresher   *service.ScoreRefresher
	reports     *service.ReportService
	runs        *state.Manager
	wsHub       *ws.Hub
	cronSecret  string
	upgrader    websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	stopRepo *repository.StopRepository,
	amenityRepo *repository.AmenityRepository,
	syncService *service.RegistrySyncService,
	seeder *service.AmenitySeeder,
	refresher *service.ScoreRefresher,
	reports *service.ReportService,
	runs *state.Manager,
	wsHub *ws.Hub,
	cronSecret string,
) *Handler {
	return &Handler{
		logger:      logger,
		stopRepo:    stopRepo,
		amenityRepo: amenityRepo,
		syncService: syncService,
		seeder:      seeder,
		refresher:   refresher,
		reports:     reports,
		runs:        runs,
		wsHub:       wsHub,
		cronSecret:  cronSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// 只读 API
	api := r.Group("/api")
	{
		api.GET("/stops", h.ListStops)
		api.GET("/stops/:id", h.GetStop)
		api.GET("/stops/:id/amenities", h.GetStopAmenities)
		api.POST("/stops/route", h.SearchRoute)
		api.GET("/runs", h.ListRuns)
		api.GET("/seeding-status", h.SeedingStatus)
	}

	// 定时任务触发面，写操作一律先过 Bearer 鉴权
	cron := r.Group("/api/cron", h.requireCronSecret())
	{
		cron.POST("/sync", h.TriggerSync)
		cron.POST("/seed-amenities", h.TriggerSeedAmenities)
		cron.POST("/refresh-scores", h.TriggerRefreshScores)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// requireCronSecret Bearer 鉴权中间件
func (h *Handler) requireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token != h.cronSecret {
			h.logger.Warn("Rejected cron request with bad credentials", zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// ListRuns 当前各任务的运行快照
func (h *Handler) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.runs.GetAllStates()})
}

// SeedingStatus 播种覆盖报告
func (h *Handler) SeedingStatus(c *gin.Context) {
	report, err := h.reports.SeedingStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build seeding report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build seeding report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
