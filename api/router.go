package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/kb-assistant/api/handler"
	"github.com/fyerfyer/kb-assistant/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	qaHandler *handler.QAHandler,
	ingestHandler *handler.IngestHandler,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 问答API
		// 回答问题 - POST /api/query
		api.POST("/query", qaHandler.Query)

		// 仅返回回答文本 - POST /api/query/simple
		api.POST("/query/simple", qaHandler.QuerySimple)

		// 知识库统计 - GET /api/stats
		api.GET("/stats", qaHandler.Stats)

		// 摄取API
		ingestGroup := api.Group("/ingest")
		{
			// 触发摄取运行 - POST /api/ingest
			ingestGroup.POST("", ingestHandler.TriggerIngest)

			// 摄取运行列表 - GET /api/ingest/runs
			ingestGroup.GET("/runs", ingestHandler.ListRuns)

			// 摄取运行详情 - GET /api/ingest/runs/:id
			ingestGroup.GET("/runs/:id", ingestHandler.GetRun)
		}

		// 健康检查API - GET /api/health
		api.GET("/health", qaHandler.Health)
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
