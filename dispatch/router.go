package dispatch

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 在 Gin 路由上注册调度器的管理端点
//
// 路由:
//   - GET /stats: 聚合统计快照，持久化由消费方自行负责
//   - GET /healthz: 健康探针，熔断器打开时返回 503
//
// 使用示例:
//
//	r := gin.New()
//	dispatch.RegisterRoutes(r, d)
//	go r.Run(":8080")
func RegisterRoutes(r gin.IRouter, d Dispatcher) {
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Stats())
	})

	r.GET("/healthz", func(c *gin.Context) {
		stats := d.Stats()
		status := http.StatusOK
		if stats.Breaker.State == "open" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":  http.StatusText(status),
			"breaker": stats.Breaker.State,
			"uptime":  stats.Uptime.String(),
		})
	})
}
