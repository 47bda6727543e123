package handler

import (
	"aichat/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		// 积分相关
		integral := api.Group("/integral")
		{
			integral.GET("/balance", h.GetBalance)
			integral.POST("/recharge", h.Recharge)
			integral.GET("/logs", h.ListLogs)
			integral.POST("/check", h.CheckIntegral)
			integral.POST("/consume", h.ConsumeIntegral)
		}

		// 管理接口
		admin := api.Group("/admin", AdminAuthMiddleware(cfg))
		{
			admin.POST("/integral/add", h.AdminAddIntegral)
		}

		// 支付相关
		payment := api.Group("/payment")
		{
			payment.POST("/pre_create", h.CreateOrder)
			payment.GET("/status", h.GetOrderStatus)
			payment.GET("/orders", h.ListOrders)
			payment.POST("/confirm", h.ConfirmPayment)
			payment.POST("/notify", h.Notify)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
