package handler

import (
	"errors"
	"strconv"

	"aichat/internal/config"
	"aichat/internal/repository"
	"aichat/internal/service"
	"aichat/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	integralService *service.IntegralService
	paymentService  *service.PaymentService
	configService   *service.ConfigService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	configService := service.NewConfigService(db)
	return &Handler{
		integralService: service.NewIntegralService(db, cfg, configService),
		paymentService:  service.NewPaymentService(db, rdb, cfg),
		configService:   configService,
	}
}

// writeServiceError 业务错误映射为稳定错误码
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, repository.ErrIntegralNotEnough):
		response.BusinessError(c, response.CodeInsufficientIntegral, err.Error())
	case errors.Is(err, repository.ErrCardInvalid):
		response.BusinessError(c, response.CodeInvalidRechargeKey, err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		response.BusinessError(c, response.CodeOrderNotFound, err.Error())
	case errors.Is(err, repository.ErrOptimisticLock):
		response.BusinessError(c, response.CodeConcurrencyConflict, err.Error())
	case errors.Is(err, service.ErrProductInvalid), errors.Is(err, service.ErrAmountInvalid):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 积分相关接口
// ============================================================

// GetBalance 查询积分余额
// GET /api/v1/integral/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	integral, err := h.integralService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":  userID,
		"integral": integral,
	})
}

// RechargeRequest 卡密充值请求
type RechargeRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Key    string `json:"key" binding:"required"`
}

// Recharge 卡密充值
// POST /api/v1/integral/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	integral, err := h.integralService.RechargeByKey(c.Request.Context(), req.UserID, req.Key)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"integral": integral,
		"message":  "充值成功",
	})
}

// ListLogs 查询积分流水
// GET /api/v1/integral/logs?user_id=xxx&page=1&page_size=10
func (h *Handler) ListLogs(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	logs, total, err := h.integralService.ListLogs(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      logs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ConsumeCheckRequest 消费校验/扣减请求
// is_image 区分普通对话与图片生成（两者单价不同）
type ConsumeCheckRequest struct {
	UserID  int64 `json:"user_id" binding:"required"`
	IsImage bool  `json:"is_image"`
}

// CheckIntegral 消费前置校验
// POST /api/v1/integral/check
//
// 供对话/图片接口在调用上游之前检查余额是否够扣
func (h *Handler) CheckIntegral(c *gin.Context) {
	var req ConsumeCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	sufficient, err := h.integralService.CheckSufficient(c.Request.Context(), req.UserID, req.IsImage)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"sufficient": sufficient,
	})
}

// ConsumeIntegral 消费扣积分
// POST /api/v1/integral/consume
//
// 上游操作成功后调用。流式对话场景下调用方会忽略这里的失败，
// 避免响应已送达却向用户报错。
func (h *Handler) ConsumeIntegral(c *gin.Context) {
	var req ConsumeCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	integral, err := h.integralService.Consume(c.Request.Context(), req.UserID, req.IsImage)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"integral": integral,
	})
}

// ============================================================
// 管理接口
// ============================================================

// AdminAddIntegralRequest 管理员加积分请求
type AdminAddIntegralRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Remark string `json:"remark"`
}

// AdminAddIntegral 管理员给任意用户加积分
// POST /api/v1/admin/integral/add
func (h *Handler) AdminAddIntegral(c *gin.Context) {
	var req AdminAddIntegralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	integral, err := h.integralService.AdminAddIntegral(c.Request.Context(), req.UserID, req.Amount, req.Remark)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":  req.UserID,
		"integral": integral,
	})
}

// ============================================================
// 支付相关接口
// ============================================================

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	PayType     string `json:"pay_type" binding:"required"`
	ProductType int    `json:"product_type" binding:"required"`
}

// CreateOrder 创建充值订单
// POST /api/v1/payment/pre_create
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.paymentService.CreateOrder(c.Request.Context(), &service.CreateOrderRequest{
		UserID:      req.UserID,
		PayType:     req.PayType,
		ProductType: req.ProductType,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// GetOrderStatus 查询订单状态
// GET /api/v1/payment/status?order_no=xxx&user_id=xxx
func (h *Handler) GetOrderStatus(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	status, err := h.paymentService.GetOrderStatus(c.Request.Context(), orderNo, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no": orderNo,
		"status":   status,
	})
}

// ListOrders 查询用户订单列表
// GET /api/v1/payment/orders?user_id=xxx&page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.paymentService.ListOrders(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ConfirmPaymentRequest 确认支付请求
type ConfirmPaymentRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	UserID  int64  `json:"user_id" binding:"required"`
}

// ConfirmPayment 确认支付
// POST /api/v1/payment/confirm
//
// 【关键点】结算需要保证：
// 1. 幂等性：重复确认只入账一次，后续调用直接返回 PAID
// 2. 原子性：订单状态、积分余额、流水记录必须同时成功或同时失败
// 3. 并发安全：状态条件流转保证并发确认只有一个结算成功
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	status, err := h.paymentService.ConfirmPayment(c.Request.Context(), req.OrderNo, req.UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no": req.OrderNo,
		"status":   status,
	})
}

// NotifyRequest 支付渠道异步通知
type NotifyRequest struct {
	OrderNo string `json:"order_no"`
}

// Notify 支付渠道异步通知
// POST /api/v1/payment/notify
//
// 渠道约定：无论内部处理结果如何都必须应答固定的 success 文本，
// 否则渠道会持续重试。结算幂等，重复通知安全。
func (h *Handler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.OrderNo != "" {
		if err := h.paymentService.HandleNotify(c.Request.Context(), req.OrderNo); err != nil {
			// 仅记录，不影响应答
			c.Error(err)
		}
	}

	c.String(200, "success")
}
