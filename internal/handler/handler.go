package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"shortlink-platform/internal/middleware"
	"shortlink-platform/internal/model"
	"shortlink-platform/internal/service"
	"shortlink-platform/internal/store"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ShortLinkHandler 处理器
type ShortLinkHandler struct {
	svc    *service.LinkService
	redis  *redis.Client
	logger *zap.SugaredLogger
}

// NewShortLinkHandler 创建处理器实例
func NewShortLinkHandler(svc *service.LinkService, redisClient *redis.Client, logger *zap.SugaredLogger) *ShortLinkHandler {
	return &ShortLinkHandler{
		svc:    svc,
		redis:  redisClient,
		logger: logger.Named("shortlink_handler"),
	}
}

// LinkResponse 短链接的对外表示，short_code 和 created_at 均由服务端分配
type LinkResponse struct {
	ID          uint      `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	CreatedAt   time.Time `json:"created_at"`
}

func toLinkResponse(link *model.ShortenedLink) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		CreatedAt:   link.CreatedAt,
	}
}

// cachedLink 是重定向缓存中的条目
type cachedLink struct {
	ID          uint   `json:"id"`
	OriginalURL string `json:"original_url"`
}

// IndexPage 渲染创建短链接的表单页面
func (h *ShortLinkHandler) IndexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

// HealthCheck 健康检查
func (h *ShortLinkHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

// CreateShortLink 处理网页表单的创建请求，结果渲染回表单页面
func (h *ShortLinkHandler) CreateShortLink(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户未认证"})
		return
	}

	link, err := h.svc.CreateLink(c.PostForm("original_url"), userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			c.HTML(http.StatusBadRequest, "index.html", gin.H{"error": "请输入合法的链接地址"})
			return
		}
		h.logger.Errorf("创建短链接失败: %v", err)
		c.HTML(http.StatusInternalServerError, "index.html", gin.H{"error": "创建失败，请稍后重试"})
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"short_url": h.absoluteShortURL(c, link.ShortCode),
	})
}

// CreateLinkAPIRequest API 创建请求体。
// short_code 和 created_at 由服务端分配，客户端传入即拒绝。
type CreateLinkAPIRequest struct {
	OriginalURL string `json:"original_url"`
	ShortCode   string `json:"short_code"`
	CreatedAt   string `json:"created_at"`
}

// CreateLinkAPI godoc
// @Summary 创建短链接
// @Description 为一个长 URL 创建一个新的短链接
// @Tags ShortLink
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param   link  body   CreateLinkAPIRequest  true  "原始链接"
// @Success 201 {object} LinkResponse "成功响应"
// @Failure 400 {object} gin.H "请求无效"
// @Failure 500 {object} gin.H "服务器内部错误"
// @Router /api/create [post]
func (h *ShortLinkHandler) CreateLinkAPI(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户未认证"})
		return
	}

	var req CreateLinkAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	if req.ShortCode != "" || req.CreatedAt != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "short_code 和 created_at 由服务端分配，不允许指定"})
		return
	}

	link, err := h.svc.CreateLink(req.OriginalURL, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toLinkResponse(link))
}

// ListLinksAPI godoc
// @Summary 查询当前用户的短链接
// @Description 返回当前用户创建的全部短链接，最新的在前
// @Tags ShortLink
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {array} LinkResponse "成功响应"
// @Router /api/list [get]
func (h *ShortLinkHandler) ListLinksAPI(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户未认证"})
		return
	}

	stats, err := h.svc.OwnerStats(userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	links := make([]LinkResponse, 0, len(stats))
	for i := range stats {
		links = append(links, toLinkResponse(&stats[i].Link))
	}
	c.JSON(http.StatusOK, links)
}

// RedirectToOriginal 解析短码并重定向到原始链接。
// 此路由不要求登录：短链接的意义就是分发给任意访问者。
// 每次成功解析都会追加一条点击记录；点击写入失败只记日志，重定向照常进行。
func (h *ShortLinkHandler) RedirectToOriginal(c *gin.Context) {
	code := c.Param("code")

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if val, err := h.redis.Get(ctx, "shortlink:"+code).Result(); err == nil {
			var cached cachedLink
			if json.Unmarshal([]byte(val), &cached) == nil {
				h.logClick(cached.ID, c)
				c.Redirect(http.StatusFound, cached.OriginalURL)
				return
			}
		}
	}

	link, err := h.svc.Resolve(code)
	if err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "链接不存在"})
			return
		}
		h.logger.Errorf("解析短码失败: code=%s err=%v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "解析失败"})
		return
	}

	h.logClick(link.ID, c)

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if data, err := json.Marshal(cachedLink{ID: link.ID, OriginalURL: link.OriginalURL}); err == nil {
			h.redis.Set(ctx, "shortlink:"+code, data, 24*time.Hour)
		}
	}

	c.Redirect(http.StatusFound, link.OriginalURL)
}

// StatsPage 渲染当前用户的统计页面
func (h *ShortLinkHandler) StatsPage(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户未认证"})
		return
	}

	stats, err := h.svc.OwnerStats(userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.HTML(http.StatusOK, "stats.html", gin.H{"stats": stats})
}

// StatsAPI godoc
// @Summary 查询当前用户的点击统计
// @Description 返回当前用户每条链接的点击数与点击明细，最新的链接在前
// @Tags ShortLink
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {array} service.LinkStats "成功响应"
// @Router /api/stats [get]
func (h *ShortLinkHandler) StatsAPI(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户未认证"})
		return
	}

	stats, err := h.svc.OwnerStats(userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// logClick 追加点击记录，失败时只记日志不打断请求
func (h *ShortLinkHandler) logClick(linkID uint, c *gin.Context) {
	ip := sourceIP(c)
	if err := h.svc.RecordClick(linkID, ip, c.Request.UserAgent()); err != nil {
		h.logger.Warnf("点击记录写入失败: link=%d ip=%s err=%v", linkID, ip, err)
	}
}

// sourceIP 提取访问来源 IP。
// 经过反向代理时取 X-Forwarded-For 的第一个条目，否则取直连地址。
func sourceIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); strings.TrimSpace(xff) != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// absoluteShortURL 拼出完整的短链接地址
func (h *ShortLinkHandler) absoluteShortURL(c *gin.Context, code string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/" + code
}

// writeError 把领域错误映射成固定的 HTTP 状态码
func (h *ShortLinkHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "链接不存在"})
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		h.logger.Errorf("短码空间异常: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "短码生成失败，请稍后重试"})
	default:
		h.logger.Errorf("请求处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}
