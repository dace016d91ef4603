package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"shortlink-platform/internal/model"
	"shortlink-platform/internal/service"
	"shortlink-platform/internal/shortcode"
	"shortlink-platform/internal/store"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTest 为集成测试初始化一个干净的环境。
// 认证中间件用固定写入 user_id 的桩代替，测试不关心令牌本身。
func setupTest(t *testing.T, userID uint) (*gin.Engine, *gorm.DB, *service.LinkService) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "无法连接到内存数据库")
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.ShortenedLink{}, &model.ClickEvent{}))

	linkStore := store.NewGormLinkStore(db)
	svc := service.NewLinkService(linkStore, shortcode.NewGeneratorWithSeed(1), 0, 0, zap.NewNop().Sugar())

	// 测试中不依赖 Redis，传入 nil 走数据库路径
	h := NewShortLinkHandler(svc, nil, zap.NewNop().Sugar())

	router := gin.New()
	router.GET("/:code", h.RedirectToOriginal)

	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	{
		api.POST("/create", h.CreateLinkAPI)
		api.GET("/list", h.ListLinksAPI)
		api.GET("/stats", h.StatsAPI)
	}

	return router, db, svc
}

func createViaAPI(t *testing.T, router *gin.Engine, originalURL string) LinkResponse {
	body, _ := json.Marshal(gin.H{"original_url": originalURL})
	req := httptest.NewRequest(http.MethodPost, "/api/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, "创建短链接应返回 201: %s", w.Body.String())

	var resp LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func clickCount(t *testing.T, db *gorm.DB) int64 {
	var count int64
	require.NoError(t, db.Model(&model.ClickEvent{}).Count(&count).Error)
	return count
}

// TestCreateAndRedirectFlow 创建短链接后访问短码：302 跳转且每次访问都记一次点击
func TestCreateAndRedirectFlow(t *testing.T) {
	router, db, _ := setupTest(t, 1)

	originalURL := "https://www.example.com/very/long/path/that/needs/shortening"
	created := createViaAPI(t, router, originalURL)
	assert.Len(t, created.ShortCode, shortcode.DefaultLength)
	assert.Equal(t, originalURL, created.OriginalURL)
	assert.False(t, created.CreatedAt.IsZero())

	for i := int64(1); i <= 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/"+created.ShortCode, nil)
		req.Header.Set("User-Agent", "curl/8.0")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, originalURL, w.Header().Get("Location"))
		// 不做去重，每次访问都是一条新的点击
		assert.Equal(t, i, clickCount(t, db))
	}
}

// TestCreateRejectsServerAssignedFields short_code 与 created_at 由服务端分配
func TestCreateRejectsServerAssignedFields(t *testing.T) {
	router, _, _ := setupTest(t, 1)

	for _, body := range []gin.H{
		{"original_url": "https://example.com", "short_code": "mycode"},
		{"original_url": "https://example.com", "created_at": "2024-01-01T00:00:00Z"},
	} {
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/create", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestCreateInvalidURL(t *testing.T) {
	router, _, _ := setupTest(t, 1)

	data, _ := json.Marshal(gin.H{"original_url": "no-scheme-here"})
	req := httptest.NewRequest(http.MethodPost, "/api/create", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRedirectUnknownCode 未知短码返回 404 且不产生点击记录
func TestRedirectUnknownCode(t *testing.T) {
	router, db, _ := setupTest(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	req.Header.Set("User-Agent", "curl/8.0")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, clickCount(t, db))
}

// TestSourceIPExtraction 有转发头时取第一个条目，否则取直连地址
func TestSourceIPExtraction(t *testing.T) {
	router, db, _ := setupTest(t, 1)
	created := createViaAPI(t, router, "https://example.com/page")

	// 经过反向代理：X-Forwarded-For 的第一个条目才是真实来源
	req := httptest.NewRequest(http.MethodGet, "/"+created.ShortCode, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	// 直连：httptest 固定的 RemoteAddr 是 192.0.2.1:1234
	req = httptest.NewRequest(http.MethodGet, "/"+created.ShortCode, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	var clicks []model.ClickEvent
	require.NoError(t, db.Order("id ASC").Find(&clicks).Error)
	require.Len(t, clicks, 2)
	assert.Equal(t, "203.0.113.5", clicks[0].SourceIP)
	assert.Equal(t, "192.0.2.1", clicks[1].SourceIP)
}

// TestListLinksNewestFirst /api/list 返回自己的链接，最新的在前
func TestListLinksNewestFirst(t *testing.T) {
	router, _, _ := setupTest(t, 1)

	first := createViaAPI(t, router, "https://example.com/1")
	second := createViaAPI(t, router, "https://example.com/2")

	req := httptest.NewRequest(http.MethodGet, "/api/list", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var links []LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 2)
	assert.Equal(t, second.ShortCode, links[0].ShortCode)
	assert.Equal(t, first.ShortCode, links[1].ShortCode)
}

// TestStatsOwnerIsolation 统计接口只返回当前用户自己的链接
func TestStatsOwnerIsolation(t *testing.T) {
	router, _, svc := setupTest(t, 1)

	mine := createViaAPI(t, router, "https://example.com/mine")

	// 另一个用户的链接直接经服务层创建
	theirs, err := svc.CreateLink("https://example.com/theirs", 2)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats []service.LinkStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, mine.ShortCode, stats[0].Link.ShortCode)
	assert.NotEqual(t, theirs.ShortCode, stats[0].Link.ShortCode)
}
