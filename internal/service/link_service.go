package service

import (
	"errors"
	"fmt"
	"net/url"
	"shortlink-platform/internal/model"
	"shortlink-platform/internal/shortcode"
	"shortlink-platform/internal/store"
	"strings"

	"go.uber.org/zap"
)

const (
	// MaxURLLength 是原始链接允许的最大长度
	MaxURLLength = 500
	// DefaultMaxAttempts 是短码冲突时的最大重试次数
	DefaultMaxAttempts = 5
)

var (
	// ErrInvalidURL 表示原始链接为空或不是合法的绝对 URL
	ErrInvalidURL = errors.New("无效的原始链接")
	// ErrCodeSpaceExhausted 表示连续多次生成的短码都发生冲突。
	// 62^6 的码空间下这几乎不可能发生，出现即说明码空间接近饱和或生成器异常。
	ErrCodeSpaceExhausted = errors.New("短码生成重试次数已耗尽")
)

// LinkService 负责短链接的创建与解析。
// 创建流程：生成候选短码 -> 尝试唯一写入 -> 冲突则换码重试。
// 并发创建同一短码时由数据库唯一索引保证最多一方成功，失败方换码重试即可。
type LinkService struct {
	store       store.LinkStore
	codes       shortcode.Source
	codeLength  int
	maxAttempts int
	logger      *zap.SugaredLogger
}

// NewLinkService 创建链接服务。codeLength、maxAttempts 传 0 时使用默认值。
func NewLinkService(s store.LinkStore, codes shortcode.Source, codeLength, maxAttempts int, logger *zap.SugaredLogger) *LinkService {
	if codeLength <= 0 {
		codeLength = shortcode.DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &LinkService{
		store:       s,
		codes:       codes,
		codeLength:  codeLength,
		maxAttempts: maxAttempts,
		logger:      logger.Named("link_service"),
	}
}

// CreateLink 校验原始链接并创建一条新的短链接记录。
// 短码冲突属于预期内的瞬时状态，在这里换码重试，不向上层暴露；
// 重试耗尽返回 ErrCodeSpaceExhausted，由上层按服务端错误处理。
func (s *LinkService) CreateLink(originalURL string, ownerID uint) (*model.ShortenedLink, error) {
	trimmed, err := validateURL(originalURL)
	if err != nil {
		return nil, err
	}

	for i := 0; i < s.maxAttempts; i++ {
		code := s.codes.Code(s.codeLength)
		link, err := s.store.InsertUnique(trimmed, code, ownerID)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, store.ErrCodeTaken) {
			s.logger.Warnf("短码冲突，重试中: code=%s attempt=%d", code, i+1)
			continue
		}
		return nil, err
	}

	s.logger.Errorf("连续 %d 次短码冲突，放弃创建: owner=%d", s.maxAttempts, ownerID)
	return nil, ErrCodeSpaceExhausted
}

// Resolve 按短码查找原始链接，纯查询，无副作用
func (s *LinkService) Resolve(shortCode string) (*model.ShortenedLink, error) {
	return s.store.FindByCode(shortCode)
}

// RecordClick 为一次成功的重定向追加点击记录。
// 点击属于附带的统计信息，调用方失败时只记日志，不影响重定向本身。
func (s *LinkService) RecordClick(linkID uint, sourceIP, userAgent string) error {
	_, err := s.store.AppendClick(linkID, sourceIP, userAgent)
	return err
}

// validateURL 去除首尾空白并校验 URL 的合法性。
// 合法的标准是带 scheme 和 host 的绝对 URL，长度不超过 MaxURLLength。
func validateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: 链接为空", ErrInvalidURL)
	}
	if len(trimmed) > MaxURLLength {
		return "", fmt.Errorf("%w: 链接长度超过 %d", ErrInvalidURL, MaxURLLength)
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: 需要带协议和主机名的绝对地址", ErrInvalidURL)
	}
	return trimmed, nil
}
