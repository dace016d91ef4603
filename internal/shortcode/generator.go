package shortcode

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// Charset 包含用于生成短码的所有字符
	Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// DefaultLength 是默认的短码长度
	DefaultLength = 6
)

// Source 提供候选短码。生成的短码不保证全局唯一，
// 唯一性由存储层的唯一索引保证，调用方需要处理冲突。
type Source interface {
	Code(length int) string
}

// Generator 基于可注入的随机源生成短码，纯内存操作，无任何 I/O
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator 创建一个以当前时间为种子的短码生成器
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(time.Now().UnixNano())
}

// NewGeneratorWithSeed 创建一个指定种子的短码生成器，便于测试复现
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Code 生成一个指定长度的短码，字符均匀取自 Charset。
// rand.Rand 本身不是并发安全的，这里用互斥锁保护。
func (g *Generator) Code(length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	b := make([]byte, length)
	g.mu.Lock()
	for i := range b {
		b[i] = Charset[g.rng.Intn(len(Charset))]
	}
	g.mu.Unlock()
	return string(b)
}
