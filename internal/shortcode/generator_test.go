package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCodeLengthAndCharset 验证短码长度与字符集
func TestCodeLengthAndCharset(t *testing.T) {
	gen := NewGeneratorWithSeed(42)

	for i := 0; i < 100; i++ {
		code := gen.Code(DefaultLength)
		assert.Len(t, code, DefaultLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(Charset, ch), "短码包含非法字符: %q", ch)
		}
	}
}

// TestCodeCustomLength 验证自定义长度及非法长度回退到默认值
func TestCodeCustomLength(t *testing.T) {
	gen := NewGeneratorWithSeed(42)

	assert.Len(t, gen.Code(10), 10)
	assert.Len(t, gen.Code(1), 1)
	assert.Len(t, gen.Code(0), DefaultLength)
	assert.Len(t, gen.Code(-3), DefaultLength)
}

// TestSameSeedSameSequence 相同种子应产生相同的短码序列，便于测试复现
func TestSameSeedSameSequence(t *testing.T) {
	a := NewGeneratorWithSeed(7)
	b := NewGeneratorWithSeed(7)

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Code(DefaultLength), b.Code(DefaultLength))
	}
}

// TestCodesAreDistinct 62^6 的码空间下，一千个短码不应出现重复
func TestCodesAreDistinct(t *testing.T) {
	gen := NewGeneratorWithSeed(99)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		seen[gen.Code(DefaultLength)] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}
