package ai

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"math/big"
	"math/rand"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultDimension = 384

	mockGeneratePrefix = "[Mock Response] "
	mockPromptRunes    = 200
	mockWordSpread     = 20
)

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

type mockConfig struct {
	Dimension int `json:"dimension"`
}

type mockProvider struct {
	dimension int
}

func NewMockProvider(dimension int) IProvider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &mockProvider{dimension: dimension}
}

func (p *mockProvider) Name() string {
	return "mock"
}

// Generate echoes a truncated prefix of the prompt.
func (p *mockProvider) Generate(_ context.Context, _ string, prompt string) (string, error) {
	return mockGeneratePrefix + truncateRunes(prompt, mockPromptRunes) + "...", nil
}

func (p *mockProvider) Embed(_ context.Context, _ string, text string, _ string) ([]float32, error) {
	return MockEmbedding(text, p.dimension), nil
}

// MockEmbedding derives a unit vector from the md5 of every lower-cased word.
// Each word adds 20 contributions in [-1, 1) spread 13 dimensions apart.
// Short or wordless text gets a pseudo-random vector seeded by its own hash.
func MockEmbedding(text string, dimension int) []float32 {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 2 {
		return seededVector(text, dimension, 0)
	}
	words := wordRegex.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return seededVector(text, dimension, 0)
	}
	acc := make([]float64, dimension)
	dim := big.NewInt(int64(dimension))
	mod := big.NewInt(2000)
	idx := new(big.Int)
	val := new(big.Int)
	for _, word := range words {
		sum := md5.Sum([]byte(word))
		h := new(big.Int).SetBytes(sum[:])
		for i := 0; i < mockWordSpread; i++ {
			idx.Add(h, big.NewInt(int64(i*13)))
			idx.Mod(idx, dim)
			val.Rsh(h, uint(i*5))
			val.Mod(val, mod)
			acc[idx.Int64()] += float64(val.Int64())/1000.0 - 1.0
		}
	}
	out, ok := normalize(acc)
	if !ok {
		return seededVector(text, dimension, 999)
	}
	return out
}

func seededVector(text string, dimension int, salt uint32) []float32 {
	sum := md5.Sum([]byte(text))
	seed := binary.BigEndian.Uint32(sum[12:]) + salt
	rng := rand.New(rand.NewSource(int64(seed)))
	acc := make([]float64, dimension)
	for {
		for i := range acc {
			acc[i] = rng.NormFloat64() * 0.1
		}
		if out, ok := normalize(acc); ok {
			return out
		}
	}
}

func normalize(values []float64) ([]float32, bool) {
	var sq float64
	for _, v := range values {
		sq += v * v
	}
	norm := math.Sqrt(sq)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v / norm)
	}
	return out, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func createMockFactory(args interface{}) (IProvider, error) {
	cfg := &mockConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewMockProvider(cfg.Dimension), nil
}

func init() {
	Register("mock", createMockFactory)
}
