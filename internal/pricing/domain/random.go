package domain

import (
	"math/rand"
)

// NormalSource 标准正态随机数源.
// 每次调用独立构造并持有自己的种子, 并发调用之间绝不共享同一实例.
type NormalSource struct {
	rnd *rand.Rand
}

// NewNormalSource 按给定种子构造随机数源, 相同种子产生相同序列.
func NewNormalSource(seed int64) *NormalSource {
	return &NormalSource{rnd: rand.New(rand.NewSource(seed))}
}

// Next 抽取一个标准正态随机数.
func (s *NormalSource) Next() float64 {
	return s.rnd.NormFloat64()
}

// Sequence 抽取 n 个独立标准正态随机数.
func (s *NormalSource) Sequence(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.rnd.NormFloat64()
	}
	return out
}
