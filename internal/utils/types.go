package utils

import (
	"sync"

	"github.com/samber/lo"
)

// Int Map
type SafeIntMap struct {
	mu    sync.Mutex
	Value map[string]int64
}

func NewSafeIntMap() *SafeIntMap {
	return &SafeIntMap{Value: make(map[string]int64)}
}
func (rx *SafeIntMap) Add(key string, n int64) int64 {
	rx.mu.Lock()
	rx.Value[key] += n
	val := rx.Value[key]
	rx.mu.Unlock()
	return val
}
func (rx *SafeIntMap) Val(key string) int64 {
	rx.mu.Lock()
	val := rx.Value[key]
	rx.mu.Unlock()
	return val
}

func (rx *SafeIntMap) Sum() int64 {
	rx.mu.Lock()
	sum := lo.Sum(lo.Values(rx.Value))
	rx.mu.Unlock()
	return sum
}

// Float Map
type SafeFloatMap struct {
	mu    sync.Mutex
	Value map[string]float64
}

func NewSafeFloatMap() *SafeFloatMap {
	return &SafeFloatMap{Value: make(map[string]float64)}
}
func (rx *SafeFloatMap) Add(key string, n float64) float64 {
	rx.mu.Lock()
	rx.Value[key] += n
	val := rx.Value[key]
	rx.mu.Unlock()
	return val
}
func (rx *SafeFloatMap) Val(key string) float64 {
	rx.mu.Lock()
	val := rx.Value[key]
	rx.mu.Unlock()
	return val
}
