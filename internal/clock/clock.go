package clock

import (
	"sync"
	"time"
)

// Clock 时间来源，便于在结算与测试中固定“今天”
type Clock interface {
	Now() time.Time
}

// System 使用系统时间
type System struct {
	Location *time.Location
}

// Now 返回当前时间
func (s System) Now() time.Time {
	if s.Location != nil {
		return time.Now().In(s.Location)
	}
	return time.Now()
}

// Fixed 可手动推进的时钟
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed 创建固定时钟
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

// Now 返回当前设定时间
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set 设置时间
func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance 推进时间
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
