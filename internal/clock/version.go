package clock

import (
	"sync"
	"time"
)

// VersionClock выдает маркеры версий для публикаций снапшотов.
// Значение основано на wall-clock времени в миллисекундах, но строго растет:
// если часы стоят на месте или ушли назад, следующая версия равна last+1.
type VersionClock struct {
	now  func() time.Time
	last int64      // последняя выданная или наблюдаемая версия
	mu   sync.Mutex // мьютекс для потокобезопасности
}

// NewVersionClock creates a clock backed by time.Now.
func NewVersionClock() *VersionClock {
	return &VersionClock{now: time.Now}
}

// NewVersionClockWithSource creates a clock with a custom time source.
// Используется для тестирования.
func NewVersionClockWithSource(now func() time.Time) *VersionClock {
	return &VersionClock{now: now}
}

// Next returns a version strictly greater than every version previously
// returned by Next or passed to Observe.
func (c *VersionClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.now().UnixMilli()
	if v <= c.last {
		v = c.last + 1
	}
	c.last = v
	return v
}

// Observe raises the clock so that future versions exceed v.
// Вызывается при старте с версией, уже сохраненной в хранилище.
func (c *VersionClock) Observe(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v > c.last {
		c.last = v
	}
}

// Last returns the most recent version without advancing the clock.
func (c *VersionClock) Last() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}
