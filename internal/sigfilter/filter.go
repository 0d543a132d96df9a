// Package sigfilter — композируемые фильтры значений источника сигнала.
// Фильтры выполняются в порядке конфигурации; отказ любого из них
// останавливает цепочку для данного отсчёта.
package sigfilter

import (
	"fmt"
	"math"
	"time"
)

// Filter — один фильтр значения: возвращает (значение, true) или (_, false),
// если отсчёт подавлен.
type Filter interface {
	Apply(v float64) (float64, bool)
}

// Spec — описание фильтра в конфиге источника.
type Spec struct {
	Type string `yaml:"type"` // debounce, noise_threshold, low_pass
	// debounce
	MinIntervalMs float64 `yaml:"min_interval_ms"`
	// noise_threshold
	Threshold float64 `yaml:"threshold"`
	// low_pass
	Alpha float64 `yaml:"alpha"`
}

// Debounce подавляет отсчёты, приходящие чаще min_interval_ms.
// Состояние (момент последнего пропущенного) — на экземпляр, не разделяется между сессиями.
type Debounce struct {
	minInterval time.Duration
	last        time.Time
	now         func() time.Time // подменяется в тестах
}

// NewDebounce создаёт debounce фильтр.
func NewDebounce(minIntervalMs float64) *Debounce {
	return &Debounce{
		minInterval: time.Duration(minIntervalMs * float64(time.Millisecond)),
		now:         time.Now,
	}
}

// Apply пропускает значение, если с последнего пропущенного прошло >= min_interval.
func (d *Debounce) Apply(v float64) (float64, bool) {
	t := d.now()
	if !d.last.IsZero() && t.Sub(d.last) < d.minInterval {
		return 0, false
	}
	d.last = t
	return v, true
}

// NoiseThreshold отбрасывает значения с |v| ниже порога.
type NoiseThreshold struct {
	threshold float64
}

// NewNoiseThreshold создаёт пороговый фильтр.
func NewNoiseThreshold(threshold float64) *NoiseThreshold {
	return &NoiseThreshold{threshold: threshold}
}

// Apply пропускает значение при |v| >= threshold.
func (n *NoiseThreshold) Apply(v float64) (float64, bool) {
	if math.Abs(v) < n.threshold {
		return 0, false
	}
	return v, true
}

// LowPass — экспоненциальное сглаживание: out = alpha*v + (1-alpha)*prev.
// Внутреннее состояние сохраняется между отсчётами.
type LowPass struct {
	alpha  float64
	state  float64
	primed bool
}

// NewLowPass создаёт сглаживающий фильтр; alpha вне (0,1] приводится к 1 (без сглаживания).
func NewLowPass(alpha float64) *LowPass {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &LowPass{alpha: alpha}
}

// Apply возвращает сглаженное значение; первый отсчёт проходит как есть.
func (l *LowPass) Apply(v float64) (float64, bool) {
	if !l.primed {
		l.state = v
		l.primed = true
		return v, true
	}
	l.state = l.alpha*v + (1-l.alpha)*l.state
	return l.state, true
}

// Chain — цепочка фильтров в порядке конфигурации.
type Chain []Filter

// Apply прогоняет значение через все фильтры; false — отсчёт подавлен.
func (c Chain) Apply(v float64) (float64, bool) {
	out := v
	var ok bool
	for _, f := range c {
		out, ok = f.Apply(out)
		if !ok {
			return 0, false
		}
	}
	return out, true
}

// FromSpecs строит цепочку по описаниям из конфига.
// Неизвестный тип фильтра — ошибка конфигурации (фатальна для старта сессии).
func FromSpecs(specs []Spec) (Chain, error) {
	chain := make(Chain, 0, len(specs))
	for _, s := range specs {
		switch s.Type {
		case "debounce":
			chain = append(chain, NewDebounce(s.MinIntervalMs))
		case "noise_threshold":
			chain = append(chain, NewNoiseThreshold(s.Threshold))
		case "low_pass":
			chain = append(chain, NewLowPass(s.Alpha))
		default:
			return nil, fmt.Errorf("unknown filter type: %q", s.Type)
		}
	}
	return chain, nil
}
