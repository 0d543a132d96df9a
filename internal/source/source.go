// Package source — протокольные источники сигналов внешнего рига
// (GPIO, напряжение/АЦП, последовательная линия, CAN шина, UDP пакеты).
// Аппаратная недоступность при подключении не фатальна: при required=false
// источник заменяется инертной заглушкой (degraded режим).
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vrulab/rigsync/internal/logger"
)

// Ошибки источников.
var (
	// ErrUnsupported — неизвестный signal_type или кривой идентификатор (фатально для старта сессии).
	ErrUnsupported = errors.New("unsupported signal source")
	// ErrUnavailable — железо/транспорт недоступны (восстанавливается degraded режимом).
	ErrUnavailable = errors.New("signal source unavailable")
	// ErrNoData — за интервал опроса отсчёта не было (не ошибка, цикл продолжается).
	ErrNoData = errors.New("no data")
)

// Reading — один отсчёт источника: числовое значение для цепочки фильтров
// и, для событийных источников, структурированная полезная нагрузка.
type Reading struct {
	Value   float64
	Payload interface{} // nil для чисто числовых отсчётов
}

// Source — способности источника сигнала: подключение, одиночное чтение, отключение.
type Source interface {
	// Name возвращает имя для логов
	Name() string
	// Type возвращает signal_type: gpio, voltage, serial, can_bus, network
	Type() string
	// Connect открывает железо/транспорт; ошибки проверяются на ErrUnavailable
	Connect(ctx context.Context) error
	// Disconnect освобождает ресурсы; обязан вызываться на любом пути выхода
	Disconnect() error
	// ReadSingle возвращает один отсчёт; ErrNoData — пустой интервал опроса
	ReadSingle(ctx context.Context) (Reading, error)
	// Polled: true — опрос с кадансом 1/sampling_rate, false — чтение блокируется с таймаутом
	Polled() bool
}

// connectTimeout — предел на попытку подключения к железу (не висеть).
const connectTimeout = 3 * time.Second

// ConnectOrDegrade подключает источник с ограниченным таймаутом.
// При неудаче: required=true — ошибка старта сессии; иначе источник
// заменяется заглушкой того же типа, пишется предупреждение, работа продолжается.
func ConnectOrDegrade(ctx context.Context, s Source, required bool) (Source, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	err := s.Connect(cctx)
	if err == nil {
		return s, nil
	}
	if required {
		return nil, fmt.Errorf("connect %s: %w", s.Name(), err)
	}
	_ = s.Disconnect()
	logger.Info("%s недоступен (%v), переход в degraded режим (mock)", s.Name(), err)
	return NewMock(s.Type(), s.Name()+":mock", nil), nil
}
