// Package workflow — обработка потока сигналов: одна сессия владеет одним
// активным источником, каждое отфильтрованное значение становится событием
// с меткой монотонного времени сессии.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/correlate"
	"github.com/vrulab/rigsync/internal/hptimer"
	"github.com/vrulab/rigsync/internal/logger"
	"github.com/vrulab/rigsync/internal/sigfilter"
	"github.com/vrulab/rigsync/internal/signal"
	"github.com/vrulab/rigsync/internal/source"
)

// newSource — конструктор источника; подменяется в тестах.
var newSource = source.New

// ErrSessionActive — у сессии уже есть активный обработчик (инвариант: не более одного).
var ErrSessionActive = errors.New("session already has an active handler")

// ErrNoSession — сессия не запущена.
var ErrNoSession = errors.New("no active session")

// session — один активный источник и его поток.
type session struct {
	id     string
	src    source.Source
	cancel context.CancelFunc
	done   chan struct{}
}

// Workflow — реестр активных сессий обработки сигналов.
// Ошибка в обработчике одной сессии не трогает состояние других.
type Workflow struct {
	mu     sync.Mutex
	active map[string]*session
	engine *correlate.Engine
}

// New создаёт workflow; события каждого потока дополнительно складываются
// в корреляционный движок (engine может быть nil).
func New(engine *correlate.Engine) *Workflow {
	return &Workflow{
		active: make(map[string]*session),
		engine: engine,
	}
}

// Start валидирует конфиг, подключает источник (с degraded fallback при
// required=false) и запускает поток событий сессии.
// Повторный Start той же сессии — ошибка; неизвестный signal_type — ошибка.
func (w *Workflow) Start(ctx context.Context, sessionID string, cfg config.SourceConfig) (<-chan signal.Event, error) {
	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	chain, err := sigfilter.FromSpecs(cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("session %s filters: %w", sessionID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	if _, ok := w.active[sessionID]; ok {
		w.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionActive)
	}
	// запись-заглушка резервирует сессию на время подключения;
	// cancel ставится до попытки подключения, чтобы Stop в этом окне
	// прерывал подключение, а не висел
	s := &session{id: sessionID, cancel: cancel, done: make(chan struct{})}
	w.active[sessionID] = s
	w.mu.Unlock()

	src, err = source.ConnectOrDegrade(runCtx, src, cfg.Required)
	if err != nil {
		cancel()
		w.remove(sessionID)
		close(s.done)
		return nil, err
	}
	if runCtx.Err() != nil {
		// Stop пришёл во время подключения
		_ = src.Disconnect()
		w.remove(sessionID)
		close(s.done)
		return nil, fmt.Errorf("session %s: %w", sessionID, runCtx.Err())
	}

	s.src = src

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 100
	}
	out := make(chan signal.Event, bufSize)
	timer := hptimer.New(cfg.PrecisionMode)
	interval := pollInterval(cfg.SamplingRateHz)

	go w.run(runCtx, s, cfg, chain, timer, interval, out)
	logger.Info("session %s: источник %s запущен (rate=%.1f Hz)", sessionID, src.Name(), cfg.SamplingRateHz)
	return out, nil
}

// run — цикл потока: чтение, фильтрация, метка времени, выдача.
// Отключение источника и снятие сессии гарантированы на любом пути выхода.
func (w *Workflow) run(ctx context.Context, s *session, cfg config.SourceConfig,
	chain sigfilter.Chain, timer *hptimer.Timer, interval time.Duration, out chan signal.Event) {

	defer func() {
		if err := s.src.Disconnect(); err != nil {
			logger.Error("session %s: disconnect %s: %v", s.id, s.src.Name(), err)
		}
		w.remove(s.id)
		close(out)
		close(s.done)
		logger.Info("session %s: поток остановлен", s.id)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		reading, err := s.src.ReadSingle(ctx)
		switch {
		case err == nil:
			if v, ok := chain.Apply(reading.Value); ok {
				payload := reading.Payload
				if payload == nil {
					payload = v
				}
				ev := signal.NewEvent(s.id, s.src.Type(), s.src.Name(), timer.Now(), payload, timer.PrecisionUs())
				if w.engine != nil {
					w.engine.Add(ev)
				}
				// потребитель не должен тормозить съём: при полном канале событие
				// остаётся только в корреляционном буфере
				select {
				case out <- ev:
				default:
				}
			}
		case errors.Is(err, source.ErrNoData):
			// пустой интервал опроса
		case errors.Is(err, source.ErrUnavailable):
			logger.Error("session %s: источник %s потерян: %v", s.id, s.src.Name(), err)
			return
		default:
			// одиночный сбой чтения пропускается, цикл продолжается
			logger.Info("session %s: read %s: %v", s.id, s.src.Name(), err)
		}

		if s.src.Polled() || errors.Is(err, source.ErrNoData) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}
}

// Stop сигналит потоку сессии остановиться; флаг замечается в пределах
// одного интервала опроса. Снятие сессии выполняет сам поток.
func (w *Workflow) Stop(sessionID string) error {
	w.mu.Lock()
	s, ok := w.active[sessionID]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrNoSession)
	}
	// cancel ставится до публикации сессии в active, поэтому всегда жив
	s.cancel()
	<-s.done
	return nil
}

// StopAll останавливает все активные сессии.
func (w *Workflow) StopAll() {
	w.mu.Lock()
	ids := make([]string, 0, len(w.active))
	for id := range w.active {
		ids = append(ids, id)
	}
	w.mu.Unlock()
	for _, id := range ids {
		_ = w.Stop(id)
	}
}

// Active возвращает true, если у сессии есть обработчик.
func (w *Workflow) Active(sessionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[sessionID]
	return ok
}

func (w *Workflow) remove(sessionID string) {
	w.mu.Lock()
	delete(w.active, sessionID)
	w.mu.Unlock()
}

// pollInterval — каданс опроса из частоты; защита от нулевой частоты.
func pollInterval(rateHz float64) time.Duration {
	if rateHz <= 0 {
		rateHz = 100
	}
	return time.Duration(float64(time.Second) / rateHz)
}
