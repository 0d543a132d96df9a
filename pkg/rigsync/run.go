// Package rigsync предоставляет запуск конвейера валидации сигналов
// (источники -> события -> корреляция, playback-монитор) для встраивания.
package rigsync

import (
	"context"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/correlate"
	"github.com/vrulab/rigsync/internal/logger"
	"github.com/vrulab/rigsync/internal/notify"
	"github.com/vrulab/rigsync/internal/playback"
	"github.com/vrulab/rigsync/internal/validate"
	"github.com/vrulab/rigsync/internal/workflow"
)

// Pipeline — собранный конвейер одной конфигурации.
type Pipeline struct {
	Engine     *correlate.Engine
	Workflow   *workflow.Workflow
	Service    *validate.Service
	Controller *playback.Controller
	Notifier   notify.Notifier
}

// Build собирает конвейер из конфига: нотификатор, корреляционный движок,
// workflow, сервис валидации и playback-контроллер.
// store == nil — хранилище аннотаций в памяти.
func Build(cfg *config.Config, store validate.AnnotationStore, sessionID string) *Pipeline {
	var n notify.Notifier = notify.LogNotifier{}
	if cfg.Notify.Transport == "mqtt" && cfg.Notify.Broker != "" {
		m, err := notify.NewMQTT(cfg.Notify.Broker, cfg.Notify.ClientID, cfg.Notify.TopicPrefix)
		if err != nil {
			logger.Error("mqtt недоступен (%v), уведомления уходят в лог", err)
		} else {
			n = m
		}
	}
	if store == nil {
		store = validate.NewMemoryStore()
	}
	engine := correlate.NewEngine(cfg.Session.CorrelationBuffer, cfg.Session.ToleranceMs)
	return &Pipeline{
		Engine:     engine,
		Workflow:   workflow.New(engine),
		Service:    validate.New(cfg.Session, store, n),
		Controller: playback.NewController(sessionID, cfg.Videos, cfg.Session, n),
		Notifier:   n,
	}
}

// Run запускает daemon: все источники из конфига как сессии потоков,
// монитор дрейфа playback; блокируется до отмены ctx, затем чистая остановка.
func Run(ctx context.Context, cfg *config.Config, quiet bool) error {
	logger.Quiet = quiet
	p := Build(cfg, nil, "daemon")

	go p.Controller.RunMonitor(ctx)

	started := 0
	for _, sc := range cfg.Sources {
		ch, err := p.Workflow.Start(ctx, sc.SessionID, sc)
		if err != nil {
			logger.Error("источник %s/%s: %v", sc.SignalType, sc.SourceID, err)
			continue
		}
		started++
		// события уже в корреляционном буфере; канал дренируется,
		// чтобы поток не копил невостребованные события
		go func() {
			for range ch {
			}
		}()
	}
	logger.Info("daemon: источников запущено %d из %d", started, len(cfg.Sources))

	<-ctx.Done()
	p.Workflow.StopAll()
	if m, ok := p.Notifier.(*notify.MQTTNotifier); ok {
		m.Close()
	}
	return ctx.Err()
}
