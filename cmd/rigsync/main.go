// rigsync — валидация камеры/сенсорного рига против видео на мониторе:
// съём внешних сигналов (GPIO, напряжение, serial, CAN, UDP), метки
// монотонного времени, корреляция с детекциями, синхронизация playback.
//
// Использование:
//
//	rigsync -run -config rigsync.yml — запуск daemon (источники + монитор дрейфа)
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/logger"
	"github.com/vrulab/rigsync/pkg/rigsync"
)

func main() {
	run := flag.Bool("run", false, "запуск daemon: источники сигналов + монитор дрейфа playback")
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию rigsync.yml)")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if !*run {
		flag.Usage()
		return
	}
	logger.Quiet = *quiet
	runWithShutdown(cfg, *quiet)
}

// loadConfig читает конфиг: явный путь обязан читаться, отсутствующий
// rigsync.yml по умолчанию не ошибка, кривой rigsync.yml по умолчанию
// логируется и заменяется значениями по умолчанию.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = "rigsync.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	c, err := config.Load(path)
	if err != nil {
		if explicit {
			return nil, err
		}
		logger.Error("config %s: %v, используются значения по умолчанию", path, err)
		return config.Default(), nil
	}
	return c, nil
}

// runWithShutdown запускает конвейер; по SIGINT/SIGTERM контекст отменяется,
// источники сигналов корректно отключаются.
func runWithShutdown(cfg *config.Config, quiet bool) {
	if len(cfg.Sources) == 0 {
		log.Fatal("для -run нужен конфиг с sources (signal_type / source_identifier)")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("получен сигнал %v, завершение...", sig)
		cancel()
	}()

	if err := rigsync.Run(ctx, cfg, quiet); err != nil && err != context.Canceled {
		logger.Error("%v", err)
	}
}
