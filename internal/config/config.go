// Package config — конфигурация rigsync (YAML): источники сигналов,
// параметры сессии валидации и транспорт уведомлений.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vrulab/rigsync/internal/sigfilter"
)

// Config — корневая конфигурация rigsync.
type Config struct {
	Session SessionConfig  `yaml:"session"`
	Notify  NotifyConfig   `yaml:"notify"`
	Sources []SourceConfig `yaml:"sources"`
	Videos  []string       `yaml:"videos"` // id видео в порядке воспроизведения
}

// SourceConfig — один источник сигнала (signal_type: gpio, voltage, serial, can_bus, network).
type SourceConfig struct {
	SignalType     string            `yaml:"signal_type"`
	SourceID       string            `yaml:"source_identifier"` // пин, устройство, интерфейс или host:port
	SamplingRateHz float64           `yaml:"sampling_rate_hz"`
	BufferSize     int               `yaml:"buffer_size"`
	PrecisionMode  bool              `yaml:"precision_mode"`
	Required       bool              `yaml:"required"` // true = недоступность железа фатальна для старта
	Filters        []sigfilter.Spec  `yaml:"filters"`
	Metadata       map[string]string `yaml:"metadata"` // baud_rate, voltage_threshold и т.п.
	SessionID      string            `yaml:"session_id"` // для запуска из daemon; пусто = source_identifier
}

// MetaInt возвращает целочисленное значение metadata или def.
func (c SourceConfig) MetaInt(key string, def int) int {
	v, ok := c.Metadata[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// MetaFloat возвращает вещественное значение metadata или def.
func (c SourceConfig) MetaFloat(key string, def float64) float64 {
	v, ok := c.Metadata[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// SessionConfig — параметры тестовой сессии: допуски корреляции,
// синхронизация playback и поведение прогрессии видео.
type SessionConfig struct {
	ToleranceMs         float64 `yaml:"tolerance_ms"`       // окно корреляции, по умолчанию 100
	SpatialTolerance    float64 `yaml:"spatial_tolerance"`  // минимальный IoU, по умолчанию 0.3
	CorrelationBuffer   int     `yaml:"correlation_buffer"` // ёмкость кольца, по умолчанию 1000
	MaxSyncDriftMs      float64 `yaml:"max_sync_drift_ms"`  // гистерезис коррекции, по умолчанию 50
	SyncCheckIntervalMs float64 `yaml:"sync_check_interval_ms"`
	DriftTimeout        string  `yaml:"drift_timeout"` // synchronized -> drift_detected, по умолчанию 5s
	AutoAdvance         bool    `yaml:"auto_advance"`
	LoopPlayback        bool    `yaml:"loop_playback"`
	RandomOrder         bool    `yaml:"random_order"`
	SyncExternalSignals bool    `yaml:"sync_external_signals"`
	VoltageThreshold    float64 `yaml:"voltage_threshold"` // порог детекции |V|
	VoltageWindowMs     float64 `yaml:"voltage_window_ms"` // кадр фонового опроса АЦП, по умолчанию 50
}

// DriftTimeoutDuration возвращает распарсенный drift_timeout (пусто/ошибка = 5s).
func (s SessionConfig) DriftTimeoutDuration() time.Duration {
	if s.DriftTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(s.DriftTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// NotifyConfig — транспорт push-уведомлений: log (по умолчанию) или mqtt.
type NotifyConfig struct {
	Transport   string `yaml:"transport"`
	Broker      string `yaml:"broker"` // tcp://host:1883 для mqtt
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Default возвращает конфиг по умолчанию.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			ToleranceMs:         100,
			SpatialTolerance:    0.3,
			CorrelationBuffer:   1000,
			MaxSyncDriftMs:      50,
			SyncCheckIntervalMs: 1000,
			DriftTimeout:        "5s",
			AutoAdvance:         true,
			VoltageThreshold:    0.5,
			VoltageWindowMs:     50,
		},
		Notify: NotifyConfig{
			Transport:   "log",
			ClientID:    "rigsync",
			TopicPrefix: "rigsync",
		},
	}
}

// Load читает конфиг из YAML и подставляет значения по умолчанию.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Session.ToleranceMs == 0 {
		c.Session.ToleranceMs = d.Session.ToleranceMs
	}
	if c.Session.SpatialTolerance == 0 {
		c.Session.SpatialTolerance = d.Session.SpatialTolerance
	}
	if c.Session.CorrelationBuffer == 0 {
		c.Session.CorrelationBuffer = d.Session.CorrelationBuffer
	}
	if c.Session.MaxSyncDriftMs == 0 {
		c.Session.MaxSyncDriftMs = d.Session.MaxSyncDriftMs
	}
	if c.Session.SyncCheckIntervalMs == 0 {
		c.Session.SyncCheckIntervalMs = d.Session.SyncCheckIntervalMs
	}
	if c.Session.DriftTimeout == "" {
		c.Session.DriftTimeout = d.Session.DriftTimeout
	}
	if c.Session.VoltageThreshold == 0 {
		c.Session.VoltageThreshold = d.Session.VoltageThreshold
	}
	if c.Session.VoltageWindowMs == 0 {
		c.Session.VoltageWindowMs = d.Session.VoltageWindowMs
	}
	if c.Notify.Transport == "" {
		c.Notify.Transport = d.Notify.Transport
	}
	if c.Notify.ClientID == "" {
		c.Notify.ClientID = d.Notify.ClientID
	}
	if c.Notify.TopicPrefix == "" {
		c.Notify.TopicPrefix = d.Notify.TopicPrefix
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.SamplingRateHz == 0 {
			s.SamplingRateHz = 100
		}
		if s.BufferSize == 0 {
			s.BufferSize = 1000
		}
		if s.SessionID == "" {
			s.SessionID = s.SourceID
		}
	}
}
