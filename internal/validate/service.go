// Package validate — верхний координатор: приём внешних сигналов детекции,
// проверка против ground truth (временной допуск + пространственный IoU)
// и агрегация статистики по сессиям.
package validate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/logger"
	"github.com/vrulab/rigsync/internal/notify"
	"github.com/vrulab/rigsync/internal/signal"
	"github.com/vrulab/rigsync/internal/source"
)

// Предел буфера детекций сессии (старейшие вытесняются).
const detectionBufferCap = 1000

// AnnotationStore — коллаборатор хранения ground truth.
// Возвращает аннотации видео в окне допуска вокруг метки времени.
type AnnotationStore interface {
	FindAt(videoID string, ts float64, toleranceMs float64) []signal.Annotation
}

// Result — ответ на обработку одного внешнего сигнала.
type Result struct {
	SignalID    string                  `json:"signal_id"`
	SignalType  string                  `json:"signal_type"`
	Timestamp   float64                 `json:"timestamp"`
	Validation  signal.ValidationResult `json:"validation_result"`
	ProcessedAt time.Time               `json:"processed_at"`
}

// Service — валидация сигналов детекции по сессиям.
// Состояние сессий под одной грубой блокировкой: буферы трогают и путь
// приёма, и фоновый монитор напряжения. Сбой одной сессии не трогает другие.
type Service struct {
	mu       sync.Mutex
	cfg      config.SessionConfig
	store    AnnotationStore
	notifier notify.Notifier
	buffers  map[string][]signal.Detection
	videoOf  map[string]string // sessionID -> текущее видео
}

// New создаёт сервис валидации.
func New(cfg config.SessionConfig, store AnnotationStore, n notify.Notifier) *Service {
	if n == nil {
		n = notify.LogNotifier{}
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		notifier: n,
		buffers:  make(map[string][]signal.Detection),
		videoOf:  make(map[string]string),
	}
}

// SetSessionVideo привязывает сессию к текущему видео (для резолва ground truth).
func (s *Service) SetSessionVideo(sessionID, videoID string) {
	s.mu.Lock()
	s.videoOf[sessionID] = videoID
	s.mu.Unlock()
}

// ProcessExternalSignal принимает сигнал детекции одного из трёх транспортов
// (voltage, can_bus, network), кладёт его в буфер сессии и немедленно
// валидирует против ground truth.
func (s *Service) ProcessExternalSignal(signalType string, data map[string]interface{}, videoTS float64, sessionID string) (Result, error) {
	det, err := buildDetection(signalType, data, videoTS)
	if err != nil {
		return Result{}, err
	}
	s.ingest(sessionID, det)
	vr := s.validateAgainstGroundTruth(det, sessionID)
	return Result{
		SignalID:    det.ID,
		SignalType:  det.SignalType,
		Timestamp:   det.Timestamp,
		Validation:  vr,
		ProcessedAt: time.Now(),
	}, nil
}

// buildDetection собирает Detection из сырых данных транспорта.
func buildDetection(signalType string, data map[string]interface{}, videoTS float64) (signal.Detection, error) {
	det := signal.Detection{
		ID:         uuid.NewString(),
		Timestamp:  videoTS,
		SignalType: signalType,
		Confidence: 1.0,
		Metadata:   map[string]interface{}{},
	}
	switch signalType {
	case signal.TypeVoltage:
		v, ok := floatField(data, "voltage_value")
		if !ok {
			return det, fmt.Errorf("voltage signal without voltage_value")
		}
		det.Voltage = &v
		det.Confidence = source.DetectionConfidence(v)
	case signal.TypeCAN:
		idF, ok := floatField(data, "can_message_id")
		if !ok {
			return det, fmt.Errorf("can signal without can_message_id")
		}
		id := uint32(idF)
		det.CANMessageID = &id
	case signal.TypeNetwork:
		det.Packet = data
	default:
		return det, fmt.Errorf("signal_type %q: %w", signalType, source.ErrUnsupported)
	}
	if c, ok := floatField(data, "confidence"); ok {
		det.Confidence = c
	}
	if b, ok := boxField(data, "bounding_box"); ok {
		det.Box = b
	}
	for k, v := range data {
		det.Metadata[k] = v
	}
	return det, nil
}

// ingest кладёт детекцию в буфер сессии, вытесняя старейшие за пределом.
func (s *Service) ingest(sessionID string, det signal.Detection) {
	s.mu.Lock()
	buf := append(s.buffers[sessionID], det)
	if len(buf) > detectionBufferCap {
		buf = buf[len(buf)-detectionBufferCap:]
	}
	s.buffers[sessionID] = buf
	s.mu.Unlock()
}

// validateAgainstGroundTruth резолвит аннотации в окне временного допуска;
// при наличии прямоугольника у сигнала дополнительно требуется
// IoU >= spatial_tolerance. Отсутствие совпадения — не ошибка (is_valid=false).
func (s *Service) validateAgainstGroundTruth(det signal.Detection, sessionID string) signal.ValidationResult {
	s.mu.Lock()
	videoID := s.videoOf[sessionID]
	s.mu.Unlock()
	if s.store == nil || videoID == "" {
		return signal.ValidationResult{Method: "none"}
	}
	anns := s.store.FindAt(videoID, det.Timestamp, s.cfg.ToleranceMs)

	var best *signal.Annotation
	bestDist := math.Inf(1)
	for i := range anns {
		d := math.Abs(anns[i].Timestamp - det.Timestamp)
		if d < bestDist {
			bestDist = d
			best = &anns[i]
		}
	}
	if best == nil {
		return signal.ValidationResult{Method: "none"}
	}
	vr := signal.ValidationResult{
		Confidence:          det.Confidence,
		TimingErrorMs:       bestDist * 1000,
		MatchedAnnotationID: best.ID,
		Method:              "temporal",
	}
	if det.Box != nil && best.Box != nil {
		vr.Method = "temporal+iou"
		if det.Box.IoU(*best.Box) < s.cfg.SpatialTolerance {
			return vr
		}
	}
	vr.IsValid = true
	return vr
}

// StartVoltageMonitor запускает непрерывный мониторинг напряжения сессии:
// производитель опрашивает АЦП кадрами voltage_window_ms, потребитель
// кладёт квалифицированные отсчёты в общий буфер и валидирует их.
// Связь через ограниченный канал; отмена ctx не блокирует путь приёма.
func (s *Service) StartVoltageMonitor(ctx context.Context, sessionID string, adc source.ADCBackend, channel int, videoStart time.Time) {
	window := time.Duration(s.cfg.VoltageWindowMs * float64(time.Millisecond))
	if window <= 0 {
		window = 50 * time.Millisecond
	}
	ch := make(chan signal.Detection, 64)

	// производитель: опрос железа
	go func() {
		defer close(ch)
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			v, err := adc.ReadVoltage(channel)
			if err != nil {
				// одиночный сбой чтения пропускается
				logger.Info("session %s: voltage read: %v", sessionID, err)
				continue
			}
			if math.Abs(v) <= s.cfg.VoltageThreshold {
				continue
			}
			vv := v
			det := signal.Detection{
				ID:         uuid.NewString(),
				Timestamp:  time.Since(videoStart).Seconds(),
				SignalType: signal.TypeVoltage,
				Confidence: source.DetectionConfidence(v),
				Voltage:    &vv,
			}
			offerDetection(ch, det)
		}
	}()

	// потребитель: буферизация и валидация
	go func() {
		for det := range ch {
			s.ingest(sessionID, det)
			s.validateAgainstGroundTruth(det, sessionID)
		}
	}()
}

// offerDetection кладёт детекцию в канал; при полном канале вытесняется
// старейшая, съём не тормозится.
func offerDetection(ch chan signal.Detection, det signal.Detection) {
	for {
		select {
		case ch <- det:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Stats считает агрегаты по буферу детекций сессии: всего, гистограмма
// по типам, средняя уверенность и min/max/mean/std напряжения (если были).
func (s *Service) Stats(sessionID string) signal.Stats {
	s.mu.Lock()
	buf := append([]signal.Detection(nil), s.buffers[sessionID]...)
	s.mu.Unlock()

	st := signal.Stats{ByType: make(map[string]int)}
	st.Total = len(buf)
	if st.Total == 0 {
		return st
	}
	var confSum float64
	var volts []float64
	for _, d := range buf {
		st.ByType[d.SignalType]++
		confSum += d.Confidence
		if d.Voltage != nil {
			volts = append(volts, *d.Voltage)
		}
	}
	st.AvgConfidence = confSum / float64(st.Total)
	if len(volts) > 0 {
		vs := signal.VoltageStats{Min: volts[0], Max: volts[0]}
		var sum float64
		for _, v := range volts {
			if v < vs.Min {
				vs.Min = v
			}
			if v > vs.Max {
				vs.Max = v
			}
			sum += v
		}
		vs.Mean = sum / float64(len(volts))
		var sq float64
		for _, v := range volts {
			sq += (v - vs.Mean) * (v - vs.Mean)
		}
		vs.Std = math.Sqrt(sq / float64(len(volts)))
		st.Voltage = &vs
	}
	return st
}

// DropSession удаляет состояние сессии.
func (s *Service) DropSession(sessionID string) {
	s.mu.Lock()
	delete(s.buffers, sessionID)
	delete(s.videoOf, sessionID)
	s.mu.Unlock()
}

func floatField(data map[string]interface{}, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case uint32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func boxField(data map[string]interface{}, key string) (*signal.Box, bool) {
	m, ok := data[key].(map[string]interface{})
	if !ok {
		return nil, false
	}
	x, xok := floatField(m, "x")
	y, yok := floatField(m, "y")
	w, wok := floatField(m, "w")
	h, hok := floatField(m, "h")
	if !xok || !yok || !wok || !hok {
		return nil, false
	}
	return &signal.Box{X: x, Y: y, W: w, H: h}, true
}
