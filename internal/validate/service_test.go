package validate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/notify"
	"github.com/vrulab/rigsync/internal/signal"
	"github.com/vrulab/rigsync/internal/source"
)

func newService(store AnnotationStore) *Service {
	return New(config.Default().Session, store, notify.Discard{})
}

func TestProcessExternalSignal_Voltage(t *testing.T) {
	store := NewMemoryStore()
	store.Add(signal.Annotation{ID: "ann-1", VideoID: "v1", Timestamp: 5.02, Label: "pedestrian"})
	s := newService(store)
	s.SetSessionVideo("s1", "v1")

	res, err := s.ProcessExternalSignal(signal.TypeVoltage,
		map[string]interface{}{"voltage_value": 3.3}, 5.0, "s1")
	if err != nil {
		t.Fatalf("ProcessExternalSignal: %v", err)
	}
	if !res.Validation.IsValid {
		t.Error("детекция в 20 мс от аннотации должна быть валидной")
	}
	if res.Validation.MatchedAnnotationID != "ann-1" {
		t.Errorf("matched = %q", res.Validation.MatchedAnnotationID)
	}
	if res.Validation.Method != "temporal" {
		t.Errorf("method = %q", res.Validation.Method)
	}
	if d := math.Abs(res.Validation.TimingErrorMs - 20); d > 1e-6 {
		t.Errorf("timing_error_ms = %v, ожидали 20", res.Validation.TimingErrorMs)
	}
	if res.SignalID == "" {
		t.Error("signal_id должен быть присвоен")
	}
}

func TestProcessExternalSignal_NoMatch(t *testing.T) {
	store := NewMemoryStore()
	store.Add(signal.Annotation{ID: "ann-1", VideoID: "v1", Timestamp: 7.0})
	s := newService(store)
	s.SetSessionVideo("s1", "v1")

	// ближайшая аннотация в 2 секундах: не ошибка, is_valid=false
	res, err := s.ProcessExternalSignal(signal.TypeCAN,
		map[string]interface{}{"can_message_id": 0x123}, 5.0, "s1")
	if err != nil {
		t.Fatalf("ProcessExternalSignal: %v", err)
	}
	if res.Validation.IsValid {
		t.Error("вне временного допуска is_valid должен быть false")
	}
	if res.Validation.Method != "none" {
		t.Errorf("method = %q", res.Validation.Method)
	}
}

// Намеренное решение: вместо заглушки с постоянным результатом валидация
// использует полный алгоритм — временной допуск ПЛЮС пространственный IoU,
// когда у сигнала есть прямоугольник. Меняется здесь и в
// validateAgainstGroundTruth, если выяснится иное намерение.
func TestProcessExternalSignal_SpatialIoU(t *testing.T) {
	store := NewMemoryStore()
	store.Add(signal.Annotation{
		ID: "ann-1", VideoID: "v1", Timestamp: 5.0,
		Box: &signal.Box{X: 0, Y: 0, W: 10, H: 10},
	})
	s := newService(store)
	s.SetSessionVideo("s1", "v1")

	t.Run("overlap passes", func(t *testing.T) {
		res, err := s.ProcessExternalSignal(signal.TypeNetwork, map[string]interface{}{
			"bounding_box": map[string]interface{}{"x": 1.0, "y": 1.0, "w": 10.0, "h": 10.0},
		}, 5.0, "s1")
		if err != nil {
			t.Fatalf("ProcessExternalSignal: %v", err)
		}
		if !res.Validation.IsValid {
			t.Error("IoU ~0.68 >= 0.3 должен проходить")
		}
		if res.Validation.Method != "temporal+iou" {
			t.Errorf("method = %q", res.Validation.Method)
		}
	})

	t.Run("disjoint rejected", func(t *testing.T) {
		res, err := s.ProcessExternalSignal(signal.TypeNetwork, map[string]interface{}{
			"bounding_box": map[string]interface{}{"x": 50.0, "y": 50.0, "w": 10.0, "h": 10.0},
		}, 5.0, "s1")
		if err != nil {
			t.Fatalf("ProcessExternalSignal: %v", err)
		}
		if res.Validation.IsValid {
			t.Error("IoU=0 < 0.3: по времени совпало, но пространственно нет")
		}
		if res.Validation.Method != "temporal+iou" {
			t.Errorf("method = %q", res.Validation.Method)
		}
	})
}

func TestProcessExternalSignal_Errors(t *testing.T) {
	s := newService(NewMemoryStore())
	tests := []struct {
		name    string
		sigType string
		data    map[string]interface{}
	}{
		{"unknown transport", "smoke", map[string]interface{}{}},
		{"voltage without value", signal.TypeVoltage, map[string]interface{}{}},
		{"can without id", signal.TypeCAN, map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.ProcessExternalSignal(tt.sigType, tt.data, 0, "s1"); err == nil {
				t.Error("ожидали ошибку")
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := newService(NewMemoryStore())
	s.SetSessionVideo("s1", "v1")
	for _, v := range []float64{1.0, 2.0, 3.0} {
		if _, err := s.ProcessExternalSignal(signal.TypeVoltage,
			map[string]interface{}{"voltage_value": v}, 0, "s1"); err != nil {
			t.Fatalf("voltage %v: %v", v, err)
		}
	}
	if _, err := s.ProcessExternalSignal(signal.TypeCAN,
		map[string]interface{}{"can_message_id": 7, "confidence": 0.8}, 0, "s1"); err != nil {
		t.Fatalf("can: %v", err)
	}

	st := s.Stats("s1")
	if st.Total != 4 {
		t.Errorf("total = %d", st.Total)
	}
	if st.ByType[signal.TypeVoltage] != 3 || st.ByType[signal.TypeCAN] != 1 {
		t.Errorf("гистограмма: %v", st.ByType)
	}
	// средняя уверенность: (0.1 + 0.2 + 0.3 + 0.8) / 4
	if d := math.Abs(st.AvgConfidence - 0.35); d > 1e-9 {
		t.Errorf("average_confidence = %v", st.AvgConfidence)
	}
	if st.Voltage == nil {
		t.Fatal("ожидали статистику напряжения")
	}
	if st.Voltage.Min != 1.0 || st.Voltage.Max != 3.0 {
		t.Errorf("min/max = %v/%v", st.Voltage.Min, st.Voltage.Max)
	}
	if d := math.Abs(st.Voltage.Mean - 2.0); d > 1e-9 {
		t.Errorf("mean = %v", st.Voltage.Mean)
	}
	// std по населению: sqrt(2/3)
	if d := math.Abs(st.Voltage.Std - math.Sqrt(2.0/3.0)); d > 1e-9 {
		t.Errorf("std = %v", st.Voltage.Std)
	}

	if empty := s.Stats("ghost"); empty.Total != 0 {
		t.Errorf("пустая сессия: total = %d", empty.Total)
	}
}

func TestVoltageMonitor(t *testing.T) {
	cfg := config.Default().Session
	cfg.VoltageWindowMs = 5
	cfg.VoltageThreshold = 0.5
	s := New(cfg, NewMemoryStore(), notify.Discard{})
	s.SetSessionVideo("s1", "v1")

	adc := &source.MockADC{Values: []float64{0.1, 2.0, 0.2, 3.0}}
	ctx, cancel := context.WithCancel(context.Background())
	s.StartVoltageMonitor(ctx, "s1", adc, 0, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Stats("s1").Total >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	st := s.Stats("s1")
	if st.Total < 2 {
		t.Fatalf("монитор должен накопить детекции выше порога, total = %d", st.Total)
	}
	if st.ByType[signal.TypeVoltage] != st.Total {
		t.Errorf("все детекции монитора — voltage: %v", st.ByType)
	}
	if st.Voltage == nil || st.Voltage.Min < 0.5 {
		t.Errorf("отсчёты ниже порога не должны квалифицироваться: %+v", st.Voltage)
	}

	// отмена не блокирует путь приёма
	if _, err := s.ProcessExternalSignal(signal.TypeVoltage,
		map[string]interface{}{"voltage_value": 1.0}, 0, "s1"); err != nil {
		t.Errorf("приём после отмены монитора: %v", err)
	}
}

func TestOfferDetection_DropsOldest(t *testing.T) {
	ch := make(chan signal.Detection, 2)
	for _, id := range []string{"d1", "d2", "d3"} {
		offerDetection(ch, signal.Detection{ID: id})
	}
	// при полном канале вытесняется старейшая, новая попадает в очередь
	if got := (<-ch).ID; got != "d2" {
		t.Errorf("первая в очереди = %q, ожидали d2", got)
	}
	if got := (<-ch).ID; got != "d3" {
		t.Errorf("вторая в очереди = %q, ожидали d3", got)
	}
	select {
	case det := <-ch:
		t.Errorf("канал должен быть пуст, получили %q", det.ID)
	default:
	}
}

func TestSessionsIsolated(t *testing.T) {
	s := newService(NewMemoryStore())
	s.SetSessionVideo("a", "v1")
	s.SetSessionVideo("b", "v1")
	if _, err := s.ProcessExternalSignal(signal.TypeVoltage,
		map[string]interface{}{"voltage_value": 1.0}, 0, "a"); err != nil {
		t.Fatal(err)
	}
	s.DropSession("a")
	if s.Stats("a").Total != 0 {
		t.Error("сессия a должна быть очищена")
	}
	if _, err := s.ProcessExternalSignal(signal.TypeVoltage,
		map[string]interface{}{"voltage_value": 1.0}, 0, "b"); err != nil {
		t.Errorf("сессия b не должна пострадать: %v", err)
	}
}
