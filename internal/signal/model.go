// Package signal — общая модель данных: события сигналов, детекции камеры,
// аннотации ground truth и результаты валидации.
package signal

import (
	"math"

	"github.com/google/uuid"
)

// Типы сигналов (signal_type в конфиге и во внешнем API).
const (
	TypeGPIO    = "gpio"
	TypeVoltage = "voltage"
	TypeSerial  = "serial"
	TypeCAN     = "can_bus"
	TypeNetwork = "network"
)

// Event — одно событие источника сигнала с меткой монотонного времени сессии.
type Event struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Timestamp   float64     `json:"timestamp"` // секунды от старта сессии, неубывающие
	SourceType  string      `json:"source_type"`
	Payload     interface{} `json:"payload"`
	SourceID    string      `json:"source_identifier"`
	PrecisionUs float64     `json:"precision_us"`
}

// NewEvent создаёт событие с новым id.
func NewEvent(sessionID, sourceType, sourceID string, ts float64, payload interface{}, precisionUs float64) Event {
	return Event{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Timestamp:   ts,
		SourceType:  sourceType,
		Payload:     payload,
		SourceID:    sourceID,
		PrecisionUs: precisionUs,
	}
}

// Detection — внешний сигнал детекции от камеры/рига (voltage, can_bus, network).
// Поля Voltage/CANMessageID/Packet заполняются в зависимости от транспорта.
type Detection struct {
	ID           string                 `json:"id"`
	Timestamp    float64                `json:"timestamp"` // секунды видео-таймлайна
	SignalType   string                 `json:"signal_type"`
	Confidence   float64                `json:"confidence"`
	Voltage      *float64               `json:"voltage_value,omitempty"`
	CANMessageID *uint32                `json:"can_message_id,omitempty"`
	Packet       map[string]interface{} `json:"network_packet,omitempty"`
	Box          *Box                   `json:"bounding_box,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ValidationResult — итог проверки детекции против ground truth.
type ValidationResult struct {
	IsValid             bool    `json:"is_valid"`
	Confidence          float64 `json:"confidence"`
	TimingErrorMs       float64 `json:"timing_error_ms"`
	MatchedAnnotationID string  `json:"matched_annotation_id,omitempty"`
	Method              string  `json:"method"` // temporal, temporal+iou, none
}

// Annotation — ground truth: объект (VRU) в видео в момент времени.
type Annotation struct {
	ID        string  `json:"id"`
	VideoID   string  `json:"video_id"`
	Timestamp float64 `json:"timestamp"`
	Label     string  `json:"label"`
	Box       *Box    `json:"bounding_box,omitempty"`
}

// Box — прямоугольник аннотации/детекции: левый верхний угол + размеры.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// IoU возвращает отношение пересечения к объединению двух прямоугольников (0..1).
func (b Box) IoU(o Box) float64 {
	ix := math.Max(b.X, o.X)
	iy := math.Max(b.Y, o.Y)
	ix2 := math.Min(b.X+b.W, o.X+o.W)
	iy2 := math.Min(b.Y+b.H, o.Y+o.H)
	if ix2 <= ix || iy2 <= iy {
		return 0
	}
	inter := (ix2 - ix) * (iy2 - iy)
	union := b.W*b.H + o.W*o.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// VoltageStats — агрегаты по напряжению (если среди сигналов были voltage).
type VoltageStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Stats — агрегаты по сигналам сессии.
type Stats struct {
	Total         int            `json:"total_signals"`
	ByType        map[string]int `json:"signal_types"`
	AvgConfidence float64        `json:"average_confidence"`
	Voltage       *VoltageStats  `json:"voltage,omitempty"`
}
