package source

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/signal"
)

func TestFactory(t *testing.T) {
	tests := []struct {
		sigType  string
		wantType string
	}{
		{signal.TypeGPIO, signal.TypeGPIO},
		{signal.TypeVoltage, signal.TypeVoltage},
		{signal.TypeSerial, signal.TypeSerial},
		{signal.TypeCAN, signal.TypeCAN},
		{signal.TypeNetwork, signal.TypeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.sigType, func(t *testing.T) {
			s, err := New(config.SourceConfig{SignalType: tt.sigType})
			if err != nil {
				t.Fatalf("New(%s): %v", tt.sigType, err)
			}
			if s.Type() != tt.wantType {
				t.Errorf("Type() = %q", s.Type())
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		if _, err := New(config.SourceConfig{SignalType: "quantum"}); !errors.Is(err, ErrUnsupported) {
			t.Errorf("ожидали ErrUnsupported, получили %v", err)
		}
	})
}

func TestConnectOrDegrade(t *testing.T) {
	t.Run("mock connects", func(t *testing.T) {
		m := NewMock(signal.TypeGPIO, "mock:t", nil)
		got, err := ConnectOrDegrade(context.Background(), m, true)
		if err != nil || got != m {
			t.Errorf("got=%v err=%v", got, err)
		}
	})

	t.Run("serial degrades", func(t *testing.T) {
		// несуществующее устройство: required=false даёт заглушку того же типа
		s := NewSerialLine("/dev/definitely-not-a-port", 9600)
		got, err := ConnectOrDegrade(context.Background(), s, false)
		if err != nil {
			t.Fatalf("degraded режим не должен давать ошибку: %v", err)
		}
		if _, ok := got.(*Mock); !ok {
			t.Errorf("ожидали заглушку, получили %T", got)
		}
		if got.Type() != signal.TypeSerial {
			t.Errorf("заглушка должна сохранять signal_type: %q", got.Type())
		}
	})

	t.Run("serial required fails", func(t *testing.T) {
		s := NewSerialLine("/dev/definitely-not-a-port", 9600)
		if _, err := ConnectOrDegrade(context.Background(), s, true); err == nil {
			t.Error("required=true при недоступном порте — ошибка")
		}
	})
}

func TestMock(t *testing.T) {
	m := NewMock(signal.TypeVoltage, "mock:v", []float64{1.5, 2.5})
	ctx := context.Background()
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	r1, _ := m.ReadSingle(ctx)
	r2, _ := m.ReadSingle(ctx)
	r3, _ := m.ReadSingle(ctx)
	if r1.Value != 1.5 || r2.Value != 2.5 || r3.Value != 1.5 {
		t.Errorf("последовательность по кругу: %v %v %v", r1.Value, r2.Value, r3.Value)
	}

	silent := NewMock(signal.TypeGPIO, "mock:g", nil)
	if _, err := silent.ReadSingle(ctx); !errors.Is(err, ErrNoData) {
		t.Errorf("пустая заглушка: %v, ожидали ErrNoData", err)
	}
}

func TestNetworkPacket(t *testing.T) {
	n := NewNetworkPacket("127.0.0.1:0")
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer n.Disconnect()

	conn, err := net.Dial("udp", n.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	t.Run("json payload", func(t *testing.T) {
		msg, _ := json.Marshal(map[string]interface{}{"value": 3.5, "object": "pedestrian"})
		if _, err := conn.Write(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		r := mustRead(t, n)
		if r.Value != 3.5 {
			t.Errorf("value = %v", r.Value)
		}
		obj, ok := r.Payload.(map[string]interface{})
		if !ok || obj["object"] != "pedestrian" {
			t.Errorf("payload = %#v", r.Payload)
		}
	})

	t.Run("raw fallback", func(t *testing.T) {
		if _, err := conn.Write([]byte("not-json")); err != nil {
			t.Fatalf("write: %v", err)
		}
		r := mustRead(t, n)
		if r.Value != 1.0 {
			t.Errorf("value = %v", r.Value)
		}
		if raw, ok := r.Payload.([]byte); !ok || string(raw) != "not-json" {
			t.Errorf("payload = %#v", r.Payload)
		}
	})

	t.Run("timeout is no data", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := n.ReadSingle(ctx); !errors.Is(err, ErrNoData) {
			t.Errorf("пустой интервал приёма: %v, ожидали ErrNoData", err)
		}
	})
}

func mustRead(t *testing.T, n *NetworkPacket) Reading {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, err := n.ReadSingle(context.Background())
		if err == nil {
			return r
		}
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("ReadSingle: %v", err)
		}
	}
	t.Fatal("датаграмма не получена")
	return Reading{}
}

func TestDetectionConfidence(t *testing.T) {
	tests := []struct {
		v    float64
		want float64
	}{
		{5, 0.5},
		{-5, 0.5},
		{10, 1},
		{25, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := DetectionConfidence(tt.v); got != tt.want {
			t.Errorf("DetectionConfidence(%v) = %v, ожидали %v", tt.v, got, tt.want)
		}
	}
}
