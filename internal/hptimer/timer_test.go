package hptimer

import "testing"

func TestTimer_Monotonic(t *testing.T) {
	tm := New(false)
	last := -1.0
	for i := 0; i < 10000; i++ {
		ts := tm.Now()
		if ts < last {
			t.Fatalf("метка %d откатилась: %v < %v", i, ts, last)
		}
		last = ts
	}
}

func TestTimer_MinSpacing(t *testing.T) {
	// max(now, last+1ms): соседние метки разнесены не меньше чем на 1 мс
	tm := New(false)
	a := tm.Now()
	b := tm.Now()
	if b < a+minStep {
		t.Errorf("метки слишком близко: %v и %v", a, b)
	}
}

func TestTimer_ForcedStep(t *testing.T) {
	tm := New(false)
	// принудительный откат last вперёд имитирует совпадение меток
	tm.mu.Lock()
	tm.last = 1e6
	tm.mu.Unlock()
	ts := tm.Now()
	if ts != 1e6+minStep {
		t.Errorf("ожидали last+1ms = %v, получили %v", 1e6+minStep, ts)
	}
}

func TestTimer_Precision(t *testing.T) {
	if p := New(true).PrecisionUs(); p != PrecisionHighUs {
		t.Errorf("precision_mode: ожидали %v, получили %v", PrecisionHighUs, p)
	}
	if p := New(false).PrecisionUs(); p != PrecisionDefaultUs {
		t.Errorf("обычный режим: ожидали %v, получили %v", PrecisionDefaultUs, p)
	}
}
