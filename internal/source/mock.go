package source

import "context"

// Mock — инертная замена источника для degraded режима и тестов.
// Реализует полный набор способностей; отдаёт заданную последовательность
// значений по кругу, без неё — ErrNoData (тишина в линии).
type Mock struct {
	sigType string
	name    string
	values  []float64
	i       int
}

// NewMock создаёт заглушку данного signal_type.
func NewMock(sigType, name string, values []float64) *Mock {
	return &Mock{sigType: sigType, name: name, values: values}
}

// Name возвращает имя источника
func (m *Mock) Name() string {
	return m.name
}

// Type возвращает signal_type
func (m *Mock) Type() string {
	return m.sigType
}

// Connect всегда успешен.
func (m *Mock) Connect(ctx context.Context) error {
	return nil
}

// ReadSingle отдаёт следующее значение последовательности или ErrNoData.
func (m *Mock) ReadSingle(ctx context.Context) (Reading, error) {
	if len(m.values) == 0 {
		return Reading{}, ErrNoData
	}
	v := m.values[m.i%len(m.values)]
	m.i++
	return Reading{Value: v}, nil
}

// Polled — заглушка опрашивается по кадансу.
func (m *Mock) Polled() bool {
	return true
}

// Disconnect всегда успешен.
func (m *Mock) Disconnect() error {
	return nil
}

// MockADC — заглушка АЦП для degraded режима и тестов.
type MockADC struct {
	Values []float64
	i      int
}

// ReadVoltage отдаёт следующее значение последовательности (пустая = 0 В).
func (m *MockADC) ReadVoltage(channel int) (float64, error) {
	if len(m.Values) == 0 {
		return 0, nil
	}
	v := m.Values[m.i%len(m.Values)]
	m.i++
	return v, nil
}

// Close всегда успешен.
func (m *MockADC) Close() error {
	return nil
}
