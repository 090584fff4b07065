package stats

import "github.com/stretchr/testify/mock"

type MockStatsUpdater struct {
	mock.Mock
}

func (m *MockStatsUpdater) RegisterCounter(name, help string) {
	m.Called(name, help)
}
func (m *MockStatsUpdater) RegisterGauge(name, help string) {
	m.Called(name, help)
}
func (m *MockStatsUpdater) Incr(name string) {
	m.Called(name)
}
func (m *MockStatsUpdater) Decr(name string) {
	m.Called(name)
}
func (m *MockStatsUpdater) Set(name string, value float64) {
	m.Called(name, value)
}
