package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) GetUser(username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) UpsertUserConnected(username string, connected bool) (User, error) {
	args := m.Called(username, connected)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(username, text string) (Message, error) {
	args := m.Called(username, text)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessagesAfter(offset int64) ([]Message, error) {
	args := m.Called(offset)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) GetConnectedUsernames() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}
