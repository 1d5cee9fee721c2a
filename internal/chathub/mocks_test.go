package chathub_test

import (
	"encoding/json"
	"testing"
	"time"

	"stringchat/backend/internal/chathub"
	"stringchat/backend/internal/config"
	"stringchat/backend/internal/models"
	"stringchat/backend/internal/moderation"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements chathub.Client without a socket. Everything the
// hub sends lands in Recv.
type MockClient struct {
	anonID string
	Recv   chan models.Envelope
}

func newMockClient(anonID string) *MockClient {
	return &MockClient{
		anonID: anonID,
		Recv:   make(chan models.Envelope, 32),
	}
}

func (c *MockClient) GetAnonID() string                      { return c.anonID }
func (c *MockClient) GetSendChannel() chan<- models.Envelope { return c.Recv }
func (c *MockClient) Run()                                   {}
func (c *MockClient) Close()                                 {}

// MockViolations is a testify mock for the moderation counter store.
type MockViolations struct {
	mock.Mock
}

func (m *MockViolations) IncrViolation(anonID string) (int64, error) {
	args := m.Called(anonID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockViolations) ClearViolations(anonID string) error {
	return m.Called(anonID).Error(0)
}

func newPermissiveViolations() *MockViolations {
	v := new(MockViolations)
	v.On("IncrViolation", mock.Anything).Return(int64(1), nil).Maybe()
	v.On("ClearViolations", mock.Anything).Return(nil).Maybe()
	return v
}

func newTestHub(violations *MockViolations) *chathub.ManagerService {
	matcher := chathub.NewMatcherService()
	sessions := chathub.NewSessionRegistry(config.SessionPurgeGrace)
	mod := moderation.NewService(violations, config.ViolationThreshold)
	return chathub.NewManagerService(matcher, sessions, mod)
}

// payload marshals a payload struct for an inbound envelope.
func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func sendEvent(hub *chathub.ManagerService, c chathub.Client, event string, data json.RawMessage) {
	hub.IncomingCh <- chathub.InboundEvent{Client: c, Env: models.Envelope{Event: event, Data: data}}
}

// recvEnvelope waits for the next envelope or fails the test.
func recvEnvelope(t *testing.T, c *MockClient) models.Envelope {
	t.Helper()
	select {
	case env := <-c.Recv:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received nothing", c.anonID)
		return models.Envelope{}
	}
}

// expectSilence asserts no envelope arrives within the window.
func expectSilence(t *testing.T, c *MockClient) {
	t.Helper()
	select {
	case env := <-c.Recv:
		t.Fatalf("client %s unexpectedly received %q", c.anonID, env.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func decodePayload[T any](t *testing.T, env models.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// pairUp registers both clients and walks them through the queue.
func pairUp(t *testing.T, hub *chathub.ManagerService, a, b *MockClient) {
	t.Helper()
	hub.RegisterCh <- a
	hub.RegisterCh <- b

	sendEvent(hub, a, models.EventJoinQueue, nil)
	env := recvEnvelope(t, a)
	require.Equal(t, models.EventWaiting, env.Event)

	sendEvent(hub, b, models.EventJoinQueue, nil)
	envA := recvEnvelope(t, a)
	envB := recvEnvelope(t, b)
	require.Equal(t, models.EventMatched, envA.Event)
	require.Equal(t, models.EventMatched, envB.Event)
}
