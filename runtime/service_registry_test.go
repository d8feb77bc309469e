package runtime

import (
	"testing"

	"github.com/dlt-interop/relay/testing/assert"
	"github.com/dlt-interop/relay/testing/require"
)

type mockService struct {
	stopped bool
	status  error
}

type secondMockService struct {
	stopped bool
	status  error
}

func (_ *mockService) Start() {
}

func (m *mockService) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockService) Status() error {
	return m.status
}

func (_ *secondMockService) Start() {
}

func (s *secondMockService) Stop() error {
	s.stopped = true
	return nil
}

func (s *secondMockService) Status() error {
	return s.status
}

func TestRegisterService_Twice(t *testing.T) {
	registry := NewServiceRegistry()

	m := &mockService{}
	require.NoError(t, registry.RegisterService(m))
	assert.ErrorContains(t, "service already exists", registry.RegisterService(m))
}

func TestRegisterService_Different(t *testing.T) {
	registry := NewServiceRegistry()

	m := &mockService{}
	s := &secondMockService{}
	require.NoError(t, registry.RegisterService(m))
	require.NoError(t, registry.RegisterService(s))

	registry.StopAll()
	assert.Equal(t, true, m.stopped)
	assert.Equal(t, true, s.stopped)
}

func TestFetchService(t *testing.T) {
	registry := NewServiceRegistry()

	m := &mockService{}
	require.NoError(t, registry.RegisterService(m))

	var s *secondMockService
	assert.ErrorContains(t, "unknown service", registry.FetchService(&s))

	var m2 *mockService
	require.NoError(t, registry.FetchService(&m2))
	assert.Equal(t, m, m2)
}
