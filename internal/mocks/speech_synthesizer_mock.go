package mocks

import (
	"context"

	"finishflow/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockSpeechSynthesizer is a mock type for the SpeechSynthesizer type
type MockSpeechSynthesizer struct {
	mock.Mock
}

// Synthesize provides a mock function with given fields: ctx, text, outPath
func (_m *MockSpeechSynthesizer) Synthesize(ctx context.Context, text string, outPath string) (int64, error) {
	ret := _m.Called(ctx, text, outPath)

	var r0 int64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (int64, error)); ok {
		return rf(ctx, text, outPath)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) int64); ok {
		r0 = rf(ctx, text, outPath)
	} else {
		r0 = ret.Get(0).(int64)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, text, outPath)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSpeechSynthesizer creates a new instance of MockSpeechSynthesizer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockSpeechSynthesizer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSpeechSynthesizer {
	m := &MockSpeechSynthesizer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.SpeechSynthesizer = (*MockSpeechSynthesizer)(nil)
