package mocks

import (
	"context"

	"finishflow/internal/model"
	"finishflow/internal/pipeline"

	"github.com/stretchr/testify/mock"
)

// MockJournal is a mock type for the Journal type
type MockJournal struct {
	mock.Mock
}

// Record provides a mock function with given fields: ctx, rec
func (_m *MockJournal) Record(ctx context.Context, rec model.RunRecord) error {
	ret := _m.Called(ctx, rec)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.RunRecord) error); ok {
		r0 = rf(ctx, rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockJournal creates a new instance of MockJournal.
func NewMockJournal(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockJournal {
	m := &MockJournal{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockNotifier is a mock type for the Notifier type
type MockNotifier struct {
	mock.Mock
}

// NotifyVideoReady provides a mock function with given fields: ctx, event
func (_m *MockNotifier) NotifyVideoReady(ctx context.Context, event model.VideoReadyEvent) error {
	ret := _m.Called(ctx, event)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.VideoReadyEvent) error); ok {
		r0 = rf(ctx, event)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockNotifier creates a new instance of MockNotifier.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var (
	_ pipeline.Journal  = (*MockJournal)(nil)
	_ pipeline.Notifier = (*MockNotifier)(nil)
)
