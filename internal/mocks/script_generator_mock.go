package mocks

import (
	"context"

	"finishflow/internal/model"
	"finishflow/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockScriptGenerator is a mock type for the ScriptGenerator type
type MockScriptGenerator struct {
	mock.Mock
}

// GenerateScript provides a mock function with given fields: ctx, req
func (_m *MockScriptGenerator) GenerateScript(ctx context.Context, req model.GenerationRequest) (model.Script, error) {
	ret := _m.Called(ctx, req)

	var r0 model.Script
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.GenerationRequest) (model.Script, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, model.GenerationRequest) model.Script); ok {
		r0 = rf(ctx, req)
	} else {
		r0 = ret.Get(0).(model.Script)
	}

	if rf, ok := ret.Get(1).(func(context.Context, model.GenerationRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockScriptGenerator creates a new instance of MockScriptGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockScriptGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockScriptGenerator {
	m := &MockScriptGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.ScriptGenerator = (*MockScriptGenerator)(nil)
