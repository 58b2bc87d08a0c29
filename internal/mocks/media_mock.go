package mocks

import (
	"context"

	"finishflow/internal/media"
	"finishflow/internal/pipeline"

	"github.com/stretchr/testify/mock"
)

// MockProber is a mock type for the Prober type
type MockProber struct {
	mock.Mock
}

// Probe provides a mock function with given fields: ctx, path
func (_m *MockProber) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	ret := _m.Called(ctx, path)

	var r0 *media.ProbeResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*media.ProbeResult, error)); ok {
		return rf(ctx, path)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*media.ProbeResult)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockProber creates a new instance of MockProber.
func NewMockProber(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProber {
	m := &MockProber{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockRenderer is a mock type for the Renderer type
type MockRenderer struct {
	mock.Mock
}

// Render provides a mock function with given fields: ctx, job
func (_m *MockRenderer) Render(ctx context.Context, job media.RenderJob) (*media.RenderResult, error) {
	ret := _m.Called(ctx, job)

	var r0 *media.RenderResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, media.RenderJob) (*media.RenderResult, error)); ok {
		return rf(ctx, job)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*media.RenderResult)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockRenderer creates a new instance of MockRenderer.
func NewMockRenderer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRenderer {
	m := &MockRenderer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockOutputValidator is a mock type for the OutputValidator type
type MockOutputValidator struct {
	mock.Mock
}

// Validate provides a mock function with given fields: ctx, path
func (_m *MockOutputValidator) Validate(ctx context.Context, path string) media.ValidationResult {
	ret := _m.Called(ctx, path)

	if rf, ok := ret.Get(0).(func(context.Context, string) media.ValidationResult); ok {
		return rf(ctx, path)
	}
	return ret.Get(0).(media.ValidationResult)
}

// NewMockOutputValidator creates a new instance of MockOutputValidator.
func NewMockOutputValidator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockOutputValidator {
	m := &MockOutputValidator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var (
	_ media.Prober             = (*MockProber)(nil)
	_ media.Renderer           = (*MockRenderer)(nil)
	_ pipeline.OutputValidator = (*MockOutputValidator)(nil)
)
