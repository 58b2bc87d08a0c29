package mocks

import (
	"context"

	"finishflow/internal/model"
	"finishflow/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockMusicGenerator is a mock type for the MusicGenerator type
type MockMusicGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, req, outPath
func (_m *MockMusicGenerator) Generate(ctx context.Context, req service.MusicRequest, outPath string) (*model.Music, error) {
	ret := _m.Called(ctx, req, outPath)

	var r0 *model.Music
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, service.MusicRequest, string) (*model.Music, error)); ok {
		return rf(ctx, req, outPath)
	}
	if rf, ok := ret.Get(0).(func(context.Context, service.MusicRequest, string) *model.Music); ok {
		r0 = rf(ctx, req, outPath)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Music)
	}

	if rf, ok := ret.Get(1).(func(context.Context, service.MusicRequest, string) error); ok {
		r1 = rf(ctx, req, outPath)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockMusicGenerator creates a new instance of MockMusicGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockMusicGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockMusicGenerator {
	m := &MockMusicGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.MusicGenerator = (*MockMusicGenerator)(nil)
