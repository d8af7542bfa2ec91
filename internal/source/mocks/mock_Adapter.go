// Package mocks provides test doubles for source adapters.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	browser "github.com/sells-group/listing-cli/internal/browser"
	model "github.com/sells-group/listing-cli/internal/model"
)

// MockAdapter is a mock type for the Adapter interface.
type MockAdapter struct {
	mock.Mock
}

// Source provides a mock function with given fields:
func (_m *MockAdapter) Source() model.Source {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Source")
	}

	var r0 model.Source
	if rf, ok := ret.Get(0).(func() model.Source); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(model.Source)
	}

	return r0
}

// Extract provides a mock function with given fields: ctx, s, q
func (_m *MockAdapter) Extract(ctx context.Context, s browser.Session, q model.Query) ([]model.BusinessRecord, error) {
	ret := _m.Called(ctx, s, q)

	if len(ret) == 0 {
		panic("no return value specified for Extract")
	}

	var r0 []model.BusinessRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Session, model.Query) ([]model.BusinessRecord, error)); ok {
		return rf(ctx, s, q)
	}
	if rf, ok := ret.Get(0).(func(context.Context, browser.Session, model.Query) []model.BusinessRecord); ok {
		r0 = rf(ctx, s, q)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.BusinessRecord)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, browser.Session, model.Query) error); ok {
		r1 = rf(ctx, s, q)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockAdapter creates a new instance of MockAdapter.
func NewMockAdapter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAdapter {
	mock := &MockAdapter{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
