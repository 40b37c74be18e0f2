// Package mocks provides test doubles for the fetcher package.
package mocks

import (
	"context"
	"iter"

	fetcher "github.com/capstone-impacta/engagement-cli/internal/fetcher"
	mock "github.com/stretchr/testify/mock"
)

// MockObjectStore is a mock type for the ObjectStore interface.
type MockObjectStore struct {
	mock.Mock
}

// List provides a mock function with given fields: ctx, prefix
func (_m *MockObjectStore) List(ctx context.Context, prefix string) iter.Seq2[fetcher.ObjectInfo, error] {
	ret := _m.Called(ctx, prefix)

	if len(ret) == 0 {
		panic("no return value specified for List")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) iter.Seq2[fetcher.ObjectInfo, error]); ok {
		return rf(ctx, prefix)
	}
	return ret.Get(0).(iter.Seq2[fetcher.ObjectInfo, error])
}

// Fetch provides a mock function with given fields: ctx, key
func (_m *MockObjectStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	ret := _m.Called(ctx, key)

	if len(ret) == 0 {
		panic("no return value specified for Fetch")
	}

	var r0 []byte
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]byte, error)); ok {
		return rf(ctx, key)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockObjectStore creates a new instance of MockObjectStore. It also registers a testing
// interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockObjectStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockObjectStore {
	m := &MockObjectStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// Objects returns a List result that yields the given keys in order.
func Objects(keys ...string) iter.Seq2[fetcher.ObjectInfo, error] {
	return func(yield func(fetcher.ObjectInfo, error) bool) {
		for _, k := range keys {
			if !yield(fetcher.ObjectInfo{Key: k}, nil) {
				return
			}
		}
	}
}

// ObjectsThenError yields the keys and then a listing failure.
func ObjectsThenError(err error, keys ...string) iter.Seq2[fetcher.ObjectInfo, error] {
	return func(yield func(fetcher.ObjectInfo, error) bool) {
		for _, k := range keys {
			if !yield(fetcher.ObjectInfo{Key: k}, nil) {
				return
			}
		}
		yield(fetcher.ObjectInfo{}, err)
	}
}
