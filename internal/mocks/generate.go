// Package mocks provides mock implementations for testing the jobforge queue engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockStore := mocks.NewMockJobStore(ctrl)
//	mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobStore interface from internal/core package.
// This creates MockJobStore with methods for all JobStore interface methods:
// Create, GetByID, ListByOwner, ClaimNext, FinalizeCancelledQueued, RequeueExpired,
// RequeueAllRunning, Release, UpdateProgress, RequestCancel, MarkCancelled,
// Complete, Fail, Stats, WaitForNotification
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_store_mock.go github.com/openscale/jobforge/internal/core JobStore

// Generate mock for HandlerCatalog interface from internal/core package.
// This creates MockHandlerCatalog with methods for all HandlerCatalog interface methods:
// Has, Types
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=handler_catalog_mock.go github.com/openscale/jobforge/internal/core HandlerCatalog

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/openscale/jobforge/internal/core CacheRepository
