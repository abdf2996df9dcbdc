// Package mocks provides mock implementations for testing the emailing services.
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
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, FindByMessageID, ClaimProcessing, MarkSent, MarkFailed, ListScheduledIDs, WaitForNotification
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/wisestep/emailing/internal/core JobRepository

// Generate mock for CredentialRepository interface from internal/core package.
// This creates MockCredentialRepository with methods for all CredentialRepository interface methods:
// GetByAccount, Upsert, UpdateTokens, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=credential_repository_mock.go github.com/wisestep/emailing/internal/core CredentialRepository

// Generate mock for DeliveryEventRepository interface from internal/core package.
// This creates MockDeliveryEventRepository with methods for all DeliveryEventRepository interface methods:
// Insert, ListByJob
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=delivery_event_repository_mock.go github.com/wisestep/emailing/internal/core DeliveryEventRepository
