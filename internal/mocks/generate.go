// Package mocks provides mock implementations for testing the login flow.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the port interfaces. The mocks are generated using go:generate
// directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockStore := mocks.NewMockUserStore(ctrl)
//	mockStore.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
package mocks

// Generate mock for UserStore interface from internal/ports.
// This creates MockUserStore with methods for all UserStore interface methods:
// GetByEmail, Create
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_store_mock.go github.com/quillhq/entra-sso/internal/ports UserStore
