package server

import "github.com/stretchr/testify/mock"

type MockCredentialValidator struct {
	mock.Mock
}

func (m *MockCredentialValidator) Validate(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Exists(fileId, ext string) bool {
	args := m.Called(fileId, ext)
	return args.Bool(0)
}
