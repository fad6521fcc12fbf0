package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/mock"
)

type MockProcessorClient struct {
	mock.Mock
}

func (m *MockProcessorClient) RegisterCard(reg ProcessorRegistration) (*ProcessorResult, error) {
	args := m.Called(reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessorResult), args.Error(1)
}

// requestWithPrincipal builds a request carrying the context values the auth
// middleware would have set.
func requestWithPrincipal(method, target string, body io.Reader, id int, accountType string) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := context.WithValue(r.Context(), "userID", id)
	ctx = context.WithValue(ctx, "accountType", accountType)
	return r.WithContext(ctx)
}
