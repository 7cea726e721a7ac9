package mocks

import (
	"context"
	"time"

	"reward-settler/core/ledger"

	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of ledger.Client
type Client struct {
	mock.Mock
}

func (m *Client) Submit(ctx context.Context, recipient string, amount int64, memo string) (string, error) {
	args := m.Called(ctx, recipient, amount, memo)
	return args.String(0), args.Error(1)
}

func (m *Client) GetByReference(ctx context.Context, ref string) (*ledger.Transaction, error) {
	args := m.Called(ctx, ref)
	if tx, ok := args.Get(0).(*ledger.Transaction); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) FindByIdentity(ctx context.Context, recipient string, amount int64, memo string, window time.Duration) ([]ledger.Transaction, error) {
	args := m.Called(ctx, recipient, amount, memo, window)
	if txs, ok := args.Get(0).([]ledger.Transaction); ok {
		return txs, args.Error(1)
	}
	return nil, args.Error(1)
}
