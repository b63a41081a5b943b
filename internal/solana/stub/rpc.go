// Package stub provides in-memory test doubles for the solana package.
package stub

import (
	"context"
	"sync"

	"momentum-engine/internal/solana"
)

// RPCClient implements solana.RPCClient for testing. Zero value is usable;
// populate the maps and error fields to script behavior.
type RPCClient struct {
	mu sync.Mutex

	// Accounts maps pubkey to account info returned by GetAccountInfo.
	Accounts map[string]*solana.AccountInfo
	// Statuses maps signature to its status.
	Statuses map[string]*solana.SignatureStatus
	// Slot is returned by GetSlot.
	Slot int64

	// SendSignature is returned by SendTransaction when SendErr is nil.
	SendSignature string
	SendErr       error
	StatusErr     error
	AccountErr    error

	SendCalls    int
	StatusCalls  int
	AccountCalls int
}

// NewRPCClient creates an empty stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[string]*solana.AccountInfo),
		Statuses: make(map[string]*solana.SignatureStatus),
	}
}

// SendTransaction returns the scripted signature or error.
func (c *RPCClient) SendTransaction(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SendCalls++
	if c.SendErr != nil {
		return "", c.SendErr
	}
	return c.SendSignature, nil
}

// GetSignatureStatuses returns scripted statuses, nil for unknown signatures.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusCalls++
	if c.StatusErr != nil {
		return nil, c.StatusErr
	}
	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		statuses[i] = c.Statuses[sig]
	}
	return statuses, nil
}

// GetAccountInfo returns the scripted account, nil if absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AccountCalls++
	if c.AccountErr != nil {
		return nil, c.AccountErr
	}
	return c.Accounts[pubkey], nil
}

// GetSlot returns the scripted slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Slot, nil
}

// SetAccount scripts an account read.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// SetStatus scripts a signature status.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}
