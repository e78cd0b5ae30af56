// Package chaintest provides in-memory chain capabilities for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"vault-solver/pkg/chain"
)

// Handler answers one read
type Handler func(ctx context.Context, call chain.Call) ([]interface{}, error)

// Reader answers reads from registered handlers and records every call
type Reader struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []chain.Call
}

// NewReader returns an empty Reader
func NewReader() *Reader {
	return &Reader{handlers: make(map[string]Handler)}
}

func key(to common.Address, method string) string {
	return to.Hex() + "." + method
}

// On registers a handler for a contract method
func (r *Reader) On(to common.Address, method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key(to, method)] = h
}

// Returns makes a contract method return fixed values
func (r *Reader) Returns(to common.Address, method string, values ...interface{}) {
	r.On(to, method, func(context.Context, chain.Call) ([]interface{}, error) {
		return values, nil
	})
}

// ReturnsBig makes a contract method return a single uint256
func (r *Reader) ReturnsBig(to common.Address, method string, value int64) {
	r.Returns(to, method, big.NewInt(value))
}

// Fails makes a contract method fail with err
func (r *Reader) Fails(to common.Address, method string, err error) {
	r.On(to, method, func(context.Context, chain.Call) ([]interface{}, error) {
		return nil, err
	})
}

// Read implements chain.Reader
func (r *Reader) Read(ctx context.Context, call chain.Call) ([]interface{}, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	h, ok := r.handlers[key(call.To, call.Method)]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("chaintest: no handler for %s", call)
	}
	return h(ctx, call)
}

// Count returns how many times a contract method was read
func (r *Reader) Count(to common.Address, method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, call := range r.calls {
		if call.To == to && call.Method == method {
			n++
		}
	}
	return n
}

// Calls returns every recorded read
func (r *Reader) Calls() []chain.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chain.Call(nil), r.calls...)
}

// Writer records writes and answers with a configurable receipt
type Writer struct {
	mu     sync.Mutex
	calls  []chain.Call
	status uint64
	err    error
	hook   func(call chain.Call)
	nonce  int64
}

// NewWriter returns a Writer whose writes succeed
func NewWriter() *Writer {
	return &Writer{status: chain.ReceiptSuccess}
}

// Revert makes subsequent writes mine with a reverted status
func (w *Writer) Revert() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status, w.err = chain.ReceiptReverted, nil
}

// Fail makes subsequent writes return err, as a rejected signature would
func (w *Writer) Fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

// Succeed makes subsequent writes succeed again
func (w *Writer) Succeed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status, w.err = chain.ReceiptSuccess, nil
}

// OnWrite registers a hook run synchronously inside every write
func (w *Writer) OnWrite(hook func(call chain.Call)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hook = hook
}

// Write implements chain.Writer
func (w *Writer) Write(_ context.Context, call chain.Call) (*chain.Receipt, error) {
	w.mu.Lock()
	w.calls = append(w.calls, call)
	w.nonce++
	status, err, hook, nonce := w.status, w.err, w.hook, w.nonce
	w.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}
	return &chain.Receipt{
		Hash:        common.BigToHash(big.NewInt(nonce)),
		BlockNumber: uint64(nonce),
		Status:      status,
	}, nil
}

// Calls returns every recorded write
func (w *Writer) Calls() []chain.Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]chain.Call(nil), w.calls...)
}

// Methods returns the method names of every recorded write, in order
func (w *Writer) Methods() []string {
	calls := w.Calls()
	methods := make([]string, len(calls))
	for i, call := range calls {
		methods[i] = call.Method
	}
	return methods
}

// Session is a fixed wallet session
type Session struct {
	Address   common.Address
	Connected bool
}

// Account implements chain.Session
func (s *Session) Account() (common.Address, bool) {
	return s.Address, s.Connected
}
