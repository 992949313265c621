// service.go: Single serialized access point for cryptographic operations.
//
// Every operation request passes through the Service, which guarantees
// at-most-one in-flight mutation of any given key's state: operations naming
// the same key identifier run one at a time, operations on distinct keys
// proceed concurrently. Failures come back as OperationResult values; the
// only error Perform itself returns is a programming-contract violation.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"context"
	"crypto/rand"
	"io"
	"sync"

	"github.com/agilira/go-timecache"
)

// Service is the orchestrating access point. Construct with NewService;
// the zero value is not usable.
type Service struct {
	factory *CommandFactory
	audit   Logger

	mu       sync.Mutex
	keyLocks map[string]*keyLock
}

// keyLock serializes operations on one key identifier. The reference count
// lets the lock be dropped from the table once no operation holds or awaits
// it, so the table does not grow with the identifier space.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	profile SecurityProfile
	random  io.Reader
	audit   Logger
}

// WithProfile selects the security profile; the default is high-security.
func WithProfile(profile SecurityProfile) ServiceOption {
	return func(c *serviceConfig) { c.profile = profile }
}

// WithRandom injects the randomness source; the default is crypto/rand.
func WithRandom(random io.Reader) ServiceOption {
	return func(c *serviceConfig) { c.random = random }
}

// WithAuditLogger injects the audit sink; the default discards events.
func WithAuditLogger(audit Logger) ServiceOption {
	return func(c *serviceConfig) { c.audit = audit }
}

// NewService creates a Service over the given storage boundary.
func NewService(store KeyStore, opts ...ServiceOption) *Service {
	cfg := serviceConfig{
		profile: ProfileHighSecurity,
		random:  rand.Reader,
		audit:   NoopLogger{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		factory:  NewCommandFactory(store, cfg.random, cfg.profile),
		audit:    cfg.audit,
		keyLocks: make(map[string]*keyLock),
	}
}

// Perform executes one operation and reports its outcome.
//
// Validation failures, primitive failures and storage failures all come back
// inside the OperationResult; the returned error is non-nil only for a
// programming-contract violation such as an undefined operation kind, which
// callers must treat as fatal. The context covers the storage and randomness
// boundaries; cryptographic computation itself does not suspend.
func (s *Service) Perform(ctx context.Context, req *Request) (*OperationResult, error) {
	if req == nil {
		return nil, newError(ErrInternal, ErrCodeInternal, "nil operation request")
	}
	if !req.Kind.Valid() {
		return nil, newError(ErrInternal, ErrCodeInternal,
			"undefined operation kind \""+string(req.Kind)+"\"",
			Public("operation", string(req.Kind)))
	}

	command, err := s.factory.MakeCommand(req)
	if err != nil {
		return nil, err
	}

	if req.KeyID != "" {
		unlock := s.lockKey(req.KeyID)
		defer unlock()
	}

	result := s.run(ctx, command)
	s.report(req, result)
	return result, nil
}

// PerformAsync executes the operation on its own goroutine and delivers the
// outcome on the returned channel. A caller may abandon the channel:
// in-flight work still completes, its result is discarded, and no partial
// state persists because buffers are scoped to the single operation.
// Contract violations are delivered as a failed result carrying ErrInternal.
func (s *Service) PerformAsync(ctx context.Context, req *Request) <-chan *OperationResult {
	out := make(chan *OperationResult, 1)
	go func() {
		defer close(out)
		result, err := s.Perform(ctx, req)
		if err != nil {
			kind := OperationKind("")
			if req != nil {
				kind = req.Kind
			}
			result = &OperationResult{Kind: kind, Err: err}
		}
		out <- result
	}()
	return out
}

// run drives one command through its validate/execute lifecycle.
func (s *Service) run(ctx context.Context, command Command) *OperationResult {
	if err := command.Validate(); err != nil {
		return &OperationResult{Kind: command.Kind(), Err: err}
	}
	return command.Execute(ctx)
}

// lockKey acquires the per-key mutex, creating the entry on first use.
// The returned function releases the mutex and drops the entry when no one
// else holds or awaits it.
func (s *Service) lockKey(keyID string) func() {
	s.mu.Lock()
	lock, exists := s.keyLocks[keyID]
	if !exists {
		lock = &keyLock{}
		s.keyLocks[keyID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.keyLocks, keyID)
		}
		s.mu.Unlock()
	}
}

// report emits the audit event for a completed operation. Events carry the
// operation kind and key identifier (public-safe) plus whatever classified
// context the failure attached; secret payloads never appear.
func (s *Service) report(req *Request, result *OperationResult) {
	event := Event{
		Timestamp: timecache.CachedTime().UTC(),
		Action:    string(req.Kind),
		KeyID:     req.KeyID,
		Success:   result.Succeeded(),
	}
	if result.Err != nil {
		event.Error = result.Err.Error()
		event.Fields = ErrorFields(result.Err)
	}
	s.audit.Log(event)
}
