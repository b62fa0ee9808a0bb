package wasm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	errBadResult  = errors.New("unexpected result arity")
	errOutOfRange = errors.New("out of range")
)

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// MemoryAccessError occurs when memory operations fail
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access failed (op=%s, addr=%d, len=%d): %v",
		e.Operation, e.Address, e.Length, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

// InstanceLimitError occurs when MaxInstances instances are already live
type InstanceLimitError struct {
	ModuleName string
	Limit      int
}

func (e *InstanceLimitError) Error() string {
	return fmt.Sprintf("cannot instantiate module '%s': %d instances already running",
		e.ModuleName, e.Limit)
}

// GuestError carries an error reported by the guest in its response
type GuestError struct {
	ModuleName string
	Message    string
}

func (e *GuestError) Error() string {
	return fmt.Sprintf("module '%s' reported: %s", e.ModuleName, e.Message)
}

// TimeoutError occurs when Wasm execution times out
type TimeoutError struct {
	ModuleName string
	Duration   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Wasm execution of '%s' timed out after %v", e.ModuleName, e.Duration)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// SignatureMismatchError occurs when a guest export has the wrong type.
type SignatureMismatchError struct {
	ModuleName   string
	FunctionName string
	Want         string
	Got          string
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("function '%s' in module '%s' has signature %s, want %s",
		e.FunctionName, e.ModuleName, e.Got, e.Want)
}
