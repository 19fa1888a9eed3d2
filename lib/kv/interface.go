package kv

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Factory is a function type that creates the durable store used by a session.
// This is used to abstract the creation of the store from the caches built on top of it.
type Factory func() (IKVStore, error)

// KeyValue is a single result of a MultiGet call.
// Found is false if no value exists for the key.
type KeyValue struct {
	Key   string
	Value []byte
	Found bool
}

// IKVStore is the persistent string-keyed byte store every cache in this module is built on.
// Write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
type IKVStore interface {
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, found bool, err error)
	// Set inserts or updates a key–value pair.
	Set(key string, value []byte) (err error)
	// Remove deletes a key–value pair. Removing a missing key is not an error.
	Remove(key string) (err error)
	// Keys returns all keys currently present in the store, in no particular order.
	Keys() (keys []string, err error)
	// KeysWithPrefix returns all keys starting with prefix, in no particular order.
	KeysWithPrefix(prefix string) (keys []string, err error)
	// MultiGet returns one KeyValue per requested key, in the order of the request.
	MultiGet(keys []string) (values []KeyValue, err error)
	// Close releases the resources of the store. The store must not be used afterwards.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code.
// This allows errors.Is(err, kv.ErrClosed) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new KVStoreError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

var (
	// ErrClosed matches every error returned by a store after Close was called.
	ErrClosed = &Error{Code: RetCClosed}
	// ErrInvalidKey matches every error caused by an unusable key.
	ErrInvalidKey = &Error{Code: RetCInvalidKey}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                // 1: Operation failed due to an internal (I/O) error.
	RetCClosed                       // 2: The store was already closed.
	RetCInvalidKey                   // 3: The key can not be stored.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCClosed:
		return "Closed"
	case RetCInvalidKey:
		return "InvalidKey"
	default:
		return "Unknown"
	}
}
