// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import "errors"

// Error kinds the memory core raises to its caller (spec.md §7). The
// core never panics out of an allocation path for conditions a caller
// is expected to handle; it returns one of these sentinels instead.
// Collector-detected invariant violations are a different matter —
// see Runtime.Checked — and panic even in release builds, since they
// indicate the core itself is broken rather than a caller mistake.
var (
	// ErrOutOfMemory is returned when the heap allocator's quota would
	// be exceeded, or the underlying allocation fails.
	ErrOutOfMemory = errors.New("corevm: out of memory")

	// ErrFrozen is the error kind for a mutation attempted against a
	// frozen (shallow or deep) or protected object. No operation in
	// this package returns it: the core records freeze and protect
	// state (see Protect) but performs no mutation checks against it.
	ErrFrozen = errors.New("corevm: value is locked")

	// ErrProtectedKey is the error kind for an assignment to a
	// protected variable slot. No operation in this package returns it.
	ErrProtectedKey = errors.New("corevm: protected key")

	// ErrIndexOutOfRange is returned when an expansion delta exceeds
	// the 2 GiB limit, or an index is otherwise out of bounds.
	ErrIndexOutOfRange = errors.New("corevm: index out of range")

	// ErrStackOverflow is returned when data-stack expansion would
	// exceed the configured stack cap.
	ErrStackOverflow = errors.New("corevm: data stack overflow")

	// ErrLocked is returned when expand_at targets a fixed-size stub
	// that rejects expansion.
	ErrLocked = errors.New("corevm: buffer is locked")

	// ErrLifeguardOrder is returned by Lifeguard.DropStub, DropCell and
	// DropPairing when the registry is empty, and additionally in
	// checked builds when the dropped pointer is not the most recently
	// pushed entry.
	ErrLifeguardOrder = errors.New("corevm: lifeguard drop out of order")

	// ErrInvalidRoot is returned in checked builds when Lifeguard.PushStub
	// is given a stub that is not managed and live, PushPairing a
	// pairing that is not managed, or PushCell a cell that is already
	// marked or that the caller reports as living inside an array or
	// pairing. FreeUnmanaged and DiminishUnmanaged return it in every
	// build when given a managed stub.
	ErrInvalidRoot = errors.New("corevm: invalid lifeguard entry")
)
