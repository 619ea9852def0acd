// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package corevm implements the memory core of a dynamic language
// runtime: the value-cell layout, the small-object pool allocator, the
// tracing garbage collector, the lifetime-protection registry, and the
// data stack that underpins evaluation.
//
// These subsystems are tightly coupled by design. Cells embed
// references to managed objects; managed objects are allocated from
// pools; the collector walks cells to mark pools; the data stack and
// the lifeguard registry are collector roots. corevm does not include
// an evaluator or parsers for specific datatypes — only the hook
// points a collector must traverse are exposed.
//
// # Lifecycle
//
//	rt, err := corevm.Startup(corevm.WithPoolScale(4))
//	if err != nil {
//		// ...
//	}
//	defer rt.Shutdown()
//
//	s, err := rt.AllocStub(corevm.FlavorArray)
//	rt.Manage(s)
//	rt.Guard.PushStub(s)
//	idx, err := rt.Stack.Push(corevm.CellFromStub(s))
//	swept, err := rt.Recycle()
//
// # Concurrency
//
// corevm is single-threaded cooperative, per its specification: no
// operation may be invoked from more than one goroutine against the
// same Runtime, and the collector is not reentrant (a reentrant
// Recycle call is coalesced into a deferred request rather than
// nested).
//
// # Environment variables
//
// Startup consults two environment variables, mirroring the
// specification's external interface:
//
//   - RECYCLE_TORTURE=1 sets the depletion ballast to zero, so
//     Collector.NoteAlloc reports a collection as due on every call.
//     No allocation path calls NoteAlloc; collections still run only
//     when Recycle is called.
//   - ALWAYS_MALLOC=1 disables pool allocation, routing every stub and
//     pairing through the heap allocator directly (useful under an
//     external memory checker).
package corevm
