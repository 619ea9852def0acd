// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// PageSize records the standard memory page size (4 KiB). No allocator
// in this package reads it; pool segments are not page-aligned.
var PageSize uintptr = 4096

// SetPageSize updates the package-level PageSize value. It has no
// effect on how segments are allocated.
func SetPageSize(size int) {
	PageSize = uintptr(size)
}

// noCopy is a sentinel used to prevent copying of structs that must
// keep a stable address once embedded (the Runtime and its pools).
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
