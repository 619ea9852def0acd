// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// Buffer size tiers follow a power-of-4 progression starting at
// 32 bytes; sizeclass.go's finer classes below BufferSizePico and the
// teacher's own tiers above it together seed the byte-class pool
// table (spec.md §4.2).
const (
	BufferSizePico   = 1 << 5  // 32 B
	BufferSizeNano   = 1 << 7  // 128 B
	BufferSizeMicro  = 1 << 9  // 512 B
	BufferSizeSmall  = 1 << 11 // 2 KiB
	BufferSizeMedium = 1 << 13 // 8 KiB
	BufferSizeBig    = 1 << 15 // 32 KiB
	BufferSizeLarge  = 1 << 17 // 128 KiB
	BufferSizeGreat  = 1 << 19 // 512 KiB
)
