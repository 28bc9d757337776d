// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used when sizing capture
frames and spectral segments.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Suggest a segment length when the configured one is rejected
	segment := bitint.NextPowerOfTwo(300) // Returns 512

	// Verify a segment length before building an FFT plan for it
	isValid := bitint.IsPowerOfTwo(segment)

The subtraction (size-1) in NextPowerOfTwo is what keeps exact powers of 2
unchanged: for 8, bits.Len(7) is 3 and 1<<3 is 8 again, whereas bits.Len(8)
would be 4 and double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Examples:
//
//	Input  Output  Explanation
//	4      4      Already power of 2 (preserved)
//	5      8      Next power after 5
//	0      1      Handle zero case
//	-1     1      Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n & (n-1) clears it to zero.
//
// Examples:
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
//	-8     false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
