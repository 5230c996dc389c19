// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

import "strconv"

// AppendChunk appends the wire form of a chunk to dst: the decimal payload
// length, the separator, then the payload.
func AppendChunk(dst []byte, sep string, payload []byte) []byte {
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = append(dst, sep...)
	return append(dst, payload...)
}

// AppendFrame appends token followed by a chunk, e.g. "DATA5:abcde".
func AppendFrame(dst []byte, token, sep string, payload []byte) []byte {
	dst = append(dst, token...)
	return AppendChunk(dst, sep, payload)
}
