// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tarn

import (
	"errors"
	"io"
)

var (
	ErrIntRepresentationTooLong = errors.New("integer representation too long")
	ErrIntegerTooLarge          = errors.New("integer too large")
)

const (
	continuationBit = 0x80
	payloadMask     = 0x7f
	signBit         = 0x40
)

// readUleb128 decodes an unsigned LEB128 integer of at most maxBytes
// encoded bytes.
func readUleb128(r io.ByteReader, maxBytes int) (uint64, error) {
	var result uint64
	var shift uint
	bytesRead := 0

	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		bytesRead++
		if bytesRead > maxBytes {
			return 0, ErrIntRepresentationTooLong
		}

		result |= uint64(b&payloadMask) << shift
		if b&continuationBit == 0 {
			return result, nil
		}
		shift += 7
	}
}

// readSleb128 decodes a signed LEB128 integer of at most maxBytes encoded
// bytes. The tenth byte of a 64-bit encoding holds only the sign bit; its
// remaining payload bits must agree with the sign or the value would not
// fit.
func readSleb128(r io.ByteReader, maxBytes int) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	bytesRead := 0

	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		bytesRead++
		if bytesRead > maxBytes {
			return 0, ErrIntRepresentationTooLong
		}

		if bytesRead == 10 {
			sign := b & 1
			remainingBits := (b & 0x7e) >> 1
			if sign == 0 && remainingBits != 0 {
				return 0, ErrIntegerTooLarge
			} else if sign == 1 && remainingBits != 0x3f {
				return 0, ErrIntegerTooLarge
			}
		}

		result |= int64(b&payloadMask) << shift
		if b&continuationBit == 0 {
			break
		}
		shift += 7
	}

	if b&signBit != 0 && shift+7 < 64 {
		result |= -1 << (shift + 7)
	}

	return result, nil
}
