// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package announce

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Algorithm names a checksum algorithm for the checkSum field.
type Algorithm string

const (
	// MD5 is what downstream archivers verify; it is the default.
	MD5 Algorithm = "md5"

	// BLAKE3 is available for sinks that verify with it.
	BLAKE3 Algorithm = "blake3"
)

// ParseAlgorithm accepts "md5" (or empty) and "blake3".
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "md5":
		return MD5, nil
	case "blake3":
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unknown checksum algorithm %q (want md5 or blake3)", name)
	}
}

// Checksum returns the lower-case hex digest of data.
func Checksum(data []byte, algorithm Algorithm) (string, error) {
	switch algorithm {
	case MD5, "":
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unknown checksum algorithm %q", algorithm)
	}
}
