// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// headerctl inspects the files the header service produces.
//
//	headerctl show <file>                                 print every record
//	headerctl convert --to yaml|fits <in> <out>           re-encode a header
//	headerctl verify --checksum md5|blake3 <file> <hex>   check an announced digest
//	headerctl notifications <file>                        list a notification stream
//
// Header inputs may be FITS or YAML, optionally compressed with zstd
// (.zst) or LZ4 (.lz4) as object-store uploads are. The format is
// detected from the content; compression from the file name.
package main
