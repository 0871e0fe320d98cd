// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR encoding configuration shared by the
// header service.
//
// The header documents themselves are written as FITS header blocks or
// flat YAML (see lib/header). CBOR is the wire format for the service's
// own outbound records: the notification stream produced by
// announce.StreamPublisher and read back by "headerctl notifications".
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same notification always produces identical bytes:
//
//	data, err := codec.Marshal(notification)
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Types carry `json` struct tags; fxamacker/cbor falls back to them when
// no `cbor` tag is present, so a single tag set names the fields in both
// the CBOR stream and the JSON log output.
package codec
