// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package announce delivers written headers and tells downstream
// consumers where to find them.
//
// A [Handler] takes an [Artifact] (the serialized bytes of one header),
// makes it reachable through a [Destination], and publishes a
// [Notification] through a [Publisher]. The notification's size and
// checksum describe the bytes at its URL, so a compressed upload is
// sized and summed after compression.
//
// Destinations:
//
//   - [WebDestination]: the file is served from the output directory;
//     the URL is formatted from the host, port, and file name.
//   - [ObjectStoreDestination]: the bytes are uploaded to an
//     [ObjectStore] ([S3Store] via minio-go, or [DirStore] for mock
//     mode), optionally zstd or lz4 compressed.
//
// Publishers fan the notification out to the outbound transport topic
// ([BusPublisher]), a CBOR notification stream ([StreamPublisher]), and
// the log ([LogPublisher]); [MultiPublisher] combines them, which is how
// the optional duplicate for the engineering database is sent.
//
// Delivery is retried [DefaultRetries] times with a fixed delay on the
// injected clock. Exhausting the retries returns [ErrUploadFailed]; the
// caller reports it for the one image and carries on.
package announce
