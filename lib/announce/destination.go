// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package announce

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/bureau-foundation/headerservice/lib/header"
)

// Destination makes a written artifact reachable.
type Destination interface {
	Deliver(ctx context.Context, artifact Artifact) (Delivery, error)
}

// Delivery is where an artifact went and the exact bytes a consumer
// fetching URL receives. Notifications size and checksum Data.
type Delivery struct {
	URL  string
	Data []byte
}

// WebDestination serves headers from the output directory over HTTP.
// The file is already on disk, so delivery only formats the URL.
//
// URLFormat may contain {ip_address}, {port} (or {port_number}), and
// {filename}:
//
//	http://{ip_address}:{port}/{filename}
type WebDestination struct {
	URLFormat string
	Address   string
	Port      int
}

// Deliver implements [Destination].
func (d *WebDestination) Deliver(ctx context.Context, artifact Artifact) (Delivery, error) {
	if artifact.FileName == "" {
		return Delivery{}, fmt.Errorf("web destination: artifact %s has no file name", artifact.ImageName)
	}
	port := strconv.Itoa(d.Port)
	replacer := strings.NewReplacer(
		"{ip_address}", d.Address,
		"{port}", port,
		"{port_number}", port,
		"{filename}", artifact.FileName,
		"{filename_HDR}", artifact.FileName,
	)
	return Delivery{URL: replacer.Replace(d.URLFormat), Data: artifact.Data}, nil
}

// ObjectStoreDestination uploads the artifact to an object store under
//
//	{generator}/{yyyy}/{mm}/{dd}/{generator}-{imageName}.{format}[.zst|.lz4]
//
// and returns s3://{bucket}/{key}. The date is the artifact's
// observation time in UTC. With compression set, the delivered data is
// the compressed object.
type ObjectStoreDestination struct {
	Store       ObjectStore
	Generator   string
	Compression Compression
}

// Key returns the object key for artifact.
func (d *ObjectStoreDestination) Key(artifact Artifact) string {
	date := artifact.Time.UTC()
	return path.Join(
		d.Generator,
		fmt.Sprintf("%04d", date.Year()),
		fmt.Sprintf("%02d", int(date.Month())),
		fmt.Sprintf("%02d", date.Day()),
		fmt.Sprintf("%s-%s.%s%s", d.Generator, artifact.ImageName, artifact.Format, d.Compression.Suffix()),
	)
}

// Deliver implements [Destination].
func (d *ObjectStoreDestination) Deliver(ctx context.Context, artifact Artifact) (Delivery, error) {
	payload, err := Compress(artifact.Data, d.Compression)
	if err != nil {
		return Delivery{}, err
	}
	key := d.Key(artifact)
	if err := d.Store.Put(ctx, key, payload, contentType(artifact.Format, d.Compression)); err != nil {
		return Delivery{}, err
	}
	return Delivery{URL: "s3://" + d.Store.Bucket() + "/" + key, Data: payload}, nil
}

func contentType(format header.Format, compression Compression) string {
	switch compression {
	case CompressionZstd:
		return "application/zstd"
	case CompressionLZ4:
		return "application/x-lz4"
	}
	if format == header.FormatYAML {
		return "application/yaml"
	}
	return "application/fits"
}
