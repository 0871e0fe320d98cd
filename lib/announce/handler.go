// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/header"
)

// ErrUploadFailed means the artifact could not be delivered after every
// retry. It affects only the one image.
var ErrUploadFailed = errors.New("upload failed")

// DefaultRetries is the number of extra delivery attempts.
const DefaultRetries = 2

// Artifact is a written header ready to be announced.
type Artifact struct {
	ImageName string
	// FileName is the base name of the written file.
	FileName string
	// Path is where the file was written locally.
	Path   string
	Data   []byte
	Format header.Format
	// Time is the observation time; it dates object-store keys.
	Time time.Time
	// SessionID correlates the notification with the session's logs.
	SessionID string
}

// Handler delivers artifacts and publishes their notifications.
type Handler struct {
	Generator   string
	Destination Destination
	Publisher   Publisher
	Algorithm   Algorithm

	// Retries is the number of extra attempts after a failed delivery.
	// Negative means none.
	Retries    int
	RetryDelay time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Announce delivers the artifact (retrying per the handler's policy),
// checksums the delivered bytes, and publishes the notification. A delivery that
// fails every attempt returns an error wrapping [ErrUploadFailed] and
// publishes nothing.
func (h *Handler) Announce(ctx context.Context, artifact Artifact) (Notification, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := h.Clock
	if clk == nil {
		clk = clock.Real()
	}

	if _, err := ParseAlgorithm(string(h.Algorithm)); err != nil {
		return Notification{}, err
	}

	attempts := h.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	var delivery Delivery
	var deliverErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		delivery, deliverErr = h.Destination.Deliver(ctx, artifact)
		if deliverErr == nil {
			break
		}
		logger.Warn("header delivery failed",
			"image_name", artifact.ImageName,
			"attempt", attempt,
			"attempts", attempts,
			"error", deliverErr,
		)
		if attempt == attempts {
			break
		}
		select {
		case <-clk.After(h.RetryDelay):
		case <-ctx.Done():
			return Notification{}, fmt.Errorf("%w: %s: %w", ErrUploadFailed, artifact.ImageName, ctx.Err())
		}
	}
	if deliverErr != nil {
		return Notification{}, fmt.Errorf("%w: %s after %d attempts: %w", ErrUploadFailed, artifact.ImageName, attempts, deliverErr)
	}

	checksum, err := Checksum(delivery.Data, h.Algorithm)
	if err != nil {
		return Notification{}, err
	}
	notification := Notification{
		ByteSize:  int64(len(delivery.Data)),
		CheckSum:  checksum,
		Generator: h.Generator,
		MimeType:  artifact.Format.MimeType(),
		URL:       delivery.URL,
		ID:        artifact.ImageName,
		Version:   1,
		Priority:  1,
		Trace:     artifact.SessionID,
	}
	if h.Publisher != nil {
		if err := h.Publisher.Publish(ctx, notification); err != nil {
			return notification, fmt.Errorf("publishing notification for %s: %w", artifact.ImageName, err)
		}
	}
	return notification, nil
}
