// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/headerservice/lib/announce"
	"github.com/bureau-foundation/headerservice/lib/astro"
	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/header"
	"github.com/bureau-foundation/headerservice/lib/lifecycle"
	"github.com/bureau-foundation/headerservice/lib/telemetry"
)

// Announcer uploads a written header and publishes its notification.
// *announce.Handler implements it.
type Announcer interface {
	Announce(ctx context.Context, artifact announce.Artifact) (announce.Notification, error)
}

// Coordinates configures the pointing-derived records.
type Coordinates struct {
	// PerSensor writes the TAN block into every sensor primary instead
	// of the document PRIMARY.
	PerSensor  bool
	Frame      string
	PixelScale float64

	RAKey       string
	DecKey      string
	RotationKey string
}

// Options configures a Manager. Templates, Sensors, Extractor, and
// State are required.
type Options struct {
	// Generator names this service instance in filenames and
	// notifications.
	Generator string

	Templates *header.TemplateSet
	Sensors   []header.Sensor
	Extractor *telemetry.Extractor

	State     lifecycle.OperatingState
	Faults    lifecycle.FaultReporter
	Announcer Announcer

	Site      astro.Site
	TimeScale astro.Scale

	// DefaultExposure is used when no exposure time can be read. The
	// session timeout is the exposure time plus Margin.
	DefaultExposure time.Duration
	Margin          time.Duration
	ExposureKey     string

	// ExposureChannel, when its Device is set, is read directly for
	// the exposure time in ExposureField.
	ExposureChannel telemetry.ChannelID
	ExposureField   string

	// GeometryChannel, when its Device is set, carries the readout
	// parameters applied at end of exposure.
	GeometryChannel telemetry.ChannelID

	Coordinates Coordinates

	OutputDir      string
	Format         header.Format
	HeaderFilename string
	ImageFilename  string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Manager owns every open session. One mutex guards the session table
// and all per-session state, so the start, end, timer, and deactivation
// paths are mutually exclusive.
type Manager struct {
	options Options
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	announcing sync.WaitGroup
}

// New validates options and returns a Manager. The manager registers
// itself to drop every session when the operating state deactivates.
func New(options Options) (*Manager, error) {
	if options.Templates == nil {
		return nil, errors.New("session: templates are required")
	}
	if len(options.Sensors) == 0 {
		return nil, errors.New("session: at least one sensor is required")
	}
	if options.Extractor == nil {
		return nil, errors.New("session: extractor is required")
	}
	if options.State == nil {
		return nil, errors.New("session: operating state is required")
	}
	if options.Format == "" {
		options.Format = header.FormatFITS
	}
	if options.TimeScale == "" {
		options.TimeScale = astro.TAI
	}
	if options.HeaderFilename == "" {
		options.HeaderFilename = "{generator}_header_{image_name}.{format}"
	}
	if options.ImageFilename == "" {
		options.ImageFilename = "{image_name}.fits"
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	manager := &Manager{
		options:  options,
		clock:    options.Clock,
		logger:   options.Logger,
		sessions: make(map[string]*Session),
	}
	options.State.OnDeactivate(manager.Deactivate)
	return manager, nil
}

// HandleStart opens a session for imageName. A session already open
// for the same name is discarded and replaced.
func (m *Manager) HandleStart(imageName string) error {
	if !m.options.State.Active() {
		m.logger.Info("ignoring start signal", "image_name", imageName, "reason", "inactive")
		return ErrInactive
	}
	if imageName == "" {
		return errors.New("start signal without an image name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Deactivation may have landed since the check above. Its hook
	// waits on m.mu, so a second check here cannot be overtaken.
	if !m.options.State.Active() {
		m.logger.Info("ignoring start signal", "image_name", imageName, "reason", "deactivated")
		return ErrInactive
	}

	if previous, ok := m.sessions[imageName]; ok {
		previous.timer.Stop()
		delete(m.sessions, imageName)
		m.logger.Warn("replacing open session",
			"image_name", imageName,
			"session_id", previous.ID.String(),
		)
	}

	doc, err := m.options.Templates.Instantiate(m.options.Sensors)
	if err != nil {
		return fmt.Errorf("instantiating header for %s: %w", imageName, err)
	}

	metadata, _ := m.options.Extractor.Extract(m.options.Extractor.Keys(telemetry.PhaseStart))
	headerName := m.filename(m.options.HeaderFilename, imageName)
	session := &Session{
		ID:         uuid.New(),
		ImageName:  imageName,
		Metadata:   metadata,
		Header:     doc,
		HeaderName: headerName,
		HeaderPath: filepath.Join(m.options.OutputDir, headerName),
		FITSName:   m.filename(m.options.ImageFilename, imageName),
		CreatedAt:  m.clock.Now(),
		Timeout:    m.timeout(metadata),
		state:      Armed,
	}
	m.sessions[imageName] = session
	session.timer = m.clock.AfterFunc(session.Timeout, func() { m.expire(session) })

	m.logger.Info("session started",
		"image_name", imageName,
		"session_id", session.ID.String(),
		"timeout", session.Timeout.String(),
		"collected", len(metadata),
	)
	return nil
}

// maxExposure bounds the exposure time a session timer waits for.
const maxExposure = 12 * time.Hour

// timeout is the exposure time plus the margin. The exposure comes from
// the dedicated channel when configured, then the configured start
// key, then the default.
func (m *Manager) timeout(metadata map[string]any) time.Duration {
	exposure := m.options.DefaultExposure
	if seconds, ok := m.exposureSeconds(metadata); ok && seconds >= 0 {
		if seconds > maxExposure.Seconds() {
			m.logger.Warn("capping exposure time",
				"exposure_seconds", seconds,
				"cap", maxExposure.String(),
			)
			exposure = maxExposure
		} else {
			exposure = time.Duration(seconds * float64(time.Second))
		}
	}
	timeout := exposure + m.options.Margin
	if timeout <= 0 {
		timeout = time.Second
	}
	return timeout
}

func (m *Manager) exposureSeconds(metadata map[string]any) (float64, bool) {
	if m.options.ExposureChannel.Device != "" && m.options.ExposureField != "" {
		sample, err := m.options.Extractor.Fetch(m.options.ExposureChannel)
		if err == nil {
			if value, ok := sample.Field(m.options.ExposureField); ok {
				if seconds, ok := toFloat(value); ok {
					return seconds, true
				}
			}
		}
		m.logger.Warn("cannot read exposure time from channel",
			"channel", m.options.ExposureChannel.String(),
			"field", m.options.ExposureField,
			"error", err,
		)
	}
	if m.options.ExposureKey != "" {
		if value, ok := metadata[m.options.ExposureKey]; ok {
			return toFloat(value)
		}
	}
	return 0, false
}

// expire fires when a session's timer elapses. It acts only if s is
// still the open, armed session for its image.
func (m *Manager) expire(s *Session) {
	m.mu.Lock()
	current, ok := m.sessions[s.ImageName]
	if !ok || current != s || s.state != Armed {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, s.ImageName)
	s.state = TimedOut
	m.mu.Unlock()

	m.logger.Warn("session timed out before end signal",
		"image_name", s.ImageName,
		"session_id", s.ID.String(),
		"timeout", s.Timeout.String(),
	)
	m.reportFault(lifecycle.FaultTimeout,
		fmt.Sprintf("timed out waiting for end signal for %s after %s", s.ImageName, s.Timeout))
}

// HandleEnd closes the session for imageName: it collects the end
// values, writes the header file, and hands it to the announcer in
// the background. The session is removed whatever the outcome.
func (m *Manager) HandleEnd(imageName string) error {
	if !m.options.State.Active() {
		m.logger.Info("ignoring end signal", "image_name", imageName, "reason", "inactive")
		return ErrInactive
	}

	m.mu.Lock()
	if !m.options.State.Active() {
		m.mu.Unlock()
		m.logger.Info("ignoring end signal", "image_name", imageName, "reason", "deactivated")
		return ErrInactive
	}
	session, ok := m.sessions[imageName]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("ignoring end signal", "image_name", imageName, "error", ErrOrphanEndSignal)
		return fmt.Errorf("%w: %s", ErrOrphanEndSignal, imageName)
	}
	session.timer.Stop()
	delete(m.sessions, imageName)
	session.state = Closing

	artifact, err := m.close(session)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("cannot write header",
			"image_name", imageName,
			"session_id", session.ID.String(),
			"error", err,
		)
		m.reportFault(lifecycle.FaultWrite, fmt.Sprintf("failed to write header for %s: %v", imageName, err))
		return err
	}
	m.logger.Info("header written",
		"image_name", imageName,
		"session_id", session.ID.String(),
		"path", session.HeaderPath,
		"byte_size", len(artifact.Data),
	)

	if m.options.Announcer != nil {
		m.announcing.Add(1)
		go m.announce(artifact)
	}
	return nil
}

// close builds and writes the header. Called with m.mu held.
func (m *Manager) close(s *Session) (announce.Artifact, error) {
	end, _ := m.options.Extractor.Extract(m.options.Extractor.Keys(telemetry.PhaseEnd))
	for key, value := range end {
		s.Metadata[key] = value
	}

	observed := m.derive(s)
	if err := m.loadGeometry(s); err != nil {
		m.logger.Warn("keeping default geometry",
			"image_name", s.ImageName,
			"error", err,
		)
	}
	m.write(s)

	data, err := header.Encode(s.Header, m.options.Format)
	if err != nil {
		return announce.Artifact{}, err
	}
	if err := header.WriteFile(s.HeaderPath, data); err != nil {
		return announce.Artifact{}, err
	}
	s.CompletedOK = true

	return announce.Artifact{
		ImageName: s.ImageName,
		FileName:  s.HeaderName,
		Path:      s.HeaderPath,
		Data:      data,
		Format:    m.options.Format,
		Time:      observed,
		SessionID: s.ID.String(),
	}, nil
}

func (m *Manager) announce(artifact announce.Artifact) {
	defer m.announcing.Done()
	if _, err := m.options.Announcer.Announce(context.Background(), artifact); err != nil {
		m.logger.Error("cannot announce header",
			"image_name", artifact.ImageName,
			"session_id", artifact.SessionID,
			"error", err,
		)
		m.reportFault(lifecycle.FaultAnnounce, fmt.Sprintf("failed to announce header for %s: %v", artifact.ImageName, err))
	}
}

func (m *Manager) reportFault(code int, report string) {
	if m.options.Faults != nil {
		m.options.Faults.ReportFault(code, report)
	}
}

// Deactivate stops every timer and drops every open session.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, session := range m.sessions {
		session.timer.Stop()
		session.state = Idle
		delete(m.sessions, name)
		m.logger.Info("dropping open session",
			"image_name", name,
			"session_id", session.ID.String(),
		)
	}
}

// Wait blocks until every in-flight announcement has finished.
func (m *Manager) Wait() {
	m.announcing.Wait()
}

// Open returns the names of the open sessions, sorted.
func (m *Manager) Open() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns a copy of the open session for imageName.
func (m *Manager) Lookup(imageName string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[imageName]
	if !ok {
		return Session{}, false
	}
	return session.snapshot(), true
}

// filename expands {image_name}, {generator}, and {format} in pattern.
func (m *Manager) filename(pattern, imageName string) string {
	return strings.NewReplacer(
		"{image_name}", imageName,
		"{generator}", m.options.Generator,
		"{format}", string(m.options.Format),
	).Replace(pattern)
}
