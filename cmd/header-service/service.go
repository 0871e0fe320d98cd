// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bureau-foundation/headerservice/lib/announce"
	"github.com/bureau-foundation/headerservice/lib/astro"
	"github.com/bureau-foundation/headerservice/lib/bus"
	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/codec"
	"github.com/bureau-foundation/headerservice/lib/config"
	"github.com/bureau-foundation/headerservice/lib/header"
	"github.com/bureau-foundation/headerservice/lib/lifecycle"
	"github.com/bureau-foundation/headerservice/lib/session"
	"github.com/bureau-foundation/headerservice/lib/telemetry"
)

// signalBuffer bounds the start and end signals queued between the
// transport callbacks and the session loop.
const signalBuffer = 64

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 5 * time.Second

// service is one header service instance: the transport, the
// operating state, and the session manager wired from a Config.
type service struct {
	config     *config.Config
	clock      clock.Clock
	logger     *slog.Logger
	bus        *bus.Bus
	controller *lifecycle.Controller
	manager    *session.Manager

	// server serves the output directory in web mode.
	server  *http.Server
	closers []io.Closer
}

func newService(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*service, error) {
	sensors, err := cfg.Sensors()
	if err != nil {
		return nil, err
	}
	specs, err := cfg.ChannelSpecs()
	if err != nil {
		return nil, err
	}
	exposure, margin, err := cfg.Timeouts()
	if err != nil {
		return nil, err
	}
	initial, err := lifecycle.ParseState(cfg.Instrument.InitialState)
	if err != nil {
		return nil, fmt.Errorf("instrument.initial_state: %w", err)
	}
	scale, err := astro.ParseScale(cfg.Instrument.TimeScale)
	if err != nil {
		return nil, fmt.Errorf("instrument.time_scale: %w", err)
	}
	format, err := header.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, fmt.Errorf("output.format: %w", err)
	}
	algorithm, err := announce.ParseAlgorithm(cfg.Announce.Checksum)
	if err != nil {
		return nil, fmt.Errorf("announce.checksum: %w", err)
	}

	var templates *header.TemplateSet
	if cfg.Instrument.Templates != "" {
		templates, err = header.LoadTemplates(cfg.Instrument.Templates)
	} else {
		templates, err = header.DefaultTemplates(cfg.Instrument.Camera)
	}
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	s := &service{
		config: cfg,
		clock:  clk,
		logger: logger,
		bus:    bus.New(clk, logger),
	}
	s.controller = lifecycle.NewController(initial, clk, logger)

	extractor, err := telemetry.NewExtractor(specs, s.bus, clk, logger)
	if err != nil {
		return nil, err
	}

	destination, err := s.destination()
	if err != nil {
		return nil, err
	}
	publisher, err := s.publisher()
	if err != nil {
		s.close()
		return nil, err
	}
	handler := &announce.Handler{
		Generator:   cfg.Instrument.Name,
		Destination: destination,
		Publisher:   publisher,
		Algorithm:   algorithm,
		Retries:     cfg.Retries(),
		RetryDelay:  cfg.RetryDelay(),
		Clock:       clk,
		Logger:      logger,
	}

	options := session.Options{
		Generator:       cfg.Instrument.Name,
		Templates:       templates,
		Sensors:         sensors,
		Extractor:       extractor,
		State:           s.controller,
		Faults:          s.controller,
		Announcer:       handler,
		Site:            cfg.Site,
		TimeScale:       scale,
		DefaultExposure: exposure,
		Margin:          margin,
		ExposureKey:     cfg.Timeout.ExposureKey,
		Coordinates: session.Coordinates{
			PerSensor:   cfg.Coordinates.PerSensor,
			Frame:       cfg.Coordinates.Frame,
			PixelScale:  cfg.Coordinates.PixelScale,
			RAKey:       cfg.Coordinates.RAKey,
			DecKey:      cfg.Coordinates.DecKey,
			RotationKey: cfg.Coordinates.RotationKey,
		},
		OutputDir:      cfg.Output.Directory,
		Format:         format,
		HeaderFilename: cfg.Output.HeaderFilename,
		ImageFilename:  cfg.Output.ImageFilename,
		Clock:          clk,
		Logger:         logger,
	}
	if cfg.Timeout.ExposureChannel.Configured() {
		options.ExposureChannel = cfg.Timeout.ExposureChannel.Channel()
		options.ExposureField = cfg.Timeout.ExposureChannel.Field
	}
	if cfg.Events.Geometry.Configured() {
		options.GeometryChannel = cfg.Events.Geometry.Channel()
	}
	s.manager, err = session.New(options)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// destination builds the delivery target for the configured mode. Web
// mode also prepares the HTTP server over the output directory.
func (s *service) destination() (announce.Destination, error) {
	cfg := s.config.Announce
	compression, err := announce.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("announce.compression: %w", err)
	}

	switch cfg.Mode {
	case "web":
		address := cfg.Address
		if address == "" {
			address = outboundAddress()
		}
		s.server = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Port),
			Handler:           http.FileServer(http.Dir(s.config.Output.Directory)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return &announce.WebDestination{URLFormat: cfg.URLFormat, Address: address, Port: cfg.Port}, nil
	case "s3":
		store, err := announce.NewS3Store(announce.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Region:       cfg.S3.Region,
			Bucket:       cfg.Bucket,
			Secure:       cfg.S3.Secure,
			CreateBucket: cfg.S3.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		return &announce.ObjectStoreDestination{Store: store, Generator: s.config.Instrument.Name, Compression: compression}, nil
	case "dir":
		store := &announce.DirStore{Root: cfg.Directory, BucketName: cfg.Bucket}
		return &announce.ObjectStoreDestination{Store: store, Generator: s.config.Instrument.Name, Compression: compression}, nil
	default:
		return nil, fmt.Errorf("announce.mode must be web, s3, or dir, got %q", cfg.Mode)
	}
}

// publisher fans notifications out to the transport topic, the
// optional duplicate topic, the optional stream file, and the log.
func (s *service) publisher() (announce.Publisher, error) {
	cfg := s.config.Announce
	publishers := announce.MultiPublisher{
		&announce.BusPublisher{Transport: s.bus, Topic: cfg.Topic},
	}
	if cfg.DuplicateTopic != "" {
		publishers = append(publishers, &announce.BusPublisher{Transport: s.bus, Topic: cfg.DuplicateTopic})
	}
	if cfg.Stream != "" {
		file, err := os.OpenFile(cfg.Stream, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening notification stream: %w", err)
		}
		s.closers = append(s.closers, file)
		publishers = append(publishers, announce.NewStreamPublisher(file))
	}
	publishers = append(publishers, &announce.LogPublisher{Logger: s.logger, Label: cfg.Topic})
	return publishers, nil
}

// outboundAddress is the local address used to reach other hosts. The
// UDP dial sends no packets. It falls back to localhost.
func outboundAddress() string {
	connection, err := net.Dial("udp", "192.0.2.1:80")
	if err != nil {
		return "localhost"
	}
	defer connection.Close()
	if address, ok := connection.LocalAddr().(*net.UDPAddr); ok {
		return address.IP.String()
	}
	return "localhost"
}

// run binds the lifecycle events and the command channel, optionally
// replays script onto the transport, and processes signals until ctx
// is cancelled. On return every open session has been dropped and
// every announcement has finished.
func (s *service) run(ctx context.Context, script *bus.Script) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := s.config.Events
	signals := make(chan session.Signal, signalBuffer)
	unbind := s.manager.Bind(runCtx, s.bus,
		session.Trigger{Channel: events.Start.Channel(), Field: events.Start.Field},
		session.Trigger{Channel: events.End.Channel(), Field: events.End.Field},
		signals,
	)
	defer unbind()
	if events.Command.Configured() {
		unsubscribe := s.bus.Subscribe(events.Command.Channel(), s.handleCommand)
		defer unsubscribe()
	}

	serverErrors := make(chan error, 1)
	if s.server != nil {
		listener, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
		}
		s.logger.Info("serving headers",
			"address", listener.Addr().String(),
			"directory", s.config.Output.Directory,
		)
		go func() {
			if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()
	}

	s.logger.Info("header service running",
		"generator", s.config.Instrument.Name,
		"state", string(s.controller.State()),
		"announce_mode", s.config.Announce.Mode,
	)
	s.publishState()

	if script != nil {
		go func() {
			err := bus.Replay(runCtx, script, s.bus, s.clock)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("replay stopped", "error", err)
				return
			}
			s.logger.Info("replay finished", "steps", len(script.Steps))
		}()
	}

	loopErr := make(chan error, 1)
	go func() { loopErr <- s.manager.Run(runCtx, signals) }()

	var err error
	select {
	case err = <-loopErr:
	case err = <-serverErrors:
		s.controller.GoToFault(lifecycle.FaultServe, fmt.Sprintf("serving headers: %v", err))
		s.publishState()
		cancel()
		<-loopErr
		err = fmt.Errorf("serving headers: %w", err)
	}

	s.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleCommand applies an operator command sample to the controller
// and publishes the resulting state. Rejected commands leave the state
// unchanged.
func (s *service) handleCommand(sample telemetry.Sample) {
	field := s.config.Events.Command.Field
	value, _ := sample.Field(field)
	name, ok := value.(string)
	if !ok {
		s.logger.Warn("command without a name", "field", field)
		return
	}
	command, err := lifecycle.ParseCommand(name)
	if err != nil {
		s.logger.Warn("ignoring command", "error", err)
		return
	}
	if err := s.controller.Apply(command); err != nil {
		s.logger.Warn("command rejected",
			"command", string(command),
			"state", string(s.controller.State()),
			"error", err,
		)
	}
	s.publishState()
}

// publishState sends the controller report on the state topic.
func (s *service) publishState() {
	report := s.controller.Report()
	payload, err := codec.Marshal(report)
	if err != nil {
		s.logger.Error("encoding state report", "error", err)
		return
	}
	if err := s.bus.Publish(s.config.Events.StateTopic, payload); err != nil {
		s.logger.Error("publishing state report", "error", err)
	}
}

// shutdown leaves the enabled state, which drops open sessions, then
// waits for in-flight announcements and stops the HTTP server.
func (s *service) shutdown() {
	if s.controller.Active() {
		if err := s.controller.Disable(); err != nil {
			s.logger.Warn("cannot disable on shutdown", "error", err)
		}
	}
	s.manager.Wait()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("http server shutdown", "error", err)
		}
	}
	s.logger.Info("header service stopped")
}

func (s *service) close() error {
	var errs []error
	for _, closer := range s.closers {
		errs = append(errs, closer.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
