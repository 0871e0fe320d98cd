// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/headerservice/lib/announce"
	"github.com/bureau-foundation/headerservice/lib/astro"
	"github.com/bureau-foundation/headerservice/lib/geometry"
	"github.com/bureau-foundation/headerservice/lib/header"
	"github.com/bureau-foundation/headerservice/lib/lifecycle"
	"github.com/bureau-foundation/headerservice/lib/telemetry"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "HEADERSERVICE_CONFIG"

// Config is the complete configuration of one header service instance.
type Config struct {
	// Instrument identifies the service and the camera it describes.
	Instrument InstrumentConfig `yaml:"instrument"`

	// Site is the observatory location used for derived coordinates
	// and the OBS-* records.
	Site astro.Site `yaml:"site"`

	// Events names the lifecycle signals.
	Events EventsConfig `yaml:"events"`

	// Timeout configures how long a session waits for its end signal.
	Timeout TimeoutConfig `yaml:"timeout"`

	// Telemetry is the key table: one entry per collected header value.
	Telemetry []KeyConfig `yaml:"telemetry"`

	// Coordinates configures the derived sky coordinates.
	Coordinates CoordinatesConfig `yaml:"coordinates"`

	// Output configures where and how headers are written.
	Output OutputConfig `yaml:"output"`

	// Announce configures delivery and notification.
	Announce AnnounceConfig `yaml:"announce"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// InstrumentConfig identifies the service and its camera.
type InstrumentConfig struct {
	// Name is the generator name in notifications and object keys,
	// e.g. ATHeaderService.
	Name string `yaml:"name"`

	// Camera selects the embedded template set: atscam or lsstcam.
	Camera string `yaml:"camera"`

	// Templates, when set, loads the template set from this YAML file
	// instead of the embedded one.
	Templates string `yaml:"templates"`

	// Sensors lists the sensors in the focal plane, in extension order.
	Sensors []SensorConfig `yaml:"sensors"`

	// InitialState is the summary state the process starts in.
	// Default: enabled
	InitialState string `yaml:"initial_state"`

	// TimeScale is the scale of DATE and MJD: TAI or UTC. Default: TAI
	TimeScale string `yaml:"time_scale"`
}

// SensorConfig names one sensor and its vendor.
type SensorConfig struct {
	Name   string `yaml:"name"`
	Vendor string `yaml:"vendor"`
}

// ChannelConfig names a transport channel and a field on it.
type ChannelConfig struct {
	Device string `yaml:"device"`
	Index  int    `yaml:"index"`
	Topic  string `yaml:"topic"`
	Field  string `yaml:"field"`
}

// Channel returns the transport channel.
func (c ChannelConfig) Channel() telemetry.ChannelID {
	return telemetry.ChannelID{Device: c.Device, Index: c.Index, Topic: c.Topic}
}

// Configured reports whether a channel was given.
func (c ChannelConfig) Configured() bool { return c.Device != "" }

// EventsConfig names the signals that drive the session lifecycle.
type EventsConfig struct {
	// Start is the start-of-integration event; Field holds the image
	// name.
	Start ChannelConfig `yaml:"start"`

	// End is the end-of-readout event; Field holds the image name.
	End ChannelConfig `yaml:"end"`

	// Geometry, when set, is the event carrying readout parameters
	// (overCols, preCols, ...) read at end of readout.
	Geometry ChannelConfig `yaml:"geometry"`

	// Command carries operator summary-state commands (start, enable,
	// disable, standby) in Field. An empty Device disables commands.
	Command ChannelConfig `yaml:"command"`

	// StateTopic receives the summary state and last fault, CBOR
	// encoded, at startup and after every change. Default: summaryState
	StateTopic string `yaml:"state_topic"`
}

// TimeoutConfig sets the per-image timer to exposure time plus Margin.
type TimeoutConfig struct {
	// Default is the exposure time assumed when none is available.
	// Default: 30s
	Default string `yaml:"default"`

	// Margin is added to the exposure time. Default: 5s
	Margin string `yaml:"margin"`

	// ExposureKey is the telemetry key holding the exposure time in
	// seconds. Used when ExposureChannel is not set. Default: EXPTIME
	ExposureKey string `yaml:"exposure_key"`

	// ExposureChannel reads the exposure time (seconds) directly from
	// a channel field at start of integration.
	ExposureChannel ChannelConfig `yaml:"exposure_channel"`
}

// KeyConfig describes one collected header value.
type KeyConfig struct {
	// Keyword is the header keyword the value is written to.
	Keyword string `yaml:"keyword"`

	Device string `yaml:"device"`
	Index  int    `yaml:"index"`
	Topic  string `yaml:"topic"`

	// Kind is Telemetry or Event. Default: Event
	Kind string `yaml:"kind"`

	// Value is the field of the sample holding the value.
	Value string `yaml:"value"`

	// Rule is the extraction rule (scalar, first, indexed:N,
	// keyed:NAMES:KEY, per-sensor:NAMES). Default: scalar
	Rule string `yaml:"rule"`

	// Separator splits names and string-packed arrays. Default: ":"
	Separator string `yaml:"separator"`

	// Enum decodes integer values to names. Takes precedence over Rule.
	Enum map[int64]string `yaml:"enum"`

	// Scale multiplies numeric values.
	Scale *float64 `yaml:"scale"`

	// Collect is start or end. Default: end
	Collect string `yaml:"collect"`
}

// CoordinatesConfig configures derived coordinates.
type CoordinatesConfig struct {
	// PerSensor writes the TAN block into each sensor's primary
	// extension instead of PRIMARY.
	PerSensor bool `yaml:"per_sensor"`

	// Frame is the RADESYS value. Default: ICRS
	Frame string `yaml:"frame"`

	// PixelScale in arcsec/pixel. Default: 0.105
	PixelScale float64 `yaml:"pixel_scale"`

	// RAKey, DecKey, and RotationKey name the telemetry keys of the
	// boresight. Defaults: RA, DEC, ROTPA
	RAKey       string `yaml:"ra_key"`
	DecKey      string `yaml:"dec_key"`
	RotationKey string `yaml:"rotation_key"`
}

// OutputConfig configures where headers are written.
type OutputConfig struct {
	// Directory receives the header files. It is created if missing.
	Directory string `yaml:"directory"`

	// Format is fits or yaml. Default: fits
	Format string `yaml:"format"`

	// HeaderFilename is the name of the written header; {image_name},
	// {generator}, and {format} are substituted.
	// Default: {generator}_header_{image_name}.{format}
	HeaderFilename string `yaml:"header_filename"`

	// ImageFilename is the FILENAME record value.
	// Default: {image_name}.fits
	ImageFilename string `yaml:"image_filename"`
}

// AnnounceConfig configures delivery and notification.
type AnnounceConfig struct {
	// Mode is web (serve the output directory over HTTP), s3 (upload
	// with minio-go), or dir (copy into a local bucket directory).
	// Default: web
	Mode string `yaml:"mode"`

	// URLFormat, Address, and Port build the web URL.
	// Default URLFormat: http://{ip_address}:{port}/{filename}
	URLFormat string `yaml:"url_format"`
	Address   string `yaml:"address"`
	Port      int    `yaml:"port"`

	// Checksum is md5 or blake3. Default: md5
	Checksum string `yaml:"checksum"`

	// Retries is the number of extra delivery attempts. Default: 2
	Retries *int `yaml:"retries"`

	// RetryDelay is the wait between attempts. Default: 1s
	RetryDelay string `yaml:"retry_delay"`

	// Topic is the outbound transport topic. Default:
	// largeFileObjectAvailable
	Topic string `yaml:"topic"`

	// DuplicateTopic, when set, receives a copy of every notification
	// (the engineering database feed).
	DuplicateTopic string `yaml:"duplicate_topic"`

	// Stream, when set, appends every notification to this file as a
	// CBOR sequence.
	Stream string `yaml:"stream"`

	// Compression applies to object-store payloads: none, zstd, lz4.
	Compression string `yaml:"compression"`

	// Bucket is the object-store bucket (s3 and dir modes).
	Bucket string `yaml:"bucket"`

	// Directory is the bucket root in dir mode.
	Directory string `yaml:"directory"`

	// S3 holds the endpoint settings in s3 mode.
	S3 S3Config `yaml:"s3"`
}

// S3Config holds S3 endpoint settings. Credentials are normally given
// as ${VAR} references.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Region       string `yaml:"region"`
	Secure       bool   `yaml:"secure"`
	CreateBucket bool   `yaml:"create_bucket"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`

	// Format is json or text. Default: json
	Format string `yaml:"format"`
}

// Default returns the configuration used as the base before the file
// is loaded. It describes the auxiliary telescope camera; the file is
// still required.
func Default() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			Name:         "ATHeaderService",
			Camera:       "atscam",
			Sensors:      []SensorConfig{{Name: "R00_S00", Vendor: "ITL"}},
			InitialState: "enabled",
			TimeScale:    "TAI",
		},
		Site: astro.CerroPachon,
		Events: EventsConfig{
			Start:      ChannelConfig{Device: "ATCamera", Topic: "logevent_startIntegration", Field: "imageName"},
			End:        ChannelConfig{Device: "ATCamera", Topic: "logevent_endReadout", Field: "imageName"},
			Command:    ChannelConfig{Device: "ATHeaderService", Topic: "command", Field: "command"},
			StateTopic: "summaryState",
		},
		Timeout: TimeoutConfig{
			Default:     "30s",
			Margin:      "5s",
			ExposureKey: "EXPTIME",
		},
		Coordinates: CoordinatesConfig{
			Frame:       "ICRS",
			PixelScale:  geometry.DefaultPixelScale,
			RAKey:       "RA",
			DecKey:      "DEC",
			RotationKey: "ROTPA",
		},
		Output: OutputConfig{
			Directory:      "${HOME}/headers",
			Format:         "fits",
			HeaderFilename: "{generator}_header_{image_name}.{format}",
			ImageFilename:  "{image_name}.fits",
		},
		Announce: AnnounceConfig{
			Mode:        "web",
			URLFormat:   "http://{ip_address}:{port}/{filename}",
			Port:        8000,
			Checksum:    "md5",
			RetryDelay:  "1s",
			Topic:       "largeFileObjectAvailable",
			Compression: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from the file named by HEADERSERVICE_CONFIG.
// There is no discovery and no fallback.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of the header service config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over [Default] and expands
// ${VAR} and ${VAR:-default} references in path and credential fields.
// The result is not validated; call [Config.Validate].
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration YAML over [Default]. Unknown fields are
// errors so that typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path,
// address, and credential fields.
func (c *Config) expandVariables() {
	for _, field := range []*string{
		&c.Instrument.Templates,
		&c.Output.Directory,
		&c.Announce.Address,
		&c.Announce.Stream,
		&c.Announce.Directory,
		&c.Announce.Bucket,
		&c.Announce.S3.Endpoint,
		&c.Announce.S3.AccessKey,
		&c.Announce.S3.SecretKey,
	} {
		*field = expandVars(*field)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration, reporting every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Instrument.Name == "" {
		errs = append(errs, errors.New("instrument.name is required"))
	}
	if c.Instrument.Camera == "" && c.Instrument.Templates == "" {
		errs = append(errs, errors.New("instrument.camera or instrument.templates is required"))
	}
	if _, err := c.Sensors(); err != nil {
		errs = append(errs, err)
	}
	if _, err := lifecycle.ParseState(c.Instrument.InitialState); err != nil {
		errs = append(errs, fmt.Errorf("instrument.initial_state: %w", err))
	}
	if _, err := astro.ParseScale(c.Instrument.TimeScale); err != nil {
		errs = append(errs, fmt.Errorf("instrument.time_scale: %w", err))
	}

	for name, event := range map[string]ChannelConfig{"events.start": c.Events.Start, "events.end": c.Events.End} {
		if event.Device == "" || event.Topic == "" || event.Field == "" {
			errs = append(errs, fmt.Errorf("%s needs device, topic, and field", name))
		}
	}
	if c.Events.Geometry.Configured() && c.Events.Geometry.Topic == "" {
		errs = append(errs, errors.New("events.geometry needs a topic"))
	}
	if c.Events.Command.Configured() && (c.Events.Command.Topic == "" || c.Events.Command.Field == "") {
		errs = append(errs, errors.New("events.command needs a topic and field"))
	}
	if c.Events.StateTopic == "" {
		errs = append(errs, errors.New("events.state_topic is required"))
	}

	if _, _, err := c.Timeouts(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ChannelSpecs(); err != nil {
		errs = append(errs, err)
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output.directory is required"))
	}
	if _, err := header.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("output.format: %w", err))
	}
	if !strings.Contains(c.Output.HeaderFilename, "{image_name}") {
		errs = append(errs, errors.New("output.header_filename must contain {image_name}"))
	}

	errs = append(errs, c.validateAnnounce()...)

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) validateAnnounce() []error {
	var errs []error
	switch c.Announce.Mode {
	case "web":
		if c.Announce.URLFormat == "" {
			errs = append(errs, errors.New("announce.url_format is required in web mode"))
		}
		if c.Announce.Port <= 0 || c.Announce.Port > 65535 {
			errs = append(errs, fmt.Errorf("announce.port %d out of range", c.Announce.Port))
		}
	case "s3":
		if c.Announce.S3.Endpoint == "" {
			errs = append(errs, errors.New("announce.s3.endpoint is required in s3 mode"))
		}
		if c.Announce.Bucket == "" {
			errs = append(errs, errors.New("announce.bucket is required in s3 mode"))
		}
	case "dir":
		if c.Announce.Directory == "" || c.Announce.Bucket == "" {
			errs = append(errs, errors.New("announce.directory and announce.bucket are required in dir mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("announce.mode must be web, s3, or dir, got %q", c.Announce.Mode))
	}
	if _, err := announce.ParseAlgorithm(c.Announce.Checksum); err != nil {
		errs = append(errs, fmt.Errorf("announce.checksum: %w", err))
	}
	if _, err := announce.ParseCompression(c.Announce.Compression); err != nil {
		errs = append(errs, fmt.Errorf("announce.compression: %w", err))
	}
	if c.Announce.Retries != nil && *c.Announce.Retries < 0 {
		errs = append(errs, errors.New("announce.retries must not be negative"))
	}
	if _, err := parseDuration("announce.retry_delay", c.Announce.RetryDelay); err != nil {
		errs = append(errs, err)
	}
	if c.Announce.Topic == "" {
		errs = append(errs, errors.New("announce.topic is required"))
	}
	return errs
}

// Sensors returns the configured sensors.
func (c *Config) Sensors() ([]header.Sensor, error) {
	if len(c.Instrument.Sensors) == 0 {
		return nil, errors.New("instrument.sensors must list at least one sensor")
	}
	sensors := make([]header.Sensor, 0, len(c.Instrument.Sensors))
	for i, sensor := range c.Instrument.Sensors {
		vendor, err := geometry.ParseVendor(sensor.Vendor)
		if err != nil {
			return nil, fmt.Errorf("instrument.sensors[%d]: %w", i, err)
		}
		if sensor.Name == "" {
			return nil, fmt.Errorf("instrument.sensors[%d]: name is required", i)
		}
		sensors = append(sensors, header.Sensor{Name: sensor.Name, Vendor: vendor})
	}
	return sensors, nil
}

// Timeouts returns the default exposure time and the margin.
func (c *Config) Timeouts() (exposure, margin time.Duration, err error) {
	exposure, err = parseDuration("timeout.default", c.Timeout.Default)
	if err != nil {
		return 0, 0, err
	}
	margin, err = parseDuration("timeout.margin", c.Timeout.Margin)
	if err != nil {
		return 0, 0, err
	}
	if exposure+margin <= 0 {
		return 0, 0, errors.New("timeout.default plus timeout.margin must be positive")
	}
	return exposure, margin, nil
}

// RetryDelay returns the parsed announce.retry_delay.
func (c *Config) RetryDelay() time.Duration {
	delay, _ := parseDuration("announce.retry_delay", c.Announce.RetryDelay)
	return delay
}

// Retries returns announce.retries, or the default when unset.
func (c *Config) Retries() int {
	if c.Announce.Retries == nil {
		return announce.DefaultRetries
	}
	return *c.Announce.Retries
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		// Bare numbers are seconds.
		seconds, numberErr := strconv.ParseFloat(value, 64)
		if numberErr != nil {
			return 0, fmt.Errorf("%s: invalid duration %q", field, value)
		}
		duration = time.Duration(seconds * float64(time.Second))
	}
	if duration < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return duration, nil
}

// ChannelSpecs resolves the telemetry key table into typed specs.
func (c *Config) ChannelSpecs() ([]telemetry.ChannelSpec, error) {
	var errs []error
	specs := make([]telemetry.ChannelSpec, 0, len(c.Telemetry))
	seen := make(map[string]bool, len(c.Telemetry))
	for i, key := range c.Telemetry {
		spec, err := key.spec()
		if err != nil {
			errs = append(errs, fmt.Errorf("telemetry[%d] (%s): %w", i, key.Keyword, err))
			continue
		}
		if seen[spec.Key] {
			errs = append(errs, fmt.Errorf("telemetry[%d]: duplicate keyword %s", i, spec.Key))
			continue
		}
		seen[spec.Key] = true
		specs = append(specs, spec)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return specs, nil
}

func (k KeyConfig) spec() (telemetry.ChannelSpec, error) {
	if k.Keyword == "" {
		return telemetry.ChannelSpec{}, errors.New("keyword is required")
	}
	if k.Device == "" || k.Topic == "" || k.Value == "" {
		return telemetry.ChannelSpec{}, errors.New("device, topic, and value are required")
	}
	kind, err := telemetry.ParseSampleKind(k.Kind)
	if err != nil {
		return telemetry.ChannelSpec{}, err
	}
	phase, err := telemetry.ParsePhase(k.Collect)
	if err != nil {
		return telemetry.ChannelSpec{}, err
	}

	var separator rune
	if k.Separator != "" {
		runes := []rune(k.Separator)
		if len(runes) != 1 {
			return telemetry.ChannelSpec{}, fmt.Errorf("separator %q must be one character", k.Separator)
		}
		separator = runes[0]
	}
	var rule telemetry.Rule
	if len(k.Enum) > 0 {
		rule = telemetry.EnumDecode{Table: k.Enum}
	} else if rule, err = telemetry.ParseRule(k.Rule, separator); err != nil {
		return telemetry.ChannelSpec{}, err
	}

	return telemetry.ChannelSpec{
		Key:          k.Keyword,
		Channel:      telemetry.ChannelID{Device: k.Device, Index: k.Index, Topic: k.Topic},
		Kind:         kind,
		ValueField:   k.Value,
		Rule:         rule,
		Scale:        k.Scale,
		CollectAfter: phase,
	}, nil
}
