// Package config loads the quick scan configuration file.
package config

import (
	"bytes"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tiiuae/quickscan/internal/flymavlink"
	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/vehicle"
)

type Config struct {
	DeviceID         string         `yaml:"device_id"`
	Altitude         float64        `yaml:"altitude"`
	DThetaRad        float64        `yaml:"d_theta_rad"`
	FlightMode       string         `yaml:"flight_mode"`
	HoverMode        string         `yaml:"hover_mode"`
	PollInterval     time.Duration  `yaml:"poll_interval"`
	VehicleSimulated bool           `yaml:"vehicle_simulated"`
	Vehicle          VehicleConfig  `yaml:"vehicle"`
	CommsSimulated   CommsSimConfig `yaml:"comms_simulated"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
	Log              LogConfig      `yaml:"log"`
	Metrics          MetricsConfig  `yaml:"metrics"`
	Tracing          TracingConfig  `yaml:"tracing"`
}

type VehicleConfig struct {
	Connection string `yaml:"connection"`
}

type CommsSimConfig struct {
	Enabled     bool   `yaml:"enabled"`
	CommSimFile string `yaml:"comm_sim_file"`
}

type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	PrivateKey string `yaml:"private_key"`
	ProjectID  string `yaml:"project_id"`
	Region     string `yaml:"region"`
	RegistryID string `yaml:"registry_id"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

func Default() Config {
	return Config{
		Altitude:     10,
		DThetaRad:    math.Pi / 8,
		FlightMode:   string(vehicle.ModeAuto),
		HoverMode:    string(vehicle.ModeLoiter),
		PollInterval: time.Second,
		Vehicle:      VehicleConfig{Connection: flymavlink.DefaultConnection},
		Log:          LogConfig{Level: "info", Format: "text"},
		Tracing:      TracingConfig{Exporter: "stdout"},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithMessagef(mission.ErrConfiguration, "read config: %v", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.WithMessagef(mission.ErrConfiguration, "parse config: %v", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DeviceID == "" {
		return errors.WithMessage(mission.ErrConfiguration, "device_id is required")
	}
	if !(c.Altitude > 0) || math.IsInf(c.Altitude, 0) {
		return errors.WithMessagef(mission.ErrConfiguration, "altitude must be positive, got %v", c.Altitude)
	}
	if !(c.DThetaRad > 0) || math.IsInf(c.DThetaRad, 0) {
		return errors.WithMessagef(mission.ErrConfiguration, "d_theta_rad must be positive, got %v", c.DThetaRad)
	}
	if _, _, err := c.FlightModes(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return errors.WithMessagef(mission.ErrConfiguration, "poll_interval must be positive, got %v", c.PollInterval)
	}
	if !c.VehicleSimulated {
		if _, err := flymavlink.ParseEndpoint(c.Vehicle.Connection); err != nil {
			return errors.WithMessage(err, "vehicle.connection")
		}
	}
	if c.CommsSimulated.Enabled && c.CommsSimulated.CommSimFile == "" {
		return errors.WithMessage(mission.ErrConfiguration, "comms_simulated.comm_sim_file is required when comms are simulated")
	}
	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Exporter) {
		case "", "stdout", "otlp", "otlpgrpc":
		default:
			return errors.WithMessagef(mission.ErrConfiguration, "unsupported tracing exporter '%s'", c.Tracing.Exporter)
		}
	}
	return nil
}

// FlightModes parses the mission and hover flight modes.
func (c Config) FlightModes() (flight, hover vehicle.FlightMode, err error) {
	if flight, err = vehicle.ParseFlightMode(c.FlightMode); err != nil {
		return "", "", errors.WithMessage(err, "flight_mode")
	}
	if hover, err = vehicle.ParseFlightMode(c.HoverMode); err != nil {
		return "", "", errors.WithMessage(err, "hover_mode")
	}
	return flight, hover, nil
}
