package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/anicoll/vevor-integration/internal/pkg/classifier"
	"github.com/anicoll/vevor-integration/internal/pkg/decoder"
)

const envPrefix = "VEVOR_"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ModbusCfg    *ModbusConfig
	MqttCfg      *MqttConfig
	DatabaseCfg  *DatabaseConfig
	PollInterval time.Duration
	RegisterMap  string
	HTTPAddr     string
	LogLevel     string
	Tuning       Tuning
}

type ModbusConfig struct {
	// Serial device path, or tcp://host:port for a Modbus TCP gateway.
	Port     string
	SlaveID  int
	BaudRate int
	Timeout  time.Duration
}

type MqttConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// DatabaseConfig is optional; an empty URL disables the history sink.
type DatabaseConfig struct {
	URL              string
	MigrationsFolder string
	RetentionDays    int
}

func (d *DatabaseConfig) Enabled() bool {
	return d != nil && d.URL != ""
}

func (d *DatabaseConfig) Retention() time.Duration {
	return time.Duration(d.RetentionDays) * 24 * time.Hour
}

// Tuning holds the classifier thresholds and the PV spike ceiling, read from
// VEVOR_ prefixed environment variables.
type Tuning struct {
	MainsThresholdW   int `env:"MAINS_THRESHOLD_W" envDefault:"50"`
	BatteryThresholdW int `env:"BATTERY_THRESHOLD_W" envDefault:"30"`
	PVThresholdW      int `env:"PV_THRESHOLD_W" envDefault:"30"`
	OutputThresholdW  int `env:"OUTPUT_THRESHOLD_W" envDefault:"30"`
	PVPowerCeilingW   int `env:"PV_POWER_CEILING_W" envDefault:"10000"`
}

func LoadTuning() (Tuning, error) {
	return env.ParseAsWithOptions[Tuning](env.Options{Prefix: envPrefix})
}

func DefaultTuning() Tuning {
	return Tuning{
		MainsThresholdW:   classifier.DefaultThresholds.MainsW,
		BatteryThresholdW: classifier.DefaultThresholds.BatteryW,
		PVThresholdW:      classifier.DefaultThresholds.PVW,
		OutputThresholdW:  classifier.DefaultThresholds.OutputW,
		PVPowerCeilingW:   decoder.DefaultPVPowerCeiling,
	}
}

func (t Tuning) Thresholds() classifier.Thresholds {
	return classifier.Thresholds{
		MainsW:   t.MainsThresholdW,
		BatteryW: t.BatteryThresholdW,
		PVW:      t.PVThresholdW,
		OutputW:  t.OutputThresholdW,
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.ModbusCfg == nil || c.ModbusCfg.Port == "" {
		errs = append(errs, errors.New("modbus port is required"))
	} else {
		if c.ModbusCfg.SlaveID < 1 || c.ModbusCfg.SlaveID > 247 {
			errs = append(errs, fmt.Errorf("slave id %d out of range 1..247", c.ModbusCfg.SlaveID))
		}
		if c.ModbusCfg.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("baud rate %d must be positive", c.ModbusCfg.BaudRate))
		}
	}
	if c.MqttCfg == nil || c.MqttCfg.Host == "" {
		errs = append(errs, errors.New("mqtt host is required"))
	} else if c.MqttCfg.Port <= 0 || c.MqttCfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("mqtt port %d out of range", c.MqttCfg.Port))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval %s must be positive", c.PollInterval))
	}
	if c.DatabaseCfg.Enabled() {
		if c.DatabaseCfg.MigrationsFolder == "" {
			errs = append(errs, errors.New("migrations folder is required with a database url"))
		}
		if c.DatabaseCfg.RetentionDays <= 0 {
			errs = append(errs, fmt.Errorf("retention days %d must be positive", c.DatabaseCfg.RetentionDays))
		}
	}
	for name, w := range map[string]int{
		"mains":   c.Tuning.MainsThresholdW,
		"battery": c.Tuning.BatteryThresholdW,
		"pv":      c.Tuning.PVThresholdW,
		"output":  c.Tuning.OutputThresholdW,
	} {
		if w < 0 {
			errs = append(errs, fmt.Errorf("%s threshold %d must not be negative", name, w))
		}
	}
	if c.Tuning.PVPowerCeilingW <= 0 {
		errs = append(errs, fmt.Errorf("pv power ceiling %d must be positive", c.Tuning.PVPowerCeilingW))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
