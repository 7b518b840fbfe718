// Package config loads the gateway's GatewayConfig from a YAML file
// plus SER2MMS_-prefixed environment overrides, following the same
// viper-based shape the teacher platform uses for its own top-level
// config, and supports live reload of non-identity fields via
// fsnotify (through viper.WatchConfig).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Role selects which half of the protocol engine this process runs.
type Role string

const (
	RoleSlave Role = "slave"
	RolePoll  Role = "poll"
)

// CRCVariant selects the trailing-byte order of the CRC-16 appended to
// every frame. Exactly one must be configured; Validate rejects the
// zero value and any unknown name. Load defaults it to CRCModbus when
// neither the config file nor the environment sets it.
type CRCVariant string

const (
	CRCModbus  CRCVariant = "modbus"  // low byte, then high byte
	CRCReverse CRCVariant = "reverse" // high byte, then low byte ("Yura")
)

// PortConfig describes the serial device the gateway's Transp layer
// opens through internal/serialport.
type PortConfig struct {
	Path     string `mapstructure:"path"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
}

// GPIOConfig names the pins the gateway drives directly: the RS-485
// DE line, and an optional 1-PPS output (0 disables it).
type GPIOConfig struct {
	Backend  string `mapstructure:"backend"` // "rpi" or "mock"
	DEPin    int    `mapstructure:"de_pin"`
	PPSPin   int    `mapstructure:"pps_pin"`
	DEWaitMS int    `mapstructure:"de_wait_ms"`
}

// ScheduleConfig is the (ds,page) cursor's valid range, per spec §3.
type ScheduleConfig struct {
	DSMin       int `mapstructure:"ds_min"`
	DSMax       int `mapstructure:"ds_max"`
	PageMax     int `mapstructure:"page_max"`
	PageSize    int `mapstructure:"page_size"`
	NumSubs     int `mapstructure:"num_subs"`
	AnswLenMax  int `mapstructure:"answ_len_max"`
}

// AttrStoreConfig configures the reference Redis-backed attribute
// store binding (pkg/attrstore). Empty Addr disables it and the
// gateway falls back to the weak no-op PayloadApi.
type AttrStoreConfig struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
}

// LoggerConfig mirrors gwlog.Config's shape for YAML binding.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	LogDir     string `mapstructure:"log_dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// GatewayConfig holds everything needed to construct one Gateway.
type GatewayConfig struct {
	Role       Role            `mapstructure:"role"`
	ID         int             `mapstructure:"id"`
	Threaded   bool            `mapstructure:"threaded"`
	Reduced    bool            `mapstructure:"reduced"`
	CRC        CRCVariant      `mapstructure:"crc"`
	Port       PortConfig      `mapstructure:"port"`
	GPIO       GPIOConfig      `mapstructure:"gpio"`
	Schedule   ScheduleConfig  `mapstructure:"schedule"`
	AttrStore  AttrStoreConfig `mapstructure:"attr_store"`
	Logger     LoggerConfig    `mapstructure:"logger"`
}

// Load reads configuration from configPath (or the default search
// path if empty) and environment variables prefixed SER2MMS_.
func Load(configPath string) (*GatewayConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ser2mms-gw")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	v.SetEnvPrefix("SER2MMS")
	v.AutomaticEnv()

	var cfg GatewayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WatchReload re-reads configuration on file change and invokes fn
// with the new value. Identity fields (role, id, CRC variant, port
// path) are deliberately left to the caller to compare against the
// running gateway and ignore — a config watch must never silently
// flip which bus address this process answers to.
func WatchReload(configPath string, fn func(*GatewayConfig)) error {
	v := viper.New()
	setDefaults(v)
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ser2mms-gw")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: read: %w", err)
		}
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg GatewayConfig
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		if err := Validate(&cfg); err != nil {
			return
		}
		fn(&cfg)
	})
	v.WatchConfig()
	return nil
}

// Validate checks the structural invariants spec.md §3 relies on.
func Validate(cfg *GatewayConfig) error {
	if cfg.Role != RoleSlave && cfg.Role != RolePoll {
		return fmt.Errorf("config: role must be %q or %q", RoleSlave, RolePoll)
	}
	if cfg.ID < 0 || cfg.ID > 255 {
		return fmt.Errorf("config: id must fit in a byte")
	}
	if cfg.CRC != CRCModbus && cfg.CRC != CRCReverse {
		return fmt.Errorf("config: crc must be %q or %q", CRCModbus, CRCReverse)
	}
	s := cfg.Schedule
	if s.DSMin < 1 || s.DSMax < s.DSMin || s.DSMax > 15 {
		return fmt.Errorf("config: schedule.ds_min/ds_max out of range")
	}
	if s.PageMax < 0 || s.PageMax > 15 {
		return fmt.Errorf("config: schedule.page_max out of range")
	}
	if s.PageSize < 1 {
		return fmt.Errorf("config: schedule.page_size must be positive")
	}
	if s.AnswLenMax < 1 {
		return fmt.Errorf("config: schedule.answ_len_max must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("role", string(RoleSlave))
	v.SetDefault("id", 1)
	v.SetDefault("threaded", true)
	v.SetDefault("reduced", false)
	v.SetDefault("crc", string(CRCModbus))

	v.SetDefault("port.path", "/dev/ttyS0")
	v.SetDefault("port.baud_rate", 115200)
	v.SetDefault("port.data_bits", 8)
	v.SetDefault("port.stop_bits", 2)

	v.SetDefault("gpio.backend", "mock")
	v.SetDefault("gpio.de_pin", 0)
	v.SetDefault("gpio.pps_pin", 0)
	v.SetDefault("gpio.de_wait_ms", 2)

	v.SetDefault("schedule.ds_min", 1)
	v.SetDefault("schedule.ds_max", 6)
	v.SetDefault("schedule.page_max", 3)
	v.SetDefault("schedule.page_size", 3)
	v.SetDefault("schedule.num_subs", 11)
	v.SetDefault("schedule.answ_len_max", 3)

	v.SetDefault("attr_store.addr", "")
	v.SetDefault("attr_store.db", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.log_dir", "./logs")
	v.SetDefault("logger.max_size_mb", 20)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".ser2mms-gw")
}
