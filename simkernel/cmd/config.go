package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables the run command
// reads its settings from.
const EnvPrefix = "SIMKERNEL_"

// Config holds the settings of a run. Flags override environment variables,
// which override the config file, which overrides the defaults.
type Config struct {
	Scenario    string   `yaml:"scenario"`
	Until       *float64 `yaml:"until"`
	LogLevel    string   `yaml:"log_level"`
	LogEvents   bool     `yaml:"log_events"`
	Record      bool     `yaml:"record"`
	Output      string   `yaml:"output"`
	Monitor     bool     `yaml:"monitor"`
	MonitorPort int      `yaml:"monitor_port"`
	OpenBrowser bool     `yaml:"open_browser"`
	Hold        bool     `yaml:"hold"`
}

// DefaultConfig returns the settings used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Record:   true,
		Monitor:  false,
	}
}

// LoadConfigFile overrides c with the values set in a YAML file.
func (c *Config) LoadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

// ReadEnv collects the SIMKERNEL_ variables from the dotenv file, if it
// exists, and from the process environment, which takes precedence.
func ReadEnv(dotenvPath string) (map[string]string, error) {
	env := make(map[string]string)

	if dotenvPath != "" {
		values, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		for k, v := range values {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	return env, nil
}

// ApplyEnv overrides c with the values in env.
func (c *Config) ApplyEnv(env map[string]string) error {
	var err error

	for key, value := range env {
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

		switch name {
		case "scenario":
			c.Scenario = value
		case "until":
			var until float64
			until, err = strconv.ParseFloat(value, 64)
			c.Until = &until
		case "log_level":
			c.LogLevel = value
		case "log_events":
			c.LogEvents, err = strconv.ParseBool(value)
		case "record":
			c.Record, err = strconv.ParseBool(value)
		case "output":
			c.Output = value
		case "monitor":
			c.Monitor, err = strconv.ParseBool(value)
		case "monitor_port":
			c.MonitorPort, err = strconv.Atoi(value)
		case "open_browser":
			c.OpenBrowser, err = strconv.ParseBool(value)
		case "hold":
			c.Hold, err = strconv.ParseBool(value)
		}

		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

// ApplyFlags overrides c with the flags that are explicitly set.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			c.LogLevel = f.Value.String()
		case "until":
			until, _ := flags.GetFloat64("until")
			c.Until = &until
		case "log-events":
			c.LogEvents, _ = flags.GetBool("log-events")
		case "record":
			c.Record, _ = flags.GetBool("record")
		case "output":
			c.Output = f.Value.String()
		case "monitor":
			c.Monitor, _ = flags.GetBool("monitor")
		case "monitor-port":
			c.MonitorPort, _ = flags.GetInt("monitor-port")
		case "open-browser":
			c.OpenBrowser, _ = flags.GetBool("open-browser")
		case "hold":
			c.Hold, _ = flags.GetBool("hold")
		}
	})
}

// Validate checks that the settings can be used together.
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return errors.New("no scenario given")
	}

	if c.Until != nil && math.IsNaN(*c.Until) {
		return errors.New("until is not a number")
	}

	if c.Until != nil && *c.Until < 0 {
		return fmt.Errorf("until must not be negative, got %g", *c.Until)
	}

	if !c.Monitor && (c.MonitorPort != 0 || c.OpenBrowser || c.Hold) {
		return errors.New("monitor options given but the monitor is off")
	}

	if !c.Record && c.Output != "" {
		return errors.New("output given but recording is off")
	}

	return nil
}
