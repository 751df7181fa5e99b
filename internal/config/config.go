package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type OutputMode string

const (
	OutputPlain OutputMode = "plain"
	OutputJSON  OutputMode = "json"
)

type Verbosity string

const (
	VerbosityQuiet   Verbosity = "quiet"
	VerbosityDefault Verbosity = "default"
	VerbosityVerbose Verbosity = "verbose"
)

const (
	DefaultURL           = "ws://127.0.0.1:9944"
	DefaultCodecPath     = "contract-codec"
	DefaultSS58Prefix    = 42
	defaultTimeout       = 60 * time.Second
	defaultPollInterval  = 2 * time.Second
	defaultSubmitTimeout = 2 * time.Minute
)

type GlobalFlags struct {
	ConfigPath     string
	OutputJSON     bool
	Verbose        bool
	Quiet          bool
	URL            string
	Timeout        string
	Retries        int
	CodecPath      string
	EnableCommands string
}

type Settings struct {
	OutputMode     OutputMode
	Verbosity      Verbosity
	URL            string
	Timeout        time.Duration
	Retries        int
	CodecPath      string
	PollInterval   time.Duration
	SubmitTimeout  time.Duration
	SS58Prefix     uint16
	EnableCommands []string
}

// JSON reports whether results are emitted as a machine-readable envelope.
func (s Settings) JSON() bool {
	return s.OutputMode == OutputJSON
}

type fileConfig struct {
	URL        string   `yaml:"url"`
	Output     string   `yaml:"output"`
	Verbosity  string   `yaml:"verbosity"`
	Timeout    string   `yaml:"timeout"`
	Retries    *int     `yaml:"retries"`
	SS58Prefix *uint16  `yaml:"ss58_prefix"`
	Enable     []string `yaml:"enable_commands"`
	Codec      struct {
		Path string `yaml:"path"`
	} `yaml:"codec"`
	Submit struct {
		PollInterval string `yaml:"poll_interval"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"submit"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings := defaultSettings()

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaultPollInterval
	}
	if settings.SubmitTimeout <= 0 {
		settings.SubmitTimeout = defaultSubmitTimeout
	}

	return settings, nil
}

func defaultSettings() Settings {
	return Settings{
		OutputMode:    OutputPlain,
		Verbosity:     VerbosityDefault,
		URL:           DefaultURL,
		Timeout:       defaultTimeout,
		Retries:       2,
		CodecPath:     DefaultCodecPath,
		PollInterval:  defaultPollInterval,
		SubmitTimeout: defaultSubmitTimeout,
		SS58Prefix:    DefaultSS58Prefix,
	}
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "contract", "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.URL != "" {
		settings.URL = cfg.URL
	}
	if cfg.Output != "" {
		settings.OutputMode = OutputMode(strings.ToLower(cfg.Output))
	}
	if cfg.Verbosity != "" {
		settings.Verbosity = Verbosity(strings.ToLower(cfg.Verbosity))
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.SS58Prefix != nil {
		settings.SS58Prefix = *cfg.SS58Prefix
	}
	if len(cfg.Enable) > 0 {
		settings.EnableCommands = splitCSV(strings.Join(cfg.Enable, ","))
	}
	if cfg.Codec.Path != "" {
		settings.CodecPath = cfg.Codec.Path
	}
	if cfg.Submit.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Submit.PollInterval)
		if err != nil {
			return fmt.Errorf("config submit.poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Submit.Timeout != "" {
		d, err := time.ParseDuration(cfg.Submit.Timeout)
		if err != nil {
			return fmt.Errorf("config submit.timeout: %w", err)
		}
		settings.SubmitTimeout = d
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("CONTRACT_URL"); v != "" {
		settings.URL = v
	}
	if v := os.Getenv("CONTRACT_OUTPUT"); v != "" {
		settings.OutputMode = OutputMode(strings.ToLower(v))
	}
	if v := os.Getenv("CONTRACT_VERBOSITY"); v != "" {
		settings.Verbosity = Verbosity(strings.ToLower(v))
	}
	if v := os.Getenv("CONTRACT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("CONTRACT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("CONTRACT_CODEC_PATH"); v != "" {
		settings.CodecPath = v
	}
	if v := os.Getenv("CONTRACT_SS58_PREFIX"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			settings.SS58Prefix = uint16(n)
		}
	}
	if v := os.Getenv("CONTRACT_ENABLE_COMMANDS"); v != "" {
		settings.EnableCommands = splitCSV(v)
	}
	if v := os.Getenv("CONTRACT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PollInterval = d
		}
	}
	if v := os.Getenv("CONTRACT_SUBMIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.SubmitTimeout = d
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.OutputJSON && flags.Verbose {
		return fmt.Errorf("cannot use --output-json and --verbose together")
	}
	if flags.Verbose && flags.Quiet {
		return fmt.Errorf("cannot use --verbose and --quiet together")
	}
	if flags.OutputJSON {
		settings.OutputMode = OutputJSON
	}
	if flags.Verbose {
		settings.Verbosity = VerbosityVerbose
	}
	if flags.Quiet {
		settings.Verbosity = VerbosityQuiet
	}
	if strings.TrimSpace(flags.URL) != "" {
		settings.URL = strings.TrimSpace(flags.URL)
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if strings.TrimSpace(flags.CodecPath) != "" {
		settings.CodecPath = flags.CodecPath
	}
	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitCSV(flags.EnableCommands)
	}

	if settings.OutputMode != OutputJSON && settings.OutputMode != OutputPlain {
		return fmt.Errorf("output must be json or plain")
	}
	switch settings.Verbosity {
	case VerbosityQuiet, VerbosityDefault, VerbosityVerbose:
	default:
		return fmt.Errorf("verbosity must be quiet, default or verbose")
	}
	if settings.OutputMode == OutputJSON && settings.Verbosity == VerbosityVerbose {
		return fmt.Errorf("cannot use --output-json and --verbose together")
	}
	return nil
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		norm := strings.ToLower(strings.TrimSpace(part))
		if norm != "" {
			out = append(out, norm)
		}
	}
	return out
}
