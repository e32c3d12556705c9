package dynload

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	envLogLevel                  = "DYNLOAD_LOG_LEVEL"
	envDisableSearchPathChaining = "DYNLOAD_DISABLE_SEARCH_PATH_CHAINING"
)

// Option configures a Loader.
type Option func(*loaderConfig) error

type loaderConfig struct {
	logger           logrus.FieldLogger
	convention       StringConvention
	conventionForced bool
	chainSearchPath  bool
}

// WithLogger sets the logger used for load and unload diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cfg *loaderConfig) error {
		if logger == nil {
			return errors.Wrap(ErrInvalidArgument, "logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStringConvention overrides the platform string convention. Use it for native
// libraries that do not follow their OS default encoding.
func WithStringConvention(convention StringConvention) Option {
	return func(cfg *loaderConfig) error {
		if convention != ConventionUTF8 && convention != ConventionUTF16 {
			return errors.Wrapf(ErrInvalidArgument, "unknown string convention %d", int(convention))
		}
		cfg.convention = convention
		cfg.conventionForced = true
		return nil
	}
}

// WithSearchPathChaining enables or disables adding the library's directory to the
// dependency search path while it is opened. Enabled by default.
func WithSearchPathChaining(enabled bool) Option {
	return func(cfg *loaderConfig) error {
		cfg.chainSearchPath = enabled
		return nil
	}
}

func resolveLoaderConfig(platform PlatformInfo, opts ...Option) (loaderConfig, error) {
	disableChaining, err := parseBoolEnv(envDisableSearchPathChaining)
	if err != nil {
		return loaderConfig{}, err
	}

	cfg := loaderConfig{
		convention:      platform.StringConvention,
		chainSearchPath: !disableChaining,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return loaderConfig{}, err
		}
	}

	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}

var (
	defaultLoggerOnce sync.Once
	sharedLogger      *logrus.Logger
)

// defaultLogger returns a package logger so that loaders never touch the logrus standard logger.
func defaultLogger() *logrus.Logger {
	defaultLoggerOnce.Do(func() {
		sharedLogger = newEnvLogger()
	})
	return sharedLogger
}

func newEnvLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if value := strings.TrimSpace(os.Getenv(envLogLevel)); value != "" {
		if level, err := logrus.ParseLevel(value); err == nil {
			logger.SetLevel(level)
		} else {
			logger.Warnf("ignoring invalid %s value %q", envLogLevel, value)
		}
	}
	return logger
}

func parseBoolEnv(name string) (bool, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return false, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err == nil {
		return parsed, nil
	}

	switch strings.ToLower(value) {
	case "1", "yes", "y", "on":
		return true, nil
	case "0", "no", "n", "off":
		return false, nil
	default:
		return false, errors.Wrapf(ErrInvalidArgument, "invalid boolean value for %s: %q (expected true/false, 1/0, yes/no, on/off)", name, value)
	}
}
