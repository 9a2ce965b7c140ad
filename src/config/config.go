package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/proxy"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigFile is the default name of the optional configuration file
	// in the data directory, without extension.
	DefaultConfigFile = "mxboard"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultBindAddr          = "127.0.0.1:1337"
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultWindowSize        = 10
	DefaultRetransmitTimeout = 500 * time.Millisecond
	DefaultChannelBuffer     = 1024
	DefaultStore             = false
	DefaultLoss              = 0.0
	DefaultDuplicate         = 0.0
	DefaultReorder           = 0.0
	DefaultDelay             = 0 * time.Millisecond
	DefaultJitter            = 0 * time.Millisecond
)

// Config contains all the configuration properties of a board node.
type Config struct {
	// DataDir is the top-level directory containing the node's configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of every log line.
	LogFile string `mapstructure:"log-file"`

	// ID is the id of this node in peers.json. If zero, the node is looked up
	// by its advertised address.
	ID uint32 `mapstructure:"id"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// BindAddr is the local address:port of the UDP socket where this node
	// exchanges messages with other nodes.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service. The service is not
	// started if it is empty or if NoService is set.
	ServiceAddr string `mapstructure:"service-listen"`

	// WindowSize is the number of unacknowledged messages allowed in flight to
	// each peer.
	WindowSize int `mapstructure:"window-size"`

	// RetransmitTimeout is the interval after which unacknowledged messages are
	// sent again.
	RetransmitTimeout time.Duration `mapstructure:"retransmit-timeout"`

	// ChannelBuffer is the capacity of the inbound datagram queue. Datagrams
	// arriving when it is full are dropped.
	ChannelBuffer int `mapstructure:"channel-buffer"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Loss, Duplicate and Reorder are the probabilities with which outbound
	// datagrams are dropped, duplicated or delayed. They simulate a degraded
	// network.
	Loss      float64 `mapstructure:"loss"`
	Duplicate float64 `mapstructure:"duplicate"`
	Reorder   float64 `mapstructure:"reorder"`

	// Delay and Jitter add latency to outbound datagrams.
	Delay  time.Duration `mapstructure:"delay"`
	Jitter time.Duration `mapstructure:"jitter"`

	// ChaosSeed seeds the random source of the simulated network. 0 means
	// random.
	ChaosSeed int64 `mapstructure:"chaos-seed"`

	// Proxy is the application proxy that enables the node to communicate with
	// the application.
	Proxy proxy.AppProxy

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		BindAddr:          DefaultBindAddr,
		ServiceAddr:       DefaultServiceAddr,
		WindowSize:        DefaultWindowSize,
		RetransmitTimeout: DefaultRetransmitTimeout,
		ChannelBuffer:     DefaultChannelBuffer,
		Store:             DefaultStore,
		DatabaseDir:       DefaultDatabaseDir(),
		Loss:              DefaultLoss,
		Duplicate:         DefaultDuplicate,
		Reorder:           DefaultReorder,
		Delay:             DefaultDelay,
		Jitter:            DefaultJitter,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Chaotic reports whether the simulated network degradation is enabled.
func (c *Config) Chaotic() bool {
	return c.Loss > 0 || c.Duplicate > 0 || c.Reorder > 0 || c.Delay > 0 || c.Jitter > 0
}

// Logger returns a formatted logrus Entry, with prefix set to "mxboard".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "mxboard")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".MXBoard")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "MXBoard")
		} else {
			return filepath.Join(home, ".mxboard")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
