package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mosaicnetworks/mxboard/src/config"
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/mxboard"
	"github.com/mosaicnetworks/mxboard/src/proxy/dummy"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a board node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMXBoard,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMXBoard(cmd *cobra.Command, args []string) error {
	logger := _config.MXBoard.Logger()

	client := dummy.NewInmemDummyClient(logger)
	_config.MXBoard.Proxy = client

	engine := mxboard.NewMXBoard(&_config.MXBoard)

	if err := engine.Init(); err != nil {
		logger.Error("Cannot initialize engine:", err)
		return err
	}

	done := make(chan struct{})

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("Received an interrupt, stopping node")
		engine.Shutdown()
		close(done)
	}()

	if _config.Interactive {
		go readIntents(os.Stdin, os.Stdout, engine, client)
	}

	engine.Run()

	<-done

	return nil
}

// readIntents reads one command per line and submits the corresponding
// intents until in is exhausted.
func readIntents(in io.Reader, out io.Writer, engine *mxboard.MXBoard, client *dummy.InmemDummyClient) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "list" {
			entries, err := engine.Node.GetEntries()
			if err != nil {
				fmt.Fprintf(out, "Error listing entries: %v\n", err)
				continue
			}
			for _, e := range entries {
				fmt.Fprintln(out, e.String())
			}
			continue
		}

		intent, err := parseIntent(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}

		client.Submit(intent)
	}
}

// parseIntent parses "create <key> <value>", "update <key> <value>" or
// "delete <key>". The value is the rest of the line.
func parseIntent(line string) (event.Intent, error) {
	line = strings.TrimSpace(line)

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return event.Intent{}, fmt.Errorf("usage: create|update <key> <value>, delete <key>, list")
	}

	verb, key := strings.ToLower(fields[0]), fields[1]

	rest := strings.TrimSpace(line[len(fields[0]):])
	value := strings.TrimSpace(rest[len(key):])

	switch verb {
	case "create":
		return event.Intent{Kind: event.Create, Key: key, Value: value}, nil
	case "update":
		return event.Intent{Kind: event.Update, Key: key, Value: value}, nil
	case "delete":
		if value != "" {
			return event.Intent{}, fmt.Errorf("delete takes a single key")
		}
		return event.Intent{Kind: event.Delete, Key: key}, nil
	default:
		return event.Intent{}, fmt.Errorf("unknown command %q", verb)
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.MXBoard.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.MXBoard.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.MXBoard.LogFile, "Copy the log output to this file")
	cmd.Flags().String("moniker", _config.MXBoard.Moniker, "Optional name")
	cmd.Flags().Uint32("id", _config.MXBoard.ID, "ID of this node in peers.json (default: look up by address)")

	// Network
	cmd.Flags().StringP("listen", "l", _config.MXBoard.BindAddr, "Listen IP:Port for the UDP socket")
	cmd.Flags().StringP("advertise", "a", _config.MXBoard.AdvertiseAddr, "Advertise IP:Port for the UDP socket")
	cmd.Flags().Int("window-size", _config.MXBoard.WindowSize, "Max number of unacknowledged messages per peer")
	cmd.Flags().Duration("retransmit-timeout", _config.MXBoard.RetransmitTimeout, "Time before unacknowledged messages are resent")
	cmd.Flags().Int("channel-buffer", _config.MXBoard.ChannelBuffer, "Capacity of the inbound datagram queue")

	// Simulated network degradation
	cmd.Flags().Float64("loss", _config.MXBoard.Loss, "Probability of dropping an outbound datagram")
	cmd.Flags().Float64("duplicate", _config.MXBoard.Duplicate, "Probability of duplicating an outbound datagram")
	cmd.Flags().Float64("reorder", _config.MXBoard.Reorder, "Probability of delaying an outbound datagram")
	cmd.Flags().Duration("delay", _config.MXBoard.Delay, "Base latency added to outbound datagrams")
	cmd.Flags().Duration("jitter", _config.MXBoard.Jitter, "Random latency added to outbound datagrams")
	cmd.Flags().Int64("chaos-seed", _config.MXBoard.ChaosSeed, "Seed of the simulated network (0 for random)")

	// Service
	cmd.Flags().Bool("no-service", _config.MXBoard.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.MXBoard.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.MXBoard.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.MXBoard.DatabaseDir, "Dabatabase directory")

	// Application
	cmd.Flags().BoolP("interactive", "i", _config.Interactive, "Read create/update/delete/list commands from stdin")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.MXBoard.SetDataDir(_config.MXBoard.DataDir)

	logFields := logrus.Fields{
		"mxboard.DataDir":           _config.MXBoard.DataDir,
		"mxboard.ID":                _config.MXBoard.ID,
		"mxboard.BindAddr":          _config.MXBoard.BindAddr,
		"mxboard.AdvertiseAddr":     _config.MXBoard.AdvertiseAddr,
		"mxboard.NoService":         _config.MXBoard.NoService,
		"mxboard.ServiceAddr":       _config.MXBoard.ServiceAddr,
		"mxboard.WindowSize":        _config.MXBoard.WindowSize,
		"mxboard.RetransmitTimeout": _config.MXBoard.RetransmitTimeout,
		"mxboard.ChannelBuffer":     _config.MXBoard.ChannelBuffer,
		"mxboard.Store":             _config.MXBoard.Store,
		"mxboard.LogLevel":          _config.MXBoard.LogLevel,
		"mxboard.Moniker":           _config.MXBoard.Moniker,
		"Interactive":               _config.Interactive,
	}

	if _config.MXBoard.Store {
		logFields["mxboard.DatabaseDir"] = _config.MXBoard.DatabaseDir
	}

	if _config.MXBoard.Chaotic() {
		logFields["mxboard.Loss"] = _config.MXBoard.Loss
		logFields["mxboard.Duplicate"] = _config.MXBoard.Duplicate
		logFields["mxboard.Reorder"] = _config.MXBoard.Reorder
		logFields["mxboard.Delay"] = _config.MXBoard.Delay
		logFields["mxboard.Jitter"] = _config.MXBoard.Jitter
	}

	_config.MXBoard.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/mxboard.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigFile) // name of config file (without extension)
	viper.AddConfigPath(_config.MXBoard.DataDir)  // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.MXBoard.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.MXBoard.Logger().Debugf("No config file found in: %s", _config.MXBoard.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
