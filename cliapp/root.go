// Package cliapp provides the command-line entry points for the three
// autoland binaries (orchestrator, pusher, classifier). It builds one
// cobra.Command per binary, wires Viper configuration precedence
// (flags > environment > config file > defaults) the way the teacher's
// cli/root.go does for its single HTTP-server command, and drives each
// binary's tick loop until SIGINT/SIGTERM, grounded on cli/root.go's
// signal.Notify-then-Shutdown shape generalized to context.Context
// cancellation (spec.md §9's explicit-tick-loop REDESIGN FLAG).
package cliapp

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.mozilla.org/autoland/config"
	"go.mozilla.org/autoland/obslog"
)

// cfgFiles holds every --config-file path given (repeatable), mirroring the
// teacher's single cfgFile but generalized to accept more than one layered
// file (spec.md §6's classifier-specific repeatable flag).
var cfgFiles []string

// verbosity counts -v/--verbose occurrences; 0 is info, 1 is debug.
var verbosity int

// purgeQueue is set by --purge-queue on every one of the three commands.
var purgeQueue bool

// addCommonFlags registers the flags shared by all three binaries and binds
// them into Viper, mirroring cli/root.go's flag-to-Viper binding block.
func addCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringArrayVar(&cfgFiles, "config-file", nil, "configuration file (repeatable, later files override earlier ones)")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&purgeQueue, "purge-queue", false, "purge this process's bus queue on startup, after an interactive confirmation")

	cmd.PersistentFlags().String("bus-url", "", "AMQP bus URL")
	cmd.PersistentFlags().String("store-url", "", "Postgres store URL")
	cmd.PersistentFlags().String("log-format", "", "log format: text or json")

	viper.BindPFlag("bus.url", cmd.PersistentFlags().Lookup("bus-url"))
	viper.BindPFlag("store.url", cmd.PersistentFlags().Lookup("store-url"))
	viper.BindPFlag("process.log_format", cmd.PersistentFlags().Lookup("log-format"))
}

// initConfig loads every --config-file into Viper in order (later files
// win) and enables automatic environment variable mapping, mirroring
// cli/root.go's initConfig but generalized from a single fixed search path
// to the explicit repeatable flag spec.md §6 calls for.
func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, f := range cfgFiles {
		viper.SetConfigFile(f)
		if err := viper.MergeInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read config file %s: %v\n", f, err)
			continue
		}
		fmt.Println("Using config file:", f)
	}
}

// loadAutolandConfig loads the full configuration, applying the
// command-line flag overrides initConfig's Viper bindings captured, and
// builds the process logger from it.
func loadAutolandConfig(processName string) (*config.AutolandConfig, *logrus.Logger, error) {
	initConfig()

	cfg, err := config.LoadAutolandConfig("AUTOLAND")
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if v := viper.GetString("bus.url"); v != "" {
		cfg.Bus.URL = v
	}
	if v := viper.GetString("store.url"); v != "" {
		cfg.Store.URL = v
	}
	if v := viper.GetString("process.log_format"); v != "" {
		cfg.Process.LogFormat = v
	}

	level := obslog.LevelInfo
	if verbosity > 0 {
		level = obslog.LevelDebug
	}
	logger := obslog.New(obslog.Config{Level: level, Format: cfg.Process.LogFormat, Process: processName})
	return cfg, logger, nil
}

// confirmPurge prompts on stdin for a y/N confirmation before a queue purge,
// mirroring cli/consumer.go's interactive-teardown posture but requiring an
// explicit affirmative answer rather than proceeding by default.
func confirmPurge(queue string) bool {
	fmt.Printf("Purge queue %q? This discards every message currently enqueued. [y/N] ", queue)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}
