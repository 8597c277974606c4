package main

import (
	"fmt"
	"github.com/cockroachdb/errors"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"os"
)

type Options struct {
	Settings string `short:"s" long:"settings" env:"AUTOFEEDR_SETTINGS" description:"Settings file (.json, .yaml, .yml or .toml)" default:"settings.json"`
	LogLevel string `long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	LogJSON  bool   `long:"log-json" description:"Log as JSON"`
}

var options Options

func main() {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	parser := flags.NewParser(&options, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if err := configureLogging(options); err != nil {
			return err
		}
		if command == nil {
			return nil
		}
		return command.Execute(args)
	}
	registerCommands(parser)

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		log.WithField("error", err).Error("Command failed")
		os.Exit(1)
	}
}

func configureLogging(opts Options) error {
	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		return errors.Wrap(err, "failed parsing log level")
	}
	log.SetLevel(level)
	if opts.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stderr)
	return nil
}

func registerCommands(parser *flags.Parser) {
	commands := []struct {
		name        string
		description string
		command     interface{}
	}{
		{"run-once", "Run one job immediately", &runOnceCommand{}},
		{"run-scheduler", "Run jobs on their weekly schedule until interrupted", &runSchedulerCommand{}},
		{"next", "Show the next scheduled job", &nextCommand{}},
		{"history", "Show completed or failed runs", &historyCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.description, c.description, c.command); err != nil {
			log.Fatal(errors.Wrapf(err, "could not register command %s", c.name))
		}
	}
}
