package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iov-one/paychan"
)

// flNear returns a balance that is being initialized with given default value
// and optionally overwritten by a command line argument if provided. The
// value is given in NEAR, for example 1.25. This function follows Go's flag
// package convention.
// If given value cannot be deserialized to required type, process is
// terminated.
func flNear(fl *flag.FlagSet, name, defaultVal, usage string) *paychan.Balance {
	var b paychan.Balance
	if defaultVal != "" {
		var err error
		b, err = paychan.ParseNear(defaultVal)
		if err != nil {
			flagDie("Cannot parse %q NEAR amount flag value. %s", name, err)
		}
	}
	fl.Var((*nearValue)(&b), name, usage)
	return &b
}

type nearValue paychan.Balance

func (v *nearValue) String() string {
	if v == nil {
		return "0"
	}
	return paychan.Balance(*v).Near()
}

func (v *nearValue) Set(raw string) error {
	b, err := paychan.ParseNear(raw)
	if err != nil {
		return err
	}
	*v = nearValue(b)
	return nil
}

// flChannel returns a channel id flag value. An empty value is accepted by
// the flag package and must be validated by the command.
func flChannel(fl *flag.FlagSet) *string {
	return fl.String("channel", "", "Channel ID.")
}

// flConfig returns the path of the configuration file. PAYCHAN_CONFIG, even
// if empty, takes precedence over the default location.
func flConfig(fl *flag.FlagSet) *string {
	path, ok := os.LookupEnv("PAYCHAN_CONFIG")
	if !ok {
		path = os.Getenv("HOME") + "/.paychan/config.toml"
	}
	return fl.String("config", path,
		"Path to the configuration file. You can use PAYCHAN_CONFIG environment variable to set it.")
}

// flagDie terminates the program when a flag value is not valid. This
// function is a variable so that it can be replaced in tests.
var flagDie = func(description string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, description+"\n", args...)
	os.Exit(2)
}
