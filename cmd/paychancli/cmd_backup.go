package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/iov-one/paychan/store"
)

func cmdExport(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Write a JSON backup of the local store to the output.

The backup contains the channel keys. Anyone holding it can sign payments on
your channels.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
	)
	fl.Parse(args)

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := c.Export()
	if err != nil {
		return fmt.Errorf("cannot export channels: %s", err)
	}
	return writeJSON(output, snap)
}

func cmdImport(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Read a JSON backup created by the export command from the input and write all
of its channels into the local store. Local records with the same channel ID
are replaced. Nothing is written if the backup contains an invalid record.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
	)
	fl.Parse(args)

	raw, err := ioutil.ReadAll(input)
	if err != nil {
		return fmt.Errorf("cannot read input: %s", err)
	}
	snap, err := store.ParseSnapshot(raw)
	if err != nil {
		return fmt.Errorf("invalid backup: %s", err)
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := c.Import(snap); err != nil {
		return fmt.Errorf("cannot import channels: %s", err)
	}
	_, err = fmt.Fprintf(output, "imported %d channels\n", len(snap))
	return err
}
