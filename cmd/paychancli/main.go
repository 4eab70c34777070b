package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/iov-one/paychan"
)

// commands is a register of all available commands that can be executed by
// this program. The name is used to match with the first argument given.
//
// A command function is given stdin, stdout and the command line arguments
// without the program name and the command name. It is expected to read and
// write only to provided input and output. In a special case of an invalid
// argument a message to os.Stderr and os.Exit(2) call are allowed.
//
// Commands exchanging payments read and write the encoded signed state, so
// that a unix pipe can hand a payment from the sender to the receiver:
//
//   $ paychancli pay -channel 5f0c... -amount 0.5 \
//       | ssh receiver paychancli verify
//
var commands = map[string]func(input io.Reader, output io.Writer, args []string) error{
	"channel":            cmdChannel,
	"close":              cmdClose,
	"close-state":        cmdCloseState,
	"export":             cmdExport,
	"force-close-finish": cmdForceCloseFinish,
	"force-close-start":  cmdForceCloseStart,
	"import":             cmdImport,
	"keygen":             cmdKeygen,
	"list":               cmdList,
	"open":               cmdOpen,
	"pay":                cmdPay,
	"topup":              cmdTopup,
	"track":              cmdTrack,
	"verify":             cmdVerify,
	"version":            cmdVersion,
	"withdraw":           cmdWithdraw,
}

func main() {
	if len(os.Args) == 1 {
		fmt.Fprintf(os.Stderr, "%s is a command line client for payment channels.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s <command> [<flags>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nAvailable commands are:\n\t%s\n", strings.Join(availableCmds(), "\n\t"))
		fmt.Fprintf(os.Stderr, "Run '%s <command> -help' to learn more about each command.\n", os.Args[0])
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "\nAvailable commands are:\n\t%s\n", strings.Join(availableCmds(), "\n\t"))
		os.Exit(2)
	}

	// Skip two first arguments. Second argument is the command name that
	// we just consumed.
	if err := run(os.Stdin, os.Stdout, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func availableCmds() []string {
	available := make([]string, 0, len(commands))
	for name := range commands {
		available = append(available, name)
	}
	sort.Strings(available)
	return available
}

func cmdVersion(in io.Reader, out io.Writer, args []string) error {
	fmt.Fprintln(out, paychan.Version())
	return nil
}
