package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches to one of bazbom's subcommands and returns the process
// exit code, mirroring scanrunner.RunScan's "return an int, let main()
// os.Exit it" shape so the dispatch logic itself stays testable.
func run(args []string) int {
	if len(args) == 0 {
		usage()
		return bzerr.ExitConfigError
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "scan":
		return runScan(rest)
	case "db":
		if len(rest) == 0 || rest[0] != "sync" {
			fmt.Fprintln(os.Stderr, "usage: bazbom db sync [flags]")
			return bzerr.ExitConfigError
		}
		return runDBSync(rest[1:])
	case "policy":
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "usage: bazbom policy check|init [flags]")
			return bzerr.ExitConfigError
		}
		switch rest[0] {
		case "check":
			return runPolicyCheck(rest[1:])
		case "init":
			return runPolicyInit(rest[1:])
		default:
			fmt.Fprintf(os.Stderr, "unknown policy subcommand %q\n", rest[0])
			return bzerr.ExitConfigError
		}
	case "explain":
		return runExplain(rest)
	case "-h", "-help", "--help", "help":
		usage()
		return bzerr.ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", sub)
		usage()
		return bzerr.ExitConfigError
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `bazbom: build-time JVM SBOM, reachability and policy engine

Usage:
  bazbom scan <path> [flags]
  bazbom db sync [flags]
  bazbom policy check --findings <file> --policy-file <file>
  bazbom policy init --template <id> --out <file>
  bazbom explain <id> --findings <file>`)
}

// exitFor maps any error returned from a subcommand's body to a process
// exit code: a *bzerr.Error carries its own code, anything else is an
// unclassified internal failure.
func exitFor(err error) int {
	if err == nil {
		return bzerr.ExitSuccess
	}
	var be *bzerr.Error
	if errors.As(err, &be) {
		return be.ExitCode()
	}
	log.Errorf("%v", err)
	return bzerr.ExitInternal
}
