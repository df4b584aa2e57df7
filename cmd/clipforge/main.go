// Package main provides the clipforge command line.
//
// Usage:
//
//	clipforge create [request.json|yaml] [--clip-id ID --start P --end P --transition P]
//	clipforge batch request.json [request.yaml ...]
//	clipforge chain DIR DIR [DIR] -o out.mp4 [--crossfade S] [--reencode] [--push-to-s3]
//	clipforge serve
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// errUsage marks command line mistakes.
var errUsage = errors.New("usage")

const usage = `Usage:
  clipforge create [request.json|yaml] [flags]   generate one clip
  clipforge batch FILE [FILE...]                 generate clips in parallel
  clipforge chain DIR DIR [DIR] -o OUT [flags]   join clips into one video
  clipforge serve                                run the HTTP API

Configuration is read from the environment.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitConfig
	}

	var err error
	switch args[0] {
	case "create":
		err = runCreate(ctx, args[1:], stdout, stderr)
	case "batch":
		err = runBatch(ctx, args[1:], stdout, stderr)
	case "chain":
		err = runChain(ctx, args[1:], stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
		fmt.Fprint(stderr, usage)
	}

	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

// parseArgs parses flags that may appear before, between or after
// positional arguments and returns the positional ones in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}
