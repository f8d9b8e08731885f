// phpwire decodes a PHP serialized payload to JSON.
//
// The payload is read from the file given as the single positional
// argument, or from stdin when none is given. The decoded JSON goes to
// stdout; diagnostics go to stderr.
//
//	phpwire --indent session.bin
//	mysql -N -e 'select data from sessions limit 1' | phpwire
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/acolita/phpwire/pkg/phpserialize"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		strict     bool
		noUnescape bool
		indent     bool
		verbose    bool
		maxDepth   int
		errorsMode string
	)

	flagSet := pflag.NewFlagSet("phpwire", pflag.ContinueOnError)
	flagSet.BoolVar(&strict, "strict", false, "fail on string length mismatches instead of recovering")
	flagSet.BoolVar(&noUnescape, "no-unescape", false, "skip the DB-escape preprocessor")
	flagSet.BoolVar(&indent, "indent", false, "pretty-print the JSON output")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log parse diagnostics to stderr")
	flagSet.IntVar(&maxDepth, "max-depth", phpserialize.DefaultMaxDepth, "maximum value nesting depth")
	flagSet.StringVar(&errorsMode, "errors", "replace", "invalid UTF-8 policy: strict, replace or bytes")
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: phpwire [flags] [file]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var policy phpserialize.ErrorsPolicy
	switch errorsMode {
	case "strict":
		policy = phpserialize.ErrorsStrict
	case "replace":
		policy = phpserialize.ErrorsReplace
	case "bytes":
		policy = phpserialize.ErrorsBytes
	default:
		return fmt.Errorf("unknown --errors mode %q", errorsMode)
	}

	data, err := readInput(flagSet.Args())
	if err != nil {
		return err
	}

	if !phpserialize.IsProbablySerialized(data) {
		logger.Warn("input does not look like PHP serialized data")
	}

	d := phpserialize.NewDeserializer(data,
		phpserialize.WithStrict(strict),
		phpserialize.WithAutoUnescape(!noUnescape),
		phpserialize.WithMaxDepth(maxDepth),
		phpserialize.WithErrors(policy),
	)

	start := time.Now()
	value, err := d.Deserialize()
	if err != nil {
		return err
	}
	logger.Debug("parsed payload",
		"bytes", len(data),
		"slots", d.Slots(),
		"duration", time.Since(start),
	)
	for _, diag := range d.Diagnostics() {
		logger.Debug("recovered string length",
			"pos", diag.Pos,
			"declared", diag.Declared,
			"actual", diag.Actual,
		)
	}
	if rest := d.Rest(); len(rest) > 0 {
		logger.Warn("trailing bytes after value", "count", len(rest))
	}

	var out string
	if indent {
		out, err = phpserialize.ToJSONIndent(value, policy)
	} else {
		out, err = phpserialize.ToJSON(value, policy)
	}
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func readInput(args []string) ([]byte, error) {
	switch len(args) {
	case 0:
		return io.ReadAll(os.Stdin)
	case 1:
		return os.ReadFile(args[0])
	default:
		return nil, fmt.Errorf("expected at most one input file, got %d", len(args))
	}
}
