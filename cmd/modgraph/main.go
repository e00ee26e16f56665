// cmd/modgraph/main.go
//
// Entry point for the modgraph CLI. Every subcommand follows the same flow:
//
// 1. Load .modgraph/config.yaml from the project directory
// 2. Discover and register the module and target descriptors
// 3. Resolve the requested platform context(s)
// 4. Render the build order, waves, paths or the report

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usageText = `usage: modgraph <command> [flags] [args]

commands:
  init              create .modgraph/config.yaml in the project
  resolve           print the build order (comma-separated -platform resolves several)
  waves             print the build order grouped into parallel waves
  why <from> <to>   explain why one module depends on another
  graph             print the dependency graph in Graphviz DOT syntax
  validate          resolve every configured platform and report problems
  browse            explore the resolution interactively

run "modgraph <command> -h" for the flags of a command
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return exitUsage
	}
	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		if name == "help" || name == "-h" || name == "--help" {
			fmt.Fprint(stdout, usageText)
			return exitOK
		}
		fmt.Fprintf(stderr, "modgraph: unknown command %q\n\n%s", name, usageText)
		return exitUsage
	}
	opts := &options{}
	fs := flag.NewFlagSet("modgraph "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts.register(fs, cmd.flags)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if cmd.flags&flagsOutput != 0 && !validFormat(opts.format) {
		fmt.Fprintf(stderr, "modgraph: unknown format %q (want text, json or yaml)\n", opts.format)
		return exitUsage
	}
	err := cmd.run(&cli{opts: opts, args: fs.Args(), stdout: stdout, stderr: stderr})
	return exitCode(stderr, err)
}

func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "modgraph: %v\n", usage.err)
		return exitUsage
	}
	if errors.Is(err, errReported) {
		return exitFailure
	}
	fmt.Fprintf(stderr, "modgraph: %v\n", err)
	return exitFailure
}

// errReported signals a failure whose details were already printed.
var errReported = errors.New("failure reported")

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

type flagSet uint8

const (
	flagsProject flagSet = 1 << iota
	flagsContext
	flagsOutput
	flagsWaves
)

// options holds every flag a subcommand may register.
type options struct {
	project       string
	configPath    string
	platform      string
	configuration string
	target        string
	engineVersion string
	flags         keyValueFlag
	format        string
	maxParallel   int
	metricsFile   string
	noColor       bool
}

func (o *options) register(fs *flag.FlagSet, which flagSet) {
	fs.StringVar(&o.project, "project", "", "path to the project directory (defaults to cwd)")
	fs.StringVar(&o.configPath, "config-file", "", "path to the project config (defaults to .modgraph/config.yaml)")
	fs.StringVar(&o.platform, "platform", "", "target platform, e.g. Win64 or Linux")
	if which&flagsContext != 0 {
		fs.StringVar(&o.configuration, "config", "", "build configuration: debug, development, test or shipping")
		fs.StringVar(&o.target, "target", "", "resolve only the modules reachable from this target")
		fs.StringVar(&o.engineVersion, "engine-version", "", "engine version checked against engine_version constraints")
		fs.Var(&o.flags, "flag", "feature flag (name=true|false, repeatable)")
		fs.StringVar(&o.metricsFile, "metrics-file", "", "write resolution metrics in Prometheus text format")
	}
	if which&flagsOutput != 0 {
		fs.StringVar(&o.format, "format", "text", "output format: text, json or yaml")
		fs.BoolVar(&o.noColor, "no-color", false, "disable colored text output")
	}
	if which&flagsWaves != 0 {
		fs.IntVar(&o.maxParallel, "max-parallel", 0, "maximum modules per wave (0 = unlimited)")
	}
}

type keyValueFlag map[string]bool

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*kv))
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%t", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		// A bare name switches the flag on.
		parts = append(parts, "true")
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("flag name is empty in %q", value)
	}
	on, err := strconv.ParseBool(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("flag %s: expected true or false, got %q", key, parts[1])
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = on
	return nil
}

// bools returns a copy of the parsed flags, or nil when none were given.
func (kv keyValueFlag) bools() map[string]bool {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]bool, len(kv))
	for key, value := range kv {
		out[key] = value
	}
	return out
}
