// Command kedo runs and bundles JavaScript modules against the kedo
// runtime. Subcommand dispatch follows the one-shot-man style of a
// FlagSet per subcommand rather than a single flat flag set, since
// `run` and `bundle` take disjoint flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	kedo "github.com/kedoruntime/kedo"
	"github.com/kedoruntime/kedo/internal/core"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "kedo: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "run":
		return runCmd(args[1:])
	case "bundle":
		return bundleCmd(args[1:])
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  kedo run <file> [--strict] [--debug]...")
	fmt.Fprintln(os.Stderr, "  kedo bundle --entry <path> --output <path> [--minify]")
}

type debugCount int

func (d *debugCount) String() string { return fmt.Sprint(int(*d)) }
func (d *debugCount) Set(string) error {
	*d++
	return nil
}
func (d *debugCount) IsBoolFlag() bool { return true }

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	strict := fs.Bool("strict", false, "record strict mode in the runtime config (evaluation does not change)")
	var debug debugCount
	fs.Var(&debug, "debug", "increase debug verbosity; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run requires exactly one file argument")
	}
	entry := fs.Arg(0)

	cfg := core.DefaultConfig()
	cfg.Strict = *strict
	cfg.DebugLevel = int(debug)

	rt, err := kedo.New(cfg)
	if err != nil {
		return fmt.Errorf("starting %s engine: %w", kedo.Engine(), err)
	}
	defer rt.Close()

	if cfg.DebugLevel > 0 {
		fmt.Fprintf(os.Stderr, "kedo: running %s with %s engine\n", entry, kedo.Engine())
	}

	if err := rt.EvaluateModule(entry); err != nil {
		return fmt.Errorf("evaluating %s: %w", entry, err)
	}

	rt.Idle(context.Background())
	return nil
}

func bundleCmd(args []string) error {
	fs := flag.NewFlagSet("bundle", flag.ExitOnError)
	entry := fs.String("entry", "", "entry point module to bundle")
	output := fs.String("output", "", "path to write the bundled output")
	minify := fs.Bool("minify", false, "minify the bundled output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *entry == "" || *output == "" {
		return fmt.Errorf("bundle requires --entry and --output")
	}

	bundled, err := kedo.Bundle(*entry, *minify)
	if err != nil {
		return fmt.Errorf("bundling %s: %w", *entry, err)
	}
	if err := os.WriteFile(*output, []byte(bundled), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", *output, err)
	}
	return nil
}
