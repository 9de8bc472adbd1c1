package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/script-bridge/env"
)

func main() {
	var (
		scriptFile  = flag.String("script", "", "Script file to run instead of the interactive shell")
		gcThreshold = flag.Int("gc-threshold", 0, "Cell allocations between implicit collection passes (0 = default)")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if err := run(*scriptFile, *gcThreshold, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(scriptFile string, gcThreshold int, verbose bool) error {
	ctx := context.Background()

	log := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		log = dev
		defer log.Sync()
	}

	opts := []env.Option{env.WithLogger(log), env.WithConsole()}
	if gcThreshold > 0 {
		opts = append(opts, env.WithGCThreshold(gcThreshold))
	}

	e, err := env.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	defer e.Close()

	if scriptFile != "" {
		src, err := os.ReadFile(scriptFile)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		if _, err := e.Eval(string(src)); err != nil {
			return err
		}
		return nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return runBatch(e)
	}
	return runInteractive(e)
}

// runBatch evaluates piped input line by line, no TUI.
func runBatch(e *env.Env) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := e.Eval(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if v != nil {
			fmt.Println(v.String())
		}
	}
	return scanner.Err()
}
