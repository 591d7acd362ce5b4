package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ronbb/donut/bus"
	"github.com/ronbb/donut/loader"
	"github.com/ronbb/donut/scheduler"
	"github.com/ronbb/donut/script"
	"github.com/ronbb/donut/variant"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a procedure file to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}

	cmd.Flags().StringP("input", "i", "", "Initial state as a JSON object")
	cmd.Flags().StringP("input-file", "f", "", "Path to a JSON file holding the initial state")
	cmd.Flags().StringP("output", "o", "", "Write the final state to this path instead of stdout")
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Duration("timeout", 5*time.Minute, "Maximum wall-clock time for the run")
	cmd.Flags().Bool("dry-run", false, "Load and validate the file without executing it")
	cmd.Flags().Bool("trace", false, "Print every scheduler event to stderr as it happens")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP collector endpoint; enables tracing and metrics when set")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	procedure, diags, err := loader.LoadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		var diagErr *loader.DiagnosticError
		if errors.As(err, &diagErr) {
			printDiagnosticsText(cmd.ErrOrStderr(), diagErr.Diagnostics)
			return exitError(exitValidation, "validation failed")
		}
		return exitError(exitValidation, "%v", err)
	}
	if len(diags) > 0 {
		printDiagnosticsText(cmd.ErrOrStderr(), diags)
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d node(s))\n", procedure.Name, len(procedure.Nodes))
		return nil
	}

	initial, err := loadInitialState(cmd)
	if err != nil {
		return err
	}

	var eventBus bus.EventBus
	var mem *bus.MemBus
	trace, _ := cmd.Flags().GetBool("trace")
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint")
	if trace || otelEndpoint != "" {
		mem = bus.NewMemBus(bus.MemBusConfig{SubscriberBufferSize: 256})
		eventBus = mem
	}
	if trace {
		go drainTrace(cmd, mem.SubscribeAll())
	}
	if otelEndpoint != "" {
		telem, err := setupTelemetry(cmd.Context(), otelEndpoint)
		if err != nil {
			return exitError(exitRuntime, "%v", err)
		}
		stopWiring, err := wireTelemetry(telem, mem)
		if err != nil {
			return exitError(exitRuntime, "%v", err)
		}
		defer func() {
			stopWiring()
			_ = telem.shutdown(context.Background())
		}()
	}

	cfg := scheduler.DefaultConfig(script.New())
	cfg.Bus = eventBus
	s, err := scheduler.New(cfg)
	if err != nil {
		return exitError(exitRuntime, "constructing scheduler: %v", err)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	final, err := s.Run(ctx, procedure, initial)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return exitError(exitTimeout, "run timed out after %s", timeout)
	}
	if err != nil {
		return exitError(exitRuntime, "run failed: %v", err)
	}

	return writeFinalState(cmd, final)
}

func drainTrace(cmd *cobra.Command, sub bus.Subscription) {
	for e := range sub.Events() {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		fmt.Fprintln(cmd.ErrOrStderr(), string(line))
	}
}

func loadInitialState(cmd *cobra.Command) (*variant.State, error) {
	inline, _ := cmd.Flags().GetString("input")
	inputFile, _ := cmd.Flags().GetString("input-file")

	if inline != "" && inputFile != "" {
		return nil, exitError(exitInputParse, "cannot specify both --input and --input-file")
	}

	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case inputFile != "":
		raw, err := os.ReadFile(inputFile) // #nosec G304 -- path from CLI argument
		if err != nil {
			if os.IsNotExist(err) {
				return nil, exitError(exitFileNotFound, "input file not found: %s", inputFile)
			}
			return nil, exitError(exitInputParse, "reading input file: %v", err)
		}
		data = raw
	default:
		return nil, nil
	}

	st, err := variant.StateFromJSON(data)
	if err != nil {
		return nil, exitError(exitInputParse, "parsing initial state: %v", err)
	}
	return st, nil
}

func writeFinalState(cmd *cobra.Command, final *variant.State) error {
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	var output string
	switch format {
	case "json":
		data, err := variant.StateToJSON(final)
		if err != nil {
			return exitError(exitRuntime, "marshaling final state: %v", err)
		}
		output = string(data)
	case "text":
		keys := final.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			v, _ := final.Get(k)
			output += fmt.Sprintf("%s = %s\n", k, v.GoString())
		}
	default:
		return exitError(exitInputParse, "unknown format %q (use json or text)", format)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(output), 0o600); err != nil {
			return exitError(exitRuntime, "writing output file: %v", err)
		}
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	if format == "json" {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
