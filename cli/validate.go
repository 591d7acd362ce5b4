package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ronbb/donut/loader"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a procedure file without executing",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	format, _ := cmd.Flags().GetString("format")
	strict, _ := cmd.Flags().GetBool("strict")
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(filePath) // #nosec G304 -- path from CLI argument
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		return fmt.Errorf("reading file: %w", err)
	}

	def, err := loader.Parse(data)
	if err != nil {
		printDiagnostics(out, []loader.Diagnostic{{
			Code: "LD-000", Severity: loader.SeverityError,
			Message: fmt.Sprintf("failed to parse file: %v", err),
		}}, format)
		return exitError(exitValidation, "validation failed")
	}

	diags := def.Validate()
	printDiagnostics(out, diags, format)

	hasErrs := loader.HasErrors(diags)
	hasWarns := len(warningsOf(diags)) > 0

	if hasErrs || (strict && hasWarns) {
		return exitError(exitValidation, "validation failed")
	}
	return nil
}

func warningsOf(diags []loader.Diagnostic) []loader.Diagnostic {
	var out []loader.Diagnostic
	for _, d := range diags {
		if d.Severity == loader.SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

func errorsOf(diags []loader.Diagnostic) []loader.Diagnostic {
	var out []loader.Diagnostic
	for _, d := range diags {
		if d.Severity == loader.SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// printDiagnostics writes diagnostics to w in the requested format.
func printDiagnostics(w io.Writer, diags []loader.Diagnostic, format string) {
	if format == "json" {
		printDiagnosticsJSON(w, diags)
		return
	}
	printDiagnosticsText(w, diags)
}

func printDiagnosticsText(w io.Writer, diags []loader.Diagnostic) {
	for _, d := range diags {
		sev := strings.ToUpper(d.Severity)
		if d.Path != "" {
			fmt.Fprintf(w, "%s [%s]: %s (at %s)\n", sev, d.Code, d.Message, d.Path)
		} else {
			fmt.Fprintf(w, "%s [%s]: %s\n", sev, d.Code, d.Message)
		}
	}

	errs := errorsOf(diags)
	warns := warningsOf(diags)

	switch {
	case len(errs) == 0 && len(warns) == 0:
		fmt.Fprintln(w, "Valid!")
	case len(errs) == 0 && len(warns) > 0:
		fmt.Fprintf(w, "\nValid! (%d %s)\n", len(warns), pluralize("warning", len(warns)))
	default:
		fmt.Fprintf(w, "\n%d %s, %d %s\n",
			len(errs), pluralize("error", len(errs)),
			len(warns), pluralize("warning", len(warns)))
	}
}

func printDiagnosticsJSON(w io.Writer, diags []loader.Diagnostic) {
	if diags == nil {
		diags = []loader.Diagnostic{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(diags)
}

func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
