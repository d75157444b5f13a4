package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quotewire/quotewire/internal/rfq"
)

// CatalogSummary holds the catalog command result.
type CatalogSummary struct {
	Valid       bool             `json:"valid"`
	FileCount   int              `json:"file_count"`
	Instruments []rfq.Instrument `json:"instruments"`
	Errors      []string         `json:"errors,omitempty"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog <catalog-dir>",
		Short: "Validate and list an instrument catalog",
		Long: `Validate a CUE instrument catalog and list its instruments.

Catalog directories hold CUE files declaring instruments keyed by cusip
under the top-level "instrument" struct. All definitions are checked
(positive security ids, non-negative minimum sizes, no duplicate
security ids) without touching a journal or engine.

Exit codes:
  0 - Catalog is valid
  1 - One or more instrument definitions are invalid
  2 - Command error (directory not found, no CUE files, etc.)

Examples:
  quotewire catalog ./catalog
  quotewire catalog ./catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCatalog(opts *RootOptions, catalogDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, loadErrors := LoadCatalog(catalogDir, LoadModeCollectAll)

	// Directory-level failures (not found, no files) are command errors.
	if result == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Error())
		}
		_ = formatter.Error(ErrCodeGeneric, loadErrors[0].Error(), nil)
		return NewExitError(ExitCommandError, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, catalogDir)

	summary := CatalogSummary{
		Valid:       len(loadErrors) == 0,
		FileCount:   result.FileCount,
		Instruments: result.Instruments,
	}
	for _, err := range loadErrors {
		summary.Errors = append(summary.Errors, err.Error())
	}

	if opts.Format == "json" {
		return outputCatalogJSON(cmd, summary)
	}
	return outputCatalogText(cmd, summary)
}

func outputCatalogJSON(cmd *cobra.Command, summary CatalogSummary) error {
	response := CLIResponse{
		Status: "ok",
		Data:   summary,
	}
	if !summary.Valid {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("catalog has %d error(s)", len(summary.Errors)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !summary.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("catalog has %d error(s)", len(summary.Errors)))
	}
	return nil
}

func outputCatalogText(cmd *cobra.Command, summary CatalogSummary) error {
	w := cmd.OutOrStdout()

	for _, inst := range summary.Instruments {
		status := "enabled"
		if !inst.Enabled {
			status = "disabled"
		}
		fmt.Fprintf(w, "%s  security_id=%d  min_size=%d  %s\n", inst.Cusip, inst.SecurityID, inst.MinSize, status)
	}

	if !summary.Valid {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "✗ Catalog invalid")
		for _, e := range summary.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("catalog has %d error(s)", len(summary.Errors)))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "✓ Catalog valid: %d instrument(s)\n", len(summary.Instruments))
	return nil
}
