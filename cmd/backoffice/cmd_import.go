package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"backoffice/internal/models"
	"backoffice/internal/pagination"
	"backoffice/internal/services"
)

// maxPrintedErrors is how many row errors the import command prints.
const maxPrintedErrors = 20

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Run a pending portfolio import",
	Long: `Run the ingestion pipeline for an existing import and print the
created and error counts followed by the first row errors.

Examples:
  backoffice import --org <org-id> --import <import-id>
  backoffice import --org <org-id> --import <import-id> --sheet Holdings
  backoffice import --org <org-id> --import <import-id> --mapping quantity=Units --mapping instrument_identifier=ISIN`,
	RunE: runImport,
}

var (
	importOrgID    string
	importID       string
	importFile     string
	importSheet    string
	importMappings map[string]string
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check an import's reference data without writing anything",
	RunE:  runPreflight,
}

var exportMissingCmd = &cobra.Command{
	Use:   "export-missing",
	Short: "Write the missing instrument template of an import",
	RunE:  runExportMissing,
}

var exportOut string

func init() {
	rootCmd.AddCommand(importCmd, preflightCmd, exportMissingCmd)

	importCmd.Flags().StringVar(&importOrgID, "org", "", "Organization ID (required)")
	importCmd.Flags().StringVar(&importID, "import", "", "Import ID (required)")
	importCmd.Flags().StringVar(&importFile, "file", "", "Read this file instead of the stored upload")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "Excel worksheet")
	importCmd.Flags().StringToStringVar(&importMappings, "mapping", nil, "Column mapping override as field=column")
	_ = importCmd.MarkFlagRequired("org")
	_ = importCmd.MarkFlagRequired("import")

	for _, cmd := range []*cobra.Command{preflightCmd, exportMissingCmd} {
		cmd.Flags().StringVar(&importOrgID, "org", "", "Organization ID (required)")
		cmd.Flags().StringVar(&importID, "import", "", "Import ID (required)")
		_ = cmd.MarkFlagRequired("org")
		_ = cmd.MarkFlagRequired("import")
	}
	exportMissingCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default: the suggested file name)")
}

func runImport(cmd *cobra.Command, _ []string) error {
	mapping, err := parseMappingFlags(importMappings)
	if err != nil {
		return err
	}
	ctx, err := tenantContext(cmd.Context(), importOrgID)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := services.RunImport(ctx, a.imports, importID, services.ImportOptions{
		FilePath:        importFile,
		SheetName:       importSheet,
		MappingOverride: mapping,
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	errs, err := a.imports.ListErrors(ctx, importID, pagination.PageRequest{Page: 1, PageSize: maxPrintedErrors})
	if err != nil {
		return err
	}
	return printImportResult(cmd.OutOrStdout(), result, errs)
}

func printImportResult(w io.Writer, result *services.ImportResult, errs *pagination.PageResponse[models.PortfolioImportError]) error {
	fmt.Fprintf(w, "Import %s: %s\n", result.ImportID, result.Status)
	fmt.Fprintf(w, "Rows: %d  Created: %d  Errors: %d\n", result.TotalRows, result.Created, result.Errors)
	if errs == nil || len(errs.Data) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nFirst %d of %d errors:\n", len(errs.Data), errs.TotalItems)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tTYPE\tCOLUMN\tMESSAGE")
	for _, e := range errs.Data {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.RowNumber, e.ErrorType, e.ColumnName, e.ErrorMessage)
	}
	return tw.Flush()
}

func runPreflight(cmd *cobra.Command, _ []string) error {
	ctx, err := tenantContext(cmd.Context(), importOrgID)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.preflight.Preflight(ctx, importID)
	if err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runExportMissing(cmd *cobra.Command, _ []string) error {
	ctx, err := tenantContext(cmd.Context(), importOrgID)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := a.exporter.Export(ctx, importID)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	out := exportOut
	if out == "" {
		out = file.Name
	}
	if err := os.WriteFile(out, file.Content, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	return nil
}
