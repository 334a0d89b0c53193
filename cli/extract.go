package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/giygas/protoscan/config"
	"github.com/giygas/protoscan/docx"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/pipeline"
	"github.com/giygas/protoscan/report"
	"github.com/spf13/cobra"
)

type extractOptions struct {
	asJSON bool
	output string
	verify bool
}

func extractCmd() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract <file.docx>",
		Short: "Analyze one protocol without storing it",
		Long: "Extracts the medication table of a protocol and prints the records. " +
			"The AI stage runs when GCP_PROJECT_ID is set; --verify adds the reference lookups.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the analysis as JSON")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Also write the report to this .docx file")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Check each drug against the EML, openFDA, EMA and PubMed")

	return cmd
}

func runExtract(ctx context.Context, out io.Writer, path string, opts extractOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	doc, err := docx.Open(path)
	if err != nil {
		return err
	}

	comps, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	deps := pipeline.Dependencies{
		Translator:  comps.translator,
		CallTimeout: cfg.ExternalTimeout,
	}
	if opts.verify {
		loadReferences(ctx, comps)
		deps.Verifier = comps.verifier
	}

	analysis, err := pipeline.New(deps).Analyze(ctx, doc)
	if err != nil {
		return err
	}
	analysis.Filename = filepath.Base(path)

	if opts.output != "" {
		content, err := report.Export(analysis)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.output, content, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}
	return printRecords(out, analysis)
}

// loadReferences fills the lookups once. A dataset that fails to load leaves
// its status column blank.
func loadReferences(ctx context.Context, comps *components) {
	if names, err := comps.loader.LoadFormulary(ctx); err != nil {
		logging.Warn("Formulary unavailable", "error", err)
	} else {
		comps.refs.UpdateFormulary(names)
	}

	if register, err := comps.loader.LoadRegister(ctx); err != nil {
		logging.Warn("EMA register unavailable", "error", err)
	} else {
		comps.refs.UpdateRegister(register)
	}
}

func printRecords(out io.Writer, a *entities.Analysis) error {
	if a.DiseaseContext != "" {
		fmt.Fprintf(out, "Disease context: %s\n\n", a.DiseaseContext)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(report.Columns, "\t"))
	for _, r := range a.Records {
		row := strings.Join(report.Row(r), "\t")
		fmt.Fprintln(tw, strings.ReplaceAll(row, "\n", " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d medication(s)\n", len(a.Records))
	return nil
}
