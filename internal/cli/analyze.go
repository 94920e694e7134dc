package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nhp/internal/adapter/fs"
	"nhp/internal/domain"
)

var (
	analyzeOut    string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|glob>...",
	Short: "Classify the ingredients of product label PDFs",
	Long: `Extract the declared ingredients of each product document and classify every
medicinal ingredient against the knowledge base. One report is produced per file;
a file that cannot be read gets a report with an error instead of failing the run.

Examples:
  nhp analyze label.pdf
  nhp analyze "labels/*.pdf" --out reports.json
  nhp analyze label.pdf --format text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "write reports to this file instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format (json, text)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if analyzeFormat != "json" && analyzeFormat != "text" {
		return fmt.Errorf("unknown format %q", analyzeFormat)
	}

	files, err := fs.NewWalker(nil, nil).Resolve(args)
	if err != nil {
		return err
	}
	uploads, err := fs.ReadUploads(files)
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, GetConfig(), GetRootDir(), true)
	if err != nil {
		return err
	}
	defer rt.Close()

	reports, err := rt.service.Analyze(ctx, uploads)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if analyzeOut != "" {
		f, err := os.Create(analyzeOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if analyzeFormat == "text" {
		writeReportsText(out, reports)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func writeReportsText(w io.Writer, reports []domain.AnalysisReport) {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n", r.Filename)
		fmt.Fprintln(w, strings.Repeat("-", len(r.Filename)))
		if r.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", r.Error)
			continue
		}

		if len(r.MedicinalIngredients) > 0 {
			fmt.Fprintln(w, "  Medicinal:")
			for _, res := range r.MedicinalIngredients {
				monograph := "no monograph"
				if res.MonographFound {
					monograph = "monograph"
				}
				fmt.Fprintf(w, "    %-32s Class %d  %.2f  %s\n", displayName(res.Ingredient), int(res.RegulatoryClass), res.ConfidenceScore, monograph)
			}
		}
		if len(r.NonMedicinalIngredients) > 0 {
			fmt.Fprintln(w, "  Non-medicinal:")
			for _, res := range r.NonMedicinalIngredients {
				fmt.Fprintf(w, "    %s\n", displayName(res.Ingredient))
			}
		}

		s := r.Summary
		fmt.Fprintf(w, "  Total: %d  Medicinal: %d  Non-medicinal: %d  High confidence: %d\n",
			s.TotalIngredients, s.MedicinalCount, s.NonMedicinalCount, s.HighConfidenceCount)
		fmt.Fprintf(w, "  Class 1: %d  Class 2: %d  Class 3: %d\n",
			s.ClassDistribution.Class1, s.ClassDistribution.Class2, s.ClassDistribution.Class3)
	}
}

func displayName(ing domain.Ingredient) string {
	if ing.DeclaredAmount == "" {
		return ing.Name
	}
	return ing.Name + " (" + ing.DeclaredAmount + ")"
}
