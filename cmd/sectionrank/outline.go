package main

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/sectionrank/internal/outline"
	"github.com/dgallion1/sectionrank/internal/parser"
)

func outlineCmd() *cobra.Command {
	var pdftotext bool

	cmd := &cobra.Command{
		Use:   "outline <file>",
		Short: "Print the outline derived from a document's own headings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := parser.ParseFile(args[0], parser.Options{PDFFallbackPdftotext: pdftotext})
			if err != nil {
				return err
			}
			f := outline.ToFile(doc.Title, outline.FromDocument(filepath.Base(args[0]), doc))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(f)
		},
	}
	cmd.Flags().BoolVar(&pdftotext, "pdftotext", true, "fall back to the pdftotext binary when the PDF reader fails")
	return cmd
}
