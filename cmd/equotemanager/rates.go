package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bher20/equotemanager/internal/rates"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Inspect and manage the rate table",
}

var ratesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active rate table as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		cur := env.Rates.Current()
		out, err := cur.Document.YAML()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# version %s (source: %s)\n", cur.Version, cur.Source)
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var ratesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a JSON or YAML rate document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := rates.Load(args[0])
		if err != nil {
			return err
		}
		if _, err := doc.Table(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (checksum %s)\n", args[0], doc.Checksum())
		return nil
	},
}

var (
	importOut     string
	importPublish bool
)

var ratesImportCmd = &cobra.Command{
	Use:   "import-pdf <path-or-url>",
	Short: "Build a rate document from a PDF price sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src := args[0]

		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			dir, err := os.MkdirTemp("", "equotemanager-pdf")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			dest := filepath.Join(dir, "pricesheet.pdf")
			if err := rates.FetchPriceSheet(ctx, rates.DefaultHTTPClient(), src, dest); err != nil {
				return err
			}
			src = dest
		}

		doc, n, err := rates.ParsePriceSheetPDF(src)
		if err != nil {
			return err
		}
		zap.L().Info("price sheet parsed", zap.String("source", args[0]), zap.Int("rates", n))

		if importPublish {
			env, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer env.Close()
			cur, err := env.Rates.Publish(ctx, doc, "cli")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published version %s\n", cur.Version)
			return nil
		}

		if importOut != "" {
			if err := rates.WriteDocument(importOut, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rates to %s\n", n, importOut)
			return nil
		}

		out, err := doc.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	ratesImportCmd.Flags().StringVarP(&importOut, "out", "o", "", "write the document to this file")
	ratesImportCmd.Flags().BoolVar(&importPublish, "publish", false, "publish the document as the active rate table")
	ratesCmd.AddCommand(ratesShowCmd, ratesValidateCmd, ratesImportCmd)
	rootCmd.AddCommand(ratesCmd)
}
