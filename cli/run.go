package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/raushankrgupta/product-image-scraper/models"
	"github.com/raushankrgupta/product-image-scraper/sheet"
)

func runCommand() *cobra.Command {
	var (
		input  string
		column string
		output string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape image links for every URL in a spreadsheet column",
		Example: `  imagescraper run --input products.csv --column url --output scraped_images.csv
  imagescraper run --input products.xlsx --column "Product URL" > scraped_images.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := loadURLs(input, column)
			if err != nil {
				return err
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			status := cmd.ErrOrStderr()
			newExtractor := newExtractorFactory(logger, prometheus.NewRegistry())
			extractor := newExtractor(func(p models.Progress) {
				fmt.Fprintf(status, "[%d/%d] %s\n", p.Index+1, p.Total, p.Message())
			})

			results, err := extractor.Extract(cmd.Context(), urls)
			if err != nil {
				return err
			}

			if output == "" {
				if !quiet {
					renderTable(status, results)
				}
				return sheet.WriteResults(cmd.OutOrStdout(), results)
			}

			if !quiet {
				renderTable(cmd.OutOrStdout(), results)
			}
			return writeResultFile(output, results)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV or XLSX file with product page URLs")
	cmd.Flags().StringVarP(&column, "column", "c", "", "name of the column holding the URLs")
	cmd.Flags().StringVarP(&output, "output", "o", "", "result CSV path (default stdout)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the result table")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func columnsCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List the columns of a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := openTable(input)
			if err != nil {
				return err
			}
			for _, c := range table.Columns() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV or XLSX file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func openTable(path string) (*sheet.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return sheet.Read(path, f)
}

func loadURLs(path, column string) ([]string, error) {
	table, err := openTable(path)
	if err != nil {
		return nil, err
	}
	urls, err := table.Column(column)
	if err != nil {
		if errors.Is(err, sheet.ErrUnknownColumn) {
			return nil, fmt.Errorf("%w (available: %v)", err, table.Columns())
		}
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("column %q has no URLs", column)
	}
	return urls, nil
}

func writeResultFile(path string, results []models.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return sheet.WriteResults(f, results)
}
