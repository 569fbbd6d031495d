package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskDesk/internal/domain/job"
)

func newProcessCmd(c *cli) *cobra.Command {
	var (
		sheet    string
		column   int
		patterns bool
	)
	cmd := &cobra.Command{
		Use:   "process [FILE]",
		Short: "Upload a spreadsheet (.xlsx or .xls) and run the processing job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				if err := a.jobs.SelectPath(args[0]); err != nil {
					return err
				}
			}

			var params job.Params
			if cmd.Flags().Changed("sheet") {
				params.SpreadsheetKey = &sheet
			}
			if cmd.Flags().Changed("column") {
				params.ColumnIndex = &column
			}
			if cmd.Flags().Changed("default-patterns") {
				params.ApplyDefaultPatterns = &patterns
			}

			res, err := a.jobs.Submit(cmd.Context(), params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:   %s\n", res.Filename)
			fmt.Fprintf(out, "sheet:  %s\n", res.SpreadsheetKey)
			if res.ResultLink != "" {
				fmt.Fprintf(out, "result: %s\n", res.ResultLink)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&sheet, "sheet", "", "target spreadsheet key")
	fl.IntVar(&column, "column", 0, "index of the column to process")
	fl.BoolVar(&patterns, "default-patterns", false, "apply the default error patterns")
	return cmd
}
