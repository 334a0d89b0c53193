package cli

import (
	"fmt"
	"os"

	"github.com/giygas/protoscan/sources"
	"github.com/spf13/cobra"
)

func formularyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formulary",
		Short: "Manage the WHO essential medicines list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "build <eml.txt> <output.txt>",
		Short: "Extract drug names from the text of the WHO EML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			names, err := sources.BuildFormulary(in)
			if err != nil {
				return err
			}

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := sources.WriteFormulary(out, names); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d drug name(s) to %s\n", len(names), args[1])
			return nil
		},
	})

	return cmd
}
