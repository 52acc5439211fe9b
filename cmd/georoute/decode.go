package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/georoute/internal/geosite"
)

func newDecodeCmd() *cobra.Command {
	var categories []string

	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Print the host-matchable domains of categories in a list file",
		Example: `  georoute decode dlc.dat --category YOUTUBE
  georoute decode dlc.dat -c YOUTUBE -c GOOGLE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read list: %w", err)
			}
			return decodeList(cmd.OutOrStdout(), buf, categories)
		},
	}

	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Category code to print (repeatable, case-sensitive)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

// decodeList writes one block per category in flag order, then the number of
// skipped entries
func decodeList(w io.Writer, buf []byte, categories []string) error {
	res, err := geosite.Decode(buf, categories)
	if err != nil {
		return err
	}

	byCategory := make(map[string][]geosite.Record, len(categories))
	for _, r := range res.Records {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	for _, c := range categories {
		recs := byCategory[c]
		domains := geosite.HostDomains(recs)
		fmt.Fprintf(w, "# %s: %d domains (%d records)\n", c, len(domains), len(recs))
		for _, d := range domains {
			fmt.Fprintln(w, d)
		}
	}
	fmt.Fprintf(w, "# skipped entries: %d\n", res.Skipped)
	return nil
}
