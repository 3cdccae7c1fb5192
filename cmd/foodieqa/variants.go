package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/resolver"
	"foodieqa/internal/transport/rest/handler"
)

// variantsCmd lists the prompt variant registry
var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List the prompt variants and the adaptive routing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tKIND\tCONTEXT\tEXTRACTION")
		for _, v := range handler.DescribeVariants(prompt.Default()) {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Kind, v.Augmentation, v.Extraction)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		policy := resolver.DefaultPolicy()
		fmt.Fprintln(out, "\nAdaptive routing:")
		for _, cat := range model.Categories {
			fmt.Fprintf(out, "  %-16s -> %d\n", cat, policy.Variant(cat))
		}
		fmt.Fprintf(out, "  %-16s -> %d\n", "(other)", policy.Variant(""))
		return nil
	},
}
