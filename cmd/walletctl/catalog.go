package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wallet-engine/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with product catalog documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check FILE",
		Short: "Validate a TOML catalog and summarise it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			type summary struct {
				Category   string `json:"category" yaml:"category"`
				Type       string `json:"productType" yaml:"productType"`
				ChargeType string `json:"chargeType" yaml:"chargeType"`
				Products   int    `json:"products" yaml:"products"`
			}
			out := make([]summary, 0, len(doc.Categories))
			for _, c := range doc.Categories {
				out = append(out, summary{
					Category:   fmt.Sprintf("%s/%s", c.Provider, c.Name),
					Type:       c.ProductType,
					ChargeType: c.ChargeType,
					Products:   len(c.Products),
				})
			}
			return printValue(cmd, out)
		},
	})
	return cmd
}
