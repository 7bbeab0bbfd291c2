package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/discovery"
)

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func productStatus(p core.Product) string {
	if p.IsActive() {
		return "active"
	}
	return "deleted"
}

func writeProductTable(w io.Writer, products []core.Product) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSKU\tNAME\tPRICE\tSTATUS")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.SKU, p.Name, p.Price.StringFixed(2), productStatus(p))
	}
	return tw.Flush()
}

func writeProduct(w io.Writer, p *core.Product) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "SKU:\t%s\n", p.SKU)
	fmt.Fprintf(tw, "Price:\t%s\n", p.Price.StringFixed(2))
	fmt.Fprintf(tw, "Status:\t%s\n", productStatus(*p))
	if p.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", p.Description)
	}
	if p.ImageURL != nil {
		fmt.Fprintf(tw, "Image:\t%s\n", *p.ImageURL)
	}
	if p.HasMetadata() {
		fmt.Fprintf(tw, "Metadata:\t%s\n", p.Metadata)
	}
	return tw.Flush()
}

func writeResultTable(w io.Writer, items []discovery.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSKU\tNAME\tPRICE")
	for _, r := range items {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", r.Similarity, r.SKU, r.Name, r.Price.StringFixed(2))
	}
	return tw.Flush()
}
