package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/petal-labs/showroom/catalog"
	"github.com/petal-labs/showroom/core"
)

func (a *App) newProductsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"catalog"},
		Short:   "Browse the product catalog",
	}
	cmd.AddCommand(a.newProductsListCommand())
	cmd.AddCommand(a.newProductsGetCommand())
	return cmd
}

func (a *App) newProductsListCommand() *cobra.Command {
	var (
		params catalog.ListParams
		order  string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog products one page at a time",
		Long: `List catalog products, including soft-deleted ones.

Examples:
  showroom products list --limit 50 --sort-by price --sort-order desc
  showroom products list --search door
  showroom products list --all --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params.SortOrder = catalog.SortOrder(order)
			c, err := a.newClient()
			if err != nil {
				return err
			}
			products := catalog.New(c)

			if all {
				return a.listAll(cmd, products, params)
			}

			page, err := products.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(page)
			}
			if err := writeProductTable(a.stdout, page.Items); err != nil {
				return err
			}
			p := page.Pagination
			fmt.Fprintf(a.stdout, "\npage %d of %d (%d products)\n", p.Page, p.Pages, p.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&params.Page, "page", 0, "page number (default 1)")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, fmt.Sprintf("page size, at most %d (default %d)", catalog.MaxLimit, catalog.DefaultLimit))
	cmd.Flags().StringVar(&params.SortBy, "sort-by", "", "sort field, e.g. name, price, createdAt")
	cmd.Flags().StringVar(&order, "sort-order", "", "asc or desc")
	cmd.Flags().StringVar(&params.Search, "search", "", "search text")
	cmd.Flags().BoolVar(&all, "all", false, "walk every page from --page on")
	return cmd
}

func (a *App) listAll(cmd *cobra.Command, products *catalog.Client, params catalog.ListParams) error {
	var items []core.Product
	for p, err := range products.All(cmd.Context(), params) {
		if err != nil {
			return err
		}
		items = append(items, p)
	}
	if a.jsonOutput {
		if items == nil {
			items = []core.Product{}
		}
		return a.printJSON(items)
	}
	if err := writeProductTable(a.stdout, items); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\n%d products\n", len(items))
	return nil
}

func (a *App) newProductsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return exitWithCode(ExitValidation, fmt.Errorf("invalid product id %q: %w", args[0], err))
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}
			p, err := catalog.New(c).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(p)
			}
			return writeProduct(a.stdout, p)
		},
	}
}
