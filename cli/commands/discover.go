package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/discovery"
)

func (a *App) newDiscoverCommand() *cobra.Command {
	var (
		topN         int
		filterText   string
		imagePath    string
		noConfidence bool
	)
	cmd := &cobra.Command{
		Use:   "discover <query>",
		Short: "Search products by meaning, optionally with a filter or image",
		Long: `Run a discovery search. Results keep the server's ranking.

The filter is JSON, either an object of equality matches or a list of
clauses.

Examples:
  showroom discover "modern glass door" --top-n 5
  showroom discover "door" --filter '{"in_stock": true}'
  showroom discover "door" --filter '[{"key":"price","operator":"<","value":500}]'
  showroom discover "something like this" --image ./photo.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &discovery.SearchRequest{
				Query: strings.Join(args, " "),
				TopN:  topN,
			}
			if filterText != "" {
				f, err := core.ParseFilter(filterText)
				if err != nil {
					return err
				}
				req.Filter = f
			}
			if imagePath != "" {
				img, err := loadImage(imagePath)
				if err != nil {
					return err
				}
				req.Image = img
			}
			if noConfidence {
				off := false
				req.IncludeConfidenceMessage = &off
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}
			res, err := discovery.New(c).Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(res)
			}
			if msg := res.Confidence(); msg != "" {
				fmt.Fprintf(a.stdout, "%s\n\n", msg)
			}
			if len(res.Items) == 0 {
				fmt.Fprintln(a.stdout, "No matching products.")
				return nil
			}
			return writeResultTable(a.stdout, res.Items)
		},
	}
	cmd.Flags().IntVar(&topN, "top-n", 0, fmt.Sprintf("maximum results, at most %d (default %d)", discovery.MaxTopN, discovery.DefaultTopN))
	cmd.Flags().StringVar(&filterText, "filter", "", "metadata filter as JSON")
	cmd.Flags().StringVar(&imagePath, "image", "", "image file to search with, or a data: URL")
	cmd.Flags().BoolVar(&noConfidence, "no-confidence", false, "do not ask for a confidence message")
	return cmd
}

// loadImage accepts a data URL or a path to an image file.
func loadImage(arg string) (*discovery.Image, error) {
	if strings.HasPrefix(arg, "data:") {
		return discovery.ImageFromDataURL(arg)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, exitWithCode(ExitValidation, fmt.Errorf("read image: %w", err))
	}
	img := discovery.ImageFromBytes(data, filepath.Base(arg))
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
