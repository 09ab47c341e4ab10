package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	searchx "github.com/tanpawarit/chative-commerce/agent/search"
	configx "github.com/tanpawarit/chative-commerce/pkg/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the product vector index from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		catalog, err := openCatalog()
		if err != nil {
			return err
		}
		products, err := catalog.All(ctx)
		if err != nil {
			return err
		}

		cfg, err := configx.New[searchx.Config]("SEARCH")
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		embedder, err := searchx.NewOpenAIEmbedder(*cfg)
		if err != nil {
			return err
		}
		index, err := searchx.NewQdrantIndex(*cfg)
		if err != nil {
			return err
		}
		defer index.Close()

		n, err := searchx.Rebuild(ctx, embedder, index, cfg.EmbeddingDimensions, products)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d products into %q\n", n, cfg.Collection)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
