package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/seatcover-storefront/internal/catalog"
	"github.com/fairyhunter13/seatcover-storefront/internal/config"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
)

var catalogDir string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog maintenance commands",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load a catalog and report what it contains",
	Long: `Loads the catalog the way the server does, trying each candidate path,
and reports brand, model, group and product counts. Models whose year range
cannot be expanded and empty product groups are listed as warnings.`,
	Args: cobra.NoArgs,
	RunE: runCatalogCheck,
}

func init() {
	catalogCheckCmd.Flags().StringVar(&catalogDir, "dir", ".", "directory holding assets/catalog.json")
	catalogCmd.AddCommand(catalogCheckCmd)
}

func runCatalogCheck(cmd *cobra.Command, _ []string) error {
	obs.InitLogger("error")
	src := catalog.FileSource{FS: os.DirFS(catalogDir), Paths: config.Defaults().CatalogPaths}
	snap, err := catalog.NewLoader(src, obs.Logger).Load(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	doc := snap.Document()
	models := 0
	for _, b := range doc.Brands {
		models += len(b.Models)
		for _, m := range b.Models {
			if m.YearList() == nil {
				fmt.Fprintf(out, "warning: %s %s has unusable years %q\n", b.Name, m.Name, m.Years)
			}
		}
	}
	for _, g := range doc.ProductGroups {
		if len(snap.ProductsInGroup(g.ID)) == 0 {
			fmt.Fprintf(out, "warning: product group %s is empty\n", g.ID)
		}
	}
	fmt.Fprintf(out, "brands: %d\nmodels: %d\nproduct groups: %d\nproducts: %d\n",
		len(doc.Brands), models, len(doc.ProductGroups), len(doc.Products))
	return nil
}
