package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"iaptool/internal/catalog"
	"iaptool/internal/fileutil"
	"iaptool/internal/services"
	"iaptool/internal/target"
)

// entryFlags locate a firmware image in the catalog tree.
type entryFlags struct {
	series     string
	product    string
	name       string
	version    string
	chipFamily string
	chipType   string
}

func (f *entryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.series, "series", "", "Series name")
	cmd.Flags().StringVar(&f.product, "product", "", "Product name")
	cmd.Flags().StringVar(&f.name, "name", "", "Firmware name")
	cmd.Flags().StringVar(&f.version, "version", "", "Firmware version")
	cmd.Flags().StringVar(&f.chipFamily, "chip-family", "", "Chip family (stored as chip_series)")
	cmd.Flags().StringVar(&f.chipType, "chip-type", "", "Chip type as known to probe-rs")
}

func (f *entryFlags) key() catalog.ImageKey {
	return catalog.ImageKey{Name: f.name, Version: f.version, ChipFamily: f.chipFamily, ChipType: f.chipType}
}

func (f *entryFlags) requireLocation() error {
	var missing []string
	for _, field := range []struct{ flag, value string }{
		{"--series", f.series},
		{"--product", f.product},
		{"--name", f.name},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.flag)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required flags %s", services.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// lookupEntry resolves flags to exactly one image.
func lookupEntry(cat *catalog.Catalog, f *entryFlags) (catalog.FirmwareImage, error) {
	image, err := cat.Lookup(f.series, f.product, f.key())
	switch {
	case errors.Is(err, catalog.ErrAmbiguous):
		return image, fmt.Errorf("%w: %w (narrow it with --version, --chip-family or --chip-type)", services.ErrValidation, err)
	case errors.Is(err, catalog.ErrNotFound):
		return image, fmt.Errorf("%w: %w", services.ErrNotFound, err)
	}
	return image, err
}

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse and edit the firmware catalog",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	catalogCmd.AddCommand(newCatalogUpsertCommand(ctx))
	catalogCmd.AddCommand(newCatalogDeleteCommand(ctx))
	catalogCmd.AddCommand(newCatalogExportCommand(ctx))
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))

	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var series string
	var product string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List firmware images by series and product",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := ctx.loadCatalog()
			entries := filterEntries(cat.Entries(), series, product)
			if ctx.jsonOutput() {
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Series,
					e.Product,
					e.Image.Label(),
					e.Image.ChipFamily,
					e.Image.FWPath,
				})
			}
			caption := fmt.Sprintf("%d series, %d images", len(cat.Series), len(entries))
			fmt.Fprintln(out, renderTable([]string{"Series", "Product", "Firmware", "Chip family", "Path"}, rows, nil, caption))
			return nil
		},
	}

	cmd.Flags().StringVar(&series, "series", "", "Only list this series")
	cmd.Flags().StringVar(&product, "product", "", "Only list this product")
	return cmd
}

func filterEntries(entries []catalog.Entry, series, product string) []catalog.Entry {
	if series == "" && product == "" {
		return entries
	}
	filtered := entries[:0:0]
	for _, e := range entries {
		if series != "" && !catalog.SameName(e.Series, series) {
			continue
		}
		if product != "" && !catalog.SameName(e.Product, product) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one firmware image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.requireLocation(); err != nil {
				return err
			}
			image, err := lookupEntry(ctx.loadCatalog(), flags)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, catalog.Entry{Series: flags.series, Product: flags.product, Image: image})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Series:      %s\n", flags.series)
			fmt.Fprintf(out, "Product:     %s\n", flags.product)
			fmt.Fprintf(out, "Name:        %s\n", image.Name)
			fmt.Fprintf(out, "Version:     %s\n", image.Version)
			fmt.Fprintf(out, "Chip family: %s\n", image.ChipFamily)
			fmt.Fprintf(out, "Chip type:   %s\n", image.ChipType)
			fmt.Fprintf(out, "Path:        %s\n", image.FWPath)
			digest, hashErr := fileutil.HashFile(image.FWPath)
			fmt.Fprintf(out, "File exists: %s\n", yesNo(hashErr == nil))
			if hashErr == nil {
				fmt.Fprintf(out, "Size:        %d bytes\n", digest.Size)
				fmt.Fprintf(out, "SHA-256:     %s\n", digest.SHA256)
			}
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}

func newCatalogUpsertCommand(ctx *commandContext) *cobra.Command {
	flags := &entryFlags{}
	var fwPath string
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Add a firmware image or update the matching one",
		Long: "Add a firmware image, creating its series and product when needed. An image with the\n" +
			"same name, version, chip family and chip type is updated in place.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireAdmin(); err != nil {
				return err
			}
			if err := flags.requireLocation(); err != nil {
				return err
			}
			if !noVerify {
				if err := verifyChip(cmd, ctx, flags.chipFamily, flags.chipType); err != nil {
					return err
				}
			}

			cat, err := ctx.loadCatalogForEdit()
			if err != nil {
				return err
			}
			image := catalog.FirmwareImage{
				Name:       flags.name,
				Version:    flags.version,
				FWPath:     fwPath,
				ChipFamily: flags.chipFamily,
				ChipType:   flags.chipType,
			}
			existed := hasExact(cat, flags.series, flags.product, image.Key())
			cat.Upsert(flags.series, flags.product, image)

			if ctx.jsonOutput() {
				if err := ctx.saveCatalog(cmd, cat); err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"updated": existed, "entry": catalog.Entry{Series: flags.series, Product: flags.product, Image: image}})
			}
			verb := "Added"
			if existed {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s / %s / %s\n", verb, flags.series, flags.product, image.Label())
			return ctx.saveCatalog(cmd, cat)
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&fwPath, "fw-path", "", "Path to the firmware file")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip checking the chip family and type against probe-rs")
	return cmd
}

func hasExact(cat *catalog.Catalog, series, product string, key catalog.ImageKey) bool {
	p := cat.FindProduct(series, product)
	if p == nil {
		return false
	}
	for _, image := range p.Firmware {
		if key.Exact(image) {
			return true
		}
	}
	return false
}

func verifyChip(cmd *cobra.Command, ctx *commandContext, family, chip string) error {
	tool, err := ctx.probeTool()
	if err != nil {
		return err
	}
	err = target.Validate(cmd.Context(), ctx.targets(tool), family, chip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, target.ErrUnavailable):
		return fmt.Errorf("%w: chip list unavailable (use --no-verify to skip the check): %w", services.ErrConfiguration, err)
	default:
		return fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
}

func newCatalogDeleteCommand(ctx *commandContext) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete firmware images",
		Long: "Delete every image in the product matching the given fields. --name alone removes all\n" +
			"versions and chip variants of that firmware. Empty products and series are pruned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireAdmin(); err != nil {
				return err
			}
			if err := flags.requireLocation(); err != nil {
				return err
			}

			cat, err := ctx.loadCatalogForEdit()
			if err != nil {
				return err
			}
			removed := cat.Delete(flags.series, flags.product, flags.key())
			out := cmd.OutOrStdout()
			if removed == 0 {
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"removed": 0})
				}
				fmt.Fprintln(out, "No matching firmware; catalog unchanged")
				return nil
			}

			if err := ctx.saveCatalog(cmd, cat); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int{"removed": removed})
			}
			fmt.Fprintf(out, "Removed %d image(s) from %s / %s\n", removed, flags.series, flags.product)
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}

func newCatalogExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := ctx.loadCatalog()
			if strings.TrimSpace(output) == "" {
				return catalog.Write(cmd.OutOrStdout(), cat, format)
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := catalog.Write(file, cat, format); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close export file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d images to %s\n", cat.ImageCount(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", catalog.FormatJSON, "Export format (json or yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace or merge the catalog from a JSON or YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireAdmin(); err != nil {
				return err
			}
			incoming, err := readCatalogFile(args[0])
			if err != nil {
				return err
			}

			cat := incoming
			if merge {
				if cat, err = ctx.loadCatalogForEdit(); err != nil {
					return err
				}
				for _, e := range incoming.Entries() {
					cat.Upsert(e.Series, e.Product, e.Image)
				}
			}
			if err := ctx.saveCatalog(cmd, cat); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int{"imported": incoming.ImageCount(), "total": cat.ImageCount()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d images (%d in catalog)\n", incoming.ImageCount(), cat.ImageCount())
			return nil
		},
	}

	cmd.Flags().BoolVar(&merge, "merge", false, "Upsert the imported images into the existing catalog")
	return cmd
}

func readCatalogFile(path string) (*catalog.Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open import file: %w", catalog.ErrIO, err)
		}
		defer file.Close()
		return catalog.ReadYAML(file)
	default:
		return catalog.Load(path)
	}
}
