package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export formats supported by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type yamlCatalog struct {
	Series []yamlSeries `yaml:"series"`
}

type yamlSeries struct {
	Name     string        `yaml:"name"`
	Products []yamlProduct `yaml:"products"`
}

type yamlProduct struct {
	Name     string      `yaml:"name"`
	Firmware []yamlImage `yaml:"firmware"`
}

type yamlImage struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	FWPath     string `yaml:"fw_path"`
	ChipFamily string `yaml:"chip_series"`
	ChipType   string `yaml:"chip_type"`
}

// Write renders the catalog to w in the requested format using the same key
// names as the catalog file.
func Write(w io.Writer, cat *Catalog, format string) error {
	if cat == nil {
		cat = New()
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cat); err != nil {
			return fmt.Errorf("%w: encode json: %w", ErrSerialize, err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toYAML(cat)); err != nil {
			return fmt.Errorf("%w: encode yaml: %w", ErrSerialize, err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q (want json or yaml)", format)
	}
}

// ReadYAML decodes a catalog previously exported with FormatYAML.
func ReadYAML(r io.Reader) (*Catalog, error) {
	var doc yamlCatalog
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrParse, err)
	}
	cat := New()
	for _, s := range doc.Series {
		series := Series{Name: s.Name, Products: make([]Product, 0, len(s.Products))}
		for _, p := range s.Products {
			product := Product{Name: p.Name, Firmware: make([]FirmwareImage, 0, len(p.Firmware))}
			for _, f := range p.Firmware {
				product.Firmware = append(product.Firmware, FirmwareImage(f))
			}
			series.Products = append(series.Products, product)
		}
		cat.Series = append(cat.Series, series)
	}
	return cat, nil
}

func toYAML(cat *Catalog) yamlCatalog {
	doc := yamlCatalog{Series: make([]yamlSeries, 0, len(cat.Series))}
	for _, s := range cat.Series {
		series := yamlSeries{Name: s.Name, Products: make([]yamlProduct, 0, len(s.Products))}
		for _, p := range s.Products {
			product := yamlProduct{Name: p.Name, Firmware: make([]yamlImage, 0, len(p.Firmware))}
			for _, f := range p.Firmware {
				product.Firmware = append(product.Firmware, yamlImage(f))
			}
			series.Products = append(series.Products, product)
		}
		doc.Series = append(doc.Series, series)
	}
	return doc
}
