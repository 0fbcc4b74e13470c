package catalog

import (
	"encoding/json"
	"fmt"
)

// Catalog is the root of the firmware tree.
type Catalog struct {
	Series []Series `json:"series"`
}

// Series groups related products.
type Series struct {
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}

// Product is a device line owning firmware variants.
type Product struct {
	Name     string          `json:"name"`
	Firmware []FirmwareImage `json:"firmware"`
}

// FirmwareImage is one flashable artifact. ChipFamily is stored under the
// historical "chip_series" key.
type FirmwareImage struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	FWPath     string `json:"fw_path"`
	ChipFamily string `json:"chip_series"`
	ChipType   string `json:"chip_type"`
}

// Key returns the identity tuple used by Upsert.
func (f FirmwareImage) Key() ImageKey {
	return ImageKey{Name: f.Name, Version: f.Version, ChipFamily: f.ChipFamily, ChipType: f.ChipType}
}

// Label renders the image the way the catalog tree displays it.
func (f FirmwareImage) Label() string {
	return fmt.Sprintf("%s - %s (%s)", f.Name, f.Version, f.ChipType)
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{Series: []Series{}}
}

// ImageCount returns the number of firmware images in the catalog.
func (c *Catalog) ImageCount() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, s := range c.Series {
		for _, p := range s.Products {
			total += len(p.Firmware)
		}
	}
	return total
}

// Entry is a flattened firmware image with its location in the tree.
type Entry struct {
	Series  string        `json:"series" yaml:"series"`
	Product string        `json:"product" yaml:"product"`
	Image   FirmwareImage `json:"firmware" yaml:"firmware"`
}

// Entries flattens the tree in display order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	entries := make([]Entry, 0, c.ImageCount())
	for _, s := range c.Series {
		for _, p := range s.Products {
			for _, f := range p.Firmware {
				entries = append(entries, Entry{Series: s.Name, Product: p.Name, Image: f})
			}
		}
	}
	return entries
}

// MarshalJSON keeps empty sequences as [] so the document never carries null arrays.
func (c Catalog) MarshalJSON() ([]byte, error) {
	type plain Catalog
	out := plain{Series: make([]Series, len(c.Series))}
	for i, s := range c.Series {
		out.Series[i] = s.normalized()
	}
	return json.Marshal(out)
}

func (s Series) normalized() Series {
	products := make([]Product, len(s.Products))
	for i, p := range s.Products {
		if p.Firmware == nil {
			p.Firmware = []FirmwareImage{}
		}
		products[i] = p
	}
	return Series{Name: s.Name, Products: products}
}

// Clone returns a deep copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	if c == nil {
		return New()
	}
	out := &Catalog{Series: make([]Series, len(c.Series))}
	for i, s := range c.Series {
		products := make([]Product, len(s.Products))
		for j, p := range s.Products {
			products[j] = Product{Name: p.Name, Firmware: append([]FirmwareImage{}, p.Firmware...)}
		}
		out.Series[i] = Series{Name: s.Name, Products: products}
	}
	return out
}
