package catalog

import "fmt"

// Upsert inserts image under seriesName/productName, creating the series and
// product when they do not exist yet. An image with the same identity tuple is
// overwritten in place; otherwise image is appended.
func (c *Catalog) Upsert(seriesName, productName string, image FirmwareImage) {
	series := c.ensureSeries(seriesName)
	product := series.ensureProduct(productName)

	key := image.Key()
	for i := range product.Firmware {
		if key.Exact(product.Firmware[i]) {
			product.Firmware[i] = image
			return
		}
	}
	product.Firmware = append(product.Firmware, image)
}

// Delete removes every image in seriesName/productName matched by key and then
// prunes empty products and series across the whole catalog. It returns the
// number of images removed; a missing series or product is a no-op.
func (c *Catalog) Delete(seriesName, productName string, key ImageKey) int {
	removed := 0
	if product := c.FindProduct(seriesName, productName); product != nil {
		kept := product.Firmware[:0]
		for _, image := range product.Firmware {
			if key.Matches(image) {
				removed++
				continue
			}
			kept = append(kept, image)
		}
		clear(product.Firmware[len(kept):])
		product.Firmware = kept
	}
	c.Prune()
	return removed
}

// Prune drops every product without firmware and every series without
// products. It returns the number of nodes removed.
func (c *Catalog) Prune() int {
	pruned := 0
	series := c.Series[:0]
	for _, s := range c.Series {
		products := s.Products[:0]
		for _, p := range s.Products {
			if len(p.Firmware) == 0 {
				pruned++
				continue
			}
			products = append(products, p)
		}
		s.Products = products
		if len(s.Products) == 0 {
			pruned++
			continue
		}
		series = append(series, s)
	}
	c.Series = series
	return pruned
}

// FindSeries returns the series with the given name or nil.
func (c *Catalog) FindSeries(name string) *Series {
	for i := range c.Series {
		if sameName(c.Series[i].Name, name) {
			return &c.Series[i]
		}
	}
	return nil
}

// FindProduct returns the product inside the named series or nil.
func (c *Catalog) FindProduct(seriesName, productName string) *Product {
	series := c.FindSeries(seriesName)
	if series == nil {
		return nil
	}
	return series.findProduct(productName)
}

// Images returns copies of the images in seriesName/productName matched by key.
func (c *Catalog) Images(seriesName, productName string, key ImageKey) []FirmwareImage {
	product := c.FindProduct(seriesName, productName)
	if product == nil {
		return nil
	}
	var out []FirmwareImage
	for _, image := range product.Firmware {
		if key.Matches(image) {
			out = append(out, image)
		}
	}
	return out
}

// Lookup resolves key to exactly one image. A partial key that matches
// several variants returns ErrAmbiguous.
func (c *Catalog) Lookup(seriesName, productName string, key ImageKey) (FirmwareImage, error) {
	matches := c.Images(seriesName, productName, key)
	switch len(matches) {
	case 0:
		return FirmwareImage{}, fmt.Errorf("%w: %s / %s / %s", ErrNotFound, seriesName, productName, key.Name)
	case 1:
		return matches[0], nil
	default:
		return FirmwareImage{}, fmt.Errorf("%w: %d images named %q in %s / %s; specify version and chip",
			ErrAmbiguous, len(matches), key.Name, seriesName, productName)
	}
}

func (c *Catalog) ensureSeries(name string) *Series {
	if s := c.FindSeries(name); s != nil {
		return s
	}
	c.Series = append(c.Series, Series{Name: name, Products: []Product{}})
	return &c.Series[len(c.Series)-1]
}

func (s *Series) findProduct(name string) *Product {
	for i := range s.Products {
		if sameName(s.Products[i].Name, name) {
			return &s.Products[i]
		}
	}
	return nil
}

func (s *Series) ensureProduct(name string) *Product {
	if p := s.findProduct(name); p != nil {
		return p
	}
	s.Products = append(s.Products, Product{Name: name, Firmware: []FirmwareImage{}})
	return &s.Products[len(s.Products)-1]
}
