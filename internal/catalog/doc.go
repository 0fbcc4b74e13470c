// Package catalog owns the firmware catalog: an ordered tree of series,
// products and firmware images persisted as a single JSON document.
//
// # Storage
//
// The catalog file keeps the key names of earlier catalogs ("series",
// "products", "firmware", "chip_series", ...) so files written by previous
// tools load unchanged. Save replaces the file atomically through a temp file
// in the same directory; there is no locking and the last writer wins.
//
// # Editing
//
// Upsert creates missing series and products on the way down and replaces an
// image in place when its identity key (name, version, chip family, chip type)
// already exists. Delete removes matching images and then prunes every empty
// product and series in the whole catalog. Both mutate the *Catalog they are
// called on; persisting the result is a separate, explicit Save.
package catalog
