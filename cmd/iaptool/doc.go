// Command iaptool browses the firmware catalog and programs catalog images
// onto target chips through a probe-rs debug probe.
//
// Catalog editing (upsert, delete, import) requires admin mode, enabled with
// --admin or catalog.admin_mode in the configuration file. Every flash attempt
// is journaled to the history database unless flash.record_history is off.
package main
