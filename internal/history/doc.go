// Package history journals flash attempts in a SQLite database under the
// state directory so technicians can review which image went onto which
// probe and how each attempt ended.
//
// The schema is embedded and versioned. A database written by a different
// schema version is rejected with ErrSchemaMismatch rather than migrated;
// delete history.db to start over.
package history
