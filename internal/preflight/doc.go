// Package preflight provides readiness checks for the external tools and
// filesystem paths iaptool depends on.
//
// The CLI "iaptool doctor" command runs RunAll and CheckSystemDeps and
// renders the results. The flash command runs CheckSystemDeps first so a
// missing probe-rs binary is reported before any probe is touched.
package preflight
