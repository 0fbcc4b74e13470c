// Package probe describes debug probes attached to the host and how callers
// pick one of them.
//
// Registry implementations enumerate probes and open sessions; the flashing
// workflow only ever uses the descriptor the caller selected. Select resolves
// a list index, Match additionally accepts VID:PID[:SERIAL] selectors typed on
// the command line.
package probe
