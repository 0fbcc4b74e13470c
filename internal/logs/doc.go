// Package logs reads the iaptool log file for the `iaptool logs` command.
//
// Last returns the final lines with bounded memory and the offset where
// reading stopped; Follow polls from that offset and hands each appended line
// to a callback until the context ends. A log file that does not exist yet is
// treated as empty.
package logs
