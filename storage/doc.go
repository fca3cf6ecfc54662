// Package storage checkpoints session state to a SQLite database so a
// restarted server can pick up where it left off. The live state in
// registry remains authoritative; rows here are written best-effort and
// read only at startup.
package storage
