// Package taskstore persists task records and hands out isolated copies.
//
// All records are loaded into memory at open; every Set or Update writes the
// single affected record to the backend and waits for it to be durable
// before returning. Mutations of one task serialize on that task's lock, so
// concurrent phases of a task cannot interleave a read-modify-write, while
// different tasks never contend. Corrupt records found at open are skipped
// with a warning.
//
// Two backends exist: SQLite (default, WAL with synchronous=FULL) and a
// directory of JSON files written with temp-file, fsync, rename.
package taskstore
