// Package ingest turns video files dropped into the inbox directory into
// tasks.
//
// The Watcher listens for fsnotify create and write events, waits until a
// file's size stops changing, then hands it to a Handler. Files the handler
// accepts are moved into the inbox's ".ingested" subdirectory so a restart
// does not import them twice; files already present at startup are picked up
// by an initial scan.
package ingest
