// Package outbox is the disk-backed FIFO of relay messages that could not be
// delivered to the hub.
//
// Each tenant has one file, queue_<tenant>.json, under the queue directory.
// The file holds a JSON array of entries in enqueue order. Entries are only
// removed by Clear, which the relay calls after every drained entry was sent;
// a partial flush leaves the file untouched so ordering is preserved.
package outbox
