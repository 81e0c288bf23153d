// Package cardroom defines the card-room records exchanged with the hub and
// the local SQLite ledger that stores records received from it.
//
// Outbound records (games, tables, presets, awardings, purchases) are built
// by the CRUD layer and relayed to the hub. Inbound records (purchases,
// customers, point usage, player exits) arrive from the hub and are
// persisted through Repository so they stay readable while offline.
//
// Timestamps travel on the wire in the hub's "2006-01-02 15:04:05" layout;
// see Time.
package cardroom
