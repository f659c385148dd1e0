// Package store persists sites, devices, pages, and per-device screenshot
// entries in SQLite.
//
// Each page holds a device to entry mapping. Entries are created empty when a
// page or device is registered, flipped to loading when a comparison is
// requested, and overwritten in a single statement when the comparison
// finishes or fails. The store never deletes entries on its own; removing a
// page or site cascades to them.
package store
