// Package database implements the persisted User/Credential object store.
//
// Users and Credentials are stored as fixed records addressed by a small
// object offset inside their area. Two descriptor tables index the objects:
// users by UUID and credentials by (Type, Slot). Both tables are kept in
// ascending key order and mirrored to non-volatile memory after every change.
//
// Offsets and keys are decoupled. Deleting an entry closes the gap in its
// descriptor table, and the freed offset is handed out again by the area's
// circular allocator once the head cursor comes round to it.
//
// Write ordering:
//  1. object payload records (name/data, then metadata)
//  2. descriptor table
//  3. area record (count, head)
//
// A failure at any step restores the in-memory tables, counts and cursors
// to their pre-call value and returns ErrIO. Nothing is retried here.
package database
