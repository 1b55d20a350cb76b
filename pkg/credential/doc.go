// Package credential defines the data model of the door lock identity
// database: Users, the Credentials they own, the node-level Admin Code and
// the Capabilities that bound all of them.
//
// The types in this package carry no storage or protocol behavior. The
// database package persists them, the validate package checks them against
// Capabilities and the frame package moves them on and off the wire.
//
// Key concepts:
//   - UUID: 16-bit User Unique Identifier, 0 is reserved.
//   - CredentialKey: (Type, Slot) identity of a Credential, unique per node.
//   - Modifier: who last changed an entry (remote node, local UI, ...).
package credential
