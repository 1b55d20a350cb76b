// Package node assembles a door lock node: the credential database, the
// user credential operations, Credential Learn and the frame handler,
// connected to a packet transport, a lifeline group and, optionally, an
// MQTT mirror and an mDNS advertisement.
//
// All protocol work runs on a single event loop goroutine. Received frames,
// timer expiries and application events are posted to the loop as closures
// and run to completion one at a time, so the operations layer and the
// learn state machine never see concurrent calls.
//
// Usage:
//
//	n, err := node.New(node.Config{
//	    NodeID:       12,
//	    Capabilities: credential.DefaultCapabilities(),
//	    Store:        nvm.NewMemoryStore(),
//	    ListenAddr:   ":4123",
//	    Lifeline:     []uint16{1},
//	})
//	if err != nil {
//	    return err
//	}
//	if err := n.Start(ctx); err != nil {
//	    return err
//	}
//	defer n.Stop()
package node
