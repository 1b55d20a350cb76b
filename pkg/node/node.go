package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/backkem/doorlock/pkg/database"
	"github.com/backkem/doorlock/pkg/discovery"
	"github.com/backkem/doorlock/pkg/frame"
	"github.com/backkem/doorlock/pkg/handler"
	"github.com/backkem/doorlock/pkg/learn"
	"github.com/backkem/doorlock/pkg/lifeline"
	"github.com/backkem/doorlock/pkg/timer"
	"github.com/backkem/doorlock/pkg/transport"
	"github.com/backkem/doorlock/pkg/usercred"
	"github.com/pion/logging"
)

// Node is a running door lock node.
type Node struct {
	config Config
	log    logging.LeveledLogger

	db      *database.Database
	svc     *usercred.Service
	learn   *learn.Learn
	handler *handler.Handler
	group   *lifeline.Group
	timer   *timer.LoopTimer
	power   *timer.PowerLock

	udp        atomic.Pointer[transport.UDP]
	advertiser *discovery.Advertiser

	events   chan func()
	stopCh   chan struct{}
	loopDone chan struct{}

	mu     sync.RWMutex
	state  State
	ctx    context.Context
	cancel context.CancelFunc
}

// New opens the database and wires the protocol stack. The node is created
// but not started; no socket is bound until Start.
func New(config Config) (*Node, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	config.Capabilities.Normalize()

	n := &Node{
		config:   config,
		log:      config.LoggerFactory.NewLogger("node"),
		events:   make(chan func(), config.QueueSize),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
		state:    StateInitialized,
	}

	var err error
	n.db, err = database.Open(database.Config{
		Store:          config.Store,
		MaxUsers:       config.Capabilities.MaxUsers,
		MaxCredentials: config.Capabilities.CredentialCapacity(),
		LoggerFactory:  config.LoggerFactory,
	})
	if err != nil {
		return nil, fmt.Errorf("node: opening database: %w", err)
	}

	n.svc, err = usercred.New(usercred.Config{
		Store:         n.db,
		Capabilities:  config.Capabilities,
		Rules:         config.Rules,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	n.group, err = lifeline.NewGroup(config.MaxLifelineMembers, config.Lifeline...)
	if err != nil {
		return nil, fmt.Errorf("node: lifeline: %w", err)
	}

	sensor := config.Sensor
	if sensor == nil {
		sensor = &waitingSensor{log: n.log}
	}
	n.timer = timer.NewLoopTimer(func(fn func()) { n.Post(fn) })
	n.power = timer.NewPowerLock(config.LoggerFactory)
	n.learn, err = learn.New(learn.Config{
		Operations:     n.svc,
		Timer:          n.timer,
		PowerLock:      n.power,
		Sensor:         sensor,
		DefaultTimeout: config.LearnTimeout,
		LoggerFactory:  config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	n.handler, err = handler.New(handler.Config{
		Service:       n.svc,
		Transmitter:   n,
		Learn:         n.learn,
		Lifeline:      n.group,
		Mirror:        config.Mirror,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	n.svc.SetSink(n.handler)
	n.learn.SetSink(n.handler)

	return n, nil
}

// Start binds the transport, starts the event loop and, if configured,
// advertises the node.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}

	n.ctx, n.cancel = context.WithCancel(ctx)

	udp, err := transport.NewUDP(transport.UDPConfig{
		Conn:          n.config.Conn,
		ListenAddr:    n.config.ListenAddr,
		NodeID:        n.config.NodeID,
		Peers:         n.config.Peers,
		Handler:       n.onFrame,
		LoggerFactory: n.config.LoggerFactory,
	})
	if err != nil {
		n.cancel()
		return err
	}

	if err := udp.Start(); err != nil {
		udp.Stop()
		n.cancel()
		return err
	}
	n.udp.Store(udp)
	go n.run()

	if n.config.Advertise {
		if err := n.startDiscovery(udp.LocalAddr()); err != nil {
			// The node stays reachable by address.
			n.log.Warnf("mDNS advertisement unavailable: %v", err)
		}
	}

	n.state = StateRunning
	n.log.Infof("node %d started on %s", n.config.NodeID, udp.LocalAddr())

	go func() {
		<-n.ctx.Done()
		if err := n.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
			n.log.Warnf("stop on context cancel: %v", err)
		}
	}()
	return nil
}

func (n *Node) startDiscovery(local net.Addr) error {
	port := n.config.AdvertisePort
	if port == 0 {
		if ua, ok := local.(*net.UDPAddr); ok {
			port = ua.Port
		}
	}
	adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		Port:          port,
		Interfaces:    n.config.Interfaces,
		ServerFactory: n.config.ServerFactory,
		LoggerFactory: n.config.LoggerFactory,
	})
	if err != nil {
		return err
	}
	err = adv.Start(discovery.NodeTXT{
		NodeID:         n.config.NodeID,
		CommandClasses: []uint8{frame.Class},
		MaxUsers:       n.config.Capabilities.MaxUsers,
	})
	if err != nil {
		adv.Close()
		return err
	}
	n.advertiser = adv
	return nil
}

// Stop withdraws the advertisement, closes the transport and ends the
// event loop. Events still queued are dropped.
func (n *Node) Stop() error {
	n.mu.Lock()
	switch n.state {
	case StateInitialized:
		n.mu.Unlock()
		return ErrNotStarted
	case StateStopped:
		n.mu.Unlock()
		return ErrAlreadyStopped
	}
	n.state = StateStopped
	adv := n.advertiser
	n.advertiser = nil
	n.mu.Unlock()

	if adv != nil {
		adv.Close()
	}
	if udp := n.udp.Load(); udp != nil {
		udp.Stop()
	}
	n.timer.Cancel()

	close(n.stopCh)
	<-n.loopDone
	n.power.Release()
	n.cancel()

	n.log.Info("node stopped")
	return nil
}

// State returns the current lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// NodeID returns the node's network address.
func (n *Node) NodeID() uint16 {
	return n.config.NodeID
}

// LocalAddr returns the bound transport address, or nil before Start.
func (n *Node) LocalAddr() net.Addr {
	if udp := n.udp.Load(); udp != nil {
		return udp.LocalAddr()
	}
	return nil
}

// Transmit sends payload to node dst. It implements handler.Transmitter.
func (n *Node) Transmit(dst uint16, payload []byte) error {
	udp := n.udp.Load()
	if udp == nil {
		return ErrNotStarted
	}
	return udp.Transmit(dst, payload)
}

var _ handler.Transmitter = (*Node)(nil)

// Post queues fn on the event loop. It returns false once the node is
// stopped. Before Start, fn waits in the queue.
func (n *Node) Post(fn func()) bool {
	select {
	case <-n.stopCh:
		return false
	default:
	}
	select {
	case n.events <- fn:
		return true
	case <-n.stopCh:
		return false
	}
}

func (n *Node) run() {
	defer close(n.loopDone)
	for {
		select {
		case fn := <-n.events:
			fn()
		case <-n.stopCh:
			return
		}
	}
}

func (n *Node) onFrame(src uint16, payload []byte) {
	n.Post(func() {
		status := n.handler.Handle(src, payload)
		n.log.Tracef("frame from node %d: %s", src, status)
		if n.config.OnFrameHandled != nil {
			n.config.OnFrameHandled(src, status)
		}
	})
}

// do runs fn on the event loop and waits for it. Before Start there is no
// loop and fn runs on the caller's goroutine under the state lock.
func (n *Node) do(fn func() error) error {
	n.mu.Lock()
	state := n.state
	if state == StateInitialized {
		defer n.mu.Unlock()
		return fn()
	}
	n.mu.Unlock()
	if state == StateStopped {
		return ErrStopped
	}

	errCh := make(chan error, 1)
	if !n.Post(func() { errCh <- fn() }) {
		return ErrStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-n.loopDone:
		return ErrStopped
	}
}
