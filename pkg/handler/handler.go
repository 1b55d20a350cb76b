// Package handler dispatches User Credential frames to the operations layer
// and puts the resulting reports on the wire.
//
// Every frame is decoded and shape-checked before any database access; a
// malformed frame fails without side effects. The Handler is also the
// usercred.Sink of the node: reports are encoded once and sent to the
// addressed node and, for changes, to every lifeline member except that node.
package handler

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/frame"
	"github.com/backkem/doorlock/pkg/learn"
	"github.com/backkem/doorlock/pkg/usercred"
	"github.com/pion/logging"
)

// Status is the outcome of handling one frame, as a Supervision status.
type Status uint8

// Statuses.
const (
	StatusNoSupport Status = 0x00
	StatusWorking   Status = 0x01
	StatusFail      Status = 0x02
	StatusSuccess   Status = 0xFF
)

func (s Status) String() string {
	switch s {
	case StatusNoSupport:
		return "NoSupport"
	case StatusWorking:
		return "Working"
	case StatusFail:
		return "Fail"
	case StatusSuccess:
		return "Success"
	default:
		return fmt.Sprintf("Status(0x%02X)", uint8(s))
	}
}

// ErrUnexpectedReport is returned for report frames, which the node never requests.
var ErrUnexpectedReport = errors.New("handler: unexpected report frame")

// Transmitter sends an encoded frame to one node.
type Transmitter interface {
	Transmit(dst uint16, payload []byte) error
}

// Lifeline lists the nodes that receive change notifications.
type Lifeline interface {
	Members() []uint16
}

// Mirror observes every lifeline notification. Mirror failures are logged
// and never affect delivery.
type Mirror interface {
	Mirror(cmd frame.Command, payload []byte) error
}

// Config configures a Handler.
type Config struct {
	Service     *usercred.Service
	Transmitter Transmitter

	// Learn is optional; without it Credential Learn frames are not supported.
	Learn *learn.Learn
	// Lifeline is optional; without it changes go to the requester only.
	Lifeline Lifeline
	Mirror   Mirror

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// Handler routes frames and delivers reports.
//
// Thread Safety: not safe for concurrent use. Handle and Send run on the
// node event loop.
type Handler struct {
	svc      *usercred.Service
	learn    *learn.Learn
	tx       Transmitter
	lifeline Lifeline
	mirror   Mirror
	log      logging.LeveledLogger
}

// New creates a Handler. It does not register itself as the report sink;
// the caller wires it with SetSink.
func New(cfg Config) (*Handler, error) {
	if cfg.Service == nil || cfg.Transmitter == nil {
		return nil, errors.New("handler: service and transmitter are required")
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Handler{
		svc:      cfg.Service,
		learn:    cfg.Learn,
		tx:       cfg.Transmitter,
		lifeline: cfg.Lifeline,
		mirror:   cfg.Mirror,
		log:      cfg.LoggerFactory.NewLogger("handler"),
	}, nil
}

var _ usercred.Sink = (*Handler)(nil)

// Send encodes r and transmits it to the target.
func (h *Handler) Send(to usercred.Target, r usercred.Report) {
	payload, err := frame.Encode(r)
	if err != nil {
		h.log.Errorf("encoding %T: %v", r, err)
		return
	}
	if to.Node != 0 {
		h.transmit(to.Node, payload)
	}
	if !to.Lifeline {
		return
	}
	if h.lifeline != nil {
		for _, member := range h.lifeline.Members() {
			if member != to.Node {
				h.transmit(member, payload)
			}
		}
	}
	if h.mirror != nil {
		cmd, _ := frame.Header(payload)
		if err := h.mirror.Mirror(cmd, payload); err != nil {
			h.log.Warnf("mirroring %s: %v", cmd, err)
		}
	}
}

// reply encodes msg and sends it to src.
func (h *Handler) reply(src uint16, msg any) Status {
	payload, err := frame.Encode(msg)
	if err != nil {
		h.log.Errorf("encoding %T: %v", msg, err)
		return StatusFail
	}
	h.transmit(src, payload)
	return StatusSuccess
}

func (h *Handler) transmit(dst uint16, payload []byte) {
	if err := h.tx.Transmit(dst, payload); err != nil {
		h.log.Warnf("transmit to node %d: %v", dst, err)
	}
}
