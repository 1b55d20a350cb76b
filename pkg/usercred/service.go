// Package usercred implements the user credential operations: validated
// changes to users, credentials and the admin code, and the choice of which
// report goes to whom.
//
// Every request carries an Origin. Changes (Added, Modified, Deleted) are
// reported to the requesting node and to the lifeline group. Every other
// report goes to the requesting node only. Requests with a local origin
// never report errors.
package usercred

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/checksum"
	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
	"github.com/backkem/doorlock/pkg/validate"
	"github.com/pion/logging"
)

// Operation errors.
var (
	// ErrUnsupported is returned for requests the node's capabilities exclude.
	ErrUnsupported = errors.New("usercred: not supported")
	// ErrInvalidOperation is returned for an undefined operation type.
	ErrInvalidOperation = errors.New("usercred: invalid operation type")
	// ErrRejected is returned when a request was answered with an error report.
	ErrRejected = errors.New("usercred: request rejected")
)

// Origin identifies who issued a request.
type Origin struct {
	// Local is set for requests from the lock itself, e.g. a keypad.
	Local bool
	// NodeID is the requesting node for remote requests.
	NodeID uint16
}

// LocalOrigin is the origin of requests made by the lock itself.
var LocalOrigin = Origin{Local: true}

// Remote returns the origin of a request received from node.
func Remote(node uint16) Origin {
	return Origin{NodeID: node}
}

func (o Origin) modifier() credential.Modifier {
	if o.Local {
		return credential.Modifier{Type: credential.ModifierLocal}
	}
	return credential.Modifier{Type: credential.ModifierZWave, Node: o.NodeID}
}

func (o Origin) String() string {
	if o.Local {
		return "local"
	}
	return fmt.Sprintf("node %d", o.NodeID)
}

// Target says where a report goes.
type Target struct {
	// Node is the unicast destination, 0 for none.
	Node uint16
	// Lifeline requests a copy to every lifeline member other than Node.
	Lifeline bool
}

// Sink delivers reports.
type Sink interface {
	Send(to Target, r Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(to Target, r Report)

// Send calls f.
func (f SinkFunc) Send(to Target, r Report) { f(to, r) }

// Store is the database the service operates on.
type Store interface {
	checksum.Source
	validate.Source

	AddUser(u credential.User) error
	ModifyUser(u credential.User) error
	DeleteUser(uuid credential.UUID) error

	CredentialOwner(key credential.CredentialKey) (credential.UUID, bool)
	AddCredential(c credential.Credential) error
	ModifyCredential(c credential.Credential) error
	MoveCredential(src credential.CredentialKey, dstUUID credential.UUID, dstSlot uint16, modifier credential.Modifier) error
	DeleteCredential(key credential.CredentialKey) error

	SetAdminCode(code credential.AdminCode) error
	Reset() error
}

var _ Store = (*database.Database)(nil)

// Config configures a Service.
type Config struct {
	// Store is the credential database. Required.
	Store Store

	// Capabilities bounds what may be stored.
	Capabilities credential.Capabilities

	// Rules is the manufacturer security hook. If nil, the validator default is used.
	Rules validate.SecurityRules

	// Sink receives every report. If nil, reports are dropped.
	Sink Sink

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// Service runs user credential operations against a Store.
//
// Thread Safety: a Service is not safe for concurrent use. All calls are
// made from the node's event loop.
type Service struct {
	db    Store
	caps  credential.Capabilities
	valid *validate.Validator
	sink  Sink
	log   logging.LeveledLogger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("usercred: store is required")
	}
	if cfg.Sink == nil {
		cfg.Sink = SinkFunc(func(Target, Report) {})
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	cfg.Capabilities.Normalize()

	return &Service{
		db:   cfg.Store,
		caps: cfg.Capabilities,
		valid: validate.New(validate.Config{
			Capabilities:  cfg.Capabilities,
			Rules:         cfg.Rules,
			LoggerFactory: cfg.LoggerFactory,
		}, cfg.Store),
		sink: cfg.Sink,
		log:  cfg.LoggerFactory.NewLogger("usercred"),
	}, nil
}

// SetSink replaces the report sink.
func (s *Service) SetSink(sink Sink) {
	s.sink = sink
}

// Capabilities returns the node capabilities.
func (s *Service) Capabilities() credential.Capabilities {
	return s.caps
}

// Validator returns the validator the service checks requests with.
func (s *Service) Validator() *validate.Validator {
	return s.valid
}

// CredentialOwner returns the owner of the credential stored at key.
func (s *Service) CredentialOwner(key credential.CredentialKey) (credential.UUID, bool) {
	return s.db.CredentialOwner(key)
}

// Reset erases every user, credential and the admin code.
func (s *Service) Reset() error {
	if err := s.db.Reset(); err != nil {
		return fmt.Errorf("usercred: reset: %w", err)
	}
	s.log.Info("database reset")
	return nil
}

// deliver sends r following the delivery rules for origin.
func (s *Service) deliver(origin Origin, change bool, r Report) {
	var to Target
	if !origin.Local {
		to.Node = origin.NodeID
	}
	to.Lifeline = change
	if to.Node == 0 && !to.Lifeline {
		return
	}
	s.sink.Send(to, r)
}

// reply sends r to a remote requester only.
func (s *Service) reply(origin Origin, r Report) {
	s.deliver(origin, false, r)
}
