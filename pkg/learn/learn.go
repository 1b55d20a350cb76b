// Package learn runs Credential Learn: the enrollment flow in which a
// credential's data is read by a local sensor rather than sent over the air.
//
// Only one enrollment runs at a time. Every step re-arms a single timeout
// and keeps the radio awake for it; expiry ends the enrollment. Completion
// writes the read data through the operations layer exactly like a
// Credential Set, and the machine returns to Idle whether or not the write
// succeeded.
package learn

import (
	"errors"
	"fmt"
	"time"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/usercred"
	"github.com/backkem/doorlock/pkg/validate"
	"github.com/pion/logging"
)

// Errors returned by Learn.
var (
	ErrInProgress     = errors.New("learn: already in progress")
	ErrNotInProgress  = errors.New("learn: not in progress")
	ErrNotSupported   = errors.New("learn: credential type does not support learn")
	ErrInvalidOp      = errors.New("learn: invalid operation type")
	ErrNotInitiator   = errors.New("learn: cancel from a node that did not start learn")
	ErrSensorRejected = errors.New("learn: sensor could not begin")
)

// DefaultTimeout is used when neither the request nor the credential type
// names a timeout.
const DefaultTimeout = 20 * time.Second

// State is the phase of an enrollment.
type State uint8

// States. Terminal outcomes are reported and then return to Idle.
const (
	StateIdle State = iota
	StateStarted
	StateStep
	StateStepRetry
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarted:
		return "Started"
	case StateStep:
		return "Step"
	case StateStepRetry:
		return "StepRetry"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Timer is a single re-armable timeout. Arming replaces any pending expiry.
// fire must be delivered on the event loop.
type Timer interface {
	Arm(d time.Duration, fire func())
	Cancel()
}

// PowerLock keeps the device reachable while a step is in progress.
type PowerLock interface {
	StayAwake(d time.Duration)
	Release()
}

// Sensor is the local reader that captures credential data. It reports
// progress back through StepStarted, StepRetry, ReadDone and Failed.
type Sensor interface {
	Begin(target Target) error
	Abort()
}

// Operations is the part of the operations layer Learn needs.
type Operations interface {
	Capabilities() credential.Capabilities
	CredentialOwner(key credential.CredentialKey) (credential.UUID, bool)
	Validator() *validate.Validator
	SetCredential(origin usercred.Origin, op credential.OperationType, c credential.Credential) error
}

var _ Operations = (*usercred.Service)(nil)

// Target is the credential being enrolled.
type Target struct {
	UUID      credential.UUID
	Type      credential.CredentialType
	Slot      uint16
	Operation credential.OperationType
	Steps     uint8
}

// Key returns the credential key of the target.
func (t Target) Key() credential.CredentialKey {
	return credential.CredentialKey{Type: t.Type, Slot: t.Slot}
}

// Config configures a Learn.
type Config struct {
	Operations Operations
	Timer      Timer
	PowerLock  PowerLock
	Sensor     Sensor
	// Sink receives Credential Learn Reports.
	Sink usercred.Sink

	// DefaultTimeout applies when the request and the type name none.
	DefaultTimeout time.Duration

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// Learn is the Credential Learn state machine.
//
// Thread Safety: not safe for concurrent use. All calls, including timer
// expiries, run on the node event loop.
type Learn struct {
	ops    Operations
	timer  Timer
	power  PowerLock
	sensor Sensor
	sink   usercred.Sink
	log    logging.LeveledLogger

	defaultTimeout time.Duration

	state     State
	target    Target
	origin    usercred.Origin
	timeout   time.Duration
	remaining uint8
	// gen is bumped on every arm so a stale expiry is recognised.
	gen uint64
}

// New creates an idle Learn.
func New(cfg Config) (*Learn, error) {
	if cfg.Operations == nil || cfg.Timer == nil || cfg.Sensor == nil {
		return nil, errors.New("learn: operations, timer and sensor are required")
	}
	if cfg.PowerLock == nil {
		cfg.PowerLock = nopPowerLock{}
	}
	if cfg.Sink == nil {
		cfg.Sink = usercred.SinkFunc(func(usercred.Target, usercred.Report) {})
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Learn{
		ops:            cfg.Operations,
		timer:          cfg.Timer,
		power:          cfg.PowerLock,
		sensor:         cfg.Sensor,
		sink:           cfg.Sink,
		log:            cfg.LoggerFactory.NewLogger("learn"),
		defaultTimeout: cfg.DefaultTimeout,
	}, nil
}

// SetSink replaces the report sink.
func (l *Learn) SetSink(sink usercred.Sink) {
	l.sink = sink
}

// State returns the current phase.
func (l *Learn) State() State { return l.state }

// InProgress reports whether an enrollment is running.
func (l *Learn) InProgress() bool { return l.state != StateIdle }

// Target returns the credential being enrolled.
func (l *Learn) Target() (Target, bool) {
	return l.target, l.InProgress()
}

// Remaining returns the number of steps still to read.
func (l *Learn) Remaining() uint8 { return l.remaining }

type nopPowerLock struct{}

func (nopPowerLock) StayAwake(time.Duration) {}
func (nopPowerLock) Release()                {}
