package learn

import (
	"fmt"
	"time"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/usercred"
)

// StartRequest is a Credential Learn Start.
type StartRequest struct {
	UUID      credential.UUID
	Type      credential.CredentialType
	Slot      uint16
	Operation credential.OperationType
	// Timeout is the per-step timeout; 0 selects the type's recommendation.
	Timeout time.Duration
}

// Start begins an enrollment.
//
// A Start while another enrollment runs is answered with AlreadyInProgress
// and leaves the running enrollment untouched. Add requires the slot to be
// free; Modify requires it to hold a credential of the same user.
func (l *Learn) Start(origin usercred.Origin, req StartRequest) error {
	if l.InProgress() {
		l.log.Debugf("%s start while learning %s", origin, l.target.Key())
		l.report(origin, usercred.LearnAlreadyInProgress, Target{UUID: req.UUID, Type: req.Type, Slot: req.Slot}, l.remaining)
		return ErrInProgress
	}

	caps := l.ops.Capabilities()
	tc, ok := caps.Type(req.Type)
	if !ok || !tc.LearnSupported {
		return fmt.Errorf("%w: %s", ErrNotSupported, req.Type)
	}

	c := credential.Credential{UUID: req.UUID, Type: req.Type, Slot: req.Slot}
	if err := l.ops.Validator().CredentialMetadata(c); err != nil {
		return err
	}

	target := Target{UUID: req.UUID, Type: req.Type, Slot: req.Slot, Operation: req.Operation, Steps: tc.LearnSteps}
	owner, exists := l.ops.CredentialOwner(target.Key())
	switch req.Operation {
	case credential.OperationAdd:
		if exists {
			l.report(origin, usercred.LearnInvalidAddOperationType, target, 0)
			return fmt.Errorf("%w: %s is occupied", ErrInvalidOp, target.Key())
		}
	case credential.OperationModify:
		if !exists || owner != req.UUID {
			l.report(origin, usercred.LearnInvalidModifyOperationType, target, 0)
			return fmt.Errorf("%w: %s is not a credential of user %d", ErrInvalidOp, target.Key(), req.UUID)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOp, req.Operation)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(tc.LearnTimeout) * time.Second
	}
	if timeout <= 0 {
		timeout = l.defaultTimeout
	}

	if err := l.sensor.Begin(target); err != nil {
		return fmt.Errorf("%w: %v", ErrSensorRejected, err)
	}

	l.state = StateStarted
	l.target = target
	l.origin = origin
	l.timeout = timeout
	l.remaining = target.Steps
	l.arm()

	l.log.Infof("%s started learn of %s for user %d (%d steps, %v)", origin, target.Key(), target.UUID, target.Steps, timeout)
	l.report(origin, usercred.LearnStarted, target, l.remaining)
	return nil
}

// StepStarted is called by the sensor application when it waits for the
// next read.
func (l *Learn) StepStarted(remaining uint8) {
	if !l.InProgress() {
		return
	}
	l.state = StateStep
	l.remaining = remaining
	l.arm()
	l.log.Debugf("step started, %d remaining", remaining)
	l.report(l.origin, usercred.LearnStarted, l.target, remaining)
}

// StepRetry is called when a read was unusable and must be repeated.
func (l *Learn) StepRetry(remaining uint8) {
	if !l.InProgress() {
		return
	}
	l.state = StateStepRetry
	l.remaining = remaining
	l.arm()
	l.log.Debugf("step retry, %d remaining", remaining)
	l.report(l.origin, usercred.LearnStepRetry, l.target, remaining)
}

// ReadDone completes the enrollment with the captured data. The data is
// validated and written like a Credential Set; Learn returns to Idle either way.
func (l *Learn) ReadDone(data []byte) error {
	if !l.InProgress() {
		return ErrNotInProgress
	}
	target, origin := l.target, l.origin
	l.finish()

	c := credential.Credential{UUID: target.UUID, Type: target.Type, Slot: target.Slot, Data: data}
	err := l.ops.SetCredential(origin, target.Operation, c)
	if err != nil {
		l.log.Infof("learn of %s ended: write failed: %v", target.Key(), err)
		l.report(origin, usercred.LearnEndedNotDueToTimeout, target, 0)
		return err
	}
	l.log.Infof("learn of %s succeeded", target.Key())
	l.report(origin, usercred.LearnSuccess, target, 0)
	return nil
}

// Failed ends the enrollment after a sensor error.
func (l *Learn) Failed() {
	if !l.InProgress() {
		return
	}
	target, origin := l.target, l.origin
	l.finish()
	l.log.Infof("learn of %s failed at the sensor", target.Key())
	l.report(origin, usercred.LearnEndedNotDueToTimeout, target, 0)
}

// Cancel ends the enrollment. A remote cancel is only accepted from the node
// that started it; a local cancel is always accepted.
func (l *Learn) Cancel(origin usercred.Origin) error {
	if !l.InProgress() {
		return ErrNotInProgress
	}
	if !origin.Local && (l.origin.Local || origin.NodeID != l.origin.NodeID) {
		l.log.Debugf("ignoring cancel from %s, learn started by %s", origin, l.origin)
		return ErrNotInitiator
	}
	target, initiator := l.target, l.origin
	l.sensor.Abort()
	l.finish()
	l.log.Infof("%s cancelled learn of %s", origin, target.Key())
	l.report(initiator, usercred.LearnEndedNotDueToTimeout, target, 0)
	return nil
}

func (l *Learn) arm() {
	l.gen++
	gen := l.gen
	l.timer.Arm(l.timeout, func() { l.expire(gen) })
	l.power.StayAwake(l.timeout)
}

func (l *Learn) expire(gen uint64) {
	if gen != l.gen || !l.InProgress() {
		return
	}
	target, origin := l.target, l.origin
	l.sensor.Abort()
	l.finish()
	l.log.Infof("learn of %s timed out", target.Key())
	l.report(origin, usercred.LearnTimeout, target, 0)
}

// finish returns to Idle and releases the timer and the power lock.
func (l *Learn) finish() {
	l.timer.Cancel()
	l.power.Release()
	l.gen++
	l.state = StateIdle
	l.target = Target{}
	l.origin = usercred.Origin{}
	l.remaining = 0
}

func (l *Learn) report(origin usercred.Origin, status usercred.LearnStatus, t Target, remaining uint8) {
	if origin.Local {
		return
	}
	l.sink.Send(usercred.Target{Node: origin.NodeID}, usercred.LearnReport{
		Status:         status,
		UUID:           t.UUID,
		Type:           t.Type,
		Slot:           t.Slot,
		StepsRemaining: remaining,
	})
}
