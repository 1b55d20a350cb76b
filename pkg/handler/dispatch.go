package handler

import (
	"errors"
	"time"

	"github.com/backkem/doorlock/pkg/frame"
	"github.com/backkem/doorlock/pkg/learn"
	"github.com/backkem/doorlock/pkg/usercred"
)

// Handle processes one frame received from node src.
func (h *Handler) Handle(src uint16, payload []byte) Status {
	msg, err := frame.Decode(payload)
	if err != nil {
		h.log.Debugf("frame from node %d rejected: %v", src, err)
		if errors.Is(err, frame.ErrUnknownCommand) || errors.Is(err, frame.ErrWrongClass) {
			return StatusNoSupport
		}
		return StatusFail
	}

	status, err := h.dispatch(usercred.Remote(src), msg)
	if err != nil {
		h.log.Debugf("%T from node %d: %v", msg, src, err)
	}
	return status
}

func (h *Handler) dispatch(origin usercred.Origin, msg any) (Status, error) {
	src := origin.NodeID
	switch m := msg.(type) {
	case frame.UserCapabilitiesGet:
		return h.reply(src, frame.NewUserCapabilitiesReport(h.svc.Capabilities())), nil
	case frame.CredentialCapabilitiesGet:
		return h.reply(src, frame.NewCredentialCapabilitiesReport(h.svc.Capabilities())), nil

	case frame.UserSet:
		return statusOf(h.svc.SetUser(origin, m.Operation, m.User))
	case frame.UserGet:
		r, err := h.svc.GetUser(m.UUID)
		if err != nil {
			return statusOf(err)
		}
		return h.reply(src, r), nil

	case frame.CredentialSet:
		return statusOf(h.svc.SetCredential(origin, m.Operation, m.Credential))
	case frame.CredentialGet:
		r, err := h.svc.GetCredential(m.UUID, m.Key)
		if err != nil {
			return statusOf(err)
		}
		return h.reply(src, r), nil

	case frame.CredentialLearnStart:
		if h.learn == nil {
			return StatusNoSupport, learn.ErrNotSupported
		}
		err := h.learn.Start(origin, learn.StartRequest{
			UUID:      m.UUID,
			Type:      m.Key.Type,
			Slot:      m.Key.Slot,
			Operation: m.Operation,
			Timeout:   time.Duration(m.Timeout) * time.Second,
		})
		if err != nil {
			return statusOf(err)
		}
		return StatusWorking, nil
	case frame.CredentialLearnCancel:
		if h.learn == nil {
			return StatusNoSupport, learn.ErrNotSupported
		}
		return statusOf(h.learn.Cancel(origin))

	case frame.AssociationSet:
		_, err := h.svc.SetAssociation(origin, usercred.AssociationRequest(m))
		return statusOf(err)

	case frame.AllUsersChecksumGet:
		sum, err := h.svc.AllUsersChecksum()
		if err != nil {
			return statusOf(err)
		}
		return h.reply(src, frame.AllUsersChecksumReport{Checksum: sum}), nil
	case frame.UserChecksumGet:
		sum, err := h.svc.UserChecksum(m.UUID)
		if err != nil {
			return statusOf(err)
		}
		return h.reply(src, frame.UserChecksumReport{UUID: m.UUID, Checksum: sum}), nil
	case frame.CredentialChecksumGet:
		sum, err := h.svc.CredentialChecksum(m.Type)
		if err != nil {
			return statusOf(err)
		}
		return h.reply(src, frame.CredentialChecksumReport{Type: m.Type, Checksum: sum}), nil

	case frame.AdminPinCodeSet:
		_, err := h.svc.SetAdminCode(origin, m.Code)
		return statusOf(err)
	case frame.AdminPinCodeGet:
		r, err := h.svc.AdminCode()
		if err != nil {
			return statusOf(err)
		}
		return h.reply(src, r), nil

	default:
		return StatusFail, ErrUnexpectedReport
	}
}

func statusOf(err error) (Status, error) {
	switch {
	case err == nil:
		return StatusSuccess, nil
	case errors.Is(err, usercred.ErrUnsupported), errors.Is(err, learn.ErrNotSupported):
		return StatusNoSupport, err
	default:
		return StatusFail, err
	}
}
