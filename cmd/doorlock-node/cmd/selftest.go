package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/frame"
	"github.com/backkem/doorlock/pkg/node"
	"github.com/backkem/doorlock/pkg/nvm"
	"github.com/backkem/doorlock/pkg/transport"
	"github.com/backkem/doorlock/pkg/usercred"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

const (
	selftestLock       uint16 = 2
	selftestController uint16 = 1
)

var errSelftestFailed = errors.New("self test failed")

func init() {
	rootCmd.AddCommand(selftestCmd)
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run a lock and a controller over an in-memory link",
	Long: `Start an in-memory node and a controller joined by a virtual link and
run a short exchange: capabilities, user and PIN enrollment, a duplicate
PIN, the all-users checksum and a user delete. No socket is opened and
nothing is persisted.

Examples:
  doorlock-node selftest`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, lf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runSelftest(cmd.Context(), cmd.OutOrStdout(), lf)
	},
}

type selftest struct {
	lock   *node.Node
	ctrl   *transport.UDP
	frames chan any
}

func runSelftest(ctx context.Context, w io.Writer, lf logging.LoggerFactory) error {
	p := transport.NewPipe()
	defer p.Close()
	lockConn, ctrlConn := p.PacketConn(0), p.PacketConn(1)

	st := &selftest{frames: make(chan any, 16)}

	var err error
	st.lock, err = node.New(node.Config{
		NodeID:        selftestLock,
		Capabilities:  credential.DefaultCapabilities(),
		Store:         nvm.NewMemoryStore(),
		Conn:          lockConn,
		Peers:         map[uint16]net.Addr{selftestController: lockConn.PeerAddr()},
		Lifeline:      []uint16{selftestController},
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}
	if err := st.lock.Start(ctx); err != nil {
		return err
	}
	defer st.lock.Stop()

	st.ctrl, err = transport.NewUDP(transport.UDPConfig{
		Conn:   ctrlConn,
		NodeID: selftestController,
		Peers:  map[uint16]net.Addr{selftestLock: ctrlConn.PeerAddr()},
		Handler: func(src uint16, payload []byte) {
			if msg, err := frame.Decode(payload); err == nil {
				st.frames <- msg
			}
		},
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}
	if err := st.ctrl.Start(); err != nil {
		return err
	}
	defer st.ctrl.Stop()

	admin := credential.User{
		UUID:           1,
		Type:           credential.UserTypeProgramming,
		Active:         true,
		CredentialRule: credential.CredentialRuleSingle,
		Name:           []byte("Admin"),
	}
	pin := credential.Credential{UUID: 1, Type: credential.CredentialTypePINCode, Slot: 1, Data: []byte("3494")}
	dup := pin
	dup.Slot = 2

	steps := []struct {
		name string
		run  func() error
	}{
		{"user capabilities", func() error {
			r, err := request[frame.UserCapabilitiesReport](st, frame.UserCapabilitiesGet{})
			if err != nil {
				return err
			}
			if want := st.lock.Capabilities().MaxUsers; r.MaxUsers != want {
				return fmt.Errorf("max users %d, want %d", r.MaxUsers, want)
			}
			return nil
		}},
		{"add user", func() error {
			r, err := request[usercred.UserReport](st, frame.UserSet{Operation: credential.OperationAdd, User: admin})
			return expect(err, r.Type, usercred.UserAdded)
		}},
		{"add PIN", func() error {
			r, err := request[usercred.CredentialReport](st, frame.CredentialSet{Operation: credential.OperationAdd, Credential: pin})
			return expect(err, r.Type, usercred.CredentialAdded)
		}},
		{"duplicate PIN rejected", func() error {
			r, err := request[usercred.CredentialReport](st, frame.CredentialSet{Operation: credential.OperationAdd, Credential: dup})
			return expect(err, r.Type, usercred.CredentialDuplicate)
		}},
		{"all users checksum", func() error {
			r, err := request[frame.AllUsersChecksumReport](st, frame.AllUsersChecksumGet{})
			if err != nil {
				return err
			}
			sums, err := st.lock.Checksums()
			if err != nil {
				return err
			}
			if sums.AllUsers == nil || *sums.AllUsers != r.Checksum {
				return fmt.Errorf("remote %04X does not match local", r.Checksum)
			}
			return nil
		}},
		{"delete user", func() error {
			r, err := request[usercred.UserReport](st, frame.UserSet{Operation: credential.OperationDelete, User: credential.User{UUID: 1}})
			if err := expect(err, r.Type, usercred.UserDeleted); err != nil {
				return err
			}
			creds, err := st.lock.Credentials()
			if err != nil {
				return err
			}
			if len(creds) != 0 {
				return fmt.Errorf("%d credentials left after delete", len(creds))
			}
			return nil
		}},
	}

	failed := 0
	for _, s := range steps {
		if err := s.run(); err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", s.name, err)
			continue
		}
		fmt.Fprintf(w, "PASS  %s\n", s.name)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d steps", errSelftestFailed, failed, len(steps))
	}
	fmt.Fprintf(w, "ok    %d steps\n", len(steps))
	return nil
}

// request sends msg to the lock and waits for a reply of type T. Frames of
// other types are skipped.
func request[T any](st *selftest, msg any) (T, error) {
	var zero T
	b, err := frame.Encode(msg)
	if err != nil {
		return zero, err
	}
	if err := st.ctrl.Transmit(selftestLock, b); err != nil {
		return zero, err
	}
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-st.frames:
			if r, ok := got.(T); ok {
				return r, nil
			}
		case <-timeout:
			return zero, fmt.Errorf("no %T received", zero)
		}
	}
}

func expect[K comparable](err error, got, want K) error {
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("got %v, want %v", got, want)
	}
	return nil
}
