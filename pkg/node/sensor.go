package node

import (
	"github.com/backkem/doorlock/pkg/learn"
	"github.com/pion/logging"
)

// waitingSensor stands in when no reader is configured. The application
// reports reads through Node.LearnStepStarted, LearnReadDone and friends.
type waitingSensor struct {
	log logging.LeveledLogger
}

func (s *waitingSensor) Begin(t learn.Target) error {
	s.log.Infof("waiting for %d %s read(s) for user %d slot %d", t.Steps, t.Type, t.UUID, t.Slot)
	return nil
}

func (s *waitingSensor) Abort() {
	s.log.Info("sensor read aborted")
}
