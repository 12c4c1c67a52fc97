package sim

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// TaskLogger is a hook that logs every resumption and completion of a
// process.
type TaskLogger struct {
	logger logrus.FieldLogger
}

// NewTaskLogger returns a new TaskLogger which will write into the logger.
func NewTaskLogger(logger logrus.FieldLogger) *TaskLogger {
	return &TaskLogger{logger: logger}
}

// Func writes the task information into the logger.
func (h *TaskLogger) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosAfterResume:
		t := ctx.Item.(*Task)
		h.logger.WithFields(logrus.Fields{
			"now":  ctx.Now,
			"task": t.Name(),
		}).Infof("waits on %s", describeClause(ctx.Detail.(Clause)))
	case HookPosTaskComplete:
		t := ctx.Item.(*Task)
		h.logger.WithFields(logrus.Fields{
			"now":  ctx.Now,
			"task": t.Name(),
		}).Info("completed")
	}
}

func describeClause(c Clause) string {
	parts := make([]string, 0, len(c))
	for _, t := range c {
		parts = append(parts, describeTrigger(t))
	}

	return strings.Join(parts, " | ")
}

func describeTrigger(t Trigger) string {
	switch trig := t.(type) {
	case DelayTrigger:
		return fmt.Sprintf("delay(%d)", trig.Duration)
	case ListTrigger:
		return "signal"
	case CallTrigger:
		return "call"
	case ImmediateTrigger:
		return "immediate"
	case JoinTrigger:
		parts := make([]string, 0, len(trig.Triggers))
		for _, sub := range trig.Triggers {
			parts = append(parts, describeTrigger(sub))
		}

		return "join(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%T", t)
	}
}
