// Copyright 2026 The Minikernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// journalHook forwards logrus entries to the systemd journal when one is
// reachable, and is silently inert otherwise (journal.Enabled() is false
// in every environment without a running systemd-journald, which is the
// normal case for this teaching kernel run outside a container).
type journalHook struct{}

func (journalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (journalHook) Fire(e *logrus.Entry) error {
	if !journal.Enabled() {
		return nil
	}
	pri := journalPriority(e.Level)
	msg, err := e.String()
	if err != nil {
		return err
	}
	return journal.Send(msg, pri, nil)
}

func journalPriority(level logrus.Level) journal.Priority {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return journal.PriCrit
	case logrus.ErrorLevel:
		return journal.PriErr
	case logrus.WarnLevel:
		return journal.PriWarning
	case logrus.InfoLevel:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// NewLogger builds the structured logger every Task.Infof/Debugf/
// Warningf call goes through. It adds the optional systemd journal hook
// so kernel diagnostics show up in `journalctl` on hosts that have one,
// matching the way gVisor's own sentry optionally forwards to existing
// logging sinks.
func NewLogger() *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.AddHook(journalHook{})
	return logrus.NewEntry(l)
}
