package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/notifier"
)

// logrusSender is the reference notifier.Sender used when no real chat
// platform collaborator is wired in: it logs every outbound notification
// through logrus instead of delivering it, so the engine always has a
// functioning Notifier to call. A production deployment replaces this with
// a collaborator that actually talks to the chat platform.
type logrusSender struct {
	log *logrus.Logger
}

func newLogrusSender() *logrusSender {
	return &logrusSender{log: logrus.StandardLogger()}
}

func (s *logrusSender) Send(ctx context.Context, level notifier.Level, text string) error {
	entry := s.log.WithField("level", level)
	switch level {
	case notifier.LevelCritical, notifier.LevelError:
		entry.Error(text)
	case notifier.LevelWarning:
		entry.Warn(text)
	default:
		entry.Info(text)
	}
	return nil
}

func (s *logrusSender) SetPresence(ctx context.Context, state notifier.PresenceState, mode notifier.PresenceMode, activity string) error {
	s.log.WithFields(logrus.Fields{"state": state, "mode": mode}).Debug(activity)
	return nil
}
