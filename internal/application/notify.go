package application

import (
	"github.com/google/uuid"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

type noticeOption func(*domain.Notification)

func withDevice(id domain.DeviceID) noticeOption {
	return func(n *domain.Notification) { n.DeviceID = id }
}

func withSession(id domain.SessionID) noticeOption {
	return func(n *domain.Notification) { n.SessionID = id }
}

func withError(err error) noticeOption {
	return func(n *domain.Notification) { n.ErrorKind = domain.KindOf(err) }
}

func newNotification(clock ports.Clock, kind domain.EventKind, message string, opts ...noticeOption) domain.Notification {
	n := domain.Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Level:   kind.Level(),
		Message: message,
		At:      clock.Now(),
	}
	for _, opt := range opts {
		opt(&n)
	}

	return n
}

type discardNotifier struct{}

func (discardNotifier) Notify(domain.Notification) {}
