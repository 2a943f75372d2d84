package ports

import "github.com/bnema/mirrorctl/internal/domain"

type Notifier interface {
	Notify(n domain.Notification)
}

type NotifierFunc func(n domain.Notification)

func (f NotifierFunc) Notify(n domain.Notification) {
	f(n)
}
