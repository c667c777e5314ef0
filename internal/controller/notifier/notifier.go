package notifier

// A Notifier sends a user-facing notification. title is the event itself,
// reason explains what triggered it.
type Notifier interface {
	Notify(title, reason string)
}

type Notifiers []Notifier

func (n Notifiers) Notify(title, reason string) {
	for _, l := range n {
		l.Notify(title, reason)
	}
}
