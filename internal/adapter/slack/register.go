package slack

import "github.com/Strob0t/TaskDesk/internal/port/notifier"

func init() {
	notifier.Register(providerName, func(s notifier.Settings) (notifier.Notifier, error) {
		if s.WebhookURL == "" {
			return nil, notifier.ErrNotConfigured
		}
		return NewNotifier(s.WebhookURL, WithTimeout(s.Timeout)), nil
	})
}
