package notify

import (
    "log"

    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

// Log writes notifications through logutil. UI refresh events are logged at
// debug level only.
type Log struct {
    Logger *log.Logger
}

func (l Log) SubscriptionsChanged()   { logutil.Debugf(l.Logger, "subscriptions changed") }
func (l Log) ServiceManagersChanged() { logutil.Debugf(l.Logger, "service managers changed") }

func (l Log) SubscribersChanged(key protocol.ServiceKey) {
    logutil.Debugf(l.Logger, "subscribers of %s changed", key)
}

func (l Log) MessagesChanged(serviceName string) {
    logutil.Debugf(l.Logger, "messages of '%s' changed", serviceName)
}

func (l Log) Notify(title, body string) { logutil.Infof(l.Logger, "[%s] %s", title, body) }
