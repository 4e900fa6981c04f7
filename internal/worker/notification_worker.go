package worker

import (
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartEventSubscribers registers the in-process notification handlers and, when a
// Kafka publisher is configured, the event forwarder.
func StartEventSubscribers(dispatcher events.Dispatcher, notificationService *service.NotificationService, publisher *events.KafkaPublisher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if publisher != nil && dispatcher != nil {
		publisher.Register(dispatcher)
	}
}
