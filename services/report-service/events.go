package main

import (
	"log"

	"field-service-system/pkg/queue"
	"field-service-system/services/report-service/models"
)

// publishReportEvent pushes the event to the notification queue. Best-effort:
// the mutation is already committed, so failure is logged and swallowed.
func (a *app) publishReportEvent(event models.ReportEvent) {
	if err := queue.PublishMessage(a.amqp, eventQueueName, event); err != nil {
		log.Printf("[WARN] Report saved but failed to publish event: %v", err)
		return
	}
	log.Printf("[INFO] Event %s published for report %s", event.Type, event.ReportID)
}
