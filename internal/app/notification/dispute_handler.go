package notification

import (
	"context"
	"encoding/json"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	domdispute "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/dispute"
	domnotification "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/notification"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
)

// HandleDisputeCreated notifies the non-initiating party that a dispute
// has been opened against their task, generalizing spec.md's
// user_notifications queue the same way §4.I describes: a notification is
// just another outbox-fanned effect, registered against
// domoutbox.EventDisputeCreated exactly like any other queue consumer.
func (s *Service) HandleDisputeCreated(ctx context.Context, row domoutbox.Row) error {
	var d domdispute.Dispute
	if err := json.Unmarshal(row.Payload, &d); err != nil {
		return apperrors.Internal("unmarshal dispute created payload", err)
	}
	recipient := d.WorkerID
	if d.InitiatorID == d.WorkerID {
		recipient = d.PosterID
	}
	if recipient == "" {
		return nil
	}
	_, err := s.Notify(ctx, recipient, d.TaskID, domnotification.CategoryDisputeUpdate, domnotification.PriorityHigh,
		"A dispute was opened on your task", "The other party opened a dispute. Review the task for details.")
	return err
}
