package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
)

func DecodeBatchEvent(task Task) (BatchEventPayload, error) {
	var payload BatchEventPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}

// DrainBatchEvents logs every batch event delivered by the reciever until its
// task channel is closed or ctx is done. Malformed messages are rejected.
func DrainBatchEvents(ctx context.Context, reciever Reciever) {
	for {
		var task Task
		select {
		case t, ok := <-reciever.Tasks():
			if !ok {
				slog.Info("batch event stream closed")
				return
			}
			task = t
		case <-ctx.Done():
			slog.Info("stopping batch event drain")
			return
		}

		if task.Type() != DetectionEventsQueue {
			slog.Warn("received message from unexpected queue", "queue", task.Type())
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message", "error", err)
			}
			continue
		}

		payload, err := DecodeBatchEvent(task)
		if err != nil {
			slog.Error("error decoding batch event", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message", "error", err)
			}
			continue
		}

		slog.Info("batch event", "batch_id", payload.BatchId, "status", payload.Status, "images", payload.ImageCount,
			"regular_holes", payload.RegularHoles, "threaded_holes", payload.ThreadedHoles, "error", payload.Error)

		if err := task.Ack(); err != nil {
			slog.Error("error acking message", "batch_id", payload.BatchId, "error", err)
		}
	}
}
