//go:build integration

package integrationtests

import (
	"context"
	"hole-detector/cmd"
	"hole-detector/internal/messaging"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	payload := messaging.BatchEventPayload{
		BatchId:       uuid.New(),
		Status:        "COMPLETED",
		ImageCount:    2,
		RegularHoles:  5,
		ThreadedHoles: 3,
		ArchiveKey:    "key/metal_holes_detections.zip",
		Timestamp:     time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, publisher.PublishBatchEvent(ctx, payload))

	select {
	case task := <-receiver.Tasks():
		assert.Equal(t, messaging.DetectionEventsQueue, task.Type())

		received, err := messaging.DecodeBatchEvent(task)
		require.NoError(t, err)
		assert.Equal(t, payload.BatchId, received.BatchId)
		assert.Equal(t, payload.RegularHoles, received.RegularHoles)
		assert.Equal(t, payload.ArchiveKey, received.ArchiveKey)
		assert.True(t, payload.Timestamp.Equal(received.Timestamp))

		require.NoError(t, task.Ack())
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for batch event")
	}
}

func TestCreateEventQueueLeavesEventsForConsumers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	url := setupRabbitMQURL(t, ctx)

	publisher, reciever, err := cmd.CreateEventQueue(url)
	require.NoError(t, err)
	defer publisher.Close()
	assert.Nil(t, reciever)

	require.NoError(t, publisher.PublishBatchEvent(ctx, messaging.BatchEventPayload{
		BatchId:   uuid.New(),
		Status:    "COMPLETED",
		Timestamp: time.Now().UTC(),
	}))

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	require.Eventually(t, func() bool {
		queue, err := ch.QueueDeclarePassive(messaging.DetectionEventsQueue, true, false, false, false, nil)
		return err == nil && queue.Messages == 1
	}, 10*time.Second, 100*time.Millisecond)

	queue, err := ch.QueueDeclarePassive(messaging.DetectionEventsQueue, true, false, false, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Consumers)
}
