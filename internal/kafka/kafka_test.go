package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

func expectCommand(t *testing.T, sp *mocks.SyncProducer, key string, check func(cmd models.WorkerCommand)) {
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		gotKey, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, key, string(gotKey))
		assert.Equal(t, "commands", msg.Topic)

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var cmd models.WorkerCommand
		require.NoError(t, json.Unmarshal(value, &cmd))
		assert.NotEmpty(t, cmd.ID)
		assert.False(t, cmd.CreatedAt.IsZero())
		check(cmd)
		return nil
	})
}

func TestGateway_PublishesCommands(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	g := NewGateway(NewProducer(sp, "commands"))
	ctx := context.Background()

	expectCommand(t, sp, "cam-1", func(cmd models.WorkerCommand) {
		assert.Equal(t, models.CommandStartAlgorithm, cmd.Kind)
		assert.Equal(t, "motion", cmd.Name)
		assert.Equal(t, "rtmp://s/live/door", cmd.Payload["streaming_url"])
		assert.Equal(t, "http://o/api/cameras/cam-1/result", cmd.Payload["result_callback_url"])
	})
	expectCommand(t, sp, "cam-1", func(cmd models.WorkerCommand) {
		assert.Equal(t, models.CommandRunAction, cmd.Kind)
		assert.Equal(t, "email", cmd.Name)
		assert.Equal(t, "ops@example.com", cmd.Payload["to"])
	})
	expectCommand(t, sp, "motion", func(cmd models.WorkerCommand) {
		assert.Equal(t, models.CommandStopAndReset, cmd.Kind)
		assert.Empty(t, cmd.CameraID)
	})

	require.NoError(t, g.StartAlgorithm(ctx, "motion", gateway.StartPayload{
		StreamingURL:      "rtmp://s/live/door",
		CameraID:          "cam-1",
		ResultCallbackURL: "http://o/api/cameras/cam-1/result",
	}))
	require.NoError(t, g.RunAction(ctx, "email", map[string]any{"to": "ops@example.com", "camera_id": "cam-1"}))
	require.NoError(t, g.StopAndReset(ctx, "motion"))

	require.NoError(t, sp.Close())
}

func TestGateway_WrapsPublishFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	g := NewGateway(NewProducer(sp, "commands"))

	boom := errors.New("broker down")
	sp.ExpectSendMessageAndFail(boom)

	err := g.RunAction(context.Background(), "siren", map[string]any{"camera_id": "cam-1"})
	require.Error(t, err)

	var gerr *gateway.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, models.CommandRunAction, gerr.Op)
	assert.Equal(t, "siren", gerr.Name)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, sp.Close())
}

func TestProducer_SendOutboxMessage(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducer(sp, "commands")

	expectCommand(t, sp, "cam-7", func(cmd models.WorkerCommand) {
		assert.Equal(t, "row-1", cmd.ID)
		assert.Equal(t, models.CommandRunAction, cmd.Kind)
		assert.Equal(t, map[string]any{"camera_id": "cam-7"}, cmd.Payload)
	})

	require.NoError(t, p.SendOutboxMessage(models.OutboxMessage{
		ID:        "row-1",
		CameraID:  "cam-7",
		Kind:      models.CommandRunAction,
		Name:      "siren",
		Payload:   []byte(`{"camera_id":"cam-7"}`),
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, sp.Close())
}

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "member" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "results" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_DispatchesResults(t *testing.T) {
	var got []models.ResultMessage
	h := &consumerGroupHandler{
		handle: func(_ context.Context, msg models.ResultMessage) error {
			got = append(got, msg)
			if msg.CameraID == "cam-2" {
				return errors.New("stale")
			}
			return nil
		},
		closed: make(chan struct{}),
	}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 4)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"camera_id":"cam-1","results":{"motion":"detected"}}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`not json`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"results":{"motion":"detected"}}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 4, Value: []byte(`{"camera_id":"cam-2","results":{"face":"known"}}`)}
	close(claim.messages)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	require.Len(t, got, 2)
	assert.Equal(t, models.ResultMessage{CameraID: "cam-1", Results: map[string]string{"motion": "detected"}}, got[0])
	assert.Equal(t, "cam-2", got[1].CameraID)
	assert.Equal(t, []int64{1, 2, 3, 4}, sess.marked)
}
