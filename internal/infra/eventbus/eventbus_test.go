package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"clipstash/internal/domain/event"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/suite"
)

type EventBusTestSuite struct {
	suite.Suite
	sut    *EventBus
	logger watermill.LoggerAdapter
}

func TestEventBusTestSuite(t *testing.T) {
	suite.Run(t, new(EventBusTestSuite))
}

func (s *EventBusTestSuite) SetupTest() {
	s.logger = watermill.NopLogger{}
	s.sut = NewEventBus(s.logger)
}

func (s *EventBusTestSuite) TearDownTest() {
	if s.sut != nil {
		s.sut.Close()
	}
}

func (s *EventBusTestSuite) TestPublishWithoutSubscribers() {
	// Arrange
	ctx := context.Background()
	evt := event.NewClipsExpired(2, time.Now().UTC())

	// Act
	err := s.sut.Publish(ctx, evt)

	// Assert
	s.NoError(err)
}

func (s *EventBusTestSuite) TestSubscriberReceivesEnvelope() {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := s.sut.Subscriber().Subscribe(ctx, ClipEventsTopic)
	s.Require().NoError(err)
	evt := event.NewHitsFlushed(2, 9, nil, 0, time.Millisecond)

	// Act
	s.Require().NoError(s.sut.Publish(ctx, evt))

	// Assert
	select {
	case msg := <-messages:
		s.Equal(event.HitsFlushedName, msg.Metadata.Get("event_name"))
		envelope, err := MessageToEnvelope(msg)
		s.Require().NoError(err)
		s.Equal(evt.EventID(), envelope.EventID)
		s.Equal(event.SourceHitCounter, envelope.Source)
		s.Equal(event.SourceHitCounter, msg.Metadata.Get("source"))

		var payload event.HitsFlushed
		s.Require().NoError(json.Unmarshal(envelope.Payload, &payload))
		s.Equal(uint64(9), payload.Hits)
		s.Equal(2, payload.Keys)
		msg.Ack()
	case <-time.After(2 * time.Second):
		s.Fail("timeout waiting for message")
	}
}

func (s *EventBusTestSuite) TestMessageToEnvelopeRejectsGarbage() {
	msg, err := EventToMessage(event.NewClipsExpired(1, time.Now()))
	s.Require().NoError(err)
	msg.Payload = []byte("not json")

	_, err = MessageToEnvelope(msg)
	s.Error(err)
}
