package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/postflow/internal/domain/model"
)

func TestProducer(t *testing.T) {
	Convey("Given a producer over a mock sync producer", t, func() {
		sp := mocks.NewSyncProducer(t, NewConfig())
		p := NewProducerFrom(sp, "post-published")
		defer func() { _ = p.Close() }()

		event := model.PostPublishedEvent{PostID: "p1", AuthorID: "u1", Tags: []string{"fox"}}

		Convey("When the broker accepts the message", func() {
			sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
				key, _ := msg.Key.Encode()
				if string(key) != "u1" {
					return errors.New("expected author id as key")
				}
				if msg.Topic != "post-published" {
					return errors.New("unexpected topic " + msg.Topic)
				}
				raw, _ := msg.Value.Encode()
				var decoded model.PostPublishedEvent
				if err := json.Unmarshal(raw, &decoded); err != nil {
					return err
				}
				if decoded.PostID != "p1" {
					return errors.New("unexpected post id " + decoded.PostID)
				}
				return nil
			})

			So(p.Publish(context.Background(), event), ShouldBeNil)
		})

		Convey("When the broker rejects the message", func() {
			sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

			err := p.Publish(context.Background(), event)
			So(errors.Is(err, sarama.ErrOutOfBrokers), ShouldBeTrue)
		})

		Convey("When the context is already done", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			So(errors.Is(p.Publish(ctx, event), context.Canceled), ShouldBeTrue)
		})
	})
}
