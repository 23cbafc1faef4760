package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedPublisher starts a producer span per message and stores the span
// context on the message, so the subscriber side continues the same trace.
type tracedPublisher struct {
	next   message.Publisher
	tracer trace.Tracer
}

func newTracedPublisher(next message.Publisher, tracer trace.Tracer) *tracedPublisher {
	return &tracedPublisher{next: next, tracer: tracer}
}

func messageAttributes(operation, topic string, msg *message.Message) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", "watermill"),
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.destination", topic),
		attribute.String("messaging.message_id", msg.UUID),
		attribute.Int("messaging.message_payload_size_bytes", len(msg.Payload)),
	}
	if userID := msg.Metadata.Get(metaKeyUserID); userID != "" {
		attrs = append(attrs, attribute.String("user.id", userID))
	}
	return attrs
}

func (p *tracedPublisher) Publish(topic string, messages ...*message.Message) error {
	spans := make([]trace.Span, len(messages))
	for i, msg := range messages {
		parent := msg.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, span := p.tracer.Start(parent, "pubsub.publish."+topic,
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(messageAttributes("publish", topic, msg)...),
		)
		msg.SetContext(ctx)
		spans[i] = span
	}

	err := p.next.Publish(topic, messages...)
	for _, span := range spans {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	return err
}

func (p *tracedPublisher) Close() error {
	return p.next.Close()
}
