package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSQSPublisherSendsEvent(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://example.com/queue",
		client:   client,
		log:      noopLogger{},
	}

	if err := pub.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["query_id"]
	if !ok || aws.ToString(attr.StringValue) != "posts" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("query_id attribute missing or wrong: %#v", attr)
	}
	body := aws.ToString(client.input.MessageBody)
	if !strings.Contains(body, `"query_id":"posts"`) || !strings.Contains(body, `"result":[{"_id":"p1"}]`) {
		t.Fatalf("unexpected message body: %s", body)
	}
}

func TestSQSPublisherWrapsError(t *testing.T) {
	boom := errors.New("boom")
	log := &recordingLogger{}
	pub := &sqsPublisher{id: "queue", queueURL: "q", client: &fakeSQSClient{err: boom}, log: log}

	err := pub.Publish(context.Background(), testEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if len(log.entries) != 1 || log.entries[0].level != "error" {
		t.Fatalf("expected one error log, got %+v", log.entries)
	}
}

func TestNewSQSPublisherWithStaticCredentials(t *testing.T) {
	pub, err := newSQSPublisher(context.Background(), PublisherConfig{
		ID:   "local",
		Type: TypeSQS,
		SQS: &SQSPublisherConfig{
			QueueURL: "http://localhost:4566/000000000000/events",
			AWSConfig: AWSConfig{
				Region:          "us-east-1",
				Endpoint:        "http://localhost:4566",
				AccessKeyID:     "test",
				SecretAccessKey: "test",
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("newSQSPublisher: %v", err)
	}
	if pub.Type() != TypeSQS || pub.ID() != "local" {
		t.Fatalf("unexpected publisher %s/%s", pub.Type(), pub.ID())
	}
}
