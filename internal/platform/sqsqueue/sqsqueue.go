// Package sqsqueue implements queue.JobQueue on Amazon SQS. The message
// body is the raw job ID.
package sqsqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/zsims/atscale/internal/queue"
)

// SQS service limits.
const (
	maxBatch       = 10
	maxWaitSeconds = 20
)

// API is the subset of the SQS client used by Queue.
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Queue is a queue.JobQueue backed by an SQS standard queue.
type Queue struct {
	client     API
	url        string
	visibility time.Duration
	logger     *slog.Logger
}

var _ queue.JobQueue = (*Queue)(nil)

// New resolves the URL of queue name, creating the queue when it does not
// exist yet.
func New(ctx context.Context, client API, name string, visibility time.Duration, log *slog.Logger) (*Queue, error) {
	if name == "" {
		return nil, errors.New("sqsqueue: queue name is required")
	}
	if visibility < time.Second {
		return nil, errors.New("sqsqueue: visibility must be at least one second")
	}
	if log == nil {
		log = slog.Default()
	}

	url, err := resolveURL(ctx, client, name)
	if err != nil {
		return nil, err
	}

	return &Queue{
		client:     client,
		url:        url,
		visibility: visibility,
		logger:     log.With(slog.String("component", "sqs_queue"), slog.String("queue", name)),
	}, nil
}

func resolveURL(ctx context.Context, client API, name string) (string, error) {
	got, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err == nil {
		return aws.ToString(got.QueueUrl), nil
	}
	var missing *types.QueueDoesNotExist
	if !errors.As(err, &missing) {
		return "", fmt.Errorf("sqsqueue: get queue url %q: %w", name, err)
	}

	created, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("sqsqueue: create queue %q: %w", name, err)
	}
	return aws.ToString(created.QueueUrl), nil
}

// Enqueue sends jobID as the message body.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(jobID),
	})
	if err != nil {
		return fmt.Errorf("sqsqueue: send: %w", err)
	}
	return nil
}

// Dequeue long-polls for up to wait. SQS caps a receive at ten messages
// and twenty seconds.
func (q *Queue) Dequeue(ctx context.Context, maxMessages int, wait time.Duration) ([]queue.Message, error) {
	if maxMessages < 1 {
		return nil, fmt.Errorf("sqsqueue: maxMessages must be at least 1, got %d", maxMessages)
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: int32(min(maxMessages, maxBatch)),
		WaitTimeSeconds:     waitSeconds(wait),
		VisibilityTimeout:   int32(math.Ceil(q.visibility.Seconds())),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("sqsqueue: receive: %w", err)
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		msgs = append(msgs, queue.Message{
			ID:            aws.ToString(m.MessageId),
			JobID:         aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			DeliveryCount: count,
		})
	}
	return msgs, nil
}

// Acknowledge deletes the message. SQS rejects handles it no longer
// recognises; those surface as queue.ErrInvalidReceipt.
func (q *Queue) Acknowledge(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return queue.ErrInvalidReceipt
	}

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		if isInvalidReceipt(err) {
			return fmt.Errorf("%w: %v", queue.ErrInvalidReceipt, err)
		}
		return fmt.Errorf("sqsqueue: delete: %w", err)
	}
	return nil
}

func isInvalidReceipt(err error) bool {
	var invalid *types.ReceiptHandleIsInvalid
	if errors.As(err, &invalid) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ReceiptHandleIsInvalid", "InvalidParameterValue":
			return true
		}
	}
	return false
}

func waitSeconds(wait time.Duration) int32 {
	if wait <= 0 {
		return 0
	}
	secs := int32(math.Ceil(wait.Seconds()))
	if secs > maxWaitSeconds {
		return maxWaitSeconds
	}
	return secs
}
