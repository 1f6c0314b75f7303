package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"docsign-backend/internal/bootstrap"
	"docsign-backend/internal/shared/config"
	"docsign-backend/internal/shared/metrics"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/workerproc"
)

const (
	defaultRegion      = "us-east-1"
	receiveBatch       = 10
	receiveWaitSeconds = 20
	receiveCountAttr   = "ApproximateReceiveCount"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// consumer long-polls the signing-completion queue and applies each message
// to the share workflow. Messages are deleted on success or when a retry
// can never succeed; anything else is left to reappear after the
// visibility timeout.
type consumer struct {
	client   sqsAPI
	queueURL string
	applier  workerproc.SignatureApplier
	settings config.Worker
}

func main() {
	cfg := config.Load()
	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("SQS_QUEUE_URL is required")
	}
	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	c := &consumer{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: queueURL,
		applier:  app.SharesService,
		settings: cfg.Worker,
	}
	c.run(ctx)
}

// run polls until ctx is cancelled, then waits up to the shutdown timeout
// for in-flight messages.
func (c *consumer) run(ctx context.Context) {
	concurrency := max(1, c.settings.Concurrency)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"queue_url":          c.queueURL,
		"concurrency":        concurrency,
		"visibility_seconds": c.settings.VisibilitySeconds,
	})

	for ctx.Err() == nil {
		msgs, err := c.receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			telemetry.Warn("worker.receive_failed", telemetry.Err(nil, err))
			continue
		}
		for _, msg := range msgs {
			select {
			case <-ctx.Done():
			case sem <- struct{}{}:
				metrics.IncSignatureJobsReceived()
				wg.Add(1)
				go func(m sqstypes.Message) {
					defer wg.Done()
					defer func() { <-sem }()
					// Deletes must still reach SQS during shutdown.
					c.handle(context.WithoutCancel(ctx), m)
				}(msg)
			}
		}
	}

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		telemetry.Info("worker.stopped", nil)
	case <-time.After(c.settings.ShutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": c.settings.ShutdownTimeout.String()})
	}
}

func (c *consumer) receive(ctx context.Context) ([]sqstypes.Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(c.queueURL),
		MaxNumberOfMessages:         receiveBatch,
		WaitTimeSeconds:             receiveWaitSeconds,
		VisibilityTimeout:           int32(c.settings.VisibilitySeconds),
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{receiveCountAttr},
		MessageAttributeNames:       []string{"All"},
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *consumer) handle(ctx context.Context, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		event, fields := describeDecodeFailure(err, meta)
		for k, v := range baseFields(msg, "", "") {
			if _, set := fields[k]; !set {
				fields[k] = v
			}
		}
		telemetry.Error(event, fields)
		if c.ack(ctx, msg, fields) {
			metrics.IncSignatureJobsDeletedUnrecoverable()
		}
		return
	}

	fields := baseFields(msg, decoded.DocumentID, decoded.RequestID)
	telemetry.Info("worker.signature.received", fields)

	err = workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, decoded), c.applier, body)
	switch {
	case err == nil:
		if c.ack(ctx, msg, fields) {
			telemetry.Info("worker.signature.completed", fields)
		}
	case workerproc.Unrecoverable(err):
		metrics.IncSignatureJobsFailed()
		telemetry.Error("worker.signature.rejected", withFailure(fields, decoded.UserID, err))
		if c.ack(ctx, msg, fields) {
			metrics.IncSignatureJobsDeletedUnrecoverable()
		}
	default:
		metrics.IncSignatureJobsFailed()
		telemetry.Warn("worker.signature.failed", withFailure(fields, decoded.UserID, err))
	}
}

// ack deletes msg from the queue and reports whether it succeeded.
func (c *consumer) ack(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	var err error
	if receipt == "" {
		err = errors.New("missing receipt handle")
	} else {
		_, err = c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: aws.String(receipt),
		})
	}
	if err != nil {
		telemetry.Error("worker.signature.delete_failed", telemetry.Err(copyFields(fields), err))
		return false
	}
	return true
}

// describeDecodeFailure names the log event for a message that could not be
// parsed and collects what is known about it.
func describeDecodeFailure(err error, meta workerproc.MessageMeta) (string, map[string]any) {
	fields := map[string]any{"body_len": meta.BodyLen}
	if meta.BodySHA != "" {
		fields["body_sha256"] = meta.BodySHA
	}
	var me *workerproc.MessageError
	if !errors.As(err, &me) {
		fields["error"] = err.Error()
		return "worker.signature.decode_failed", fields
	}
	setIf(fields, "request_id", me.RequestID)
	if me.Err != nil {
		fields["error"] = me.Err.Error()
	}
	return "worker.signature." + string(me.Stage), fields
}

func baseFields(msg sqstypes.Message, documentID, requestID string) map[string]any {
	fields := map[string]any{
		"document_id":    documentID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	setIf(fields, "request_id", requestID)
	return fields
}

func withFailure(fields map[string]any, userID string, err error) map[string]any {
	out := copyFields(fields)
	out["user_id"] = userID
	out["error"] = err.Error()
	return out
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func setIf(fields map[string]any, key, value string) {
	if strings.TrimSpace(value) != "" {
		fields[key] = value
	}
}

func receiveCount(msg sqstypes.Message) int {
	n, err := strconv.Atoi(msg.Attributes[receiveCountAttr])
	if err != nil {
		return 0
	}
	return n
}
