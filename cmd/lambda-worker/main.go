package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"docsign-backend/internal/bootstrap"
	"docsign-backend/internal/shared/config"
	"docsign-backend/internal/shared/metrics"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/workerproc"
)

type batchFunc func(context.Context, events.SQSEvent) (events.SQSEventResponse, error)

// lazyBatch resolves the applier on first use. When that fails every record
// in the batch is reported so SQS redelivers it.
func lazyBatch(build func() (workerproc.SignatureApplier, error)) batchFunc {
	var (
		once    sync.Once
		applier workerproc.SignatureApplier
		err     error
	)
	return func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		once.Do(func() { applier, err = build() })
		if err != nil {
			telemetry.Error("lambda.worker.bootstrap_failed", telemetry.Err(map[string]any{"records": len(event.Records)}, err))
			return events.SQSEventResponse{BatchItemFailures: failAll(event.Records)}, err
		}
		return processBatch(ctx, applier, event), nil
	}
}

// processBatch reports retriable failures only; unrecoverable messages are
// acknowledged so the queue drops them.
func processBatch(ctx context.Context, applier workerproc.SignatureApplier, event events.SQSEvent) events.SQSEventResponse {
	var failures []events.SQSBatchItemFailure
	for _, record := range event.Records {
		metrics.IncSignatureJobsReceived()
		err := workerproc.HandleMessage(ctx, applier, record.Body)
		if err == nil {
			continue
		}
		metrics.IncSignatureJobsFailed()
		fields := telemetry.Err(map[string]any{"sqs_message_id": record.MessageId}, err)
		if workerproc.Unrecoverable(err) {
			metrics.IncSignatureJobsDeletedUnrecoverable()
			telemetry.Error("worker.signature.rejected", fields)
			continue
		}
		telemetry.Warn("worker.signature.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func failAll(records []events.SQSMessage) []events.SQSBatchItemFailure {
	out := make([]events.SQSBatchItemFailure, len(records))
	for i, r := range records {
		out[i] = events.SQSBatchItemFailure{ItemIdentifier: r.MessageId}
	}
	return out
}

func buildApplier() (workerproc.SignatureApplier, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return nil, err
	}
	return app.SharesService, nil
}

func main() {
	lambda.Start(lazyBatch(buildApplier))
}
