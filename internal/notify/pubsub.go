package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/jobsift/jobsift/internal/jobs"
)

// PubSub publishes new jobs to a Google Cloud Pub/Sub topic.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub connects to the project and targets the named topic. The topic
// is not created; publishing to a missing topic fails per message.
func NewPubSub(ctx context.Context, projectID, topicName string) (*PubSub, error) {
	if projectID == "" || topicName == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return &PubSub{
		client: client,
		topic:  client.Topic(topicName),
	}, nil
}

// PublishJob marshals the job to JSON and publishes it, waiting for the
// server ack.
func (p *PubSub) PublishJob(ctx context.Context, job jobs.Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_id": job.ID.String(),
			"status": string(job.Status),
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish job: %w", err)
	}
	return id, nil
}

// Close flushes outstanding messages and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
