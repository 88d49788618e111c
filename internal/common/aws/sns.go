// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher is the slice of the SNS API the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// OutcomeMessage is the JSON body published for every terminal job outcome.
type OutcomeMessage struct {
	Key        string    `json:"key"`
	TemplateID string    `json:"templateId"`
	State      string    `json:"state"`
	Hash       string    `json:"hash,omitempty"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// SNSNotifier publishes job outcomes to a topic.
type SNSNotifier struct {
	client   Publisher
	topicARN string
}

func NewSNSNotifier(ctx context.Context, region, topicARN string) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewSNSNotifierWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSNotifierWithClient(client Publisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

// Notify publishes msg with the state as a message attribute so subscribers can filter.
func (s *SNSNotifier) Notify(ctx context.Context, msg OutcomeMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"state": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.State),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish outcome for %s: %w", msg.Key, err)
	}
	return nil
}
