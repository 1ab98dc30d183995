package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// MemSQS records sent messages.
type MemSQS struct {
	mu       sync.Mutex
	Messages []*sqs.SendMessageInput
	// Err, when set, fails every send.
	Err error
}

func (m *MemSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Messages = append(m.Messages, in)
	id := fmt.Sprintf("msg-%d", len(m.Messages))
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Bodies returns the message bodies in send order.
func (m *MemSQS) Bodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Messages))
	for _, in := range m.Messages {
		out = append(out, *in.MessageBody)
	}
	return out
}

// MemCloudWatch records PutMetricData calls.
type MemCloudWatch struct {
	mu     sync.Mutex
	Inputs []*cloudwatch.PutMetricDataInput
	Err    error
}

func (m *MemCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Inputs = append(m.Inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// MetricNames returns every datum name recorded, in order.
func (m *MemCloudWatch) MetricNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, in := range m.Inputs {
		for _, d := range in.MetricData {
			if d.MetricName != nil {
				out = append(out, *d.MetricName)
			}
		}
	}
	return out
}
