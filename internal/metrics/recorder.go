package metrics

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
)

const (
	MetricTransitions    = "OrderTransitions"
	MetricCODCollected   = "CODCollectedAmount"
	MetricCODOutstanding = "CODOutstandingAmount"
)

// Recorder publishes order metrics to CloudWatch.
type Recorder struct {
	cw        aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewRecorder(cw aws.CloudWatchAPI, namespace string) *Recorder {
	return &Recorder{cw: cw, namespace: namespace, nowFunc: time.Now}
}

// RecordTransition counts one lifecycle transition, dimensioned by action
// and resulting status.
func (r *Recorder) RecordTransition(ctx context.Context, action, to string) error {
	return r.put(ctx, cwtypes.MetricDatum{
		MetricName: sdkaws.String(MetricTransitions),
		Value:      sdkaws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: sdkaws.String("Action"), Value: sdkaws.String(action)},
			{Name: sdkaws.String("Status"), Value: sdkaws.String(to)},
		},
	})
}

// RecordCOD records the cash amount of a delivered COD order, either as
// collected or as outstanding for the partner.
func (r *Recorder) RecordCOD(ctx context.Context, partnerID string, amount float64, collected bool) error {
	name := MetricCODOutstanding
	if collected {
		name = MetricCODCollected
	}
	return r.put(ctx, cwtypes.MetricDatum{
		MetricName: sdkaws.String(name),
		Value:      sdkaws.Float64(amount),
		Unit:       cwtypes.StandardUnitNone,
		Dimensions: []cwtypes.Dimension{
			{Name: sdkaws.String("PartnerId"), Value: sdkaws.String(partnerID)},
		},
	})
}

func (r *Recorder) put(ctx context.Context, d cwtypes.MetricDatum) error {
	d.Timestamp = sdkaws.Time(r.nowFunc().UTC())
	_, err := r.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{d},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", sdkaws.ToString(d.MetricName), err)
	}
	return nil
}
