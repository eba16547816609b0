package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// MetricsAPI is the subset of the CloudWatch client used for publishing
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics handles application metrics and monitoring.
// A Metrics with a nil client records nothing.
type Metrics struct {
	namespace string
	client    MetricsAPI
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance
func NewMetrics(namespace string, client MetricsAPI, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// NewNoopMetrics returns a Metrics that drops every measurement
func NewNoopMetrics() *Metrics {
	return NewMetrics("", nil, nil)
}

// Enabled reports whether measurements are sent anywhere
func (m *Metrics) Enabled() bool {
	return m != nil && m.client != nil
}

// Count adds value to a counter dimensioned by label
func (m *Metrics) Count(ctx context.Context, metric, label string, value float64) {
	m.put(ctx, datum(metric, label, value, types.StandardUnitCount))
}

// Duration records elapsed time in milliseconds dimensioned by label
func (m *Metrics) Duration(ctx context.Context, metric, label string, d time.Duration) {
	m.put(ctx, datum(metric, label, float64(d.Milliseconds()), types.StandardUnitMilliseconds))
}

// RecordCommandExecution records latency and outcome of a command
func (m *Metrics) RecordCommandExecution(ctx context.Context, commandName string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	dims := []types.Dimension{
		{Name: aws.String("CommandName"), Value: aws.String(commandName)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}
	now := aws.Time(time.Now())

	m.put(ctx,
		types.MetricDatum{
			MetricName: aws.String("CommandExecution"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  now,
		},
		types.MetricDatum{
			MetricName: aws.String("CommandCount"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  now,
		},
	)
}

// DiffSize carries the counts recorded by RecordDiff
type DiffSize struct {
	NodesAdded   int
	NodesRemoved int
	NodesChanged int
	EdgesAdded   int
	EdgesRemoved int
}

// RecordDiff records the size of a computed diff
func (m *Metrics) RecordDiff(ctx context.Context, operation string, size DiffSize) {
	m.put(ctx,
		datum("DiffNodesAdded", operation, float64(size.NodesAdded), types.StandardUnitCount),
		datum("DiffNodesRemoved", operation, float64(size.NodesRemoved), types.StandardUnitCount),
		datum("DiffNodesChanged", operation, float64(size.NodesChanged), types.StandardUnitCount),
		datum("DiffEdgesAdded", operation, float64(size.EdgesAdded), types.StandardUnitCount),
		datum("DiffEdgesRemoved", operation, float64(size.EdgesRemoved), types.StandardUnitCount),
	)
}

func datum(metric, label string, value float64, unit types.StandardUnit) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(metric),
		Dimensions: []types.Dimension{
			{Name: aws.String("Operation"), Value: aws.String(label)},
		},
		Value:     aws.Float64(value),
		Unit:      unit,
		Timestamp: aws.Time(time.Now()),
	}
}

func (m *Metrics) put(ctx context.Context, data ...types.MetricDatum) {
	if !m.Enabled() {
		return
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		// Metrics never fail the operation being measured
		m.logger.Warn("Failed to send metrics", zap.Error(err), zap.Int("count", len(data)))
	}
}
