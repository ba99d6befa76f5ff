package aws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricDefinition locates a utilisation metric in CloudWatch.
type MetricDefinition struct {
	Namespace string
	Name      string
}

// metricDefinitions maps each metric to its series. Everything but CPU needs
// the CloudWatch agent on the instance.
var metricDefinitions = map[analytics.Metric]MetricDefinition{
	analytics.MetricCPU:  {Namespace: "AWS/EC2", Name: "CPUUtilization"},
	analytics.MetricRAM:  {Namespace: "CWAgent", Name: "mem_used_percent"},
	analytics.MetricGPU:  {Namespace: "CWAgent", Name: "nvidia_smi_utilization_gpu"},
	analytics.MetricDisk: {Namespace: "CWAgent", Name: "disk_used_percent"},
}

// DefinitionFor returns the CloudWatch series of m.
func DefinitionFor(m analytics.Metric) (MetricDefinition, error) {
	def, ok := metricDefinitions[m]
	if !ok {
		return MetricDefinition{}, fmt.Errorf("%w: %q", engine.ErrUnknownMetric, m)
	}
	return def, nil
}

// CloudWatchAPI is the read-only CloudWatch surface.
type CloudWatchAPI interface {
	GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

// CloudWatchSource implements engine.MetricSource.
type CloudWatchSource struct {
	Client CloudWatchAPI
	Period time.Duration
	Logger *slog.Logger
}

func NewCloudWatchSource(cfg aws.Config, period time.Duration, logger *slog.Logger) *CloudWatchSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CloudWatchSource{
		Client: cloudwatch.NewFromConfig(cfg),
		Period: period,
		Logger: logger,
	}
}

// FetchUtilizationSamples reads the Average of one metric over the window,
// oldest first.
func (s *CloudWatchSource) FetchUtilizationSamples(ctx context.Context, resourceID string, m analytics.Metric, w engine.Window) ([]analytics.UtilizationSample, error) {
	def, err := DefinitionFor(m)
	if err != nil {
		return nil, err
	}

	period := int32(s.Period / time.Second)
	if period <= 0 {
		period = 300
	}

	input := &cloudwatch.GetMetricDataInput{
		StartTime: aws.Time(w.Start),
		EndTime:   aws.Time(w.End),
		ScanBy:    types.ScanByTimestampAscending,
		MetricDataQueries: []types.MetricDataQuery{{
			Id: aws.String(string(m)),
			MetricStat: &types.MetricStat{
				Metric: &types.Metric{
					Namespace:  aws.String(def.Namespace),
					MetricName: aws.String(def.Name),
					Dimensions: []types.Dimension{{Name: aws.String("InstanceId"), Value: aws.String(resourceID)}},
				},
				Period: aws.Int32(period),
				Stat:   aws.String(string(types.StatisticAverage)),
			},
		}},
	}

	var samples []analytics.UtilizationSample
	for {
		out, err := s.Client.GetMetricData(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get metric data: %w", err)
		}
		for _, res := range out.MetricDataResults {
			for i, ts := range res.Timestamps {
				if i >= len(res.Values) {
					break
				}
				samples = append(samples, analytics.UtilizationSample{
					Timestamp: ts.UTC().Format(time.RFC3339),
					Value:     res.Values[i],
				})
			}
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		input.NextToken = out.NextToken
	}

	s.Logger.Debug("Metric samples fetched", "instance", resourceID, "metric", def.Name, "samples", len(samples))
	return samples, nil
}
