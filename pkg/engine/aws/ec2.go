package aws

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// EC2API is the read-only EC2 surface. It deliberately carries no mutating calls.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// EC2Inventory implements engine.InstanceSource.
type EC2Inventory struct {
	Client EC2API
	Region string
	Logger *slog.Logger
}

func NewEC2Inventory(cfg aws.Config, logger *slog.Logger) *EC2Inventory {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EC2Inventory{
		Client: ec2.NewFromConfig(cfg),
		Region: cfg.Region,
		Logger: logger,
	}
}

// ListInstances returns every instance that is not terminated.
func (s *EC2Inventory) ListInstances(ctx context.Context) ([]engine.Instance, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{{
			Name:   aws.String("instance-state-name"),
			Values: []string{"pending", "running", "stopping", "stopped"},
		}},
	}
	paginator := ec2.NewDescribeInstancesPaginator(s.Client, input)

	var instances []engine.Instance
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, s.toInstance(inst))
			}
		}
	}

	s.Logger.Debug("Instances listed", "region", s.Region, "count", len(instances))
	return instances, nil
}

func (s *EC2Inventory) toInstance(inst types.Instance) engine.Instance {
	out := engine.Instance{
		ID:     aws.ToString(inst.InstanceId),
		Region: s.Region,
		Type:   string(inst.InstanceType),
		Name:   parseTags(inst.Tags)["Name"],
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	if inst.LaunchTime != nil {
		out.LaunchTime = inst.LaunchTime.UTC()
	}
	return out
}

func parseTags(tags []types.Tag) map[string]string {
	out := make(map[string]string)
	for _, t := range tags {
		if t.Key != nil && t.Value != nil {
			out[*t.Key] = *t.Value
		}
	}
	return out
}
