//go:build integration

package aws

import (
	"context"
	"testing"

	"github.com/DrSkyle/spendscope/pkg/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

// TestLocalStack_Integration runs the inventory and the report store against
// LocalStack. Requires Docker.
func TestLocalStack_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0")
	if err != nil {
		t.Fatalf("Failed to start LocalStack: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}()

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "")
	if err != nil {
		t.Fatalf("Failed to get endpoint: %v", err)
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:           "http://" + endpoint,
			SigningRegion: "us-east-1",
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     "test",
				SecretAccessKey: "test",
				SessionToken:    "test",
			}, nil
		})),
	)
	if err != nil {
		t.Fatalf("Failed to load SDK config: %v", err)
	}

	t.Run("inventory", func(t *testing.T) {
		runOut, err := ec2.NewFromConfig(cfg).RunInstances(ctx, &ec2.RunInstancesInput{
			ImageId:      aws.String("ami-12345678"),
			InstanceType: types.InstanceTypeT3Micro,
			MinCount:     aws.Int32(1),
			MaxCount:     aws.Int32(1),
			TagSpecifications: []types.TagSpecification{{
				ResourceType: types.ResourceTypeInstance,
				Tags:         []types.Tag{{Key: aws.String("Name"), Value: aws.String("batch-worker")}},
			}},
		})
		if err != nil {
			t.Fatalf("Failed to run instance: %v", err)
		}
		id := aws.ToString(runOut.Instances[0].InstanceId)

		instances, err := NewEC2Inventory(cfg, nil).ListInstances(ctx)
		if err != nil {
			t.Fatalf("ListInstances failed: %v", err)
		}
		for _, inst := range instances {
			if inst.ID != id {
				continue
			}
			if inst.Type != "t3.micro" || inst.Name != "batch-worker" || inst.Region != "us-east-1" {
				t.Errorf("Unexpected instance: %+v", inst)
			}
			if inst.LaunchTime.IsZero() {
				t.Error("Expected a launch time")
			}
			return
		}
		t.Errorf("Instance %s not found in inventory of %d", id, len(instances))
	})

	t.Run("report store", func(t *testing.T) {
		client := s3.NewFromConfig(cfg, func(o *s3.Options) { o.UsePathStyle = true })
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("spend-reports")}); err != nil {
			t.Fatalf("Failed to create bucket: %v", err)
		}

		store := &storage.S3Store{Client: client, Bucket: "spend-reports"}
		body := []byte(`{"totalSpend":790}`)
		if err := store.Put(ctx, "nightly/costs-7d.json", body); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := store.Get(ctx, "nightly/costs-7d.json")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != string(body) {
			t.Errorf("Expected %s, got %s", body, got)
		}
	})
}
