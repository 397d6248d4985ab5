package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/kungukcm/Hospital-Booking-System/internal/config"
)

func TestLoadAWSConfigStaticCredentialsAndEndpoint(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:      "eu-west-1",
		AWSAccessKeyID: "test",
		AWSSecretKey:   "secret",
		AWSEndpoint:    " http://localhost:4566 ",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "eu-west-1" {
		t.Fatalf("expected region eu-west-1, got %s", awsCfg.Region)
	}
	if aws.ToString(awsCfg.BaseEndpoint) != "http://localhost:4566" {
		t.Fatalf("unexpected base endpoint %q", aws.ToString(awsCfg.BaseEndpoint))
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("failed to retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "test" || creds.SecretAccessKey != "secret" {
		t.Fatalf("expected static credentials, got %s", creds.AccessKeyID)
	}
}

func TestNeedsAWS(t *testing.T) {
	if NeedsAWS(nil) || NeedsAWS(&appconfig.Config{}) {
		t.Fatalf("expected no AWS without a bedrock model")
	}
	if !NeedsAWS(&appconfig.Config{BedrockModelID: "anthropic.claude-3-haiku"}) {
		t.Fatalf("expected AWS when a bedrock model is configured")
	}
}
