package cloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

func (ts *Toolset) listS3BucketsTool() tools.Tool {
	return tools.Tool{
		Name: "list_s3_buckets",
		Description: "List S3 buckets with optional filtering. " +
			"Use prefix for exact name prefixes and name_pattern for case-insensitive substring matches.",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"prefix":       {Type: "string", Description: "Filter buckets by name prefix"},
				"name_pattern": {Type: "string", Description: "Filter buckets by name substring (case-insensitive)"},
			},
		},
		Handler: ts.listS3Buckets,
	}
}

func (ts *Toolset) listS3Buckets(ctx context.Context, args map[string]any) (*tools.Result, error) {
	out, err := ts.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return tools.Failure("list_s3_buckets", err), nil
	}

	prefix := stringArg(args, "prefix")
	pattern := strings.ToLower(stringArg(args, "name_pattern"))

	buckets := make([]any, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(name), pattern) {
			continue
		}
		info := map[string]any{"name": name}
		if b.CreationDate != nil {
			info["creation_date"] = b.CreationDate.Format(time.RFC3339)
		}
		if loc, err := ts.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: b.Name}); err == nil {
			region := string(loc.LocationConstraint)
			if region == "" {
				region = "us-east-1"
			}
			info["region"] = region
		} else {
			ts.Log.Warn("读取桶区域失败", "bucket", name, "error", err)
		}
		buckets = append(buckets, info)
	}

	var filters []string
	if prefix != "" {
		filters = append(filters, fmt.Sprintf("prefix: '%s'", prefix))
	}
	if pattern != "" {
		filters = append(filters, fmt.Sprintf("name pattern: '%s'", pattern))
	}
	message := fmt.Sprintf("Found %d S3 bucket(s)", len(buckets))
	if len(filters) > 0 {
		message += fmt.Sprintf(" (Filters: %s)", strings.Join(filters, ", "))
	}

	return &tools.Result{
		Success: true,
		Message: message,
		Data:    map[string]any{"buckets": buckets, "count": len(buckets)},
	}, nil
}

func (ts *Toolset) getS3BucketInfoTool() tools.Tool {
	return tools.Tool{
		Name:        "get_s3_bucket_info",
		Description: "Get detailed information about an S3 bucket",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"bucket_name": {Type: "string", Description: "Name of the S3 bucket"},
			},
			Required: []string{"bucket_name"},
		},
		Handler: ts.getS3BucketInfo,
	}
}

// getS3BucketInfo 逐项探测桶配置，单项失败降级为 unknown 而不中断。
func (ts *Toolset) getS3BucketInfo(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "bucket_name")
	bucket := aws.String(name)
	info := map[string]any{"bucket_name": name}

	if loc, err := ts.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: bucket}); err == nil {
		region := string(loc.LocationConstraint)
		if region == "" {
			region = "us-east-1"
		}
		info["region"] = region
	} else {
		info["region"] = "unknown"
	}

	if ver, err := ts.S3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: bucket}); err == nil {
		status := string(ver.Status)
		if status == "" {
			status = "Disabled"
		}
		info["versioning"] = status
	} else {
		info["versioning"] = "unknown"
	}

	if _, err := ts.S3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: bucket}); err == nil {
		info["encryption"] = "Enabled"
	} else if strings.Contains(err.Error(), "ServerSideEncryptionConfigurationNotFound") {
		info["encryption"] = "Disabled"
	} else {
		info["encryption"] = "unknown"
	}

	tags := map[string]any{}
	if out, err := ts.S3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: bucket}); err == nil {
		for _, tag := range out.TagSet {
			tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	info["tags"] = tags

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Retrieved information for bucket '%s'", name),
		Data:    info,
	}, nil
}

func (ts *Toolset) createS3BucketTool() tools.Tool {
	return tools.Tool{
		Name:        "create_s3_bucket",
		Description: "Create an S3 bucket with specified configuration",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"bucket_name": {Type: "string", Description: "Name of the S3 bucket to create"},
				"region":      {Type: "string", Description: "AWS region for the bucket"},
			},
			Required: []string{"bucket_name"},
		},
		Handler: ts.createS3Bucket,
	}
}

func (ts *Toolset) createS3Bucket(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "bucket_name")
	region := stringArg(args, "region")
	if region == "" {
		region = ts.Region
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 不接受 LocationConstraint。
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if _, err := ts.S3.CreateBucket(ctx, input); err != nil {
		return tools.Failure("create_s3_bucket", err), nil
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("S3 bucket '%s' created successfully", name),
		Data:    map[string]any{"bucket_name": name, "region": region},
	}, nil
}

func (ts *Toolset) deleteS3BucketTool() tools.Tool {
	return tools.Tool{
		Name:        "delete_s3_bucket",
		Description: "Delete an empty S3 bucket",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"bucket_name": {Type: "string", Description: "Name of the S3 bucket to delete"},
			},
			Required: []string{"bucket_name"},
		},
		Handler: ts.deleteS3Bucket,
	}
}

func (ts *Toolset) deleteS3Bucket(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "bucket_name")
	if _, err := ts.S3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return tools.Failure("delete_s3_bucket", err), nil
	}
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("S3 bucket '%s' deleted successfully", name),
		Data:    map[string]any{"bucket_name": name},
	}, nil
}
