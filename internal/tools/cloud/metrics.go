package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

func metricWindow(args map[string]any) time.Duration {
	if v, ok := args["hours"].(float64); ok && v > 0 {
		return time.Duration(v) * time.Hour
	}
	return 24 * time.Hour
}

// sumOf 汇总数据点的 Sum 值。
func sumOf(points []cwtypes.Datapoint) float64 {
	var total float64
	for _, p := range points {
		total += aws.ToFloat64(p.Sum)
	}
	return total
}

// latestAverage 取时间最新的数据点的 Average 值。
func latestAverage(points []cwtypes.Datapoint) float64 {
	var latest *cwtypes.Datapoint
	for i := range points {
		p := &points[i]
		if latest == nil || (p.Timestamp != nil && latest.Timestamp != nil && p.Timestamp.After(*latest.Timestamp)) {
			latest = p
		}
	}
	if latest == nil {
		return 0
	}
	return aws.ToFloat64(latest.Average)
}

func (ts *Toolset) fetchStatistics(ctx context.Context, namespace, metric string, dims []cwtypes.Dimension, window time.Duration, stat cwtypes.Statistic) ([]cwtypes.Datapoint, error) {
	end := time.Now()
	out, err := ts.Metrics.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metric),
		Dimensions: dims,
		StartTime:  aws.Time(end.Add(-window)),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(3600),
		Statistics: []cwtypes.Statistic{stat},
	})
	if err != nil {
		return nil, err
	}
	return out.Datapoints, nil
}

func (ts *Toolset) getS3MetricsTool() tools.Tool {
	return tools.Tool{
		Name:        "get_s3_metrics",
		Description: "Get CloudWatch storage metrics (size and object count) for an S3 bucket",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"bucket_name": {Type: "string", Description: "Name of the S3 bucket"},
				"hours":       {Type: "number", Description: "Lookback window in hours (minimum 48, smaller values are widened because storage metrics are reported daily)"},
			},
			Required: []string{"bucket_name"},
		},
		Handler: ts.getS3Metrics,
	}
}

func (ts *Toolset) getS3Metrics(ctx context.Context, args map[string]any) (*tools.Result, error) {
	bucket := stringArg(args, "bucket_name")
	window := metricWindow(args)
	// 存储类指标每日上报一次，窗口至少 48 小时才能覆盖一个数据点。
	if window < 48*time.Hour {
		window = 48 * time.Hour
	}

	sizeDims := []cwtypes.Dimension{
		{Name: aws.String("BucketName"), Value: aws.String(bucket)},
		{Name: aws.String("StorageType"), Value: aws.String("StandardStorage")},
	}
	sizePoints, err := ts.fetchStatistics(ctx, "AWS/S3", "BucketSizeBytes", sizeDims, window, cwtypes.StatisticAverage)
	if err != nil {
		return tools.Failure("get_s3_metrics", err), nil
	}
	countDims := []cwtypes.Dimension{
		{Name: aws.String("BucketName"), Value: aws.String(bucket)},
		{Name: aws.String("StorageType"), Value: aws.String("AllStorageTypes")},
	}
	countPoints, err := ts.fetchStatistics(ctx, "AWS/S3", "NumberOfObjects", countDims, window, cwtypes.StatisticAverage)
	if err != nil {
		return tools.Failure("get_s3_metrics", err), nil
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Retrieved metrics for S3 bucket '%s'", bucket),
		Data: map[string]any{
			"bucket_name":      bucket,
			"size_bytes":       latestAverage(sizePoints),
			"object_count":     latestAverage(countPoints),
			"lookback_hours":   window.Hours(),
			"datapoints_found": len(sizePoints) + len(countPoints),
		},
	}, nil
}

func (ts *Toolset) getLambdaMetricsTool() tools.Tool {
	return tools.Tool{
		Name:        "get_lambda_metrics",
		Description: "Get CloudWatch invocation, error and duration metrics for a Lambda function",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string", Description: "Name of the Lambda function"},
				"hours":         {Type: "number", Description: "Lookback window in hours (default 24)"},
			},
			Required: []string{"function_name"},
		},
		Handler: ts.getLambdaMetrics,
	}
}

func (ts *Toolset) getLambdaMetrics(ctx context.Context, args map[string]any) (*tools.Result, error) {
	fn := stringArg(args, "function_name")
	window := metricWindow(args)
	dims := []cwtypes.Dimension{{Name: aws.String("FunctionName"), Value: aws.String(fn)}}

	invocations, err := ts.fetchStatistics(ctx, "AWS/Lambda", "Invocations", dims, window, cwtypes.StatisticSum)
	if err != nil {
		return tools.Failure("get_lambda_metrics", err), nil
	}
	errorsPoints, err := ts.fetchStatistics(ctx, "AWS/Lambda", "Errors", dims, window, cwtypes.StatisticSum)
	if err != nil {
		return tools.Failure("get_lambda_metrics", err), nil
	}
	duration, err := ts.fetchStatistics(ctx, "AWS/Lambda", "Duration", dims, window, cwtypes.StatisticAverage)
	if err != nil {
		return tools.Failure("get_lambda_metrics", err), nil
	}
	throttles, err := ts.fetchStatistics(ctx, "AWS/Lambda", "Throttles", dims, window, cwtypes.StatisticSum)
	if err != nil {
		return tools.Failure("get_lambda_metrics", err), nil
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Retrieved metrics for Lambda function '%s'", fn),
		Data: map[string]any{
			"function_name":   fn,
			"invocations":     sumOf(invocations),
			"errors":          sumOf(errorsPoints),
			"avg_duration_ms": latestAverage(duration),
			"throttles":       sumOf(throttles),
			"lookback_hours":  window.Hours(),
		},
	}, nil
}

func (ts *Toolset) getDynamoDBMetricsTool() tools.Tool {
	return tools.Tool{
		Name:        "get_dynamodb_metrics",
		Description: "Get CloudWatch consumed capacity and throttling metrics for a DynamoDB table",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"table_name": {Type: "string", Description: "Name of the DynamoDB table"},
				"hours":      {Type: "number", Description: "Lookback window in hours (default 24)"},
			},
			Required: []string{"table_name"},
		},
		Handler: ts.getDynamoDBMetrics,
	}
}

func (ts *Toolset) getDynamoDBMetrics(ctx context.Context, args map[string]any) (*tools.Result, error) {
	table := stringArg(args, "table_name")
	window := metricWindow(args)
	dims := []cwtypes.Dimension{{Name: aws.String("TableName"), Value: aws.String(table)}}

	reads, err := ts.fetchStatistics(ctx, "AWS/DynamoDB", "ConsumedReadCapacityUnits", dims, window, cwtypes.StatisticSum)
	if err != nil {
		return tools.Failure("get_dynamodb_metrics", err), nil
	}
	writes, err := ts.fetchStatistics(ctx, "AWS/DynamoDB", "ConsumedWriteCapacityUnits", dims, window, cwtypes.StatisticSum)
	if err != nil {
		return tools.Failure("get_dynamodb_metrics", err), nil
	}
	throttled, err := ts.fetchStatistics(ctx, "AWS/DynamoDB", "ThrottledRequests", dims, window, cwtypes.StatisticSum)
	if err != nil {
		return tools.Failure("get_dynamodb_metrics", err), nil
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Retrieved metrics for DynamoDB table '%s'", table),
		Data: map[string]any{
			"table_name":             table,
			"consumed_read_units":    sumOf(reads),
			"consumed_write_units":   sumOf(writes),
			"throttled_requests":     sumOf(throttled),
			"lookback_hours":         window.Hours(),
			"datapoints_read_series": len(reads),
		},
	}, nil
}
