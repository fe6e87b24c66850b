// Package cloud 提供面向 AWS 资源的本地工具集。每个工具是一条
// 无状态的请求/响应调用，依赖按服务收窄的客户端接口，便于测试替换。
package cloud

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

// S3API 是 S3 客户端中工具集用到的子集。
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// LambdaAPI 是 Lambda 客户端中工具集用到的子集。
type LambdaAPI interface {
	ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	DeleteFunction(ctx context.Context, params *lambda.DeleteFunctionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error)
}

// DynamoDBAPI 是 DynamoDB 客户端中工具集用到的子集。
type DynamoDBAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// MetricsAPI 是 CloudWatch 客户端中工具集用到的子集。
type MetricsAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// Toolset 聚合各服务客户端，向注册表提供全部本地工具。
type Toolset struct {
	S3       S3API
	Lambda   LambdaAPI
	DynamoDB DynamoDBAPI
	Metrics  MetricsAPI
	Region   string
	Log      *slog.Logger
}

// Register 把工具集内的全部工具注册进注册表。
func (ts *Toolset) Register(reg *tools.Registry) error {
	if ts.Log == nil {
		ts.Log = slog.Default()
	}
	all := []tools.Tool{}
	if ts.S3 != nil {
		all = append(all, ts.listS3BucketsTool(), ts.getS3BucketInfoTool(), ts.createS3BucketTool(), ts.deleteS3BucketTool())
	}
	if ts.Lambda != nil {
		all = append(all,
			ts.listLambdaFunctionsTool(), ts.getLambdaFunctionInfoTool(),
			ts.createLambdaFunctionTool(), ts.updateLambdaConfigTool(), ts.deleteLambdaFunctionTool())
	}
	if ts.DynamoDB != nil {
		all = append(all,
			ts.listDynamoDBTablesTool(), ts.describeDynamoDBTableTool(),
			ts.createDynamoDBTableTool(), ts.updateDynamoDBTableTool(), ts.deleteDynamoDBTableTool())
	}
	if ts.Metrics != nil {
		all = append(all, ts.getS3MetricsTool(), ts.getLambdaMetricsTool(), ts.getDynamoDBMetricsTool())
	}
	for _, tool := range all {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	ts.Log.Info("本地云工具注册完成", "count", len(all))
	return nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg 兼容 JSON 反序列化产生的 float64 数值。
func intArg(args map[string]any, key string, fallback int32) int32 {
	switch v := args[key].(type) {
	case float64:
		return int32(v)
	case int:
		return int32(v)
	case int32:
		return v
	default:
		return fallback
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func stringMapArg(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
