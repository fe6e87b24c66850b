package cloud

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

type fakeS3 struct {
	buckets       []s3types.Bucket
	regions       map[string]string
	createInput   *s3.CreateBucketInput
	deleted       []string
	versioning    string
	encryptionErr error
	tags          []s3types.Tag
	taggingErr    error
}

func (f *fakeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &s3.ListBucketsOutput{Buckets: f.buckets}, nil
}

func (f *fakeS3) GetBucketLocation(ctx context.Context, in *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	region := f.regions[aws.ToString(in.Bucket)]
	return &s3.GetBucketLocationOutput{LocationConstraint: s3types.BucketLocationConstraint(region)}, nil
}

func (f *fakeS3) GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, _ ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	return &s3.GetBucketVersioningOutput{Status: s3types.BucketVersioningStatus(f.versioning)}, nil
}

func (f *fakeS3) GetBucketEncryption(ctx context.Context, in *s3.GetBucketEncryptionInput, _ ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	if f.encryptionErr != nil {
		return nil, f.encryptionErr
	}
	return &s3.GetBucketEncryptionOutput{}, nil
}

func (f *fakeS3) GetBucketTagging(ctx context.Context, in *s3.GetBucketTaggingInput, _ ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	if f.taggingErr != nil {
		return nil, f.taggingErr
	}
	return &s3.GetBucketTaggingOutput{TagSet: f.tags}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createInput = in
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Bucket))
	return &s3.DeleteBucketOutput{}, nil
}

type fakeLambda struct {
	pages       [][]lambdatypes.FunctionConfiguration
	calls       int
	createInput *lambda.CreateFunctionInput
	updateInput *lambda.UpdateFunctionConfigurationInput
}

func (f *fakeLambda) ListFunctions(ctx context.Context, in *lambda.ListFunctionsInput, _ ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	page := f.pages[f.calls]
	f.calls++
	out := &lambda.ListFunctionsOutput{Functions: page}
	if f.calls < len(f.pages) {
		out.NextMarker = aws.String("next")
	}
	return out, nil
}

func (f *fakeLambda) GetFunction(ctx context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	return &lambda.GetFunctionOutput{
		Configuration: &lambdatypes.FunctionConfiguration{
			FunctionName: in.FunctionName,
			Runtime:      lambdatypes.RuntimePython312,
			MemorySize:   aws.Int32(256),
			Timeout:      aws.Int32(30),
		},
		Tags: map[string]string{"Team": "platform"},
	}, nil
}

func (f *fakeLambda) CreateFunction(ctx context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.createInput = in
	return &lambda.CreateFunctionOutput{
		FunctionName: in.FunctionName,
		FunctionArn:  aws.String("arn:aws:lambda:ap-south-1:123456789012:function:" + aws.ToString(in.FunctionName)),
		Runtime:      in.Runtime,
		MemorySize:   in.MemorySize,
		Timeout:      in.Timeout,
	}, nil
}

func (f *fakeLambda) UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	f.updateInput = in
	return &lambda.UpdateFunctionConfigurationOutput{
		FunctionName: in.FunctionName,
		MemorySize:   in.MemorySize,
		Timeout:      in.Timeout,
	}, nil
}

func (f *fakeLambda) DeleteFunction(ctx context.Context, in *lambda.DeleteFunctionInput, _ ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error) {
	return &lambda.DeleteFunctionOutput{}, nil
}

type fakeDynamoDB struct {
	createInput *dynamodb.CreateTableInput
	updateInput *dynamodb.UpdateTableInput
}

func (*fakeDynamoDB) ListTables(ctx context.Context, in *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return &dynamodb.ListTablesOutput{TableNames: []string{"orders", "sessions"}}, nil
}

func (*fakeDynamoDB) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{
		Table: &ddbtypes.TableDescription{
			TableName:   in.TableName,
			TableStatus: ddbtypes.TableStatusActive,
			ItemCount:   aws.Int64(42),
			KeySchema: []ddbtypes.KeySchemaElement{
				{AttributeName: aws.String("pk"), KeyType: ddbtypes.KeyTypeHash},
				{AttributeName: aws.String("sk"), KeyType: ddbtypes.KeyTypeRange},
			},
		},
	}, nil
}

func (f *fakeDynamoDB) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.createInput = in
	return &dynamodb.CreateTableOutput{
		TableDescription: &ddbtypes.TableDescription{
			TableName:   in.TableName,
			TableArn:    aws.String("arn:aws:dynamodb:ap-south-1:123456789012:table/" + aws.ToString(in.TableName)),
			TableStatus: ddbtypes.TableStatusCreating,
		},
	}, nil
}

func (f *fakeDynamoDB) UpdateTable(ctx context.Context, in *dynamodb.UpdateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error) {
	f.updateInput = in
	return &dynamodb.UpdateTableOutput{
		TableDescription: &ddbtypes.TableDescription{
			TableName:   in.TableName,
			TableStatus: ddbtypes.TableStatusUpdating,
		},
	}, nil
}

func (*fakeDynamoDB) DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	return &dynamodb.DeleteTableOutput{}, nil
}

type fakeMetrics struct {
	requests []string
	windows  []time.Duration
}

func (f *fakeMetrics) GetMetricStatistics(ctx context.Context, in *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	f.requests = append(f.requests, aws.ToString(in.MetricName))
	f.windows = append(f.windows, aws.ToTime(in.EndTime).Sub(aws.ToTime(in.StartTime)))
	now := time.Now()
	return &cloudwatch.GetMetricStatisticsOutput{
		Datapoints: []cwtypes.Datapoint{
			{Sum: aws.Float64(5), Average: aws.Float64(120), Timestamp: aws.Time(now)},
			{Sum: aws.Float64(3), Average: aws.Float64(80), Timestamp: aws.Time(now.Add(-time.Hour))},
		},
	}, nil
}

func run(t *testing.T, ts *Toolset, name string, args map[string]any) *tools.Result {
	t.Helper()
	reg := tools.NewRegistry(nil)
	if err := ts.Register(reg); err != nil {
		t.Fatalf("register toolset: %v", err)
	}
	tool, err := reg.Resolve(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	res, err := tool.Handler(context.Background(), args)
	if err != nil {
		t.Fatalf("handler %s: %v", name, err)
	}
	return res
}

func TestListS3BucketsFiltersByPrefix(t *testing.T) {
	created := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	s3fake := &fakeS3{
		buckets: []s3types.Bucket{
			{Name: aws.String("prod-data"), CreationDate: aws.Time(created)},
			{Name: aws.String("prod-logs"), CreationDate: aws.Time(created)},
			{Name: aws.String("dev-scratch"), CreationDate: aws.Time(created)},
		},
		regions: map[string]string{"prod-data": "ap-south-1", "prod-logs": ""},
	}
	ts := &Toolset{S3: s3fake}

	res := run(t, ts, "list_s3_buckets", map[string]any{"prefix": "prod-"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Data["count"] != 2 {
		t.Fatalf("count = %v, want 2", res.Data["count"])
	}
	if !strings.Contains(res.Message, "Found 2 S3 bucket(s)") {
		t.Fatalf("message = %q", res.Message)
	}

	buckets := res.Data["buckets"].([]any)
	first := buckets[0].(map[string]any)
	if first["region"] != "ap-south-1" {
		t.Fatalf("region = %v", first["region"])
	}
	second := buckets[1].(map[string]any)
	if second["region"] != "us-east-1" {
		t.Fatalf("empty location constraint should map to us-east-1, got %v", second["region"])
	}
}

func TestCreateS3BucketRegionHandling(t *testing.T) {
	s3fake := &fakeS3{}
	ts := &Toolset{S3: s3fake, Region: "ap-south-1"}

	res := run(t, ts, "create_s3_bucket", map[string]any{"bucket_name": "demo"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if s3fake.createInput.CreateBucketConfiguration == nil {
		t.Fatal("expected LocationConstraint for non-default region")
	}
	if got := string(s3fake.createInput.CreateBucketConfiguration.LocationConstraint); got != "ap-south-1" {
		t.Fatalf("location constraint = %q", got)
	}

	res = run(t, ts, "create_s3_bucket", map[string]any{"bucket_name": "demo-east", "region": "us-east-1"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if s3fake.createInput.CreateBucketConfiguration != nil {
		t.Fatal("us-east-1 must not carry a LocationConstraint")
	}
}

func TestListLambdaFunctionsPaginatesAndFilters(t *testing.T) {
	fake := &fakeLambda{
		pages: [][]lambdatypes.FunctionConfiguration{
			{
				{FunctionName: aws.String("ingest"), Runtime: lambdatypes.RuntimePython312, MemorySize: aws.Int32(128), Timeout: aws.Int32(15)},
				{FunctionName: aws.String("render"), Runtime: lambdatypes.RuntimeNodejs20x, MemorySize: aws.Int32(512), Timeout: aws.Int32(60)},
			},
			{
				{FunctionName: aws.String("archive"), Runtime: lambdatypes.RuntimePython312, MemorySize: aws.Int32(256), Timeout: aws.Int32(30)},
			},
		},
	}
	ts := &Toolset{Lambda: fake}

	res := run(t, ts, "list_lambda_functions", map[string]any{"runtime": "python3.12"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if fake.calls != 2 {
		t.Fatalf("expected pagination across 2 pages, calls = %d", fake.calls)
	}
	if res.Data["count"] != 2 {
		t.Fatalf("count = %v, want 2 python functions", res.Data["count"])
	}
}

func TestDescribeDynamoDBTableKeySchema(t *testing.T) {
	ts := &Toolset{DynamoDB: &fakeDynamoDB{}}

	res := run(t, ts, "describe_dynamodb_table", map[string]any{"table_name": "orders"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Data["partition_key"] != "pk" || res.Data["sort_key"] != "sk" {
		t.Fatalf("key schema = %v / %v", res.Data["partition_key"], res.Data["sort_key"])
	}
	if res.Data["status"] != "ACTIVE" {
		t.Fatalf("status = %v", res.Data["status"])
	}
}

func TestGetS3BucketInfoDegradesPerField(t *testing.T) {
	s3fake := &fakeS3{
		regions:       map[string]string{"prod-data": "ap-south-1"},
		versioning:    "Enabled",
		encryptionErr: errors.New("api error ServerSideEncryptionConfigurationNotFoundError: not found"),
		taggingErr:    errors.New("api error NoSuchTagSet: no tags"),
	}
	ts := &Toolset{S3: s3fake}

	res := run(t, ts, "get_s3_bucket_info", map[string]any{"bucket_name": "prod-data"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Message != "Retrieved information for bucket 'prod-data'" {
		t.Fatalf("message = %q", res.Message)
	}
	if res.Data["region"] != "ap-south-1" || res.Data["versioning"] != "Enabled" {
		t.Fatalf("region/versioning = %v / %v", res.Data["region"], res.Data["versioning"])
	}
	if res.Data["encryption"] != "Disabled" {
		t.Fatalf("missing encryption config must read as Disabled, got %v", res.Data["encryption"])
	}
	if tags := res.Data["tags"].(map[string]any); len(tags) != 0 {
		t.Fatalf("tagging failure must degrade to empty tags, got %v", tags)
	}
}

func TestCreateLambdaFunctionRequiresCode(t *testing.T) {
	fake := &fakeLambda{}
	ts := &Toolset{Lambda: fake}

	res := run(t, ts, "create_lambda_function", map[string]any{
		"function_name": "ingest",
		"runtime":       "python3.12",
		"handler":       "index.handler",
		"role_arn":      "arn:aws:iam::123456789012:role/lambda-exec",
	})
	if res.Success {
		t.Fatalf("expected failure without code configuration: %+v", res)
	}
	if res.Error != "Missing code configuration" {
		t.Fatalf("error = %q", res.Error)
	}
	if fake.createInput != nil {
		t.Fatal("CreateFunction must not be called without code configuration")
	}
}

func TestCreateLambdaFunctionDefaults(t *testing.T) {
	fake := &fakeLambda{}
	ts := &Toolset{Lambda: fake}

	res := run(t, ts, "create_lambda_function", map[string]any{
		"function_name":         "ingest",
		"runtime":               "python3.12",
		"handler":               "index.handler",
		"role_arn":              "arn:aws:iam::123456789012:role/lambda-exec",
		"s3_bucket":             "artifacts",
		"s3_key":                "ingest.zip",
		"environment_variables": map[string]any{"STAGE": "prod"},
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Message != "Lambda function 'ingest' created successfully" {
		t.Fatalf("message = %q", res.Message)
	}
	in := fake.createInput
	if aws.ToInt32(in.MemorySize) != 128 || aws.ToInt32(in.Timeout) != 30 {
		t.Fatalf("defaults = %d MB / %d s", aws.ToInt32(in.MemorySize), aws.ToInt32(in.Timeout))
	}
	if aws.ToString(in.Code.S3Bucket) != "artifacts" || aws.ToString(in.Code.S3Key) != "ingest.zip" {
		t.Fatalf("code config = %+v", in.Code)
	}
	if in.Environment == nil || in.Environment.Variables["STAGE"] != "prod" {
		t.Fatalf("environment = %+v", in.Environment)
	}
}

func TestUpdateLambdaConfigSendsOnlyProvidedFields(t *testing.T) {
	fake := &fakeLambda{}
	ts := &Toolset{Lambda: fake}

	res := run(t, ts, "update_lambda_config", map[string]any{
		"function_name": "ingest",
		"memory_size":   float64(512),
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Message != "Lambda function 'ingest' configuration updated" {
		t.Fatalf("message = %q", res.Message)
	}
	if aws.ToInt32(fake.updateInput.MemorySize) != 512 {
		t.Fatalf("memory = %d", aws.ToInt32(fake.updateInput.MemorySize))
	}
	if fake.updateInput.Timeout != nil {
		t.Fatal("timeout was not requested and must not be sent")
	}
}

func TestCreateDynamoDBTableSchema(t *testing.T) {
	fake := &fakeDynamoDB{}
	ts := &Toolset{DynamoDB: fake}

	res := run(t, ts, "create_dynamodb_table", map[string]any{
		"table_name":     "orders",
		"partition_key":  "order_id",
		"sort_key":       "created_at",
		"sort_key_type":  "N",
		"billing_mode":   "PROVISIONED",
		"read_capacity":  float64(10),
		"write_capacity": float64(20),
		"stream_enabled": true,
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Message != "DynamoDB table 'orders' creation initiated" {
		t.Fatalf("message = %q", res.Message)
	}
	in := fake.createInput
	if len(in.KeySchema) != 2 || in.KeySchema[1].KeyType != ddbtypes.KeyTypeRange {
		t.Fatalf("key schema = %+v", in.KeySchema)
	}
	if in.AttributeDefinitions[1].AttributeType != ddbtypes.ScalarAttributeTypeN {
		t.Fatalf("sort key type = %v", in.AttributeDefinitions[1].AttributeType)
	}
	if in.ProvisionedThroughput == nil || aws.ToInt64(in.ProvisionedThroughput.WriteCapacityUnits) != 20 {
		t.Fatalf("throughput = %+v", in.ProvisionedThroughput)
	}
	if in.StreamSpecification == nil || in.StreamSpecification.StreamViewType != ddbtypes.StreamViewTypeNewAndOldImages {
		t.Fatalf("streams = %+v", in.StreamSpecification)
	}

	res = run(t, ts, "create_dynamodb_table", map[string]any{
		"table_name":    "events",
		"partition_key": "event_id",
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if fake.createInput.BillingMode != ddbtypes.BillingModePayPerRequest {
		t.Fatalf("default billing mode = %v", fake.createInput.BillingMode)
	}
	if fake.createInput.ProvisionedThroughput != nil {
		t.Fatal("PAY_PER_REQUEST must not carry provisioned throughput")
	}
}

func TestUpdateDynamoDBTableCapacity(t *testing.T) {
	fake := &fakeDynamoDB{}
	ts := &Toolset{DynamoDB: fake}

	res := run(t, ts, "update_dynamodb_table", map[string]any{
		"table_name":     "orders",
		"billing_mode":   "PROVISIONED",
		"read_capacity":  float64(15),
		"write_capacity": float64(5),
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Message != "DynamoDB table 'orders' update initiated" {
		t.Fatalf("message = %q", res.Message)
	}
	in := fake.updateInput
	if in.ProvisionedThroughput == nil || aws.ToInt64(in.ProvisionedThroughput.ReadCapacityUnits) != 15 {
		t.Fatalf("throughput = %+v", in.ProvisionedThroughput)
	}
	if res.Data["table_status"] != "UPDATING" {
		t.Fatalf("table_status = %v", res.Data["table_status"])
	}
}

func TestGetS3MetricsWidensShortWindow(t *testing.T) {
	metrics := &fakeMetrics{}
	ts := &Toolset{Metrics: metrics}

	res := run(t, ts, "get_s3_metrics", map[string]any{"bucket_name": "prod-data", "hours": float64(1)})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	for _, window := range metrics.windows {
		// 存储类指标每日上报一次，窗口必须覆盖至少 48 小时。
		if window < 48*time.Hour {
			t.Fatalf("window = %v, want at least 48h", window)
		}
	}
}

func TestGetLambdaMetricsAggregates(t *testing.T) {
	metrics := &fakeMetrics{}
	ts := &Toolset{Metrics: metrics}

	res := run(t, ts, "get_lambda_metrics", map[string]any{"function_name": "ingest"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Data["invocations"] != 8.0 {
		t.Fatalf("invocations = %v, want summed 8", res.Data["invocations"])
	}
	if res.Data["avg_duration_ms"] != 120.0 {
		t.Fatalf("avg_duration_ms = %v, want latest datapoint 120", res.Data["avg_duration_ms"])
	}
	want := []string{"Invocations", "Errors", "Duration", "Throttles"}
	if len(metrics.requests) != len(want) {
		t.Fatalf("requested metrics = %v", metrics.requests)
	}
	for i, name := range want {
		if metrics.requests[i] != name {
			t.Fatalf("requested metrics = %v", metrics.requests)
		}
	}
}
