package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

func (ts *Toolset) listDynamoDBTablesTool() tools.Tool {
	return tools.Tool{
		Name:        "list_dynamodb_tables",
		Description: "List DynamoDB tables with optional name_pattern filtering (case-insensitive substring)",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name_pattern": {Type: "string", Description: "Filter tables by name substring (case-insensitive)"},
			},
		},
		Handler: ts.listDynamoDBTables,
	}
}

func (ts *Toolset) listDynamoDBTables(ctx context.Context, args map[string]any) (*tools.Result, error) {
	pattern := strings.ToLower(stringArg(args, "name_pattern"))

	names := make([]string, 0)
	var start *string
	for {
		out, err := ts.DynamoDB.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: start})
		if err != nil {
			return tools.Failure("list_dynamodb_tables", err), nil
		}
		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		start = out.LastEvaluatedTableName
	}

	tableInfos := make([]any, 0, len(names))
	for _, name := range names {
		if pattern != "" && !strings.Contains(strings.ToLower(name), pattern) {
			continue
		}
		info := map[string]any{"table_name": name}
		if desc, err := ts.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}); err == nil && desc.Table != nil {
			info["status"] = string(desc.Table.TableStatus)
			info["item_count"] = aws.ToInt64(desc.Table.ItemCount)
		} else if err != nil {
			ts.Log.Warn("读取表详情失败", "table", name, "error", err)
		}
		tableInfos = append(tableInfos, info)
	}

	message := fmt.Sprintf("Found %d DynamoDB table(s)", len(tableInfos))
	if pattern != "" {
		message += fmt.Sprintf(" (Filters: name pattern: '%s')", pattern)
	}

	return &tools.Result{
		Success: true,
		Message: message,
		Data:    map[string]any{"tables": tableInfos, "count": len(tableInfos)},
	}, nil
}

func (ts *Toolset) describeDynamoDBTableTool() tools.Tool {
	return tools.Tool{
		Name:        "describe_dynamodb_table",
		Description: "Get detailed information about a DynamoDB table",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"table_name": {Type: "string", Description: "Name of the DynamoDB table"},
			},
			Required: []string{"table_name"},
		},
		Handler: ts.describeDynamoDBTable,
	}
}

func (ts *Toolset) describeDynamoDBTable(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "table_name")
	out, err := ts.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil || out.Table == nil {
		if err == nil {
			err = fmt.Errorf("empty table description")
		}
		return tools.Failure("describe_dynamodb_table", err), nil
	}

	table := out.Table
	data := map[string]any{
		"table_name": aws.ToString(table.TableName),
		"status":     string(table.TableStatus),
		"item_count": aws.ToInt64(table.ItemCount),
	}
	for _, key := range table.KeySchema {
		switch key.KeyType {
		case ddbtypes.KeyTypeHash:
			data["partition_key"] = aws.ToString(key.AttributeName)
		case ddbtypes.KeyTypeRange:
			data["sort_key"] = aws.ToString(key.AttributeName)
		}
	}
	if table.BillingModeSummary != nil {
		data["billing_mode"] = string(table.BillingModeSummary.BillingMode)
	}
	if table.StreamSpecification != nil && aws.ToBool(table.StreamSpecification.StreamEnabled) {
		data["stream_view_type"] = string(table.StreamSpecification.StreamViewType)
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Retrieved information for DynamoDB table '%s'", name),
		Data:    data,
	}, nil
}

func (ts *Toolset) createDynamoDBTableTool() tools.Tool {
	return tools.Tool{
		Name:        "create_dynamodb_table",
		Description: "Create a DynamoDB table with specified configuration",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"table_name":         {Type: "string", Description: "Name of the DynamoDB table"},
				"partition_key":      {Type: "string", Description: "Partition key attribute name"},
				"partition_key_type": {Type: "string", Description: "Partition key type (S, N, B), default S"},
				"sort_key":           {Type: "string", Description: "Sort key attribute name"},
				"sort_key_type":      {Type: "string", Description: "Sort key type (S, N, B), default S"},
				"billing_mode":       {Type: "string", Description: "PROVISIONED or PAY_PER_REQUEST (default PAY_PER_REQUEST)"},
				"read_capacity":      {Type: "integer", Description: "Read capacity units (for PROVISIONED, default 5)"},
				"write_capacity":     {Type: "integer", Description: "Write capacity units (for PROVISIONED, default 5)"},
				"stream_enabled":     {Type: "boolean", Description: "Enable DynamoDB streams"},
				"tags":               {Type: "object", Description: "Tags for the table"},
			},
			Required: []string{"table_name", "partition_key"},
		},
		Handler: ts.createDynamoDBTable,
	}
}

func (ts *Toolset) createDynamoDBTable(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "table_name")
	partitionKey := stringArg(args, "partition_key")
	partitionKeyType := stringArg(args, "partition_key_type")
	if partitionKeyType == "" {
		partitionKeyType = "S"
	}

	keySchema := []ddbtypes.KeySchemaElement{
		{AttributeName: aws.String(partitionKey), KeyType: ddbtypes.KeyTypeHash},
	}
	attributes := []ddbtypes.AttributeDefinition{
		{AttributeName: aws.String(partitionKey), AttributeType: ddbtypes.ScalarAttributeType(partitionKeyType)},
	}
	sortKey := stringArg(args, "sort_key")
	if sortKey != "" {
		sortKeyType := stringArg(args, "sort_key_type")
		if sortKeyType == "" {
			sortKeyType = "S"
		}
		keySchema = append(keySchema, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: ddbtypes.KeyTypeRange,
		})
		attributes = append(attributes, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(sortKey), AttributeType: ddbtypes.ScalarAttributeType(sortKeyType),
		})
	}

	billingMode := stringArg(args, "billing_mode")
	if billingMode == "" {
		billingMode = "PAY_PER_REQUEST"
	}
	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		KeySchema:            keySchema,
		AttributeDefinitions: attributes,
		BillingMode:          ddbtypes.BillingMode(billingMode),
	}
	if billingMode == "PROVISIONED" {
		input.ProvisionedThroughput = &ddbtypes.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(int64(intArg(args, "read_capacity", 5))),
			WriteCapacityUnits: aws.Int64(int64(intArg(args, "write_capacity", 5))),
		}
	}
	if boolArg(args, "stream_enabled") {
		input.StreamSpecification = &ddbtypes.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: ddbtypes.StreamViewTypeNewAndOldImages,
		}
	}
	for k, v := range stringMapArg(args, "tags") {
		input.Tags = append(input.Tags, ddbtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	out, err := ts.DynamoDB.CreateTable(ctx, input)
	if err != nil {
		return tools.Failure("create_dynamodb_table", err), nil
	}

	data := map[string]any{
		"table_name":    name,
		"partition_key": partitionKey,
		"sort_key":      sortKey,
	}
	if out.TableDescription != nil {
		data["table_arn"] = aws.ToString(out.TableDescription.TableArn)
		data["table_status"] = string(out.TableDescription.TableStatus)
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("DynamoDB table '%s' creation initiated", name),
		Data:    data,
	}, nil
}

func (ts *Toolset) updateDynamoDBTableTool() tools.Tool {
	return tools.Tool{
		Name:        "update_dynamodb_table",
		Description: "Update DynamoDB table configuration",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"table_name":     {Type: "string", Description: "Name of the DynamoDB table"},
				"billing_mode":   {Type: "string", Description: "PROVISIONED or PAY_PER_REQUEST"},
				"read_capacity":  {Type: "integer", Description: "Read capacity units"},
				"write_capacity": {Type: "integer", Description: "Write capacity units"},
			},
			Required: []string{"table_name"},
		},
		Handler: ts.updateDynamoDBTable,
	}
}

func (ts *Toolset) updateDynamoDBTable(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "table_name")
	input := &dynamodb.UpdateTableInput{TableName: aws.String(name)}
	if mode := stringArg(args, "billing_mode"); mode != "" {
		input.BillingMode = ddbtypes.BillingMode(mode)
	}
	read := intArg(args, "read_capacity", 0)
	write := intArg(args, "write_capacity", 0)
	if read > 0 && write > 0 {
		input.ProvisionedThroughput = &ddbtypes.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(int64(read)),
			WriteCapacityUnits: aws.Int64(int64(write)),
		}
	}

	out, err := ts.DynamoDB.UpdateTable(ctx, input)
	if err != nil {
		return tools.Failure("update_dynamodb_table", err), nil
	}

	data := map[string]any{"table_name": name}
	if out.TableDescription != nil {
		data["table_status"] = string(out.TableDescription.TableStatus)
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("DynamoDB table '%s' update initiated", name),
		Data:    data,
	}, nil
}

func (ts *Toolset) deleteDynamoDBTableTool() tools.Tool {
	return tools.Tool{
		Name:        "delete_dynamodb_table",
		Description: "Delete a DynamoDB table",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"table_name": {Type: "string", Description: "Name of the DynamoDB table to delete"},
			},
			Required: []string{"table_name"},
		},
		Handler: ts.deleteDynamoDBTable,
	}
}

func (ts *Toolset) deleteDynamoDBTable(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "table_name")
	if _, err := ts.DynamoDB.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
		return tools.Failure("delete_dynamodb_table", err), nil
	}
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("DynamoDB table '%s' deletion initiated", name),
		Data:    map[string]any{"table_name": name},
	}, nil
}
