package cloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

func (ts *Toolset) listLambdaFunctionsTool() tools.Tool {
	return tools.Tool{
		Name: "list_lambda_functions",
		Description: "List Lambda functions with optional filtering by runtime " +
			"(e.g. 'python3.12', 'nodejs20.x') or name_pattern (case-insensitive substring).",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"runtime":      {Type: "string", Description: "Filter functions by runtime"},
				"name_pattern": {Type: "string", Description: "Filter functions by name substring (case-insensitive)"},
			},
		},
		Handler: ts.listLambdaFunctions,
	}
}

func (ts *Toolset) listLambdaFunctions(ctx context.Context, args map[string]any) (*tools.Result, error) {
	runtime := stringArg(args, "runtime")
	pattern := strings.ToLower(stringArg(args, "name_pattern"))

	functions := make([]any, 0)
	var marker *string
	for {
		out, err := ts.Lambda.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker})
		if err != nil {
			return tools.Failure("list_lambda_functions", err), nil
		}
		for _, fn := range out.Functions {
			name := aws.ToString(fn.FunctionName)
			if runtime != "" && string(fn.Runtime) != runtime {
				continue
			}
			if pattern != "" && !strings.Contains(strings.ToLower(name), pattern) {
				continue
			}
			functions = append(functions, map[string]any{
				"function_name": name,
				"runtime":       string(fn.Runtime),
				"memory_size":   aws.ToInt32(fn.MemorySize),
				"timeout":       aws.ToInt32(fn.Timeout),
				"last_modified": aws.ToString(fn.LastModified),
			})
		}
		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	var filters []string
	if runtime != "" {
		filters = append(filters, fmt.Sprintf("runtime: '%s'", runtime))
	}
	if pattern != "" {
		filters = append(filters, fmt.Sprintf("name pattern: '%s'", pattern))
	}
	message := fmt.Sprintf("Found %d Lambda function(s)", len(functions))
	if len(filters) > 0 {
		message += fmt.Sprintf(" (Filters: %s)", strings.Join(filters, ", "))
	}

	return &tools.Result{
		Success: true,
		Message: message,
		Data:    map[string]any{"functions": functions, "count": len(functions)},
	}, nil
}

func (ts *Toolset) getLambdaFunctionInfoTool() tools.Tool {
	return tools.Tool{
		Name:        "get_lambda_function_info",
		Description: "Get detailed information about a Lambda function",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string", Description: "Name of the Lambda function"},
			},
			Required: []string{"function_name"},
		},
		Handler: ts.getLambdaFunctionInfo,
	}
}

func (ts *Toolset) getLambdaFunctionInfo(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "function_name")
	out, err := ts.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)})
	if err != nil {
		return tools.Failure("get_lambda_function_info", err), nil
	}

	data := map[string]any{"function_name": name}
	if cfg := out.Configuration; cfg != nil {
		data["runtime"] = string(cfg.Runtime)
		data["handler"] = aws.ToString(cfg.Handler)
		data["memory_size"] = aws.ToInt32(cfg.MemorySize)
		data["timeout"] = aws.ToInt32(cfg.Timeout)
		data["last_modified"] = aws.ToString(cfg.LastModified)
		data["code_size"] = cfg.CodeSize
		if cfg.Description != nil && *cfg.Description != "" {
			data["description"] = *cfg.Description
		}
	}
	if len(out.Tags) > 0 {
		tags := make(map[string]any, len(out.Tags))
		for k, v := range out.Tags {
			tags[k] = v
		}
		data["tags"] = tags
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Retrieved information for Lambda function '%s'", name),
		Data:    data,
	}, nil
}

func (ts *Toolset) createLambdaFunctionTool() tools.Tool {
	return tools.Tool{
		Name:        "create_lambda_function",
		Description: "Create a Lambda function with specified configuration",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name":   {Type: "string", Description: "Name of the Lambda function"},
				"runtime":         {Type: "string", Description: "Runtime environment (e.g. python3.11, nodejs20.x)"},
				"handler":         {Type: "string", Description: "Handler function (e.g. index.handler)"},
				"role_arn":        {Type: "string", Description: "IAM role ARN for the function"},
				"code_zip_base64": {Type: "string", Description: "Base64 encoded ZIP file"},
				"s3_bucket":       {Type: "string", Description: "S3 bucket containing code"},
				"s3_key":          {Type: "string", Description: "S3 key for code ZIP"},
				"memory_size":     {Type: "integer", Description: "Memory size in MB (default 128)"},
				"timeout":         {Type: "integer", Description: "Timeout in seconds (default 30)"},
				"environment_variables": {
					Type:        "object",
					Description: "Environment variables",
				},
				"tags": {Type: "object", Description: "Tags for the function"},
			},
			Required: []string{"function_name", "runtime", "handler", "role_arn"},
		},
		Handler: ts.createLambdaFunction,
	}
}

func (ts *Toolset) createLambdaFunction(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "function_name")

	code := &lambdatypes.FunctionCode{}
	switch {
	case stringArg(args, "code_zip_base64") != "":
		zip, err := base64.StdEncoding.DecodeString(stringArg(args, "code_zip_base64"))
		if err != nil {
			return tools.Failure("create_lambda_function", fmt.Errorf("decode code_zip_base64: %w", err)), nil
		}
		code.ZipFile = zip
	case stringArg(args, "s3_bucket") != "" && stringArg(args, "s3_key") != "":
		code.S3Bucket = aws.String(stringArg(args, "s3_bucket"))
		code.S3Key = aws.String(stringArg(args, "s3_key"))
	default:
		return &tools.Result{
			Message: "Either code_zip_base64 or s3_bucket/s3_key must be provided",
			Error:   "Missing code configuration",
		}, nil
	}

	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(name),
		Runtime:      lambdatypes.Runtime(stringArg(args, "runtime")),
		Role:         aws.String(stringArg(args, "role_arn")),
		Handler:      aws.String(stringArg(args, "handler")),
		Code:         code,
		MemorySize:   aws.Int32(intArg(args, "memory_size", 128)),
		Timeout:      aws.Int32(intArg(args, "timeout", 30)),
	}
	if env := stringMapArg(args, "environment_variables"); env != nil {
		input.Environment = &lambdatypes.Environment{Variables: env}
	}
	if tags := stringMapArg(args, "tags"); tags != nil {
		input.Tags = tags
	}

	out, err := ts.Lambda.CreateFunction(ctx, input)
	if err != nil {
		return tools.Failure("create_lambda_function", err), nil
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Lambda function '%s' created successfully", name),
		Data: map[string]any{
			"function_name": aws.ToString(out.FunctionName),
			"function_arn":  aws.ToString(out.FunctionArn),
			"runtime":       string(out.Runtime),
			"memory_size":   aws.ToInt32(out.MemorySize),
			"timeout":       aws.ToInt32(out.Timeout),
		},
	}, nil
}

func (ts *Toolset) updateLambdaConfigTool() tools.Tool {
	return tools.Tool{
		Name:        "update_lambda_config",
		Description: "Update Lambda function configuration",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string", Description: "Name of the Lambda function"},
				"memory_size":   {Type: "integer", Description: "Memory size in MB"},
				"timeout":       {Type: "integer", Description: "Timeout in seconds"},
				"environment_variables": {
					Type:        "object",
					Description: "Environment variables",
				},
			},
			Required: []string{"function_name"},
		},
		Handler: ts.updateLambdaConfig,
	}
}

func (ts *Toolset) updateLambdaConfig(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "function_name")
	input := &lambda.UpdateFunctionConfigurationInput{FunctionName: aws.String(name)}
	// 只下发明确提供的字段。
	if _, ok := args["memory_size"]; ok {
		input.MemorySize = aws.Int32(intArg(args, "memory_size", 0))
	}
	if _, ok := args["timeout"]; ok {
		input.Timeout = aws.Int32(intArg(args, "timeout", 0))
	}
	if env := stringMapArg(args, "environment_variables"); env != nil {
		input.Environment = &lambdatypes.Environment{Variables: env}
	}

	out, err := ts.Lambda.UpdateFunctionConfiguration(ctx, input)
	if err != nil {
		return tools.Failure("update_lambda_config", err), nil
	}

	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Lambda function '%s' configuration updated", name),
		Data: map[string]any{
			"function_name": aws.ToString(out.FunctionName),
			"memory_size":   aws.ToInt32(out.MemorySize),
			"timeout":       aws.ToInt32(out.Timeout),
		},
	}, nil
}

func (ts *Toolset) deleteLambdaFunctionTool() tools.Tool {
	return tools.Tool{
		Name:        "delete_lambda_function",
		Description: "Delete a Lambda function",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string", Description: "Name of the Lambda function to delete"},
			},
			Required: []string{"function_name"},
		},
		Handler: ts.deleteLambdaFunction,
	}
}

func (ts *Toolset) deleteLambdaFunction(ctx context.Context, args map[string]any) (*tools.Result, error) {
	name := stringArg(args, "function_name")
	if _, err := ts.Lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: aws.String(name)}); err != nil {
		return tools.Failure("delete_lambda_function", err), nil
	}
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Lambda function '%s' deleted successfully", name),
		Data:    map[string]any{"function_name": name},
	}, nil
}
