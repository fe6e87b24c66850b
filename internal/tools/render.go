package tools

import (
	"fmt"
	"sort"
	"strings"
)

// Render 把执行结果格式化为推理服务可读的文本。成功结果会按
// 数据类别（桶、函数、表）展开为列表，失败结果以 Error 前缀呈现。
func (r *Result) Render() string {
	if !r.Success {
		if r.Error != "" {
			return "Error: " + r.Error
		}
		return "Error: " + r.Message
	}

	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString("\n")
	if len(r.Data) == 0 {
		return b.String()
	}

	switch {
	case hasList(r.Data, "buckets"):
		renderBuckets(&b, asList(r.Data, "buckets"))
	case hasList(r.Data, "functions"):
		renderFunctions(&b, asList(r.Data, "functions"))
	case hasList(r.Data, "tables"):
		renderTables(&b, asList(r.Data, "tables"))
	default:
		b.WriteString("\nDetails:\n")
		keys := make([]string, 0, len(r.Data))
		for k := range r.Data {
			if k == "count" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, r.Data[k])
		}
	}
	return b.String()
}

func hasList(data map[string]any, key string) bool {
	_, ok := data[key].([]any)
	return ok
}

func asList(data map[string]any, key string) []map[string]any {
	raw, _ := data[key].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func field(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func fieldString(m map[string]any, fallback string, keys ...string) string {
	if v, ok := field(m, keys...); ok {
		return fmt.Sprintf("%v", v)
	}
	return fallback
}

func renderTags(m map[string]any) (string, bool) {
	raw, ok := m["tags"].(map[string]any)
	if !ok {
		return "", false
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, raw[k]))
	}
	return strings.Join(pairs, ", "), true
}

func renderBuckets(b *strings.Builder, buckets []map[string]any) {
	if len(buckets) == 0 {
		return
	}
	b.WriteString("\nS3 Buckets:\n")
	for _, bucket := range buckets {
		name := fieldString(bucket, "Unknown", "name", "Name")
		region := fieldString(bucket, "Unknown", "region", "Region")
		fmt.Fprintf(b, "  • %s (Region: %s)\n", name, region)

		var details []string
		if v, ok := bucket["versioning"]; ok {
			details = append(details, fmt.Sprintf("Versioning: %v", v))
		}
		if v, ok := bucket["encryption"]; ok {
			details = append(details, fmt.Sprintf("Encryption: %v", v))
		}
		if v, ok := bucket["public_access"]; ok {
			details = append(details, fmt.Sprintf("Public Access: %v", v))
		}
		if tags, ok := renderTags(bucket); ok {
			details = append(details, "Tags: "+tags)
		}
		if v, ok := bucket["creation_date"]; ok {
			details = append(details, fmt.Sprintf("Created: %v", v))
		}
		if len(details) > 0 {
			fmt.Fprintf(b, "    %s\n", strings.Join(details, " | "))
		}
	}
}

func renderFunctions(b *strings.Builder, functions []map[string]any) {
	if len(functions) == 0 {
		return
	}
	b.WriteString("\nLambda Functions:\n")
	for _, fn := range functions {
		name := fieldString(fn, "Unknown", "function_name", "FunctionName")
		runtime := fieldString(fn, "Unknown", "runtime", "Runtime")
		memory := fieldString(fn, "0", "memory_size", "MemorySize")
		timeout := fieldString(fn, "0", "timeout", "Timeout")
		fmt.Fprintf(b, "  • %s\n", name)
		fmt.Fprintf(b, "    Runtime: %s | Memory: %sMB | Timeout: %ss\n", runtime, memory, timeout)

		if v, ok := fn["vpc_id"]; ok {
			fmt.Fprintf(b, "    VPC: %v", v)
			if subnets, ok := fn["subnets"]; ok {
				fmt.Fprintf(b, " (%v subnets)", subnets)
			}
			b.WriteString("\n")
		}
		if v, ok := fn["env_vars_count"]; ok {
			fmt.Fprintf(b, "    Environment Variables: %v\n", v)
		}
		if tags, ok := renderTags(fn); ok {
			fmt.Fprintf(b, "    Tags: %s\n", tags)
		}
	}
}

func renderTables(b *strings.Builder, tables []map[string]any) {
	if len(tables) == 0 {
		return
	}
	b.WriteString("\nDynamoDB Tables:\n")
	for _, table := range tables {
		name := fieldString(table, "Unknown", "table_name", "TableName", "name")
		status := fieldString(table, "Unknown", "status", "Status")
		fmt.Fprintf(b, "  • %s (Status: %s)\n", name, status)

		var details []string
		if v, ok := table["billing_mode"]; ok {
			details = append(details, fmt.Sprintf("Billing: %v", v))
		}
		if v, ok := table["item_count"]; ok {
			details = append(details, fmt.Sprintf("Items: %v", v))
		}
		if v, ok := table["partition_key"]; ok {
			key := fmt.Sprintf("PK: %v", v)
			if sk, ok := table["sort_key"]; ok {
				key += fmt.Sprintf(", SK: %v", sk)
			}
			details = append(details, key)
		}
		if v, ok := table["stream_view_type"]; ok {
			details = append(details, fmt.Sprintf("Stream: %v", v))
		}
		if len(details) > 0 {
			fmt.Fprintf(b, "    %s\n", strings.Join(details, " | "))
		}
		if tags, ok := renderTags(table); ok {
			fmt.Fprintf(b, "    Tags: %s\n", tags)
		}
	}
}
