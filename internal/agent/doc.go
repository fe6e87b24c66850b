// Package agent 实现推理/执行循环：向推理服务征询下一步，
// 执行其请求的工具调用，并把结果折叠回对话记录，直到产出最终回复。
package agent
