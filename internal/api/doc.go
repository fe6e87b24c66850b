// Package api 暴露驱动智能体的 REST 接口：对话、会话管理、
// 历史回放与工具目录查询。
package api
