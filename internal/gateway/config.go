package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config 是网关客户端的持久化配置文档（JSON），由基础设施脚本在
// 网关创建阶段写入。令牌端点地址由 user pool 与 region 推导得出。
type Config struct {
	Gateway struct {
		URL string `json:"url"`
	} `json:"gateway"`
	Cognito struct {
		UserPoolID   string `json:"user_pool_id"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		ScopeString  string `json:"scope_string"`
	} `json:"cognito"`
	Region string `json:"region"`
}

// LoadConfig 解析指定路径的网关配置文档。
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("网关配置路径为空")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取网关配置失败: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("解析网关配置失败: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return &cfg, nil
}

// Validate 检查关键字段是否齐全。
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return errors.New("网关 URL 不能为空")
	}
	if c.Cognito.UserPoolID == "" || c.Cognito.ClientID == "" || c.Cognito.ClientSecret == "" {
		return errors.New("Cognito 凭据不完整")
	}
	return nil
}

// TokenURL 由 user pool ID 与 region 推导出 OAuth2 令牌端点。
// 域名是去掉下划线并转为小写的 user pool ID。
func (c *Config) TokenURL() string {
	domain := strings.ToLower(strings.ReplaceAll(c.Cognito.UserPoolID, "_", ""))
	return fmt.Sprintf("https://%s.auth.%s.amazoncognito.com/oauth2/token", domain, c.Region)
}
