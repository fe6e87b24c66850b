package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	xerrors "github.com/techwithashish1/aws-agent-core-sample-application/internal/errors"
)

// expirySlack 在令牌过期前提前刷新，避免边界上的 401。
const expirySlack = 30 * time.Second

// TokenProvider 通过 OAuth2 client-credentials 流程获取访问令牌，
// 并在实例内缓存。缓存的令牌在并发读取下是安全的。
type TokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewTokenProvider 构造令牌提供器。
func NewTokenProvider(tokenURL, clientID, clientSecret, scope string, httpClient *http.Client) *TokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &TokenProvider{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token 返回缓存的访问令牌，必要时向令牌端点请求新令牌。
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && (p.expiresAt.IsZero() || p.now().Add(expirySlack).Before(p.expiresAt)) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if p.scope != "" {
		form.Set("scope", p.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeAuthFailed, err, "构建令牌请求失败")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeAuthFailed, err, "请求令牌端点失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", xerrors.New(xerrors.CodeAuthFailed,
			fmt.Sprintf("令牌端点返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", xerrors.Wrap(xerrors.CodeAuthFailed, err, "解析令牌响应失败")
	}
	if decoded.AccessToken == "" {
		return "", xerrors.New(xerrors.CodeAuthFailed, "令牌响应中没有 access_token")
	}

	p.token = decoded.AccessToken
	if decoded.ExpiresIn > 0 {
		p.expiresAt = p.now().Add(time.Duration(decoded.ExpiresIn) * time.Second)
	} else {
		p.expiresAt = time.Time{}
	}
	return p.token, nil
}
