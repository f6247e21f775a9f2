package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL 期权 EAPI 地址
const DefaultBaseURL = "https://eapi.binance.com"

// ===== Credentials 凭证 =====

// Credentials 包含 API 凭证和签名方法
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    strings.TrimSpace(apiKey),
		apiSecret: strings.TrimSpace(apiSecret),
	}
}

// Sign 生成 HMAC-SHA256 签名
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// Configured reports whether both key and secret are present.
func (c *Credentials) Configured() bool {
	return c != nil && c.apiKey != "" && c.apiSecret != ""
}

// APIClient is the shared HTTP plumbing of the market and trading clients.
type APIClient struct {
	credentials *Credentials
	httpClient  *http.Client
	baseURL     string
	recvWindow  int64
}

// NewAPIClient creates a client for baseURL. Credentials may be nil for public use.
func NewAPIClient(baseURL string, creds *Credentials, timeout time.Duration) *APIClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		credentials: creds,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		recvWindow:  5000,
	}
}

// Clients 同一组 HTTP 连接与凭证下的行情与交易客户端
type Clients struct {
	Market  *MarketClient
	Trading *TradingClient
}

// NewClients 通过一组凭证和 URL 同时创建行情与交易客户端
func NewClients(baseURL, apiKey, apiSecret string, timeout time.Duration) *Clients {
	api := NewAPIClient(baseURL, NewCredentials(apiKey, apiSecret), timeout)
	return &Clients{
		Market:  NewMarketClient(api),
		Trading: NewTradingClient(api),
	}
}
