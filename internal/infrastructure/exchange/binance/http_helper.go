package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"xopt/internal/infrastructure/metrics"
)

// ErrCredentialsMissing is returned by signed calls when no API key/secret is configured.
var ErrCredentialsMissing = errors.New("binance: api key and secret are required for signed requests")

// APIError is a non-2xx answer from the exchange. Msg carries the server message when
// the body had one.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("request failed: %d", e.Status)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	// JSON 错误体没有 msg 时保持为空，Error() 回退到 "request failed: <status>"
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Code = payload.Code
		apiErr.Msg = payload.Msg
		return apiErr
	}
	apiErr.Msg = http.StatusText(status)
	return apiErr
}

// publicRequest performs an unsigned GET and decodes the JSON body into out.
func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	body, err := c.do(req, path)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// signedRequest is shared helper for signed REST calls.
func (c *APIClient) signedRequest(ctx context.Context, method, path string, params url.Values, out any) error {
	if !c.credentials.Configured() {
		return ErrCredentialsMissing
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if params.Get("recvWindow") == "" {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
	}

	query := params.Encode()
	signature := c.credentials.Sign(query)
	endpoint := fmt.Sprintf("%s%s?%s&signature=%s", c.baseURL, path, query, signature)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.credentials.APIKey())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req, path)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *APIClient) do(req *http.Request, path string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RESTDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RESTRequests.WithLabelValues(path, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.RESTRequests.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// jsonFloat accepts both "1.5" and 1.5; an empty string decodes to 0.
type jsonFloat float64

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

func (f jsonFloat) f64() float64 { return float64(f) }

// jsonInt is like jsonFloat for integer ids the exchange sometimes quotes.
type jsonInt int64

func (n *jsonInt) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*n = jsonInt(v)
	return nil
}
