package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trend-trading-bot/internal/types"
)

// APIError is a response with a non-zero retCode. Callers map it onto the
// error taxonomy depending on the endpoint.
type APIError struct {
	Path string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit %s: retCode=%d %s", e.Path, e.Code, e.Msg)
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// sign is HMAC-SHA256 over timestamp + key + recvWindow + payload, where the
// payload is the query string for GET and the JSON body for POST.
func sign(secret, ts, apiKey, recvWindow, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = io.WriteString(mac, ts+apiKey+recvWindow+payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *Gateway) get(ctx context.Context, path string, q url.Values, signed bool) (json.RawMessage, error) {
	return g.do(ctx, http.MethodGet, path, q.Encode(), nil, signed)
}

func (g *Gateway) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return g.do(ctx, http.MethodPost, path, "", b, true)
}

// do sends one request. Transport failures, non-2xx statuses and undecodable
// bodies wrap ErrDataUnavailable; a non-zero retCode is an *APIError.
func (g *Gateway) do(ctx context.Context, method, path, query string, body []byte, signed bool) (json.RawMessage, error) {
	u := g.baseURL + path
	if query != "" {
		u += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		rw := strconv.Itoa(g.p.RecvWindowMs)
		payload := query
		if method == http.MethodPost {
			payload = string(body)
		}
		req.Header.Set("X-BAPI-API-KEY", g.p.APIKey)
		req.Header.Set("X-BAPI-TIMESTAMP", ts)
		req.Header.Set("X-BAPI-RECV-WINDOW", rw)
		req.Header.Set("X-BAPI-SIGN", sign(g.p.APISecret, ts, g.p.APIKey, rw, payload))
	}

	res, err := g.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: bybit %s %s: %v", types.ErrDataUnavailable, method, path, err)
	}
	defer res.Body.Close()
	bs, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: bybit %s %s: read body: %v", types.ErrDataUnavailable, method, path, err)
	}
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: bybit %s %s: http %d: %s", types.ErrDataUnavailable, method, path, res.StatusCode, truncate(bs))
	}

	var env envelope
	if err := json.Unmarshal(bs, &env); err != nil {
		return nil, fmt.Errorf("%w: bybit %s %s: decode: %v", types.ErrDataUnavailable, method, path, err)
	}
	if env.RetCode != 0 {
		return nil, &APIError{Path: path, Code: env.RetCode, Msg: env.RetMsg}
	}
	return env.Result, nil
}

func truncate(b []byte) string {
	if len(b) > 256 {
		return string(b[:256]) + "..."
	}
	return string(b)
}
