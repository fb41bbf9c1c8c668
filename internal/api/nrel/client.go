package nrel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL NREL 替代燃料站 API 地址
const DefaultBaseURL = "https://developer.nrel.gov/api/alt-fuel-stations/v1.json"

// DefaultPageSize 单页记录数上限
const DefaultPageSize = 200

// Client NREL API 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient 创建 NREL API 客户端，baseURL 为空时使用默认地址
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// PageQuery 分页查询参数
type PageQuery struct {
	State         string
	Offset        int
	Limit         int
	ModifiedSince string // ISO 日期（YYYY-MM-DD），为空则取全量
}

// FetchPage 拉取一页公共电动车充电站
func (c *Client) FetchPage(ctx context.Context, q PageQuery) (*Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("fuel_type", "ELEC")
	params.Set("status", "E")
	params.Set("access", "public")
	params.Set("state", q.State)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.ModifiedSince != "" {
		params.Set("modified_since", q.ModifiedSince)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create nrel request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nrel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("nrel api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode nrel response: %w", err)
	}
	if page.Stations == nil {
		page.Stations = []Station{}
	}
	return &page, nil
}
