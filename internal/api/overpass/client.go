package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL Overpass 解释器地址
const DefaultBaseURL = "https://overpass-api.de/api/interpreter"

// 美国本土包围盒（南纬, 西经, 北纬, 东经）
const usBBox = "24,-125,50,-66"

// Node OSM 节点
type Node struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// Tag 读取标签，缺失返回空串
func (n Node) Tag(key string) string {
	if n.Tags == nil {
		return ""
	}
	return n.Tags[key]
}

type response struct {
	Elements []Node `json:"elements"`
}

// Client Overpass API 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient 创建 Overpass 客户端，baseURL 为空时使用默认地址
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		// 全美品牌抓取动辄上万节点，超时放宽到 120s
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: baseURL,
	}
}

// BrandQuery 按 brand:wikidata 抓取美国本土全部门店节点的查询语句
func BrandQuery(wikidataID string) string {
	return fmt.Sprintf(`[out:json][timeout:90];
node["brand:wikidata"=%q](%s);
out body;`, wikidataID, usBBox)
}

// Query 执行 Overpass 查询并返回节点（非 node 元素被过滤）
func (c *Client) Query(ctx context.Context, query string) ([]Node, error) {
	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("overpass api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	nodes := make([]Node, 0, len(decoded.Elements))
	for _, e := range decoded.Elements {
		if e.Type == "node" {
			nodes = append(nodes, e)
		}
	}
	return nodes, nil
}
