package geoapify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL Geoapify Places API 地址
const DefaultBaseURL = "https://api.geoapify.com/v2/places"

// 与评分相关的 Geoapify 分类（每站一次调用，控制免费额度消耗）
var enrichmentCategories = []string{
	"catering.cafe",
	"catering.fast_food",
	"catering.restaurant",
	"commercial.supermarket",
	"commercial.shopping_mall",
	"commercial.convenience",
	"service.fuel",
}

// RawTags 数据源透传的 OSM 原始标签
type RawTags struct {
	Stars          *float64 `json:"stars"`  // 1-5
	Rating         *float64 `json:"rating"` // 0-10
	ToiletsAccess  string   `json:"toilets:access"`
	InternetAccess string   `json:"internet_access"`
}

// Properties 地点属性
type Properties struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Distance   float64  `json:"distance"`
	Datasource *struct {
		Raw *RawTags `json:"raw"`
	} `json:"datasource"`
}

// Place Geoapify 返回的候选地点
type Place struct {
	PlaceID    string     `json:"place_id"`
	Properties Properties `json:"properties"`
}

type response struct {
	Features []Place `json:"features"`
}

// Rating 归一化 0-5 评分。OSM stars 为 1-5，rating 为 0-10 需除 2；
// 均无数据时返回 0。
func (p Place) Rating() float64 {
	raw := p.rawTags()
	if raw == nil {
		return 0
	}
	if raw.Stars != nil {
		return math.Min(5, math.Max(0, *raw.Stars))
	}
	if raw.Rating != nil {
		return math.Min(5, math.Max(0, *raw.Rating/2))
	}
	return 0
}

// HasFreeRestroom 根据 toilets:access 标签判断是否有免费卫生间
func (p Place) HasFreeRestroom() bool {
	raw := p.rawTags()
	if raw == nil {
		return false
	}
	return raw.ToiletsAccess == "yes" || raw.ToiletsAccess == "public"
}

// HasWifi 根据 internet_access 标签判断是否有 WiFi
func (p Place) HasWifi() bool {
	raw := p.rawTags()
	if raw == nil {
		return false
	}
	return raw.InternetAccess == "wlan" || raw.InternetAccess == "yes"
}

func (p Place) rawTags() *RawTags {
	if p.Properties.Datasource == nil {
		return nil
	}
	return p.Properties.Datasource.Raw
}

// Client Geoapify Places API 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient 创建 Geoapify 客户端，baseURL 为空时使用默认地址
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Enabled 是否配置了 API Key。未配置时增强流程整体跳过，评分走中性默认。
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// FetchNearby 拉取坐标半径内最多 20 个候选地点用于评分增强
func (c *Client) FetchNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]Place, error) {
	if !c.Enabled() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("categories", strings.Join(enrichmentCategories, ","))
	params.Set("filter", fmt.Sprintf("circle:%f,%f,%d", lng, lat, int(radiusMeters)))
	params.Set("limit", "20")
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create geoapify request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoapify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("geoapify api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode geoapify response: %w", err)
	}
	return decoded.Features, nil
}
