package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
)

// StaticFeed always answers with the configured price. It is what the
// memory driver and local setups run with.
type StaticFeed struct {
	Value    int64
	Decimals uint8
}

func (f StaticFeed) Latest(context.Context) (Answer, error) {
	return Answer{Value: f.Value, Decimals: f.Decimals, UpdatedAt: time.Now()}, nil
}

// HTTPFeed reads {"answer":..,"decimals":..,"updated_at":..} from a price service.
type HTTPFeed struct {
	client *req.Client
	url    string
}

func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		client: req.C().SetTimeout(timeout).SetUserAgent("reflights-oracle"),
		url:    url,
	}
}

func (f *HTTPFeed) Latest(ctx context.Context) (Answer, error) {
	var ans Answer
	resp, err := f.client.R().
		SetContext(ctx).
		SetSuccessResult(&ans).
		Get(f.url)
	if err != nil {
		return Answer{}, fmt.Errorf("get %s: %w", f.url, err)
	}
	if !resp.IsSuccessState() {
		return Answer{}, fmt.Errorf("get %s: unexpected status %d", f.url, resp.StatusCode)
	}
	return ans, nil
}
