package axion_test

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lxyqmc1529/axion"
)

func Example() {
	transport := axion.TransportFunc(func(ctx context.Context, req *axion.Request) (*axion.Response, error) {
		return &axion.Response{Status: http.StatusOK, Data: []byte(`{"items":[]}`)}, nil
	})

	client := axion.New(transport,
		axion.WithMaxConcurrent(4),
		axion.WithCache(axion.CacheConfig{MaxSize: 100, TTL: time.Minute}),
	)

	resp, err := client.Do(context.Background(), &axion.Request{
		Method:   http.MethodGet,
		URL:      "https://api.example.com/items",
		Priority: axion.PriorityHigh,
		Cache:    &axion.CachePolicy{},
		Retry:    &axion.RetryPolicy{Times: 3, Delay: 200 * time.Millisecond},
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(resp.Status, string(resp.Data))
	// Output: 200 {"items":[]}
}
