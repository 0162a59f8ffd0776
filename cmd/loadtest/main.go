package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

type dealResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deal    struct {
		ID            string      `json:"id"`
		Name          string      `json:"name"`
		DiscountValue json.Number `json:"discountValue"`
		Status        string      `json:"status"`
		Images        []string    `json:"images"`
	} `json:"deal"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token")
	dealID := flag.String("deal", "", "existing deal id (empty: create one)")

	// 同一活动并发更新：验证后写覆盖（last write wins）
	nUpdates := flag.Int("updates", 50, "concurrent updates against the same deal")
	concurrency := flag.Int("c", 20, "max concurrency")
	burst := flag.Int("burst", 100, "status updates for the rate limit test (0 to skip)")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	headers := map[string]string{"X-Admin-Token": *adminToken}

	if *dealID == "" {
		var out dealResp
		err := doPOST(client, *baseURL+"/api/deals/add", map[string]any{
			"name":          "race probe",
			"discountValue": 10,
		}, headers, &out)
		if err != nil {
			panic(fmt.Sprintf("create deal failed: %v", err))
		}
		*dealID = out.Deal.ID
		fmt.Println("created deal", *dealID)
	}

	// 1) 并发整体覆盖：每个请求写入不同 name/discountValue
	fmt.Printf("start update race: deal=%s updates=%d concurrency=%d\n", *dealID, *nUpdates, *concurrency)
	results := runConcurrent(*nUpdates, *concurrency, func(idx int) Result {
		return postOnce(client, *baseURL+"/api/deals/update", map[string]any{
			"id":            *dealID,
			"name":          fmt.Sprintf("writer-%03d", idx),
			"discountValue": idx + 1,
			"status":        "draft",
		}, headers)
	})
	printSummary("update_race", results)

	final, err := getDeal(client, *baseURL, *dealID, headers)
	if err != nil {
		fmt.Println("get final deal failed:", err)
	} else {
		// name 与 discountValue 来自同一个写者，说明整行覆盖没有交错
		fmt.Printf("final: name=%s discountValue=%s status=%s images=%d\n",
			final.Deal.Name, final.Deal.DiscountValue, final.Deal.Status, len(final.Deal.Images))
	}

	// 2) 限流测试：同一管理员令牌连续改状态（更容易触发 429）
	if *burst > 0 {
		fmt.Printf("\nstart rate limit test: %d status updates, concurrency %d\n", *burst, *concurrency)
		statuses := []string{"draft", "published", "archived", "scheduled"}
		results2 := runConcurrent(*burst, *concurrency, func(idx int) Result {
			return postOnce(client, *baseURL+"/api/deals/status", map[string]any{
				"id":     *dealID,
				"status": statuses[idx%len(statuses)],
			}, headers)
		})
		printSummary("rate_limit", results2)
	}
}

func runConcurrent(total, concurrency int, fn func(idx int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func postOnce(client *http.Client, url string, body any, headers map[string]string) Result {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(respBody)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 201, 400, 401, 404, 429, 500, 502} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// doPOST 发送 POST 请求并解析响应（支持附加请求头）。
func doPOST(client *http.Client, url string, body any, headers map[string]string, out any) error {
	r := postOnce(client, url, body, headers)
	if r.Err != nil {
		return r.Err
	}
	if r.Status >= 300 {
		return fmt.Errorf("status=%d body=%s", r.Status, r.Body)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(r.Body), out)
}

func getDeal(client *http.Client, baseURL, id string, headers map[string]string) (dealResp, error) {
	var out dealResp
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/deals/single/%s", baseURL, id), nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return out, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	return out, json.Unmarshal(b, &out)
}
