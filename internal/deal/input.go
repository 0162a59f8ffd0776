package deal

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"storefront/internal/media"
	"storefront/internal/model"
)

// Input 是边界层归一化后的请求数据。
// 标量字段保留原始字符串，空串视为未传；products / removedImages 已解析成切片。
type Input struct {
	ID            string
	Name          string
	Description   string
	DiscountType  string
	DiscountValue string
	Total         string
	FinalPrice    string
	StartDate     string
	EndDate       string
	Type          string
	Status        string

	Products      []model.DealProduct
	RemovedImages []string
	Images        []media.File
}

// ParseProducts 解析 products 字段（JSON 数组文本）。
// 空串表示未传；非法 JSON 或非数组直接返回 ValidationError。
func ParseProducts(raw string) ([]model.DealProduct, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, invalid("products", "malformed JSON")
	}
	arr := gjson.Parse(raw)
	if !arr.IsArray() {
		return nil, invalid("products", "must be a JSON array")
	}

	out := make([]model.DealProduct, 0, len(arr.Array()))
	for i, el := range arr.Array() {
		p, err := parseDealProduct(el)
		if err != nil {
			return nil, invalid("products", "element %d: %v", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func parseDealProduct(el gjson.Result) (model.DealProduct, error) {
	switch {
	case el.Type == gjson.String:
		// 只给了商品 ID
		if el.Str == "" {
			return model.DealProduct{}, errString("empty product reference")
		}
		return model.DealProduct{ProductID: el.Str, Quantity: 1}, nil
	case el.IsObject():
		p := model.DealProduct{
			ProductID: firstString(el, "product", "productId", "_id"),
			Name:      el.Get("name").String(),
			Quantity:  1,
		}
		if p.ProductID == "" {
			return model.DealProduct{}, errString("missing product reference")
		}
		if q := el.Get("quantity"); q.Exists() {
			p.Quantity = int(q.Int())
		}
		if price := el.Get("price"); price.Exists() {
			d, ok := leadingDecimal(price.String())
			if !ok {
				return model.DealProduct{}, errString("invalid price " + strconv.Quote(price.String()))
			}
			p.Price = d
		}
		return p, nil
	default:
		return model.DealProduct{}, errString("unsupported element type " + el.Type.String())
	}
}

func firstString(el gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := el.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

type errString string

func (e errString) Error() string { return string(e) }

// ParseRemovedImages 解析 removedImages。
// 支持单个 JSON 数组文本，或多个表单值（每个值一个 URL）。
func ParseRemovedImages(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) == 1 {
		raw := strings.TrimSpace(values[0])
		if raw == "" {
			return nil, nil
		}
		if strings.HasPrefix(raw, "[") {
			if !gjson.Valid(raw) {
				return nil, invalid("removedImages", "malformed JSON")
			}
			var out []string
			for _, el := range gjson.Parse(raw).Array() {
				if el.Type != gjson.String {
					return nil, invalid("removedImages", "expected URL strings")
				}
				if el.Str != "" {
					out = append(out, el.Str)
				}
			}
			return out, nil
		}
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

var imageField = regexp.MustCompile(`^image(\d+)$`)

// OrderedImages 按 image1..imageN 的序号排序新上传文件，其他字段忽略。
// limit>0 时只保留前 limit 个槽位（image1..image<limit>）。
func OrderedImages(files []media.File, limit int) []media.File {
	type slot struct {
		n int
		f media.File
	}
	slots := make([]slot, 0, len(files))
	for _, f := range files {
		m := imageField.FindStringSubmatch(f.Field)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		if limit > 0 && n > limit {
			continue
		}
		slots = append(slots, slot{n: n, f: f})
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].n < slots[j].n })

	out := make([]media.File, len(slots))
	for i, s := range slots {
		out[i] = s.f
	}
	return out
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// 金额列为 decimal(12,2)：整数部分最多 10 位。
// 小数位上限放宽到 18，超出部分存储时截断。
const (
	maxAmountIntDigits = 10
	maxAmountScale     = 18
)

// leadingDecimal 宽松数字解析："20"、"20.5"、"20abc" 都可以，取最长数字前缀。
// 超出金额范围（如 1e50000000）视为非法。
func leadingDecimal(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	m := numericPrefix.FindString(raw)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(m, "."))
	if err != nil {
		return decimal.Zero, false
	}
	if !amountInRange(d) {
		return decimal.Zero, false
	}
	return d, true
}

// amountInRange 只看系数位数和指数，不做 rescale。
// 零值也要检查指数："0e50000000" 输出时同样会展开。
func amountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -maxAmountScale || exp > maxAmountIntDigits {
		return false
	}
	return d.NumDigits()+int(exp) <= maxAmountIntDigits
}

// parseAmount 可选数字字段：空串 -> 0，非数字 -> ValidationError。
func parseAmount(field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, ok := leadingDecimal(raw)
	if !ok {
		return decimal.Zero, invalid(field, "not a valid amount: %q", raw)
	}
	return d, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var unixMillis = regexp.MustCompile(`^\d{10,}$`)

// parseDate 宽松日期解析。空串返回 nil。
func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if unixMillis.MatchString(raw) {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			t := time.UnixMilli(ms).UTC()
			return &t, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, invalid(field, "unrecognized date %q", raw)
}
