package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TotalScoreKey 总分在明细中的键名
const TotalScoreKey = "Total ATS Score"

// ScoreItem 一个评分类别的得分
type ScoreItem struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Max      float64 `json:"max"`
}

// ScoreBreakdown 有序的评分明细。
// JSON 形式为对象，键顺序与评分细则一致，最后是 "Total ATS Score"。
type ScoreBreakdown struct {
	Items []ScoreItem
	Total float64
}

// Get 按类别名取得分
func (b ScoreBreakdown) Get(category string) (float64, bool) {
	if category == TotalScoreKey {
		return b.Total, true
	}
	for _, it := range b.Items {
		if it.Category == category {
			return it.Score, true
		}
	}
	return 0, false
}

// Categories 类别名列表，按细则顺序
func (b ScoreBreakdown) Categories() []string {
	out := make([]string, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.Category
	}
	return out
}

// MarshalJSON 输出保持顺序的对象
func (b ScoreBreakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, it := range b.Items {
		if err := writeKV(&buf, it.Category, it.Score); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	if err := writeKV(&buf, TotalScoreKey, b.Total); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 按出现顺序还原明细（用于缓存/存储回读）。
// 反序列化后各项的 Max 为 0，Max 只在评分时填充。
func (b *ScoreBreakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("types: ats_breakdown 必须是 JSON 对象")
	}

	var items []ScoreItem
	var total float64
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("types: ats_breakdown 键必须是字符串")
		}
		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return fmt.Errorf("types: ats_breakdown[%q]: %w", key, err)
		}
		v, err := num.Float64()
		if err != nil {
			return fmt.Errorf("types: ats_breakdown[%q]: %w", key, err)
		}
		if key == TotalScoreKey {
			total = v
			continue
		}
		items = append(items, ScoreItem{Category: key, Score: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	b.Items = items
	b.Total = total
	return nil
}

// MarshalPlain 与 json.Marshal 相同，但不把 & < > 转义成 \u0026 等形式。
// 外层用 json.Marshal 会把 MarshalJSON 的输出重新转义，含评分明细的结构体都应走这里
func MarshalPlain(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeKV(buf *bytes.Buffer, key string, value float64) error {
	// 类别名原样输出，如 "Tools & Platforms"
	k, err := MarshalPlain(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
