/*
 * MIT License
 *
 * Copyright (c) 2023 EASL and the vHive community
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package workload

import (
	"fmt"
	"math/rand"
	"strings"
)

// Payload is the record the serialization benchmarks encode, shaped like a
// typical API entity: identifiers, nested line items, and free-form
// metadata. Numeric fields stay below 2^53 so the schema-less protobuf
// encoding round-trips them exactly.
type Payload struct {
	ID        string            `json:"id" yaml:"id"`
	Sequence  int64             `json:"sequence" yaml:"sequence"`
	Name      string            `json:"name" yaml:"name"`
	Timestamp int64             `json:"timestamp" yaml:"timestamp"`
	Active    bool              `json:"active" yaml:"active"`
	Score     float64           `json:"score" yaml:"score"`
	Tags      []string          `json:"tags" yaml:"tags"`
	Items     []PayloadItem     `json:"items" yaml:"items"`
	Metadata  map[string]string `json:"metadata" yaml:"metadata"`
}

type PayloadItem struct {
	SKU      string  `json:"sku" yaml:"sku"`
	Quantity int     `json:"quantity" yaml:"quantity"`
	Price    float64 `json:"price" yaml:"price"`
	Note     string  `json:"note" yaml:"note"`
}

func (p *Payload) toValueMap() map[string]interface{} {
	tags := make([]interface{}, 0, len(p.Tags))
	for _, tag := range p.Tags {
		tags = append(tags, tag)
	}

	items := make([]interface{}, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, map[string]interface{}{
			"sku":      item.SKU,
			"quantity": item.Quantity,
			"price":    item.Price,
			"note":     item.Note,
		})
	}

	metadata := make(map[string]interface{}, len(p.Metadata))
	for key, value := range p.Metadata {
		metadata[key] = value
	}

	return map[string]interface{}{
		"id":        p.ID,
		"sequence":  p.Sequence,
		"name":      p.Name,
		"timestamp": p.Timestamp,
		"active":    p.Active,
		"score":     p.Score,
		"tags":      tags,
		"items":     items,
		"metadata":  metadata,
	}
}

func (p *Payload) fromValueMap(m map[string]interface{}) error {
	p.ID = stringField(m, "id")
	p.Sequence = int64Field(m, "sequence")
	p.Name = stringField(m, "name")
	p.Timestamp = int64Field(m, "timestamp")
	p.Active, _ = m["active"].(bool)
	p.Score = floatField(m, "score")

	tags, _ := m["tags"].([]interface{})
	p.Tags = make([]string, 0, len(tags))
	for _, tag := range tags {
		s, ok := tag.(string)
		if !ok {
			return fmt.Errorf("payload tag %v is not a string", tag)
		}
		p.Tags = append(p.Tags, s)
	}

	items, _ := m["items"].([]interface{})
	p.Items = make([]PayloadItem, 0, len(items))
	for _, raw := range items {
		fields, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("payload item %v is not a map", raw)
		}
		p.Items = append(p.Items, PayloadItem{
			SKU:      stringField(fields, "sku"),
			Quantity: int(int64Field(fields, "quantity")),
			Price:    floatField(fields, "price"),
			Note:     stringField(fields, "note"),
		})
	}

	metadata, _ := m["metadata"].(map[string]interface{})
	p.Metadata = make(map[string]string, len(metadata))
	for key, value := range metadata {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("payload metadata %v is not a string", value)
		}
		p.Metadata[key] = s
	}

	return nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func int64Field(m map[string]interface{}, key string) int64 {
	f, _ := m[key].(float64)
	return int64(f)
}

func floatField(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

// Tier selects the payload complexity.
type Tier int

const (
	TierSmall Tier = iota
	TierMedium
	TierLarge
)

func (t Tier) String() string {
	switch t {
	case TierSmall:
		return "small"
	case TierLarge:
		return "large"
	default:
		return "medium"
	}
}

func TierByName(name string) (Tier, error) {
	switch strings.ToLower(name) {
	case "small":
		return TierSmall, nil
	case "medium", "":
		return TierMedium, nil
	case "large":
		return TierLarge, nil
	default:
		return TierMedium, fmt.Errorf("unknown payload tier %q (known: small, medium, large)", name)
	}
}

// shape returns the element counts per payload for a tier.
func (t Tier) shape() (tags, items, metadata int) {
	switch t {
	case TierSmall:
		return 2, 3, 2
	case TierLarge:
		return 16, 64, 12
	default:
		return 8, 16, 6
	}
}

const payloadCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generator produces pseudo-random payloads from a fixed seed, so two runs
// with the same configuration serialize identical data.
type Generator struct {
	rng      *rand.Rand
	sequence int64
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Payload(tier Tier) *Payload {
	tags, items, metadata := tier.shape()
	g.sequence++

	p := &Payload{
		ID:        g.randomString(16),
		Sequence:  g.sequence,
		Name:      g.randomString(12),
		Timestamp: 1600000000000 + g.rng.Int63n(1000000000),
		Active:    g.rng.Intn(2) == 0,
		Score:     g.rng.Float64(),
		Tags:      make([]string, 0, tags),
		Items:     make([]PayloadItem, 0, items),
		Metadata:  make(map[string]string, metadata),
	}

	for i := 0; i < tags; i++ {
		p.Tags = append(p.Tags, g.randomString(8))
	}
	for i := 0; i < items; i++ {
		p.Items = append(p.Items, PayloadItem{
			SKU:      g.randomString(10),
			Quantity: 1 + g.rng.Intn(99),
			Price:    float64(g.rng.Intn(100000)) / 100.0,
			Note:     g.randomString(24),
		})
	}
	for i := 0; i < metadata; i++ {
		p.Metadata[g.randomString(6)] = g.randomString(12)
	}

	return p
}

func (g *Generator) Payloads(tier Tier, count int) []*Payload {
	payloads := make([]*Payload, 0, count)
	for i := 0; i < count; i++ {
		payloads = append(payloads, g.Payload(tier))
	}

	return payloads
}

func (g *Generator) randomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = payloadCharset[g.rng.Intn(len(payloadCharset))]
	}

	return string(b)
}
