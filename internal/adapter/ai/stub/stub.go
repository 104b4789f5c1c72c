// Package stub is a fast, deterministic AI client for local runs and tests.
package stub

import (
	"hash/fnv"

	"github.com/jobintel/jobintel/internal/domain"
)

// Client returns canned completions and hash-derived embeddings. Identical
// texts always embed to identical vectors, which is what the matching tests
// rely on.
type Client struct {
	// Reply, when set, is returned verbatim by Complete.
	Reply string
	// Dim is the embedding dimensionality; defaults to 384.
	Dim int
}

func New() *Client { return &Client{} }

// Complete returns the canned reply, or an empty JSON array which every
// JSON-mode caller treats as "nothing found".
func (c *Client) Complete(_ domain.Context, _ string, _ bool) (string, error) {
	if c.Reply != "" {
		return c.Reply, nil
	}
	return "[]", nil
}

// Embed derives a unit-norm-free vector from an FNV hash of each text.
func (c *Client) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	dim := c.Dim
	if dim == 0 {
		dim = 384
	}
	res := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(t))
		seed := h.Sum64()
		v := make([]float32, dim)
		for j := range v {
			seed = seed*6364136223846793005 + 1442695040888963407
			v[j] = float32(int64(seed>>33))/float32(1<<30) - 1
		}
		res[i] = v
	}
	return res, nil
}

var _ domain.AIClient = (*Client)(nil)
