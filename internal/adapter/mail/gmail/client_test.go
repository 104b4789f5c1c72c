package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64url(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func TestSearchQuery(t *testing.T) {
	since := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	q := searchQuery(since)
	assert.True(t, strings.HasPrefix(q, "after:2026/03/14 "), "query looks back one extra day: %s", q)
	assert.Contains(t, q, "subject:interview")
	assert.Contains(t, q, "from:linkedin")
}

func TestCollectPlainTextWalksNestedParts(t *testing.T) {
	part := messagePart{
		MimeType: "multipart/alternative",
		Parts: []messagePart{
			{MimeType: "text/html"},
			{MimeType: "text/plain", Body: partBody{Data: b64url("hello ")}},
			{MimeType: "multipart/mixed", Parts: []messagePart{
				{MimeType: "text/plain", Body: partBody{Data: b64url("world")}},
			}},
		},
	}
	assert.Equal(t, "hello world", collectPlainText(part))
}

func TestSearchFetchesAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/messages/m1"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "m1",
				"payload": map[string]any{
					"mimeType": "text/plain",
					"body":     map[string]any{"data": b64url("Thanks for applying to Acme!")},
					"headers": []map[string]string{
						{"name": "Subject", "value": "Your application to Acme was sent"},
						{"name": "From", "value": "Acme Recruiting <jobs@acme.io>"},
						{"name": "Date", "value": "Mon, 2 Mar 2026 10:00:00 +0000"},
					},
				},
			})
		case r.URL.Path == "/messages":
			assert.Contains(t, r.URL.Query().Get("q"), "after:2026/01/01")
			assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "m1"}, {"id": "broken"}},
			})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := &Client{hc: srv.Client(), apiBase: srv.URL}
	msgs, err := c.Search(context.Background(), time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "unfetchable message skipped")
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "Your application to Acme was sent", msgs[0].Subject)
	assert.Equal(t, "Acme Recruiting <jobs@acme.io>", msgs[0].Sender)
	assert.Contains(t, msgs[0].Body, "Thanks for applying")
}
