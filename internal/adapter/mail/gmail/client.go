// Package gmail implements the domain.Mailbox port over the Gmail REST
// API, refreshing the user's OAuth token as needed.
package gmail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/pkg/textx"
)

const (
	apiBase = "https://gmail.googleapis.com/gmail/v1/users/me"

	// bodyCap bounds decoded message bodies. Classification only needs the
	// opening of a message.
	bodyCap = 5000
)

// Client reads one user's mailbox.
type Client struct {
	hc      *http.Client
	apiBase string
}

// New builds a mailbox client from the application OAuth credentials and
// the user's tokens. The underlying transport refreshes expired access
// tokens with the refresh token transparently.
func New(ctx domain.Context, cfg config.Config, settings domain.UserSettings) (*Client, error) {
	if settings.GmailAccessToken == "" && settings.GmailRefreshToken == "" {
		return nil, fmt.Errorf("%w: gmail not connected", domain.ErrConfigMissing)
	}
	oc := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
	}
	tok := &oauth2.Token{
		AccessToken:  settings.GmailAccessToken,
		RefreshToken: settings.GmailRefreshToken,
	}
	return &Client{hc: oc.Client(ctx, tok), apiBase: apiBase}, nil
}

// Search lists hiring-related messages received after since and fetches
// each in full. Per-message fetch failures are logged and skipped; one
// broken message must not sink a sync run.
func (c *Client) Search(ctx domain.Context, since time.Time, max int) ([]domain.MailMessage, error) {
	listURL := fmt.Sprintf("%s/messages?q=%s&maxResults=%d", c.apiBase, url.QueryEscape(searchQuery(since)), max)
	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.getJSON(ctx, listURL, &list); err != nil {
		return nil, fmt.Errorf("op=gmail.Search: %w", err)
	}

	out := make([]domain.MailMessage, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := c.fetchMessage(ctx, m.ID)
		if err != nil {
			slog.Warn("gmail message fetch failed", slog.String("message_id", m.ID), slog.Any("error", err))
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

type partBody struct {
	Data string `json:"data"`
}

type messagePart struct {
	MimeType string        `json:"mimeType"`
	Body     partBody      `json:"body"`
	Parts    []messagePart `json:"parts"`
}

func (c *Client) fetchMessage(ctx domain.Context, id string) (domain.MailMessage, error) {
	var full struct {
		ID      string `json:"id"`
		Payload struct {
			messagePart
			Headers []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"headers"`
		} `json:"payload"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/messages/%s?format=full", c.apiBase, id), &full); err != nil {
		return domain.MailMessage{}, err
	}

	msg := domain.MailMessage{ID: full.ID, Subject: "No Subject", Sender: "Unknown", Date: "Unknown"}
	for _, h := range full.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			msg.Subject = h.Value
		case "from":
			msg.Sender = h.Value
		case "date":
			msg.Date = h.Value
		}
	}
	msg.Body = textx.Truncate(collectPlainText(full.Payload.messagePart), bodyCap)
	return msg, nil
}

// collectPlainText walks the MIME tree and concatenates every text/plain
// leaf. Undecodable parts are skipped.
func collectPlainText(p messagePart) string {
	var b strings.Builder
	if p.MimeType == "text/plain" && p.Body.Data != "" {
		if data, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(p.Body.Data); err == nil {
			b.Write(data)
		}
	}
	for _, child := range p.Parts {
		b.WriteString(collectPlainText(child))
	}
	return b.String()
}

func (c *Client) getJSON(ctx domain.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: gmail auth status %d", domain.ErrConfigMissing, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gmail status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// searchQuery renders the reconciliation search: one day before since to
// absorb timezone skew, restricted to hiring-related subjects.
func searchQuery(since time.Time) string {
	after := since.AddDate(0, 0, -1).Format("2006/01/02")
	return "after:" + after +
		" (subject:interview OR subject:application OR subject:update OR subject:offer OR subject:status OR from:linkedin)"
}

var _ domain.Mailbox = (*Client)(nil)
