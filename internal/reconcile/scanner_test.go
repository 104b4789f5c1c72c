package reconcile

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
)

type fakeSettings struct {
	settings  domain.UserSettings
	watermark *time.Time
}

func (f *fakeSettings) Get(_ domain.Context, _ string) (domain.UserSettings, error) {
	s := f.settings
	s.LastInboxSyncAt = f.watermark
	return s, nil
}
func (f *fakeSettings) UserIDs(_ domain.Context) ([]string, error) { return []string{"u1"}, nil }
func (f *fakeSettings) SetInboxWatermark(_ domain.Context, _ string, at time.Time) error {
	f.watermark = &at
	return nil
}

type fakeApps struct {
	apps   map[string]*domain.Application
	nextID int
}

func newFakeApps() *fakeApps { return &fakeApps{apps: map[string]*domain.Application{}} }

func (f *fakeApps) Create(_ domain.Context, a domain.Application) (string, error) {
	f.nextID++
	id := "app-" + strconv.Itoa(f.nextID)
	a.ID = id
	f.apps[id] = &a
	return id, nil
}
func (f *fakeApps) Get(_ domain.Context, id string) (domain.Application, error) {
	if a, ok := f.apps[id]; ok {
		return *a, nil
	}
	return domain.Application{}, domain.ErrNotFound
}
func (f *fakeApps) ByUser(_ domain.Context, userID string) ([]domain.Application, error) {
	var out []domain.Application
	for _, a := range f.apps {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (f *fakeApps) Update(_ domain.Context, a domain.Application) error {
	if _, ok := f.apps[a.ID]; !ok {
		return domain.ErrNotFound
	}
	f.apps[a.ID] = &a
	return nil
}

type fakeLogs struct {
	finalStatus  domain.ActionStatus
	finalMessage string
}

func (f *fakeLogs) Create(_ domain.Context, _ domain.ActionLog) (string, error) { return "log-1", nil }
func (f *fakeLogs) Finalize(_ domain.Context, _ string, status domain.ActionStatus, message string) error {
	f.finalStatus = status
	f.finalMessage = message
	return nil
}

type fakeMailbox struct {
	msgs  []domain.MailMessage
	err   error
	since time.Time
}

func (f *fakeMailbox) Search(_ domain.Context, since time.Time, _ int) ([]domain.MailMessage, error) {
	f.since = since
	return f.msgs, f.err
}

type nilAI struct{}

func (nilAI) For(_ domain.UserSettings) domain.AIClient { return nil }

func newTestScanner(apps *fakeApps, settings *fakeSettings, logs *fakeLogs, box *fakeMailbox) *Scanner {
	cfg := config.Config{InboxLookbackDays: 180, InboxMaxMessages: 50}
	return NewScanner(cfg, settings, apps, logs,
		func(_ domain.Context, _ domain.UserSettings) (domain.Mailbox, error) { return box, nil },
		nilAI{})
}

func TestSyncAutoCreatesAndAppendsTimeline(t *testing.T) {
	apps := newFakeApps()
	settings := &fakeSettings{settings: domain.UserSettings{UserID: "u1", GmailAccessToken: "tok"}}
	logs := &fakeLogs{}
	box := &fakeMailbox{msgs: []domain.MailMessage{{
		ID:      "msg-1",
		Sender:  "Acme Recruiting <jobs@acme.io>",
		Subject: "Your application to Acme was sent",
		Body:    "thank you for applying",
		Date:    "Mon, 2 Mar 2026 10:00:00",
	}}}

	res, err := newTestScanner(apps, settings, logs, box).Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Updated)

	require.Len(t, apps.apps, 1)
	var app *domain.Application
	for _, a := range apps.apps {
		app = a
	}
	assert.Equal(t, "Acme", app.CompanyName)
	assert.Equal(t, "discovered via email", app.ApplicationType)
	assert.Equal(t, domain.StatusSubmitted, app.Status)
	assert.Contains(t, app.Notes, "-> APPLIED [msg-1]")
	assert.Equal(t, domain.ActionSuccess, logs.finalStatus)
	require.NotNil(t, settings.watermark, "watermark advances on success")
}

func TestSyncIsIdempotentAcrossRuns(t *testing.T) {
	apps := newFakeApps()
	settings := &fakeSettings{settings: domain.UserSettings{UserID: "u1", GmailAccessToken: "tok"}}
	box := &fakeMailbox{msgs: []domain.MailMessage{{
		ID:      "msg-7",
		Sender:  "jobs@acme.io",
		Subject: "Your application to Acme was sent",
		Body:    "thank you for applying",
		Date:    "Mon, 2 Mar 2026 10:00:00",
	}}}
	sc := newTestScanner(apps, settings, &fakeLogs{}, box)

	first, err := sc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)

	second, err := sc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated, "same message must not integrate twice")

	for _, a := range apps.apps {
		assert.Equal(t, 1, strings.Count(a.Notes, "[msg-7]"))
	}
}

func TestSyncSearchWindow(t *testing.T) {
	apps := newFakeApps()
	settings := &fakeSettings{settings: domain.UserSettings{UserID: "u1", GmailAccessToken: "tok"}}
	box := &fakeMailbox{}
	sc := newTestScanner(apps, settings, &fakeLogs{}, box)

	// never synced: the window opens at the configured lookback
	_, err := sc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -180), box.since, time.Minute)

	// synced before: the stored watermark bounds the window
	wm := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	settings.watermark = &wm
	_, err = sc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, wm, box.since)
}

func TestSyncFailureLeavesWatermark(t *testing.T) {
	apps := newFakeApps()
	settings := &fakeSettings{settings: domain.UserSettings{UserID: "u1", GmailAccessToken: "tok"}}
	logs := &fakeLogs{}
	box := &fakeMailbox{err: errors.New("upstream down")}

	_, err := newTestScanner(apps, settings, logs, box).Sync(context.Background(), "u1")
	require.Error(t, err)
	assert.Nil(t, settings.watermark, "watermark must not advance on failure")
	assert.Equal(t, domain.ActionFailed, logs.finalStatus)
}

func TestSyncInterviewAdvancesButClosedNeverReopens(t *testing.T) {
	apps := newFakeApps()
	id, _ := apps.Create(context.Background(), domain.Application{
		UserID: "u1", CompanyName: "Globex", Status: domain.StatusSubmitted,
	})
	settings := &fakeSettings{settings: domain.UserSettings{UserID: "u1", GmailAccessToken: "tok"}}
	box := &fakeMailbox{msgs: []domain.MailMessage{{
		ID:      "msg-9",
		Sender:  "talent@globex.com",
		Subject: "Interview with Globex",
		Body:    "please share your availability for an interview",
		Date:    "Tue, 3 Mar 2026 09:00:00",
	}}}
	sc := newTestScanner(apps, settings, &fakeLogs{}, box)

	_, err := sc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	got, _ := apps.Get(context.Background(), id)
	assert.Equal(t, domain.StatusAcknowledged, got.Status, "interviewed maps to acknowledged")
	assert.Contains(t, got.Notes, "-> INTERVIEWED [msg-9]", "timeline keeps the raw label")

	// a closed application stays closed on further signals
	got.Status = domain.StatusClosed
	require.NoError(t, apps.Update(context.Background(), got))
	box.msgs[0].ID = "msg-10"
	_, err = sc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	got, _ = apps.Get(context.Background(), id)
	assert.Equal(t, domain.StatusClosed, got.Status)
}

func TestSyncRejectionOverridesFromAnywhere(t *testing.T) {
	apps := newFakeApps()
	id, _ := apps.Create(context.Background(), domain.Application{
		UserID: "u1", CompanyName: "Initech", Status: domain.StatusAcknowledged,
	})
	settings := &fakeSettings{settings: domain.UserSettings{UserID: "u1", GmailAccessToken: "tok"}}
	box := &fakeMailbox{msgs: []domain.MailMessage{{
		ID:      "msg-11",
		Sender:  "talent@initech.com",
		Subject: "Update on your Initech application",
		Body:    "unfortunately we are moving forward with other candidates",
		Date:    "Wed, 4 Mar 2026 09:00:00",
	}}}

	_, err := newTestScanner(apps, settings, &fakeLogs{}, box).Sync(context.Background(), "u1")
	require.NoError(t, err)
	got, _ := apps.Get(context.Background(), id)
	assert.Equal(t, domain.StatusClosed, got.Status)
	assert.Contains(t, got.Notes, "-> REJECTED [msg-11]")
}
