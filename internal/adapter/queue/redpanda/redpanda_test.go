package redpanda

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jobintel/jobintel/internal/domain"
)

func TestRecordKeySerializesPerUser(t *testing.T) {
	key := recordKey(domain.TaskPayload{Type: domain.TaskScrape, UserID: "u1"})
	assert.Equal(t, "scrape:u1", key)
}

func TestRecordKeySerializesResumeParsePerResume(t *testing.T) {
	key := recordKey(domain.TaskPayload{Type: domain.TaskResumeParse, UserID: "u1", ResumeID: "r9"})
	assert.Equal(t, "resume_parse:r9", key)
}

func TestEnqueueRejectsIncompletePayload(t *testing.T) {
	p := &Producer{}
	_, err := p.Enqueue(context.Background(), domain.TaskPayload{Type: domain.TaskScrape})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = p.Enqueue(context.Background(), domain.TaskPayload{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestHeaderValue(t *testing.T) {
	rec := &kgo.Record{Headers: []kgo.RecordHeader{{Key: taskIDHeader, Value: []byte("t-1")}}}
	assert.Equal(t, "t-1", headerValue(rec, taskIDHeader))
	assert.Empty(t, headerValue(rec, "missing"))
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(nil, "g", 4, nil)
	assert.Error(t, err)

	_, err = NewConsumer([]string{"localhost:19092"}, "", 4, nil)
	assert.Error(t, err)
}
