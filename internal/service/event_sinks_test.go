package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"fund-directory/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNATSPublisher struct {
	mock.Mock
}

func (m *MockNATSPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

type recordingPutter struct {
	mu      sync.Mutex
	inputs  []*s3.PutObjectInput
	bodies  [][]byte
	err     error
	started chan struct{}
	release chan struct{}
}

func (p *recordingPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if p.started != nil {
		p.started <- struct{}{}
		<-p.release
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	body, _ := io.ReadAll(params.Body)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, params)
	p.bodies = append(p.bodies, body)
	return &s3.PutObjectOutput{}, p.err
}

var reuseEvent = model.SessionEvent{
	ID:          "evt-1",
	Type:        model.EventReuseDetected,
	UserID:      "user-1",
	TokenFamily: "family-1",
	TokenID:     "token-1",
	IpAddress:   "10.0.0.9",
	OccurredAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	conn := new(MockNATSPublisher)
	conn.On("Publish", "fund.session.reuse_detected", mock.MatchedBy(func(data []byte) bool {
		var event model.SessionEvent
		return json.Unmarshal(data, &event) == nil && event.TokenFamily == "family-1"
	})).Return(nil).Once()
	conn.On("Publish", "fund.session.login", mock.Anything).Return(errors.New("nats: connection closed")).Once()

	publisher := NewNATSEventPublisher(conn, "fund.session")

	require.NoError(t, publisher.Publish(context.Background(), reuseEvent))
	err := publisher.Publish(context.Background(), model.SessionEvent{Type: model.EventLogin})
	assert.ErrorContains(t, err, "fund.session.login")

	conn.AssertExpectations(t)
}

// 1. В архив попадают только инциденты, ключ разложен по дате
func TestIncidentArchive_Publish(t *testing.T) {
	putter := &recordingPutter{}
	archive := newIncidentArchive(putter, "incidents", "reuse")

	require.NoError(t, archive.Publish(context.Background(), model.SessionEvent{Type: model.EventLogin}))
	require.NoError(t, archive.Publish(context.Background(), reuseEvent))
	archive.Wait()

	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "incidents", aws.ToString(putter.inputs[0].Bucket))
	assert.Equal(t, "reuse/2025/03/01/family-1-evt-1.json", aws.ToString(putter.inputs[0].Key))

	var stored model.SessionEvent
	require.NoError(t, json.Unmarshal(putter.bodies[0], &stored))
	assert.Equal(t, "10.0.0.9", stored.IpAddress)
}

// 2. Запись переживает отмену контекста запроса
func TestIncidentArchive_SurvivesRequestCancel(t *testing.T) {
	putter := &recordingPutter{started: make(chan struct{}), release: make(chan struct{})}
	archive := newIncidentArchive(putter, "incidents", "reuse")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, archive.Publish(ctx, reuseEvent))

	<-putter.started
	cancel()
	close(putter.release)
	archive.Wait()

	assert.Len(t, putter.inputs, 1)
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Publish(context.Context, model.SessionEvent) error {
	s.calls++
	return s.err
}

func TestEventFanout_Publish(t *testing.T) {
	failing := &stubSink{err: errors.New("nats: connection closed")}
	healthy := &stubSink{}

	fanout := NewEventFanout(failing, nil, healthy)
	assert.Equal(t, 2, fanout.Len())

	err := fanout.Publish(context.Background(), reuseEvent)

	assert.ErrorIs(t, err, failing.err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, healthy.calls)

	assert.NoError(t, NewEventFanout().Publish(context.Background(), reuseEvent))
}
