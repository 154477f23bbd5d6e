package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"jobtrends/common/errors"
	"jobtrends/services/trends/internal/processor"
	"jobtrends/services/trends/internal/slicer"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)

type fakeRunner struct {
	calls   []string
	periods []string
	err     error
}

func (r *fakeRunner) RunSkillTrends(_ context.Context, _ time.Time) (*processor.Report, error) {
	r.calls = append(r.calls, KindSkillTrends)
	return &processor.Report{Kind: KindSkillTrends}, r.err
}

func (r *fakeRunner) RunPeriodSlices(_ context.Context, period string, _ time.Time) (*processor.Report, error) {
	r.calls = append(r.calls, KindPeriodSlices)
	r.periods = append(r.periods, period)
	return &processor.Report{Kind: KindPeriodSlices, Period: period}, r.err
}

func (r *fakeRunner) RunAll(_ context.Context, period string, _ time.Time) ([]*processor.Report, error) {
	r.calls = append(r.calls, KindAll)
	r.periods = append(r.periods, period)
	return []*processor.Report{{Kind: KindSkillTrends}, {Kind: KindPeriodSlices, Period: period}}, r.err
}

type fakeDetails struct {
	got []DetailRequest
	err error
}

func (d *fakeDetails) Detail(_ context.Context, skill, region, period string) (slicer.Detail, error) {
	d.got = append(d.got, DetailRequest{Skill: skill, Region: region, Period: period})
	if d.err != nil {
		return slicer.Detail{}, d.err
	}
	return slicer.Detail{Skill: skill, Region: region, Period: period}, nil
}

func newTestHandler(r Runner, d DetailService) *Handler {
	h := NewHandler(zap.NewNop(), nil, r, d, "trends.aggregate", "trends.detail", "trends", time.Minute)
	h.now = func() time.Time { return now }
	return h
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		calls   []string
		reports int
	}{
		{"empty body runs everything", "", []string{KindAll}, 2},
		{"skill trends only", `{"kind":"skill-trends"}`, []string{KindSkillTrends}, 1},
		{"one period", `{"kind":"period-slices","period":"2025-W40"}`, []string{KindPeriodSlices}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			resp := newTestHandler(r, &fakeDetails{}).Trigger(context.Background(), []byte(tt.payload))
			assert.Empty(t, resp.Error)
			assert.Equal(t, tt.calls, r.calls)
			assert.Len(t, resp.Reports, tt.reports)
		})
	}
}

func TestTriggerPassesPeriod(t *testing.T) {
	r := &fakeRunner{}
	newTestHandler(r, &fakeDetails{}).Trigger(context.Background(), []byte(`{"period":"2025-11-01"}`))
	assert.Equal(t, []string{"2025-11-01"}, r.periods)
}

func TestTriggerErrors(t *testing.T) {
	h := newTestHandler(&fakeRunner{}, &fakeDetails{})

	resp := h.Trigger(context.Background(), []byte(`{`))
	assert.Equal(t, errors.ErrTypeInvalidInput, resp.Code)

	resp = h.Trigger(context.Background(), []byte(`{"kind":"monthly"}`))
	assert.Equal(t, errors.ErrTypeInvalidInput, resp.Code)

	r := &fakeRunner{err: errors.Partial("skill_trend_slices: 1 of 2 chunks failed", fmt.Errorf("eof"))}
	resp = newTestHandler(r, &fakeDetails{}).Trigger(context.Background(), nil)
	assert.Equal(t, errors.ErrTypePartial, resp.Code)
	assert.Len(t, resp.Reports, 2)
}

func TestDetail(t *testing.T) {
	d := &fakeDetails{}
	h := newTestHandler(&fakeRunner{}, d)

	resp := h.Detail(context.Background(), []byte(`{"skill":"Go","region":"us","period":"2025-W45"}`))
	require.NotNil(t, resp.Detail)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []DetailRequest{{Skill: "Go", Region: "us", Period: "2025-W45"}}, d.got)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"technology":"Go"`)
}

func TestDetailErrors(t *testing.T) {
	h := newTestHandler(&fakeRunner{}, &fakeDetails{err: errors.InvalidInput("period is required", nil)})

	resp := h.Detail(context.Background(), []byte(`{"skill":"go"}`))
	assert.Nil(t, resp.Detail)
	assert.Equal(t, errors.ErrTypeInvalidInput, resp.Code)

	resp = h.Detail(context.Background(), []byte(`not json`))
	assert.Equal(t, errors.ErrTypeInvalidInput, resp.Code)
}

func TestReplySkipsMessagesWithoutInbox(t *testing.T) {
	h := newTestHandler(&fakeRunner{}, &fakeDetails{})
	assert.NotPanics(t, func() {
		h.reply(&nats.Msg{Subject: "trends.aggregate"}, Response{})
	})
}
