package usage

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	recorded []DailyUsage
	failWith error
	closed   bool
}

func (f *fakeStore) RecordUsage(_ context.Context, inputTokens, outputTokens, requestCount int64, usageDate time.Time) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.recorded = append(f.recorded, DailyUsage{
		UsageDate:    usageDate,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		RequestCount: requestCount,
	})
	return nil
}

func (f *fakeStore) GetDailyUsage(context.Context, time.Time) (*DailyUsage, error) {
	return nil, nil
}

func (f *fakeStore) GetRecentUsage(context.Context, int) ([]DailyUsage, error) {
	return nil, nil
}

func (f *fakeStore) GetTotalUsage(context.Context, int) (DailyUsage, error) {
	return DailyUsage{}, nil
}

func (f *fakeStore) Close() {
	f.closed = true
}

func TestRecorderRecords(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(store, nil)

	recorder.Record(context.Background(), 10, 20)
	if len(store.recorded) != 1 {
		t.Fatalf("expected one record, got %d", len(store.recorded))
	}
	if store.recorded[0].InputTokens != 10 || store.recorded[0].OutputTokens != 20 {
		t.Fatalf("unexpected record: %+v", store.recorded[0])
	}
	if store.recorded[0].RequestCount != 1 {
		t.Fatalf("expected request count 1, got %d", store.recorded[0].RequestCount)
	}
}

func TestRecorderSkipsZeroUsage(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(store, nil)

	recorder.Record(context.Background(), 0, 0)
	if len(store.recorded) != 0 {
		t.Fatalf("did not expect record for zero usage")
	}
}

func TestRecorderSwallowsStoreErrors(t *testing.T) {
	store := &fakeStore{failWith: errors.New("db down")}
	recorder := NewRecorder(store, nil)

	// 저장 실패는 패닉이나 오류 전파 없이 무시되어야 한다.
	recorder.Record(context.Background(), 5, 5)
}

func TestRecorderClose(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(store, nil)
	recorder.Close()
	if !store.closed {
		t.Fatalf("expected store closed")
	}
}

func TestDailyUsageTotalTokens(t *testing.T) {
	usage := DailyUsage{InputTokens: 3, OutputTokens: 4}
	if usage.TotalTokens() != 7 {
		t.Fatalf("unexpected total: %d", usage.TotalTokens())
	}
}
