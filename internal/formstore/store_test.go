package formstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/kapu/formsmith-server-go/internal/config"
)

func newTestStore(t *testing.T, compress bool) (*Store, *miniredis.Miniredis) {
	mini := miniredis.RunT(t)
	cfg := &config.Config{
		FormStore: config.FormStoreConfig{
			URL:                "redis://" + mini.Addr(),
			Enabled:            true,
			DisableCache:       true,
			FormTTLHours:       1,
			CompressionEnabled: compress,
		},
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		mini.Close()
	})
	return store, mini
}

func testRecord(description string) Record {
	return Record{
		ID:          FormID(description),
		Description: description,
		Title:       "Test Form",
		Schema:      []byte(`{"title":"Test Form","fields":[{"name":"email","label":"Email","type":"email"}]}`),
		Warnings:    []string{"field list truncated to 1 entries"},
		Model:       "gemini-2.5-flash",
	}
}

func TestFormIDDeterministic(t *testing.T) {
	first := FormID("an RSVP form")
	second := FormID("  an RSVP form  ")
	if first != second {
		t.Fatalf("expected trimmed descriptions to map to same id")
	}
	if first == FormID("a different form") {
		t.Fatalf("expected different descriptions to map to different ids")
	}
	if len(first) != 64 {
		t.Fatalf("expected sha256 hex id, got %q", first)
	}
}

func TestNewStoreDisabled(t *testing.T) {
	cfg := &config.Config{
		FormStore: config.FormStoreConfig{Enabled: false, Required: true},
	}
	if _, err := NewStore(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewStoreMiniredisRequiresDisableCache(t *testing.T) {
	mini := miniredis.RunT(t)
	cfg := &config.Config{
		FormStore: config.FormStoreConfig{URL: "redis://" + mini.Addr(), Enabled: true, DisableCache: false},
	}
	if _, err := NewStore(cfg); err == nil {
		t.Fatalf("expected error")
	} else if !errors.Is(err, valkey.ErrNoCache) {
		t.Fatalf("expected valkey.ErrNoCache, got: %v", err)
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	cfg := &config.Config{
		FormStore: config.FormStoreConfig{Enabled: false, Required: false, FormTTLHours: 1},
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("expected memory store, got error: %v", err)
	}

	record := testRecord("a signup form")
	if err := store.Save(context.Background(), record); err != nil {
		t.Fatalf("save form: %v", err)
	}

	loaded, err := store.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if loaded.Title != "Test Form" || loaded.Description != "a signup form" {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	if loaded.CreatedAt.IsZero() || loaded.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps set")
	}

	records, err := store.List(context.Background())
	if err != nil || len(records) != 1 {
		t.Fatalf("unexpected list: %v %v", records, err)
	}

	if err := store.Delete(context.Background(), record.ID); err != nil {
		t.Fatalf("delete form: %v", err)
	}
	if _, err := store.Get(context.Background(), record.ID); !errors.Is(err, ErrFormNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreCRUD(t *testing.T) {
	store, _ := newTestStore(t, false)

	record := testRecord("an RSVP form with name and email")
	if err := store.Save(context.Background(), record); err != nil {
		t.Fatalf("save form: %v", err)
	}

	loaded, err := store.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if loaded.ID != record.ID || loaded.Title != record.Title {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	if string(loaded.Schema) != string(record.Schema) {
		t.Fatalf("schema payload mismatch")
	}

	count, err := store.Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("unexpected count: %d %v", count, err)
	}

	if err := store.Delete(context.Background(), record.ID); err != nil {
		t.Fatalf("delete form: %v", err)
	}
	if _, err := store.Get(context.Background(), record.ID); !errors.Is(err, ErrFormNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreCompressedRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, true)

	record := testRecord("a long feedback form with many repeated field definitions")
	if err := store.Save(context.Background(), record); err != nil {
		t.Fatalf("save form: %v", err)
	}

	loaded, err := store.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if string(loaded.Schema) != string(record.Schema) {
		t.Fatalf("compressed schema payload mismatch")
	}
}

func TestStoreListAndPing(t *testing.T) {
	store, _ := newTestStore(t, false)

	if err := store.Save(context.Background(), testRecord("form one")); err != nil {
		t.Fatalf("save form: %v", err)
	}
	if err := store.Save(context.Background(), testRecord("form two")); err != nil {
		t.Fatalf("save form: %v", err)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list forms: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 forms, got %d", len(records))
	}

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}
