package formstore

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"

	"github.com/kapu/formsmith-server-go/internal/config"
)

var (
	// ErrFormNotFound 는 폼 미존재 오류다.
	ErrFormNotFound = errors.New("form not found")
	// ErrStoreDisabled 는 저장소 비활성 오류다.
	ErrStoreDisabled = errors.New("form store disabled")
)

type storeBackend int

const (
	storeBackendMemory storeBackend = iota
	storeBackendValkey
)

// Record 는 저장된 폼 한 건이다. Schema 는 교환 형태 JSON 그대로 보관한다.
type Record struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Title       string    `json:"title"`
	Schema      []byte    `json:"schema"`
	Warnings    []string  `json:"warnings,omitempty"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FormID 는 설명 텍스트에서 결정적 폼 ID를 만든다.
// 같은 설명은 항상 같은 폼을 가리킨다.
func FormID(description string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(description)))
	return hex.EncodeToString(sum[:])
}

// Store 는 Valkey 기반 폼 저장소다.
type Store struct {
	client   valkey.Client
	cfg      *config.Config
	enabled  bool
	backend  storeBackend
	compress bool

	mu        sync.RWMutex
	records   map[string]Record
	expiresAt map[string]time.Time
}

// NewStore 는 폼 저장소를 생성한다.
func NewStore(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if !cfg.FormStore.Enabled {
		if cfg.FormStore.Required {
			return nil, errors.New("form store required but disabled")
		}
		return newMemoryStore(cfg), nil
	}

	conn, err := parseStoreURL(cfg.FormStore.URL)
	if err != nil {
		return nil, fmt.Errorf("parse form store url: %w", err)
	}

	var tlsConfig *tls.Config
	if conn.useTLS {
		host, _, splitErr := net.SplitHostPort(conn.addr)
		if splitErr != nil {
			return nil, fmt.Errorf("parse form store addr: %w", splitErr)
		}
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		TLSConfig:    tlsConfig,
		Username:     conn.username,
		Password:     conn.password,
		InitAddress:  []string{conn.addr},
		SelectDB:     conn.selectDB,
		DisableCache: cfg.FormStore.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}

	return &Store{
		client:   client,
		cfg:      cfg,
		enabled:  true,
		backend:  storeBackendValkey,
		compress: cfg.FormStore.CompressionEnabled,
	}, nil
}

func newMemoryStore(cfg *config.Config) *Store {
	return &Store{
		cfg:       cfg,
		enabled:   true,
		backend:   storeBackendMemory,
		records:   make(map[string]Record),
		expiresAt: make(map[string]time.Time),
	}
}

// IsEnabled 는 저장소 활성화 여부를 반환한다.
func (s *Store) IsEnabled() bool {
	return s.enabled
}

// Close 는 Valkey 연결을 종료한다.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.backend == storeBackendValkey && s.client != nil {
		s.client.Close()
	}
}

func (s *Store) formKey(formID string) string {
	return fmt.Sprintf("form:%s", formID)
}

func (s *Store) ttl() time.Duration {
	return time.Duration(s.cfg.FormStore.FormTTLHours) * time.Hour
}

// Save 는 폼 레코드를 저장한다. 같은 ID 는 덮어쓴다.
func (s *Store) Save(ctx context.Context, record Record) error {
	if !s.enabled {
		return ErrStoreDisabled
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if s.backend == storeBackendMemory {
		return s.saveMemory(record)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal form record: %w", err)
	}
	payload, err := s.encodePayload(data)
	if err != nil {
		return err
	}

	builder := s.client.B().Set().Key(s.formKey(record.ID)).Value(payload)
	var cmd valkey.Completed
	if ttl := s.ttl(); ttl > 0 {
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

// Get 는 폼 레코드를 조회한다.
func (s *Store) Get(ctx context.Context, formID string) (*Record, error) {
	if !s.enabled {
		return nil, ErrStoreDisabled
	}
	if s.backend == storeBackendMemory {
		return s.getMemory(formID)
	}

	cmd := s.client.B().Get().Key(s.formKey(formID)).Build()
	result, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("get form: %w", err)
	}

	data, err := decodePayload(result)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal form record: %w", err)
	}
	return &record, nil
}

// Delete 는 폼 레코드를 삭제한다.
func (s *Store) Delete(ctx context.Context, formID string) error {
	if !s.enabled {
		return ErrStoreDisabled
	}
	if s.backend == storeBackendMemory {
		return s.deleteMemory(formID)
	}

	cmd := s.client.B().Del().Key(s.formKey(formID)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil && !valkey.IsValkeyNil(err) {
		return fmt.Errorf("delete form: %w", err)
	}
	return nil
}

// List 는 저장된 폼 전체를 반환한다. 관리자 대시보드용이다.
// SCAN 기반으로 구현하여 O(N) 블로킹 KEYS 명령 대신 논블로킹 처리
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if !s.enabled {
		return nil, ErrStoreDisabled
	}
	if s.backend == storeBackendMemory {
		return s.listMemory(), nil
	}

	var keys []string
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match("form:*").Count(100).Build()
		result, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan forms: %w", err)
		}
		keys = append(keys, result.Elements...)
		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		formID := strings.TrimPrefix(key, "form:")
		record, err := s.Get(ctx, formID)
		if errors.Is(err, ErrFormNotFound) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// Count 는 저장된 폼 수를 반환한다.
func (s *Store) Count(ctx context.Context) (int, error) {
	if !s.enabled {
		return 0, nil
	}
	if s.backend == storeBackendMemory {
		return s.countMemory(), nil
	}

	var count int
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match("form:*").Count(100).Build()
		result, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return 0, fmt.Errorf("scan forms: %w", err)
		}
		count += len(result.Elements)
		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// Ping Valkey 연결 확인
func (s *Store) Ping(ctx context.Context) error {
	if !s.enabled {
		return ErrStoreDisabled
	}
	if s.backend == storeBackendMemory {
		return nil
	}

	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping valkey: %w", err)
	}
	return nil
}

func (s *Store) encodePayload(data []byte) (string, error) {
	if !s.compress {
		return string(data), nil
	}
	compressed, err := compressZstd(data)
	if err != nil {
		return "", err
	}
	return string(compressed), nil
}

// decodePayload 는 zstd 매직 넘버로 압축 여부를 판별해 복원한다.
// 압축 설정이 바뀌어도 기존 레코드를 읽을 수 있다.
func decodePayload(data []byte) ([]byte, error) {
	if isZstdFrame(data) {
		return decompressZstd(data)
	}
	return data, nil
}

func isZstdFrame(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd
}
