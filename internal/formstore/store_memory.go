package formstore

import (
	"strings"
	"time"
)

// saveMemory 메모리 백엔드 폼 저장
func (s *Store) saveMemory(record Record) error {
	now := time.Now()
	expiresAt := s.computeExpiry(now)

	s.mu.Lock()
	s.pruneExpiredLocked(now)
	s.records[record.ID] = record
	if !expiresAt.IsZero() {
		s.expiresAt[record.ID] = expiresAt
	} else {
		delete(s.expiresAt, record.ID)
	}
	s.mu.Unlock()
	return nil
}

// getMemory 메모리 백엔드 폼 조회
func (s *Store) getMemory(formID string) (*Record, error) {
	if strings.TrimSpace(formID) == "" {
		return nil, ErrFormNotFound
	}

	now := time.Now()
	s.mu.Lock()
	s.pruneExpiredLocked(now)
	record, ok := s.records[formID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrFormNotFound
	}
	s.mu.Unlock()

	copied := record
	return &copied, nil
}

// deleteMemory 메모리 백엔드 폼 삭제
func (s *Store) deleteMemory(formID string) error {
	now := time.Now()
	s.mu.Lock()
	s.pruneExpiredLocked(now)
	delete(s.records, formID)
	delete(s.expiresAt, formID)
	s.mu.Unlock()
	return nil
}

// listMemory 메모리 백엔드 폼 목록
func (s *Store) listMemory() []Record {
	now := time.Now()
	s.mu.Lock()
	s.pruneExpiredLocked(now)
	records := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	s.mu.Unlock()
	return records
}

// countMemory 메모리 백엔드 폼 수 조회
func (s *Store) countMemory() int {
	now := time.Now()
	s.mu.Lock()
	s.pruneExpiredLocked(now)
	count := len(s.records)
	s.mu.Unlock()
	return count
}

// computeExpiry TTL 기반 만료 시간 계산
func (s *Store) computeExpiry(now time.Time) time.Time {
	ttl := time.Duration(0)
	if s != nil {
		ttl = s.ttl()
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// pruneExpiredLocked 만료된 폼 정리 (락 보유 상태에서 호출)
func (s *Store) pruneExpiredLocked(now time.Time) {
	for formID, expiresAt := range s.expiresAt {
		if expiresAt.IsZero() || now.Before(expiresAt) {
			continue
		}
		delete(s.expiresAt, formID)
		delete(s.records, formID)
	}
}
