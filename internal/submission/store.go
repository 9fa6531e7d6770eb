package submission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kapu/formsmith-server-go/internal/forms"
)

// ErrNoSubmissions 는 폼에 제출이 하나도 없을 때 반환된다.
var ErrNoSubmissions = errors.New("no submissions for form")

var formIDPattern = regexp.MustCompile(`^[a-f0-9]{16,64}$`)

// Submission 은 저장된 제출 한 건이다.
type Submission struct {
	ID          string            `json:"id"`
	FormID      string            `json:"form_id"`
	FormTitle   string            `json:"form_title"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Values      map[string]string `json:"values"`
}

// Store 는 폼별 CSV 파일에 제출을 추가 기록한다.
// 한 제출은 한 번의 write 로 기록되므로 동시 제출에도 행이 섞이지 않는다.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

// NewStore 는 제출 저장소를 생성하고 데이터 디렉터리를 준비한다.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("submission data dir is empty")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create submission data dir: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

// Append 는 검증이 끝난 제출 값을 폼의 CSV 파일에 추가한다.
// 파일이 없으면 스키마 필드 순서로 헤더를 먼저 쓴다.
func (s *Store) Append(formID string, schema forms.FormSchema, values map[string]string) (Submission, error) {
	path, err := s.filePath(formID)
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{
		ID:          uuid.NewString(),
		FormID:      formID,
		FormTitle:   schema.Title,
		SubmittedAt: time.Now().UTC(),
		Values:      values,
	}

	fieldNames := schema.FieldNames()
	row := make([]string, 0, len(fieldNames)+3)
	row = append(row, sub.ID, sub.SubmittedAt.Format(time.RFC3339), sub.FormTitle)
	for _, name := range fieldNames {
		row = append(row, values[name])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writeHeader := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		writeHeader = true
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Submission{}, fmt.Errorf("open submissions file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if writeHeader {
		header := append([]string{"submission_id", "submitted_at", "form_title"}, fieldNames...)
		if err := writer.Write(header); err != nil {
			return Submission{}, fmt.Errorf("write submissions header: %w", err)
		}
	}
	if err := writer.Write(row); err != nil {
		return Submission{}, fmt.Errorf("write submission row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return Submission{}, fmt.Errorf("flush submission row: %w", err)
	}

	return sub, nil
}

// List 는 폼의 제출 전체를 기록 순서대로 반환한다.
func (s *Store) List(formID string) ([]Submission, error) {
	path, err := s.filePath(formID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSubmissions
	}
	if err != nil {
		return nil, fmt.Errorf("open submissions file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoSubmissions
	}
	if err != nil {
		return nil, fmt.Errorf("read submissions header: %w", err)
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("malformed submissions header")
	}
	fieldNames := header[3:]

	submissions := make([]Submission, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read submission row: %w", err)
		}
		if len(row) < 3 {
			continue
		}

		submittedAt, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			continue
		}

		values := make(map[string]string, len(fieldNames))
		for i, name := range fieldNames {
			if 3+i < len(row) {
				values[name] = row[3+i]
			}
		}

		submissions = append(submissions, Submission{
			ID:          row[0],
			FormID:      formID,
			FormTitle:   row[2],
			SubmittedAt: submittedAt,
			Values:      values,
		})
	}

	return submissions, nil
}

// Count 는 폼의 제출 수를 반환한다.
func (s *Store) Count(formID string) (int, error) {
	submissions, err := s.List(formID)
	if errors.Is(err, ErrNoSubmissions) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(submissions), nil
}

// CSVSample 은 분석 프롬프트에 넣을 CSV 샘플을 만든다. maxRows 가 0 이하면
// 전체를 포함한다.
func (s *Store) CSVSample(formID string, maxRows int) (string, int, error) {
	submissions, err := s.List(formID)
	if err != nil {
		return "", 0, err
	}

	total := len(submissions)
	if maxRows > 0 && total > maxRows {
		submissions = submissions[total-maxRows:]
	}

	var builder strings.Builder
	writer := csv.NewWriter(&builder)
	if len(submissions) > 0 {
		// 필드 집합은 모든 행에서 같으므로 첫 제출의 키를 정렬해 헤더로 쓴다.
		names := make([]string, 0, len(submissions[0].Values))
		for name := range submissions[0].Values {
			names = append(names, name)
		}
		sort.Strings(names)
		if err := writer.Write(names); err != nil {
			return "", 0, fmt.Errorf("write sample header: %w", err)
		}
		for _, sub := range submissions {
			row := make([]string, 0, len(names))
			for _, name := range names {
				row = append(row, sub.Values[name])
			}
			if err := writer.Write(row); err != nil {
				return "", 0, fmt.Errorf("write sample row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", 0, fmt.Errorf("flush sample: %w", err)
	}

	return builder.String(), total, nil
}

func (s *Store) filePath(formID string) (string, error) {
	// 폼 ID 는 sha256 hex 다. 경로 조작을 막기 위해 형식을 강제한다.
	if !formIDPattern.MatchString(formID) {
		return "", fmt.Errorf("invalid form id %q", formID)
	}
	return filepath.Join(s.dataDir, formID+".csv"), nil
}
