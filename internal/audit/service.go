// Package audit keeps a tamper-evident activity log of seed, add, and export
// runs. Each event hashes the previous event's hash together with its own
// canonical JSON payload.
package audit

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

type Service struct {
	repo     storage.AuditRepository
	now      func() time.Time
	mu       sync.Mutex
	chainTip string
}

func NewService(ctx context.Context, repo storage.AuditRepository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("new audit service: repository is nil")
	}

	tip, err := repo.ChainTip(ctx)
	if err != nil {
		return nil, fmt.Errorf("new audit service: read chain tip: %w", err)
	}

	return &Service{
		repo:     repo,
		now:      time.Now,
		chainTip: tip,
	}, nil
}

func (s *Service) Record(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.Action) == "" {
		return fmt.Errorf("record audit event: action is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	event.Timestamp = event.Timestamp.UTC()
	if event.Result == "" {
		event.Result = ResultSuccess
	}

	details, err := canonicalizeDetails(event.Details)
	if err != nil {
		return fmt.Errorf("record audit event: canonicalize details: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := canonicalJSON(chainEvent{
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
		Result:     event.Result,
		Details:    details,
	})
	if err != nil {
		return fmt.Errorf("record audit event: canonical payload: %w", err)
	}

	hash := chainHashHex(s.chainTip, payload)
	entry := &storage.AuditEvent{
		Action:      event.Action,
		TargetType:  event.TargetType,
		TargetID:    event.TargetID,
		Result:      event.Result,
		DetailsJSON: string(details),
		PrevHash:    s.chainTip,
		EventHash:   hash,
		CreatedAt:   event.Timestamp,
	}
	if err := s.repo.AppendWithTip(ctx, entry, hash); err != nil {
		return fmt.Errorf("record audit event: append: %w", err)
	}
	s.chainTip = hash
	return nil
}

// Verify replays the whole chain and compares it against the stored tip. A
// broken chain is reported in the result, not as an error.
func (s *Service) Verify(ctx context.Context) (*VerifyResult, error) {
	events, err := s.repo.List(ctx, storage.AuditFilter{Limit: 1_000_000})
	if err != nil {
		return nil, fmt.Errorf("verify audit chain: list events: %w", err)
	}

	prev := ""
	for _, event := range events {
		payload, err := payloadForStoredEvent(event)
		if err != nil {
			return nil, fmt.Errorf("verify audit chain: event %s payload: %w", event.ID, err)
		}
		expected := chainHashHex(prev, payload)
		if subtle.ConstantTimeCompare([]byte(event.PrevHash), []byte(prev)) != 1 ||
			subtle.ConstantTimeCompare([]byte(event.EventHash), []byte(expected)) != 1 {
			return &VerifyResult{
				Valid:      false,
				EventCount: len(events),
				ChainTip:   prev,
				Error:      fmt.Sprintf("hash mismatch at event %s", event.ID),
			}, nil
		}
		prev = event.EventHash
	}

	storedTip, err := s.repo.ChainTip(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify audit chain: read chain tip: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(storedTip), []byte(prev)) != 1 {
		return &VerifyResult{
			Valid:      false,
			EventCount: len(events),
			ChainTip:   prev,
			Error:      "hash mismatch at chain tip",
		}, nil
	}

	return &VerifyResult{
		Valid:      true,
		EventCount: len(events),
		ChainTip:   prev,
	}, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]RecordedEvent, error) {
	events, err := s.repo.List(ctx, storage.AuditFilter{
		Action: filter.Action,
		Since:  filter.Since,
		Until:  filter.Until,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	out := make([]RecordedEvent, 0, len(events))
	for _, event := range events {
		out = append(out, RecordedEvent{
			ID:          event.ID,
			Timestamp:   event.CreatedAt,
			Action:      event.Action,
			TargetType:  event.TargetType,
			TargetID:    event.TargetID,
			Result:      event.Result,
			DetailsJSON: event.DetailsJSON,
			PrevHash:    event.PrevHash,
			EventHash:   event.EventHash,
		})
	}
	return out, nil
}

type chainEvent struct {
	Timestamp  string          `json:"timestamp"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	Result     string          `json:"result"`
	Details    json.RawMessage `json:"details"`
}

func payloadForStoredEvent(event storage.AuditEvent) ([]byte, error) {
	details := strings.TrimSpace(event.DetailsJSON)
	if details == "" {
		details = "{}"
	}
	if !json.Valid([]byte(details)) {
		return nil, fmt.Errorf("invalid details json")
	}

	return canonicalJSON(chainEvent{
		Timestamp:  event.CreatedAt.UTC().Format(time.RFC3339Nano),
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
		Result:     event.Result,
		Details:    json.RawMessage(details),
	})
}

func chainHashHex(prevHash string, canonicalPayload []byte) string {
	input := append([]byte(prevHash), canonicalPayload...)
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

func canonicalizeDetails(details any) (json.RawMessage, error) {
	if details == nil {
		return json.RawMessage(`{}`), nil
	}

	raw, err := canonicalJSON(details)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode details json: %w", err)
	}
	out, err := json.Marshal(stripSensitive(decoded))
	if err != nil {
		return nil, fmt.Errorf("encode details json: %w", err)
	}
	return json.RawMessage(out), nil
}

func stripSensitive(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clean := make(map[string]any, len(typed))
		for key, nested := range typed {
			if isSensitiveDetailKey(key) {
				continue
			}
			clean[key] = stripSensitive(nested)
		}
		return clean
	case []any:
		out := make([]any, 0, len(typed))
		for _, nested := range typed {
			out = append(out, stripSensitive(nested))
		}
		return out
	default:
		return value
	}
}

var sensitiveDetailPatterns = []string{
	"secret", "password", "token", "credential", "dsn", "api_key",
}

func isSensitiveDetailKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, pattern := range sensitiveDetailPatterns {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	return false
}

// canonicalJSON encodes a struct (or pointer to one) with sorted keys and no
// insignificant whitespace. Maps are rejected so callers always hash a typed
// payload.
func canonicalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("canonical json: value is nil")
	}

	root := reflect.ValueOf(v)
	for root.Kind() == reflect.Pointer {
		if root.IsNil() {
			return nil, fmt.Errorf("canonical json: nil pointer")
		}
		root = root.Elem()
	}
	if root.Kind() == reflect.Map {
		return nil, fmt.Errorf("canonical json: map input is not allowed")
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: marshal: %w", err)
	}

	// encoding/json writes map keys in sorted order, so a round trip through
	// a generic value yields the canonical form.
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("canonical json: unmarshal: %w", err)
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("canonical json: re-marshal: %w", err)
	}
	return out, nil
}
