package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pitchroom/pitchroom/pkg/core"
)

// Validation runs before any database work, so a zero store is enough.
func TestInsert_ValidatesBeforeTouchingDatabase(t *testing.T) {
	s := &CallStore{}

	_, err := s.Insert(context.Background(), CallRecord{AgentID: "   ", Duration: 10})
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrValidation {
		t.Fatalf("error = %v, want validation_error", err)
	}
	if coreErr.Param != "agent_id" {
		t.Fatalf("param = %q, want agent_id", coreErr.Param)
	}

	_, err = s.Insert(context.Background(), CallRecord{AgentID: "agent_1", Duration: -1})
	if !errors.As(err, &coreErr) || coreErr.Param != "duration" {
		t.Fatalf("error = %v, want validation_error on duration", err)
	}
}

func TestOpen_RejectsEmptyURL(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty database url")
	}
}
