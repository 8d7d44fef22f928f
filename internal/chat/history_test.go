package chat

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rcallen/chatd/internal/backend"
	"github.com/rcallen/chatd/internal/models"
)

// newEstimatingTrimmer consumes the lazy encoder init so counting always
// takes the chars/4 estimate, keeping the expected counts deterministic.
func newEstimatingTrimmer(budget int) *historyTrimmer {
	tr := newHistoryTrimmer(budget, zap.NewNop())
	tr.once.Do(func() {})
	return tr
}

func turnOf(role string, chars int) backend.Turn {
	return backend.Turn{Role: role, Content: strings.Repeat("a", chars)}
}

func TestTrimDisabled(t *testing.T) {
	tr := newEstimatingTrimmer(0)
	turns := []backend.Turn{turnOf(models.RoleUser, 400), turnOf(models.RoleAssistant, 400)}

	got := tr.trim(turns)
	if len(got) != len(turns) {
		t.Fatalf("zero budget trimmed %d of %d turns", len(turns)-len(got), len(turns))
	}
}

func TestTrimUnderBudget(t *testing.T) {
	tr := newEstimatingTrimmer(100)
	// 11 + 11 + 2 = 24 estimated tokens, well under budget.
	turns := []backend.Turn{
		turnOf(models.RoleUser, 40),
		turnOf(models.RoleAssistant, 40),
		turnOf(models.RoleUser, 4),
	}

	got := tr.trim(turns)
	if len(got) != 3 {
		t.Fatalf("under-budget history trimmed to %d turns", len(got))
	}
	for i := range turns {
		if got[i] != turns[i] {
			t.Errorf("turn %d changed: %+v", i, got[i])
		}
	}
}

func TestTrimDropsOldestFirst(t *testing.T) {
	tr := newEstimatingTrimmer(20)
	// 2 + 11 + 11 + 2 = 26 estimated tokens; dropping the oldest non-system
	// turn brings the total to 15.
	turns := []backend.Turn{
		turnOf(models.RoleSystem, 4),
		turnOf(models.RoleUser, 40),
		turnOf(models.RoleAssistant, 40),
		turnOf(models.RoleUser, 4),
	}

	got := tr.trim(turns)
	if len(got) != 3 {
		t.Fatalf("expected 3 turns kept, got %d: %+v", len(got), got)
	}
	wantRoles := []string{models.RoleSystem, models.RoleAssistant, models.RoleUser}
	for i, role := range wantRoles {
		if got[i].Role != role {
			t.Errorf("kept turn %d role = %q, want %q", i, got[i].Role, role)
		}
	}
}

func TestTrimKeepsSystemAndFinalTurn(t *testing.T) {
	tr := newEstimatingTrimmer(5)
	turns := []backend.Turn{
		turnOf(models.RoleSystem, 400),
		turnOf(models.RoleUser, 400),
		turnOf(models.RoleAssistant, 400),
		turnOf(models.RoleUser, 400),
	}

	got := tr.trim(turns)
	if len(got) != 2 {
		t.Fatalf("expected 2 turns kept, got %d", len(got))
	}
	if got[0].Role != models.RoleSystem {
		t.Errorf("system turn dropped: %+v", got[0])
	}
	if got[1] != turns[len(turns)-1] {
		t.Errorf("final turn not retained: %+v", got[1])
	}
}

func TestTokenEstimateFallback(t *testing.T) {
	tr := newEstimatingTrimmer(10)

	if got := tr.count("12345678"); got != 3 {
		t.Errorf("count = %d, want 3 (len/4+1 estimate)", got)
	}
	if got := tr.count(""); got != 1 {
		t.Errorf("count of empty string = %d, want 1", got)
	}
}
