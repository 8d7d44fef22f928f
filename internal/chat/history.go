package chat

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/rcallen/chatd/internal/backend"
	"github.com/rcallen/chatd/internal/models"
)

// historyTrimmer keeps the prompt context inside a token budget by
// dropping the oldest non-system turns. A budget of zero disables
// trimming. The encoder loads lazily on first use; when it cannot load,
// a rough chars/4 estimate keeps the budget enforced anyway.
type historyTrimmer struct {
	budget int
	log    *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func newHistoryTrimmer(budget int, log *zap.Logger) *historyTrimmer {
	return &historyTrimmer{budget: budget, log: log}
}

func (t *historyTrimmer) trim(turns []backend.Turn) []backend.Turn {
	if t.budget <= 0 {
		return turns
	}

	counts := make([]int, len(turns))
	total := 0
	for i, turn := range turns {
		counts[i] = t.count(turn.Content)
		total += counts[i]
	}
	if total <= t.budget {
		return turns
	}

	// Drop oldest first, keeping system turns and always keeping the
	// final turn (the message being sent).
	kept := make([]backend.Turn, 0, len(turns))
	for i, turn := range turns {
		if turn.Role == models.RoleSystem || i == len(turns)-1 {
			kept = append(kept, turn)
			continue
		}
		if total > t.budget {
			total -= counts[i]
			continue
		}
		kept = append(kept, turn)
	}
	return kept
}

func (t *historyTrimmer) count(text string) int {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			t.log.Warn("token encoder unavailable, estimating token counts", zap.Error(err))
			return
		}
		t.enc = enc
	})
	if t.enc == nil {
		return len(text)/4 + 1
	}
	return len(t.enc.Encode(text, nil, nil))
}
