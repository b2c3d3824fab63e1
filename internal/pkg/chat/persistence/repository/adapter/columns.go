package adapter

import (
	"fmt"

	"github.com/google/uuid"

	chat "go-hirechat/internal/pkg/chat/application/domain"
)

// sideColumns maps a conversation slot to its column names. Only these fixed
// names are ever interpolated into SQL.
type sideColumns struct {
	unread string
	notify string
}

func columnsFor(side chat.Side) sideColumns {
	s := string(side)
	return sideColumns{
		unread: "unread_" + s,
		notify: "notify_" + s,
	}
}

// flagColumn returns "<base>_a" / "<base>_b" pairs for the per-side boolean
// flags that callers may toggle directly.
func flagColumn(base string) (string, string, error) {
	switch base {
	case "pinned", "deleted":
		return base + "_a", base + "_b", nil
	}
	return "", "", fmt.Errorf("adapter: unknown side flag %q", base)
}

func newConversationID() string {
	return uuid.NewString()
}

// newMessageID returns a time-ordered id so (created_at, id) is a stable
// keyset for replay.
func newMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
