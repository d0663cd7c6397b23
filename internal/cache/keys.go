package cache

import (
	"fmt"
	"strings"

	"github.com/devedd/neurochat/internal/pagination"
)

var partEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key builds a logical cache key: namespace:part1:part2...
// Parts are escaped so distinct inputs never produce the same key.
func Key(namespace string, parts ...any) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(partEscaper.Replace(fmt.Sprint(p)))
	}
	return b.String()
}

// Namespace returns the first segment of a logical key.
func Namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

func listParts(p pagination.Params) []any {
	return []any{p.Page, p.Limit, p.SortBy, p.Order}
}

func AuthSessionKey(sessionKey string) string { return Key("session", sessionKey) }

func UserKey(userID string) string { return Key("user", userID) }

func UserMemoryKey(userID string) string { return Key("user", userID, "memory") }

const UsersListIndex = "users:list"

func UsersListKey(p pagination.Params) string {
	return Key("users", append([]any{"list"}, listParts(p)...)...)
}

func AdminUsersListKey(adminID string, p pagination.Params) string {
	return Key("admin", append([]any{adminID, "users", "list"}, listParts(p)...)...)
}

// ConversationKey is owner-scoped so a cached session is never served to another user.
func ConversationKey(userID, sessionID string) string {
	return Key("user", userID, "session", sessionID)
}

func UserSessionsIndex(userID string) string { return Key("user", userID, "sessions") }

func UserSessionsListKey(userID string, p pagination.Params) string {
	return Key("user", append([]any{userID, "sessions"}, listParts(p)...)...)
}

func MessageKey(messageID string) string { return Key("message", messageID) }

func SessionMessagesIndex(sessionID string) string { return Key("session", sessionID, "messages") }

func SessionMessagesListKey(sessionID string, p pagination.Params) string {
	return Key("session", append([]any{sessionID, "messages"}, listParts(p)...)...)
}
