package relay

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jmcateer/chatrelay/internal/auth"
	"github.com/jmcateer/chatrelay/internal/database"
	"github.com/jmcateer/chatrelay/internal/stats"
	"github.com/jmcateer/chatrelay/internal/types"
)

const messageTimeFormat = "2006-01-02 15:04:05"

const (
	metricMessagesPosted  = "relay_messages_posted_total"
	metricMessagesDrained = "relay_messages_drained_total"
	metricUnauthorized    = "relay_commands_unauthorized_total"
	metricStoreErrors     = "relay_store_errors_total"
	metricConnectedUsers  = "relay_connected_users"
)

const helpText = `Available commands:
  join <username>    Connect to the chat under the given username
  leave              Disconnect the current session
  post <message>     Send a message to the shared feed
  drain              Fetch messages you have not seen yet
  connected-users    List usernames currently marked connected
  help               Show this command reference`

// ChatRelay exposes the chat operations over one process-wide session. Every
// operation verifies the caller's credential first and returns a
// human-readable result string alongside a classifying error, so a failed
// command never takes the process down with it.
type ChatRelay struct {
	gate  *auth.Gate
	repo  database.ChatRepository
	stats stats.StatsProvider
	log   *log.Logger

	// opMu serializes operations so the session cursor never suffers a
	// lost update between concurrent drains.
	opMu    sync.Mutex
	session Session
}

func NewChatRelay(gate *auth.Gate, repo database.ChatRepository, statsProvider stats.StatsProvider, logger *log.Logger) *ChatRelay {
	statsProvider.RegisterCounter(metricMessagesPosted, "Messages stored through the post operation.")
	statsProvider.RegisterCounter(metricMessagesDrained, "Messages delivered through the drain operation.")
	statsProvider.RegisterCounter(metricUnauthorized, "Operations rejected by the command gate.")
	statsProvider.RegisterCounter(metricStoreErrors, "Operations aborted by a store failure.")
	statsProvider.RegisterGauge(metricConnectedUsers, "Connected users at the last connected-users query.")

	return &ChatRelay{
		gate:  gate,
		repo:  repo,
		stats: statsProvider,
		log:   logger,
	}
}

// Identity reports the joined username, or "" when no session is active.
// The stream listener uses it as the presence-track key.
func (r *ChatRelay) Identity() string {
	username, _ := r.session.Active()
	return username
}

// Join connects username to the chat and rewinds the session cursor.
func (r *ChatRelay) Join(username, credential string) (string, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := r.authorize(credential); err != nil {
		return "Authentication failed", err
	}

	username = normalizeUsername(username)
	if username == "" {
		return "Username cannot be empty", ErrEmptyInput
	}

	if _, err := r.repo.GetUser(username); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return r.storeFailure("connecting", err)
		}
		r.log.Printf("join: creating user %q", username)
	}

	if _, err := r.repo.UpsertUserConnected(username, true); err != nil {
		return r.storeFailure("connecting", err)
	}

	r.session.Activate(username)
	r.log.Printf("join: session active for %q", username)

	return fmt.Sprintf("Connected as '%s'", username), nil
}

// Leave disconnects the active session. The session survives a store failure
// so the caller can retry.
func (r *ChatRelay) Leave(credential string) (string, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := r.authorize(credential); err != nil {
		return "Authentication failed", err
	}

	username, ok := r.session.Active()
	if !ok {
		return "You are not connected", ErrNotConnected
	}

	if _, err := r.repo.UpsertUserConnected(username, false); err != nil {
		return r.storeFailure(fmt.Sprintf("disconnecting '%s'", username), err)
	}

	r.session.Clear()
	r.log.Printf("leave: session cleared for %q", username)

	return fmt.Sprintf("User '%s' disconnected from chat", username), nil
}

// Post stores a message under the joined username.
func (r *ChatRelay) Post(text, credential string) (string, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := r.authorize(credential); err != nil {
		return "Authentication failed", err
	}

	username, ok := r.session.Active()
	if !ok {
		return "You must join before sending messages", ErrNotConnected
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "Cannot send an empty message", ErrEmptyInput
	}

	connected, err := r.verifyConnected(username)
	if err != nil {
		return r.storeFailure("sending message", err)
	}
	if !connected {
		return "Your session is no longer connected, join again to continue", ErrNotConnected
	}

	msg, err := r.repo.CreateMessage(username, text)
	if err != nil {
		if errors.Is(err, database.ErrEmptyMessage) {
			return "Cannot send an empty message", ErrEmptyInput
		}
		return r.storeFailure("sending message", err)
	}

	r.stats.Incr(metricMessagesPosted)

	return "Message sent: " + msg.Content, nil
}

// Drain returns every message past the session cursor, oldest first, and
// advances the cursor to the newest id returned. The change stream is advisory
// only, the store query here is what the cursor contract is built on.
func (r *ChatRelay) Drain(credential string) (string, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := r.authorize(credential); err != nil {
		return "Authentication failed", err
	}

	username, ok := r.session.Active()
	if !ok {
		return "You must join before fetching messages", ErrNotConnected
	}

	connected, err := r.verifyConnected(username)
	if err != nil {
		return r.storeFailure("fetching messages", err)
	}
	if !connected {
		return "Your session is no longer connected, join again to continue", ErrNotConnected
	}

	messages, err := r.repo.GetMessagesAfter(r.session.Offset())
	if err != nil {
		return r.storeFailure("fetching messages", err)
	}
	if len(messages) == 0 {
		return "No new messages", nil
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			msg.CreatedAt.UTC().Format(messageTimeFormat), msg.Username, msg.Content))
		r.stats.Incr(metricMessagesDrained)
	}
	r.session.Advance(messages[len(messages)-1].Id)

	return strings.Join(lines, "\n"), nil
}

// ConnectedUsers lists the usernames currently marked connected in the store.
func (r *ChatRelay) ConnectedUsers(credential string) (string, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := r.authorize(credential); err != nil {
		return "Authentication failed", err
	}

	usernames, err := r.repo.GetConnectedUsernames()
	if err != nil {
		return r.storeFailure("fetching connected users", err)
	}

	r.stats.Set(metricConnectedUsers, float64(len(usernames)))

	if len(usernames) == 0 {
		return "No users are currently connected", nil
	}

	return fmt.Sprintf("Connected users (%d):\n%s", len(usernames), strings.Join(usernames, "\n")), nil
}

func (r *ChatRelay) Help(credential string) (string, error) {
	if err := r.authorize(credential); err != nil {
		return "Authentication failed", err
	}

	return helpText, nil
}

func (r *ChatRelay) About(credential string) (types.About, error) {
	if err := r.authorize(credential); err != nil {
		return types.About{}, err
	}

	return types.About{
		Name:        "chat-relay",
		Description: "Relay client for a shared chat feed: join, post, and drain messages backed by a realtime change stream.",
	}, nil
}

func (r *ChatRelay) authorize(credential string) error {
	if _, err := r.gate.Authorize(credential); err != nil {
		r.stats.Incr(metricUnauthorized)
		return err
	}

	return nil
}

// verifyConnected re-checks the store before post and drain, the session may
// have been disconnected by another path since join. A missing row counts as
// disconnected.
func (r *ChatRelay) verifyConnected(username string) (bool, error) {
	user, err := r.repo.GetUser(username)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return user.IsConnected, nil
}

// storeFailure converts an adapter error into the caller-facing result. The
// session is left exactly as it was.
func (r *ChatRelay) storeFailure(action string, err error) (string, error) {
	r.stats.Incr(metricStoreErrors)
	r.log.Printf("store failure while %s: %v", action, err)

	return fmt.Sprintf("Error %s: %v", action, err), fmt.Errorf("%s: %w", action, err)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
