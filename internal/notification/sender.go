// Package notification delivers messages about committed ledger changes.
// Delivery is best effort and never reaches back into the ledgers.
package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

type Message struct {
	Template  string
	Recipient string
	Subject   string
	Body      string
	Data      map[string]interface{}
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const userPrefix = "user:"

// UserRecipient addresses the in-app inbox of a user.
func UserRecipient(userID int64) string {
	return userPrefix + strconv.FormatInt(userID, 10)
}

func parseUserRecipient(r string) (int64, error) {
	if !strings.HasPrefix(r, userPrefix) {
		return 0, fmt.Errorf("not a user recipient: %q", r)
	}
	return strconv.ParseInt(strings.TrimPrefix(r, userPrefix), 10, 64)
}

// Recorder keeps sent messages in memory. Err makes every send fail.
type Recorder struct {
	Err  error
	mu   sync.Mutex
	sent []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}
