package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

const (
	queueSize   = 64
	sendTimeout = 10 * time.Second
)

// Directory resolves the records an appeal notice refers to.
type Directory interface {
	Appeal(id string) (model.Appeal, bool)
	Member(id string) (model.Member, bool)
	User(id string) (model.User, bool)
}

// Notifier emails a tenant's admin whenever a member files an appeal.
// Notify runs under the ledger lock, so lookups and delivery happen on the
// Run goroutine.
type Notifier struct {
	client  *Client
	dir     Directory
	baseURL string
	queue   chan string
	logger  *slog.Logger
}

func NewNotifier(client *Client, dir Directory, baseURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		client:  client,
		dir:     dir,
		baseURL: baseURL,
		queue:   make(chan string, queueSize),
		logger:  logger.With("component", "email"),
	}
}

// Notify is a ledger.Observer. It never blocks; notices are dropped when the
// queue is full.
func (n *Notifier) Notify(c ledger.Change) {
	if c.Entity != "appeal" || c.Action != "created" {
		return
	}
	for _, id := range c.IDs {
		select {
		case n.queue <- id:
		default:
			n.logger.Warn("notification queue full, dropping appeal notice", "appeal_id", id)
		}
	}
}

// Run delivers queued notices until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-n.queue:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if err := n.send(sendCtx, id); err != nil {
				n.logger.Error("appeal notice failed", "appeal_id", id, "error", err)
			}
			cancel()
		}
	}
}

func (n *Notifier) send(ctx context.Context, appealID string) error {
	a, ok := n.dir.Appeal(appealID)
	if !ok {
		return fmt.Errorf("appeal %s no longer exists", appealID)
	}
	admin, ok := n.dir.User(a.AdminID)
	if !ok || admin.Email == "" {
		n.logger.Debug("admin has no email, skipping appeal notice", "appeal_id", a.ID, "admin_id", a.AdminID)
		return nil
	}
	memberName := a.MemberID
	if m, ok := n.dir.Member(a.MemberID); ok {
		memberName = m.Name
	}

	subject := fmt.Sprintf("New appeal from %s", memberName)
	text := fmt.Sprintf("%s appealed transaction %s.\n\nReason: %s\n", memberName, a.TransactionID, a.Reason)
	body := fmt.Sprintf("<p><strong>%s</strong> appealed transaction %s.</p><p>Reason: %s</p>",
		html.EscapeString(memberName), html.EscapeString(a.TransactionID), html.EscapeString(a.Reason))
	if n.baseURL != "" {
		link := n.baseURL + "/appeals?status=pending"
		text += "\nReview pending appeals: " + link + "\n"
		body += fmt.Sprintf(`<p><a href="%s">Review pending appeals</a></p>`, html.EscapeString(link))
	}

	if err := n.client.Send(ctx, admin.Email, subject, text, body); err != nil {
		return err
	}
	n.logger.Info("appeal notice sent", "appeal_id", a.ID, "admin_id", admin.ID)
	return nil
}
