// Package mention resolves @username and #displayId references in ticket
// descriptions and comments.
//
// Content is stored in canonical form, where a user mention is @<userId> and
// a ticket mention is #<ticketId>. Canonical ids survive renames, so the
// display form (bold username, ticket hyperlink) is rebuilt on every read.
package mention

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// Phrase prefixes and the placeholders written for unresolved references.
const (
	UserPrefix    = "@"
	TicketPrefix  = "#"
	UnknownUser   = "@UNKNOWN"
	UnknownTicket = "#UNKNOWN"
)

// Lookup resolves mention targets. Implementations are already scoped to a
// project and team; a miss is reported as store.ErrNotFound or a nil result.
type Lookup interface {
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	TicketByDisplayID(ctx context.Context, displayID string) (*model.Ticket, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	TicketByID(ctx context.Context, id string) (*model.Ticket, error)
}

// Notifier delivers a notification to a user. It is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userID string, n *model.Notification)
}

// Source describes where mentions were written, for the notification text.
type Source struct {
	TicketID  string
	CommentID string
	// Label names the place, e.g. "TICKET-3" or "a comment on TICKET-3".
	Label string
	Link  string
}

// Paths builds the hyperlink for a rendered ticket mention.
type Paths func(t *model.Ticket) string

// TicketPath is the default Paths: /projects/<p>/teams/<t>/tickets/<id>.
func TicketPath(t *model.Ticket) string {
	return "/projects/" + t.ProjectID + "/teams/" + t.TeamID + "/tickets/" + t.ID
}

// Resolver rewrites content between raw, canonical and display forms.
type Resolver struct {
	lookup   Lookup
	notifier Notifier
	policy   *bluemonday.Policy
}

// New creates a Resolver. notifier may be nil, in which case mentions are
// resolved without notifying anyone.
func New(lookup Lookup, notifier Notifier) *Resolver {
	return &Resolver{lookup: lookup, notifier: notifier, policy: DisplayPolicy()}
}

// DisplayPolicy returns the sanitizing policy applied to rendered content.
// Only <b> and <a href> survive.
func DisplayPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b")
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https")
	return p
}

// Canonicalize rewrites raw user content for storage. Known @username
// phrases become @<userId> and notify the mentioned user unless it is the
// actor; known #displayId phrases become #<ticketId>. Unknown references
// become @UNKNOWN or #UNKNOWN. It never fails: a lookup error is logged and
// treated as a miss.
func (r *Resolver) Canonicalize(ctx context.Context, content, actorID string, src Source) string {
	phrases := split(content)
	for i, p := range phrases {
		switch {
		case strings.HasPrefix(p, UserPrefix):
			u := r.userByUsername(ctx, p[len(UserPrefix):])
			if u == nil {
				phrases[i] = UnknownUser
				continue
			}
			phrases[i] = UserPrefix + u.ID
			if u.ID != actorID {
				r.notifyMention(ctx, u.ID, actorID, src)
			}
		case strings.HasPrefix(p, TicketPrefix):
			t := r.ticketByDisplayID(ctx, p[len(TicketPrefix):])
			if t == nil {
				phrases[i] = UnknownTicket
				continue
			}
			phrases[i] = TicketPrefix + t.ID
		}
	}
	return join(phrases)
}

// Render rewrites canonical content to its display form. Plain text is
// HTML-escaped, the result is passed through DisplayPolicy. paths may be nil.
func (r *Resolver) Render(ctx context.Context, content string, paths Paths) string {
	if paths == nil {
		paths = TicketPath
	}
	phrases := split(content)
	for i, p := range phrases {
		switch {
		case strings.HasPrefix(p, UserPrefix):
			u := r.userByID(ctx, p[len(UserPrefix):])
			if u == nil {
				phrases[i] = UnknownUser
				continue
			}
			phrases[i] = "<b>" + html.EscapeString(u.Username) + "</b>"
		case strings.HasPrefix(p, TicketPrefix):
			t := r.ticketByID(ctx, p[len(TicketPrefix):])
			if t == nil {
				phrases[i] = UnknownTicket
				continue
			}
			phrases[i] = fmt.Sprintf(`<a href="%s">%s</a>`,
				html.EscapeString(paths(t)), html.EscapeString(t.DisplayID))
		default:
			phrases[i] = html.EscapeString(p)
		}
	}
	return r.policy.Sanitize(join(phrases))
}

// Mentions returns the raw @ and # phrases of content in order.
func Mentions(content string) []string {
	var out []string
	for _, p := range split(content) {
		if strings.HasPrefix(p, UserPrefix) || strings.HasPrefix(p, TicketPrefix) {
			out = append(out, p)
		}
	}
	return out
}

// split tokenizes on single spaces. Runs of spaces yield empty phrases,
// which join restores unchanged.
func split(content string) []string {
	return strings.Split(content, " ")
}

func join(phrases []string) string {
	return strings.TrimSpace(strings.Join(phrases, " "))
}

func (r *Resolver) notifyMention(ctx context.Context, userID, actorID string, src Source) {
	if r.notifier == nil {
		return
	}
	where := src.Label
	if where == "" {
		where = "a ticket"
	}
	r.notifier.Notify(ctx, userID, &model.Notification{
		UserID:    userID,
		Kind:      model.NotifyMention,
		Actor:     actorID,
		TicketID:  src.TicketID,
		CommentID: src.CommentID,
		Message:   "you were mentioned in " + where,
		Link:      src.Link,
	})
}

func (r *Resolver) userByUsername(ctx context.Context, name string) *model.User {
	if name == "" {
		return nil
	}
	u, err := r.lookup.UserByUsername(ctx, name)
	return found(u, err, "username", name)
}

func (r *Resolver) userByID(ctx context.Context, id string) *model.User {
	if id == "" {
		return nil
	}
	u, err := r.lookup.UserByID(ctx, id)
	return found(u, err, "user_id", id)
}

func (r *Resolver) ticketByDisplayID(ctx context.Context, displayID string) *model.Ticket {
	if displayID == "" {
		return nil
	}
	t, err := r.lookup.TicketByDisplayID(ctx, displayID)
	return found(t, err, "display_id", displayID)
}

func (r *Resolver) ticketByID(ctx context.Context, id string) *model.Ticket {
	if id == "" {
		return nil
	}
	t, err := r.lookup.TicketByID(ctx, id)
	return found(t, err, "ticket_id", id)
}

func found[T any](v *T, err error, key, val string) *T {
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("mention lookup failed", key, val, "err", err)
		}
		return nil
	}
	return v
}
