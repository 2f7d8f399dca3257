package mention

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/trackd/internal/model"
)

type recordingNotifier struct {
	got []*model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, userID string, n *model.Notification) {
	if n.UserID != userID {
		panic("notification user mismatch")
	}
	r.got = append(r.got, n)
}

func (r *recordingNotifier) users() []string {
	var out []string
	for _, n := range r.got {
		out = append(out, n.UserID)
	}
	return out
}

func fixture() *Table {
	users := []*model.User{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "bob"},
	}
	tickets := []*model.Ticket{
		{ID: "t3", DisplayID: "TICKET-3", ProjectID: "p1", TeamID: "tm1"},
		{ID: "t4", DisplayID: "TICKET-4", ProjectID: "p1", TeamID: "tm1"},
	}
	return NewTable(users, tickets)
}

func TestCanonicalize(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		want    string
		notify  []string
	}{
		{"no mentions", "  just some text ", "just some text", nil},
		{"empty", "", "", nil},
		{"known user and ticket", "please see @alice about #TICKET-3", "please see @u1 about #t3", []string{"u1"}},
		{"unknown user and ticket", "@ghost says hi #TICKET-99", "@UNKNOWN says hi #UNKNOWN", nil},
		{"bare prefixes", "@ and #", "@UNKNOWN and #UNKNOWN", nil},
		{"self mention", "note to @bob", "note to @u2", nil},
		{"repeated mention", "@alice @alice", "@u1 @u1", []string{"u1", "u1"}},
		{"attached punctuation", "ping @alice,", "ping @UNKNOWN", nil},
		{"double space kept", "a  @alice", "a  @u1", []string{"u1"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			n := &recordingNotifier{}
			r := New(fixture(), n)
			got := r.Canonicalize(context.Background(), tc.content, "u2", Source{TicketID: "t4", Label: "TICKET-4"})
			if got != tc.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tc.content, got, tc.want)
			}
			if diff := cmp.Diff(tc.notify, n.users()); diff != "" {
				t.Errorf("notified users mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCanonicalize_NotificationFields(t *testing.T) {
	n := &recordingNotifier{}
	r := New(fixture(), n)
	r.Canonicalize(context.Background(), "@alice", "u2", Source{
		TicketID:  "t3",
		CommentID: "cm-1",
		Label:     "a comment on TICKET-3",
		Link:      "/projects/p1/teams/tm1/tickets/t3",
	})
	if len(n.got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(n.got))
	}
	got := n.got[0]
	if got.Kind != model.NotifyMention || got.Actor != "u2" || got.TicketID != "t3" || got.CommentID != "cm-1" {
		t.Errorf("unexpected notification %+v", got)
	}
	if !strings.Contains(got.Message, "a comment on TICKET-3") {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestCanonicalize_NilNotifier(t *testing.T) {
	r := New(fixture(), nil)
	if got := r.Canonicalize(context.Background(), "@alice", "u2", Source{}); got != "@u1" {
		t.Errorf("got %q, want @u1", got)
	}
}

func TestCanonicalize_ReResolveDegrades(t *testing.T) {
	r := New(fixture(), nil)
	ctx := context.Background()
	canon := r.Canonicalize(ctx, "see @alice and #TICKET-3", "u2", Source{})
	again := r.Canonicalize(ctx, canon, "u2", Source{})
	if again != "see @UNKNOWN and #UNKNOWN" {
		t.Errorf("re-resolved canonical content = %q", again)
	}
}

type failingLookup struct{ *Table }

func (failingLookup) UserByUsername(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestCanonicalize_LookupErrorIsMiss(t *testing.T) {
	r := New(failingLookup{fixture()}, nil)
	got := r.Canonicalize(context.Background(), "@alice #TICKET-3", "u2", Source{})
	if got != "@UNKNOWN #t3" {
		t.Errorf("got %q", got)
	}
}

func TestRender(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "hello world", "hello world"},
		{"user", "ask @u1", "ask <b>alice</b>"},
		{"ticket", "see #t3", `see <a href="/projects/p1/teams/tm1/tickets/t3">TICKET-3</a>`},
		{"unknown ids", "@nobody #t99", "@UNKNOWN #UNKNOWN"},
		{"markup escaped", "<script>alert(1)</script> @u2", "&lt;script&gt;alert(1)&lt;/script&gt; <b>bob</b>"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := New(fixture(), nil)
			if got := r.Render(context.Background(), tc.content, nil); got != tc.want {
				t.Errorf("Render(%q) = %q, want %q", tc.content, got, tc.want)
			}
		})
	}
}

func TestRender_CustomPaths(t *testing.T) {
	r := New(fixture(), nil)
	got := r.Render(context.Background(), "#t4", func(t *model.Ticket) string { return "/t/" + t.ID })
	if got != `<a href="/t/t4">TICKET-4</a>` {
		t.Errorf("got %q", got)
	}
}

func TestMentions(t *testing.T) {
	got := Mentions("see @alice about #TICKET-3 and email")
	want := []string{"@alice", "#TICKET-3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Mentions mismatch (-want +got):\n%s", diff)
	}
	if got := Mentions("nothing here"); got != nil {
		t.Errorf("Mentions(no refs) = %v, want nil", got)
	}
}

type scopedFinder struct{ *Table }

func (f scopedFinder) FindUserByUsername(ctx context.Context, name string) (*model.User, error) {
	return f.UserByUsername(ctx, name)
}
func (f scopedFinder) GetUser(ctx context.Context, id string) (*model.User, error) {
	return f.UserByID(ctx, id)
}
func (f scopedFinder) FindTicketByDisplayID(ctx context.Context, _ model.Scope, id string) (*model.Ticket, error) {
	return f.TicketByDisplayID(ctx, id)
}
func (f scopedFinder) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return f.TicketByID(ctx, id)
}

func TestScopedLookup_RejectsOtherTeam(t *testing.T) {
	l := ScopedLookup{Finder: scopedFinder{fixture()}, Scope: model.Scope{ProjectID: "p1", TeamID: "other"}}
	r := New(l, nil)
	if got := r.Render(context.Background(), "#t3", nil); got != "#UNKNOWN" {
		t.Errorf("Render across teams = %q, want #UNKNOWN", got)
	}

	l.Scope.TeamID = "tm1"
	r = New(l, nil)
	if got := r.Render(context.Background(), "@u1", nil); got != "<b>alice</b>" {
		t.Errorf("Render = %q", got)
	}
}
