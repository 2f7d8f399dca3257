package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/trackd/internal/model"
)

func TestExportJSONL_Empty(t *testing.T) {
	ms := newMockStore()
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.TicketCount != 0 || h.ProjectCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

// seedExport fills ms with one project holding two tickets, one comment and
// one collection of each kind.
func seedExport(ms *mockSource) {
	now := time.Now().UTC()
	ms.users["us-alice"] = &model.User{ID: "us-alice", Username: "alice", CreatedAt: now}
	ms.projects["pr-1"] = &model.Project{ID: "pr-1", Name: "Web", Key: "WEB", Status: model.StatusActive, CreatedAt: now}
	ms.teams["tm-1"] = &model.Team{ID: "tm-1", ProjectID: "pr-1", Name: "Core", Status: model.StatusActive, CreatedAt: now}
	ms.collections["sp-1"] = &model.Collection{ID: "sp-1", Kind: model.KindSprint, ProjectID: "pr-1", TeamID: "tm-1", Name: "Sprint 1", Tickets: []string{"tk-aaa"}}
	ms.collections["rl-1"] = &model.Collection{ID: "rl-1", Kind: model.KindRelease, ProjectID: "pr-1", Name: "v1"}
	ms.collections["tg-1"] = &model.Collection{ID: "tg-1", Kind: model.KindTag, ProjectID: "pr-1", Name: "ui"}

	// Added out of ID order to verify sorting; tk-zzz is soft-deleted.
	ms.tickets["tk-zzz"] = &model.Ticket{ID: "tk-zzz", DisplayID: "WEB-2", ProjectID: "pr-1", TeamID: "tm-1", Title: "Second", Status: model.StatusDeleted, CreatedAt: now}
	ms.tickets["tk-aaa"] = &model.Ticket{
		ID: "tk-aaa", DisplayID: "WEB-1", ProjectID: "pr-1", TeamID: "tm-1", Title: "First", Status: model.StatusActive,
		Sprints: []string{"sp-1"},
		Links:   []model.Link{{TicketID: "tk-zzz", Relation: model.RelationBlocks}},
	}
	ms.comments["tk-aaa"] = []*model.Comment{{ID: "cm-1", TicketID: "tk-aaa", Author: "us-alice", Content: "ping @us-alice", CreatedAt: now}}
}

func TestExportJSONL_Records(t *testing.T) {
	ms := newMockStore()
	seedExport(ms)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ms.ticketFilter.Deleted || ms.ticketFilter.Limit != 0 || ms.ticketFilter.ProjectID != "" {
		t.Fatalf("export should list every ticket, got filter %+v", ms.ticketFilter)
	}

	lines := nonEmptyLines(buf.String())
	var types []string
	for _, line := range lines[1:] {
		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		types = append(types, rec.Type)
	}
	// Collections come in sprint, release, tag order.
	want := []string{"user", "project", "team", "sprint", "release", "tag", "ticket", "ticket", "comment"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("record types = %v, want %v", types, want)
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.UserCount != 1 || h.ProjectCount != 1 || h.TeamCount != 1 || h.CollectionCount != 3 || h.TicketCount != 2 || h.CommentCount != 1 {
		t.Fatalf("unexpected header counts: %+v", h)
	}

	// Tickets are sorted by ID (tk-aaa before tk-zzz) and keep their links.
	first, second := decodeTicket(t, lines[7]), decodeTicket(t, lines[8])
	if first.ID != "tk-aaa" || second.ID != "tk-zzz" {
		t.Fatalf("tickets not sorted: got %q, %q", first.ID, second.ID)
	}
	if len(first.Links) != 1 || first.Links[0].Relation != model.RelationBlocks {
		t.Fatalf("links not exported: %+v", first.Links)
	}
	if second.Status != model.StatusDeleted {
		t.Fatalf("deleted ticket exported as %q", second.Status)
	}
}

func TestExportJSONL_NoHTMLEscaping(t *testing.T) {
	ms := newMockStore()
	ms.tickets["tk-1"] = &model.Ticket{ID: "tk-1", Title: "a <b> & c", Status: model.StatusActive}

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"a <b> & c"`) {
		t.Fatalf("title was escaped: %s", buf.String())
	}
}

func decodeTicket(t *testing.T, line string) model.Ticket {
	t.Helper()
	var rec struct {
		Type string       `json:"type"`
		Data model.Ticket `json:"data"`
	}
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("unmarshal ticket: %v", err)
	}
	if rec.Type != "ticket" {
		t.Fatalf("expected ticket record, got %q", rec.Type)
	}
	return rec.Data
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
