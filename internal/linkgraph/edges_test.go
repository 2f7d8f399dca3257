package linkgraph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/trackd/internal/model"
)

func TestSetLink(t *testing.T) {
	a := &model.Ticket{ID: "a"}
	b := &model.Ticket{ID: "b"}

	if err := SetLink(a, b, model.RelationBlocks); err != nil {
		t.Fatalf("SetLink: %v", err)
	}
	if diff := cmp.Diff([]model.Link{{TicketID: "b", Relation: model.RelationBlocks}}, a.Links); diff != "" {
		t.Errorf("a.Links (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Link{{TicketID: "a", Relation: model.RelationBlockedBy}}, b.Links); diff != "" {
		t.Errorf("b.Links (-want +got):\n%s", diff)
	}

	// Replacing never duplicates.
	if err := SetLink(a, b, model.RelationParentOf); err != nil {
		t.Fatalf("SetLink: %v", err)
	}
	if diff := cmp.Diff([]model.Link{{TicketID: "b", Relation: model.RelationParentOf}}, a.Links); diff != "" {
		t.Errorf("a.Links after replace (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Link{{TicketID: "a", Relation: model.RelationChildOf}}, b.Links); diff != "" {
		t.Errorf("b.Links after replace (-want +got):\n%s", diff)
	}
}

func TestSetLink_CollapsesDuplicates(t *testing.T) {
	a := &model.Ticket{ID: "a", Links: []model.Link{
		{TicketID: "b", Relation: model.RelationBlocks},
		{TicketID: "c", Relation: model.RelationRelatesTo},
		{TicketID: "b", Relation: model.RelationDuplicates},
	}}
	b := &model.Ticket{ID: "b"}
	if err := SetLink(a, b, model.RelationBlocks); err != nil {
		t.Fatalf("SetLink: %v", err)
	}
	want := []model.Link{
		{TicketID: "b", Relation: model.RelationBlocks},
		{TicketID: "c", Relation: model.RelationRelatesTo},
	}
	if diff := cmp.Diff(want, a.Links); diff != "" {
		t.Errorf("a.Links (-want +got):\n%s", diff)
	}
}

func TestSetLink_Refused(t *testing.T) {
	a := &model.Ticket{ID: "a"}
	if err := SetLink(a, a, model.RelationBlocks); !errors.Is(err, ErrSelfLink) {
		t.Errorf("self link err = %v, want ErrSelfLink", err)
	}
	b := &model.Ticket{ID: "b"}
	if err := SetLink(a, b, model.Relation(8)); !errors.Is(err, ErrInvalidRelation) {
		t.Errorf("invalid relation err = %v, want ErrInvalidRelation", err)
	}
	if len(a.Links) != 0 || len(b.Links) != 0 {
		t.Errorf("refused SetLink modified links: %v %v", a.Links, b.Links)
	}
}

func TestRemoveLink(t *testing.T) {
	a := &model.Ticket{ID: "a", Links: []model.Link{
		{TicketID: "b", Relation: model.RelationBlocks},
		{TicketID: "c", Relation: model.RelationBlocks},
		{TicketID: "b", Relation: model.RelationRelatesTo},
	}}
	b := &model.Ticket{ID: "b", Links: []model.Link{{TicketID: "a", Relation: model.RelationBlockedBy}}}
	RemoveLink(a, b)
	if diff := cmp.Diff([]model.Link{{TicketID: "c", Relation: model.RelationBlocks}}, a.Links); diff != "" {
		t.Errorf("a.Links (-want +got):\n%s", diff)
	}
	if len(b.Links) != 0 {
		t.Errorf("b.Links = %v, want empty", b.Links)
	}
}

func TestRelation(t *testing.T) {
	a := &model.Ticket{ID: "a", Links: []model.Link{{TicketID: "b", Relation: model.RelationChildOf}}}
	if r, ok := Relation(a, "b"); !ok || r != model.RelationChildOf {
		t.Errorf("Relation(a, b) = %v, %v", r, ok)
	}
	if _, ok := Relation(a, "z"); ok {
		t.Error("Relation(a, z) found a link")
	}
}
