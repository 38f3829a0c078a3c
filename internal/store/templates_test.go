package store

import (
	"testing"

	"contentforge/pkg/domain"
)

func TestTemplateVersioning(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateTemplate(domain.Template{
		Name:        "Product blurb",
		Prompt:      "Write about [TOPIC]",
		ContentType: domain.ContentProduct,
		SEOEnabled:  true,
	}, "editor-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned ID")
	}

	created.Prompt = "Write about [TOPIC] in [TONE] tone"
	updated, err := s.UpdateTemplate(created, "editor-2", "added tone placeholder")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Prompt != created.Prompt {
		t.Fatalf("updated prompt = %q", updated.Prompt)
	}

	versions, err := s.ListVersions(created.ID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	if versions[0].VersionNumber != 2 || !versions[0].IsActive {
		t.Fatalf("newest version = %+v", versions[0])
	}
	if versions[1].VersionNumber != 1 || versions[1].IsActive {
		t.Fatalf("old version should be inactive: %+v", versions[1])
	}

	restored, err := s.RestoreVersion(created.ID, 1, "admin-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Prompt != "Write about [TOPIC]" {
		t.Fatalf("restored prompt = %q", restored.Prompt)
	}
	versions, _ = s.ListVersions(created.ID)
	if len(versions) != 3 || versions[0].VersionNumber != 3 || !versions[0].IsActive {
		t.Fatalf("history after restore = %+v", versions)
	}

	if _, err := s.RestoreVersion(created.ID, 99, "admin-1"); err != ErrVersionConflict {
		t.Fatalf("restore missing version err = %v", err)
	}
}

func TestTemplateDelete(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateTemplate(domain.Template{
		Name:        "Social teaser",
		Prompt:      "Tease [TOPIC]",
		ContentType: domain.ContentSocial,
	}, "editor-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteTemplate(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTemplate(created.ID); err != ErrNotFound {
		t.Fatalf("get after delete err = %v", err)
	}
	versions, err := s.ListVersions(created.ID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("version history should be removed with the template")
	}
	if err := s.DeleteTemplate(999); err != ErrNotFound {
		t.Fatalf("delete missing err = %v", err)
	}
}

func TestListTemplatesOrdered(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"zeta", "alpha"} {
		if _, err := s.CreateTemplate(domain.Template{
			Name: name, Prompt: "p", ContentType: domain.ContentPost,
		}, "editor-1"); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	list, err := s.ListTemplates()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" {
		t.Fatalf("list = %+v", list)
	}
}
