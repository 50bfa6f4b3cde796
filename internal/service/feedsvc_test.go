package service

import (
	"context"
	"errors"
	"testing"

	"thinkflow/internal/domain"
)

func TestFeedService_ViewsAndStats(t *testing.T) {
	sync := newTestSync(t)
	ada := addUser(t, sync, "ada")
	bob := addUser(t, sync, "bob")
	befriend(t, sync, ada, bob)
	thoughts := &ThoughtsService{Sync: sync, Now: fixedNow}
	feed := &FeedService{Sync: sync}
	ctx := context.Background()

	pub, _ := thoughts.Create(ctx, bob.ID, "public", "Ideas")
	if _, err := thoughts.SetPublic(ctx, bob.ID, pub.ID, true); err != nil {
		t.Fatalf("SetPublic: %v", err)
	}
	shared, _ := thoughts.Create(ctx, bob.ID, "shared", "Urgent")
	if _, err := thoughts.SetSharedWith(ctx, bob.ID, shared.ID, []string{ada.ID}); err != nil {
		t.Fatalf("SetSharedWith: %v", err)
	}
	if _, err := thoughts.Create(ctx, bob.ID, "private", "Urgent"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := thoughts.Create(ctx, ada.ID, "mine", "Questions"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		view domain.View
		tag  domain.TagFilter
		want int
	}{
		{domain.ViewPersonal, domain.TagAll, 1},
		{domain.ViewPublic, domain.TagAll, 1},
		{domain.ViewFriends, domain.TagAll, 2},
		{domain.ViewFriends, domain.TagFilter(domain.TagUrgent), 1},
	}
	for _, tc := range cases {
		f, err := feed.Visible(ada.ID, tc.view, tc.tag)
		if err != nil {
			t.Fatalf("Visible(%s): %v", tc.view, err)
		}
		if len(f.Thoughts) != tc.want {
			t.Fatalf("view %s tag %s: expected %d thoughts, got %d", tc.view, tc.tag, tc.want, len(f.Thoughts))
		}
		if f.Version != sync.Latest().Version {
			t.Fatalf("expected feed version to match snapshot")
		}
	}

	stats, err := feed.Stats(bob.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Public != 1 || stats.ByTag[domain.TagUrgent] != 2 || stats.ByTag[domain.TagInspiration] != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	p, err := feed.Profile(bob.ID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.ThoughtCount != 3 || p.PublicCount != 1 || p.User.Username != "bob" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	if _, err := feed.Visible("ghost", domain.ViewPersonal, domain.TagAll); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown viewer, got %v", err)
	}
}

func TestUsersService_DirectoryAndProfile(t *testing.T) {
	sync := newTestSync(t)
	ada := addUser(t, sync, "ada")
	addUser(t, sync, "bob")
	addUser(t, sync, "Bobby")
	svc := &UsersService{Sync: sync}

	got, err := svc.Directory(ada.ID, "bob", 0)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if len(got) != 2 || got[0].Username != "bob" || got[1].Username != "Bobby" {
		t.Fatalf("unexpected directory: %+v", got)
	}

	name := "  Ada L.  "
	u, err := svc.UpdateProfile(context.Background(), ada.ID, &name, nil)
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Username != "Ada L." || user(t, sync, ada.ID).Username != "Ada L." {
		t.Fatalf("expected trimmed username persisted, got %q", u.Username)
	}

	empty := " "
	if _, err := svc.UpdateProfile(context.Background(), ada.ID, &empty, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
