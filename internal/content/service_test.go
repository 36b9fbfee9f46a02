package content

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/store"
	"vrhub/api/internal/util"
)

type fakeBlob struct {
	objects map[string][]byte
	deleted []string
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: map[string][]byte{}}
}

func (f *fakeBlob) UploadURL(_ context.Context, key string) (string, error) {
	return "https://blobs.test/upload/" + key, nil
}

func (f *fakeBlob) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlob) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlob) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeBlob) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	err = st.Execute(func(tx *store.Tx) error {
		for _, id := range []string{"owner", "friend", "stranger"} {
			p := store.Profile{ID: id, Handle: "h-" + id, CreatedAt: time.Now()}
			if err := store.Profiles.Insert(tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	blobs := newFakeBlob()
	return NewService(st, blobs, nil), blobs
}

func mustCreate(t *testing.T, s *Service, req CreateRequest) store.Content {
	t.Helper()
	item, err := s.Create("owner", req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return item
}

func TestCreateMakesDefaultGroup(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "Hat", Type: store.ContentProp})

	if len(item.ShareGroupIDs) != 1 {
		t.Fatalf("want one attached group, got %d", len(item.ShareGroupIDs))
	}

	groups, err := s.Groups("owner")
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("default group leaked into listing: %+v", groups)
	}
}

func TestCreateValidation(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.Create("owner", CreateRequest{Name: "", Type: store.ContentProp}); err == nil {
		t.Fatal("empty name accepted")
	}
	if _, err := s.Create("owner", CreateRequest{Name: "X", Type: "vehicle"}); err == nil {
		t.Fatal("bad content type accepted")
	}
}

func TestBundleVersionsAreMonotonic(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "World", Type: store.ContentWorld})
	ctx := context.Background()

	var bundles []store.Bundle
	for i := 0; i < 3; i++ {
		upd, err := s.UpdateBundle(ctx, "owner", item.ID, "key-"+util.NewID())
		if err != nil {
			t.Fatalf("update bundle %d: %v", i, err)
		}
		if upd.UploadURL == "" {
			t.Fatal("missing upload url")
		}
		bundles = append(bundles, upd.Bundle)
	}
	for i, b := range bundles {
		if b.Version != i+1 {
			t.Fatalf("bundle %d has version %d", i, b.Version)
		}
	}

	got, err := s.Get("owner", item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ActiveBundleID != bundles[2].ID {
		t.Fatal("active ref not repointed to newest bundle")
	}
	if len(got.BundleIDs) != 3 {
		t.Fatalf("history has %d entries", len(got.BundleIDs))
	}
}

func TestSetActiveBundleRejectsForeignBundle(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, s, CreateRequest{Name: "A", Type: store.ContentAvatar})
	b := mustCreate(t, s, CreateRequest{Name: "B", Type: store.ContentAvatar})

	updA, err := s.UpdateBundle(ctx, "owner", a.ID, "key-a")
	if err != nil {
		t.Fatalf("bundle a: %v", err)
	}
	updB, err := s.UpdateBundle(ctx, "owner", b.ID, "key-b")
	if err != nil {
		t.Fatalf("bundle b: %v", err)
	}

	if err := s.SetActiveBundle("owner", a.ID, updB.Bundle.ID); err == nil {
		t.Fatal("cross-content bundle accepted")
	}
	// Rolling back to an older own version is fine.
	if _, err := s.UpdateBundle(ctx, "owner", a.ID, "key-a2"); err != nil {
		t.Fatalf("second bundle: %v", err)
	}
	if err := s.SetActiveBundle("owner", a.ID, updA.Bundle.ID); err != nil {
		t.Fatalf("rollback to own bundle: %v", err)
	}
}

func TestGetKeyRequiresActiveBundle(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "Empty", Type: store.ContentProp})

	_, err := s.GetKey("owner", item.ID)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Status != 409 {
		t.Fatalf("want conflict, got %v", err)
	}

	upd, err := s.UpdateBundle(context.Background(), "owner", item.ID, "secret-key")
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	key, err := s.GetKey("owner", item.ID)
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if key != "secret-key" || upd.Bundle.Key != "secret-key" {
		t.Fatalf("wrong key %q", key)
	}
}

func TestVisibilityIndistinguishableFromMissing(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "Private", Type: store.ContentProp})

	hiddenErr := func(err error) string {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			t.Fatalf("unexpected error shape: %v", err)
		}
		if ae.Status != 404 {
			t.Fatalf("want 404, got %d", ae.Status)
		}
		return ae.Message
	}

	_, errStranger := s.Get("stranger", item.ID)
	_, errMissing := s.Get("stranger", "00000000-0000-0000-0000-000000000000")
	if hiddenErr(errStranger) != hiddenErr(errMissing) {
		t.Fatal("hidden and missing content are distinguishable")
	}

	if _, err := s.Get("", item.ID); err == nil {
		t.Fatal("anonymous saw private content")
	}
	if _, err := s.Get("owner", item.ID); err != nil {
		t.Fatalf("owner blocked from own content: %v", err)
	}
}

func TestVisibilityViaGroupAndDirectShare(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "Shared", Type: store.ContentAvatar})

	group, err := s.CreateGroup("owner", "testers")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := s.AddGroupMember("owner", group.ID, "friend"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := s.AttachGroup("owner", item.ID, group.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := s.Get("friend", item.ID); err != nil {
		t.Fatalf("group member blocked: %v", err)
	}
	if _, err := s.Get("stranger", item.ID); err == nil {
		t.Fatal("non-member saw content")
	}

	if err := s.SetSharedUsers("owner", item.ID, []string{"stranger"}); err != nil {
		t.Fatalf("direct share: %v", err)
	}
	if _, err := s.Get("stranger", item.ID); err != nil {
		t.Fatalf("directly-shared user blocked: %v", err)
	}

	if err := s.DetachGroup("owner", item.ID, group.ID); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if _, err := s.Get("friend", item.ID); err == nil {
		t.Fatal("member saw content after detach")
	}
}

func TestPublicVisibleToAnonymous(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "Open", Type: store.ContentWorld, Public: true})
	if _, err := s.Get("", item.ID); err != nil {
		t.Fatalf("anonymous blocked from public content: %v", err)
	}
	if item.PublicAt == nil {
		t.Fatal("publicAt not stamped")
	}
}

func TestDeleteRemovesBlobsFirstAndDefaultGroup(t *testing.T) {
	s, blobs := newTestService(t)
	ctx := context.Background()
	item := mustCreate(t, s, CreateRequest{Name: "Doomed", Type: store.ContentProp})

	for i := 0; i < 2; i++ {
		if _, err := s.UpdateBundle(ctx, "owner", item.ID, "k"); err != nil {
			t.Fatalf("bundle: %v", err)
		}
	}

	if err := s.Delete(ctx, "owner", item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Two bundles plus the thumbnail.
	if len(blobs.deleted) != 3 {
		t.Fatalf("want 3 blob deletes, got %d (%v)", len(blobs.deleted), blobs.deleted)
	}

	if _, err := s.Get("owner", item.ID); err == nil {
		t.Fatal("content survived delete")
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		groups, err := store.ShareGroups.All(tx)
		if err != nil {
			return err
		}
		if len(groups) != 0 {
			t.Fatalf("default group survived delete: %+v", groups)
		}
		bundles, err := store.Bundles.All(tx)
		if err != nil {
			return err
		}
		if len(bundles) != 0 {
			t.Fatalf("bundles survived delete: %+v", bundles)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("post-delete scan: %v", err)
	}
}

func TestDefaultGroupCannotBeTouched(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "Anchored", Type: store.ContentProp})
	defaultID := item.ShareGroupIDs[0]

	if err := s.DeleteGroup("owner", defaultID); err == nil {
		t.Fatal("default group deleted")
	}
	if err := s.DetachGroup("owner", item.ID, defaultID); err == nil {
		t.Fatal("default group detached")
	}
	if err := s.AddGroupMember("owner", defaultID, "friend"); err == nil {
		t.Fatal("member added to default group")
	}
}

func TestListFiltersSortsAndPages(t *testing.T) {
	s, _ := newTestService(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	s.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	mustCreate(t, s, CreateRequest{Name: "Zebra World", Type: store.ContentWorld, Public: true})
	mustCreate(t, s, CreateRequest{Name: "Apple World", Type: store.ContentWorld, Public: true})
	mustCreate(t, s, CreateRequest{Name: "Secret World", Type: store.ContentWorld})
	mustCreate(t, s, CreateRequest{Name: "Public Hat", Type: store.ContentProp, Public: true, WarningTags: []string{"flashy"}})

	resp, err := s.List("stranger", ListRequest{Type: store.ContentWorld})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("want 2 visible worlds, got %d", len(resp.Items))
	}
	// Default sort is newest first.
	if resp.Items[0].Name != "Apple World" {
		t.Fatalf("unexpected order: %s", resp.Items[0].Name)
	}

	resp, err = s.List("stranger", ListRequest{Type: store.ContentWorld, Sort: "name"})
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if resp.Items[0].Name != "Apple World" || resp.Items[1].Name != "Zebra World" {
		t.Fatal("name sort wrong")
	}

	resp, err = s.List("stranger", ListRequest{Tag: "flashy"})
	if err != nil {
		t.Fatalf("list by tag: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "Public Hat" {
		t.Fatalf("tag filter wrong: %+v", resp.Items)
	}

	resp, err = s.List("owner", ListRequest{Limit: 2})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if len(resp.Items) != 2 || !resp.HasMore {
		t.Fatalf("page 1 wrong: %d items hasMore=%v", len(resp.Items), resp.HasMore)
	}
	resp, err = s.List("owner", ListRequest{Limit: 2, Page: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(resp.Items) != 2 || resp.HasMore {
		t.Fatalf("page 2 wrong: %d items hasMore=%v", len(resp.Items), resp.HasMore)
	}
}

func TestUpdateMetadataTriState(t *testing.T) {
	s, _ := newTestService(t)
	item := mustCreate(t, s, CreateRequest{Name: "Thing", Description: "old", Type: store.ContentProp})

	upd := MetadataUpdate{}
	upd.Description.Set = true
	upd.Description.Null = true
	upd.Public.Set = true
	upd.Public.Value = true

	got, err := s.UpdateMetadata("owner", item.ID, upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Description != "" {
		t.Fatal("null did not clear description")
	}
	if got.Name != "Thing" {
		t.Fatal("absent field changed name")
	}
	if !got.Public || got.PublicAt == nil {
		t.Fatal("public flip not applied")
	}
}

func TestDownloadStreamsActiveBundle(t *testing.T) {
	s, blobs := newTestService(t)
	ctx := context.Background()
	item := mustCreate(t, s, CreateRequest{Name: "DL", Type: store.ContentProp, Public: true})

	upd, err := s.UpdateBundle(ctx, "owner", item.ID, "k")
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if err := s.UploadBundleData(ctx, "owner", item.ID, upd.Bundle.ID, bytes.NewReader([]byte("payload")), 7, "application/octet-stream"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(blobs.objects) != 1 {
		t.Fatal("blob not stored")
	}

	rc, name, err := s.Download(ctx, "stranger", item.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "payload" || name == "" {
		t.Fatalf("bad download: %q %q", data, name)
	}
}
