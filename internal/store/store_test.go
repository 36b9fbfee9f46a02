package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenAppliesPragmas(t *testing.T) {
	st := newTestStore(t)

	err := st.Execute(func(tx *Tx) error {
		var mode string
		if err := tx.tx.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			return err
		}
		if mode != "wal" {
			t.Fatalf("want journal_mode wal, got %q", mode)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("pragma check: %v", err)
	}
}

func TestInsertGetUpdateDelete(t *testing.T) {
	st := newTestStore(t)

	acct := Account{ID: "a1", Handle: "alice", Email: "alice@example.com", Rank: RankUser, CreatedAt: time.Now().UTC()}
	err := st.Execute(func(tx *Tx) error {
		return Accounts.Insert(tx, acct)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = st.Execute(func(tx *Tx) error {
		got, found, err := Accounts.Get(tx, "a1")
		if err != nil {
			return err
		}
		if !found {
			t.Fatal("record not found after insert")
		}
		if got.Handle != "alice" {
			t.Fatalf("want alice, got %q", got.Handle)
		}
		got.Handle = "alicia"
		return Accounts.Update(tx, got)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = st.Execute(func(tx *Tx) error {
		got, _, err := Accounts.Get(tx, "a1")
		if err != nil {
			return err
		}
		if got.Handle != "alicia" {
			t.Fatalf("update not persisted: %q", got.Handle)
		}
		return Accounts.Delete(tx, "a1")
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	err = st.Execute(func(tx *Tx) error {
		_, found, err := Accounts.Get(tx, "a1")
		if err != nil {
			return err
		}
		if found {
			t.Fatal("record still present after delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("final read: %v", err)
	}
}

func TestDuplicateInsertFails(t *testing.T) {
	st := newTestStore(t)

	err := st.Execute(func(tx *Tx) error {
		return Accounts.Insert(tx, Account{ID: "a1", Handle: "alice"})
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = st.Execute(func(tx *Tx) error {
		return Accounts.Insert(tx, Account{ID: "a1", Handle: "other"})
	})
	if err == nil {
		t.Fatal("duplicate insert succeeded")
	}
}

func TestExecuteRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	boom := errors.New("boom")

	err := st.Execute(func(tx *Tx) error {
		if err := Accounts.Insert(tx, Account{ID: "a1", Handle: "alice"}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("want boom, got %v", err)
	}

	err = st.Execute(func(tx *Tx) error {
		_, found, err := Accounts.Get(tx, "a1")
		if err != nil {
			return err
		}
		if found {
			t.Fatal("insert survived a rolled-back closure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestFindAndDeleteWhere(t *testing.T) {
	st := newTestStore(t)

	err := st.Execute(func(tx *Tx) error {
		for _, s := range []Session{
			{ID: "s1", AccountID: "a1"},
			{ID: "s2", AccountID: "a1"},
			{ID: "s3", AccountID: "a2"},
		} {
			if err := Sessions.Insert(tx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = st.Execute(func(tx *Tx) error {
		mine, err := Sessions.Find(tx, func(s Session) bool { return s.AccountID == "a1" })
		if err != nil {
			return err
		}
		if len(mine) != 2 {
			t.Fatalf("want 2 sessions, got %d", len(mine))
		}
		n, err := Sessions.DeleteWhere(tx, func(s Session) bool { return s.AccountID == "a1" })
		if err != nil {
			return err
		}
		if n != 2 {
			t.Fatalf("want 2 deleted, got %d", n)
		}
		remaining, err := Sessions.All(tx)
		if err != nil {
			return err
		}
		if len(remaining) != 1 || remaining[0].ID != "s3" {
			t.Fatalf("unexpected remainder: %+v", remaining)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("find/delete: %v", err)
	}
}

func TestFriendshipCanonicalOrder(t *testing.T) {
	ab := NewFriendship("bob", "alice", time.Now())
	if ab.User1 != "alice" || ab.User2 != "bob" {
		t.Fatalf("pair not canonical: %+v", ab)
	}
	if ab.RecordID() != NewFriendship("alice", "bob", time.Now()).RecordID() {
		t.Fatal("record ids differ for the same pair")
	}
	if ab.Other("alice") != "bob" || ab.Other("bob") != "alice" || ab.Other("carol") != "" {
		t.Fatal("Other misbehaves")
	}
}
