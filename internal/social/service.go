// Package social is the friend/block graph engine.
package social

import (
	"context"
	"sort"
	"time"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/notify"
	"vrhub/api/internal/store"
	"vrhub/api/internal/util"
)

type Service struct {
	store *store.Store
	queue *notify.Queue
	now   func() time.Time
}

func NewService(st *store.Store, queue *notify.Queue) *Service {
	return &Service{store: st, queue: queue, now: time.Now}
}

// AddFriend advances the pair's state: no relation becomes a pending
// request, a counter-request becomes a friendship. The whole transition is
// one closure, so two racing counter-requests cannot double-accept.
func (s *Service) AddFriend(ctx context.Context, from, to string) (accepted bool, err error) {
	if from == to {
		return false, apperr.Validation("Cannot friend yourself")
	}
	var note *store.Notification
	err = s.store.Execute(func(tx *store.Tx) error {
		if _, found, err := store.Profiles.Get(tx, to); err != nil {
			return err
		} else if !found {
			return apperr.NotFound("User not found")
		}

		blocked, err := store.Blocks.Exists(tx, func(b store.Block) bool {
			return (b.UserID == from && b.BlockedID == to) || (b.UserID == to && b.BlockedID == from)
		})
		if err != nil {
			return err
		}
		if blocked {
			return apperr.Validation("Cannot friend blocked user")
		}

		key := store.NewFriendship(from, to, time.Time{}).RecordID()
		if _, found, err := store.Friendships.Get(tx, key); err != nil {
			return err
		} else if found {
			return apperr.Validation("Already friends")
		}

		now := s.now()
		// Counter-request: consume the pending row, insert the friendship.
		counter := store.FriendRequest{From: to, To: from}
		if _, found, err := store.FriendRequests.Get(tx, counter.RecordID()); err != nil {
			return err
		} else if found {
			if err := store.FriendRequests.Delete(tx, counter.RecordID()); err != nil {
				return err
			}
			if err := store.Friendships.Insert(tx, store.NewFriendship(from, to, now)); err != nil {
				return err
			}
			n := store.Notification{
				ID:          util.NewID(),
				Recipient:   to,
				SenderType:  "user",
				SenderID:    from,
				Title:       "Friend request accepted",
				Description: "Your friend request was accepted",
				CreatedAt:   now,
			}
			if err := store.Notifications.Insert(tx, n); err != nil {
				return err
			}
			note = &n
			accepted = true
			return nil
		}

		mine := store.FriendRequest{From: from, To: to, CreatedAt: now}
		if _, found, err := store.FriendRequests.Get(tx, mine.RecordID()); err != nil {
			return err
		} else if found {
			return apperr.Validation("Friend request already sent")
		}
		if err := store.FriendRequests.Insert(tx, mine); err != nil {
			return err
		}
		n := store.Notification{
			ID:          util.NewID(),
			Recipient:   to,
			SenderType:  "user",
			SenderID:    from,
			Title:       "Friend request",
			Description: "You received a friend request",
			CreatedAt:   now,
		}
		if err := store.Notifications.Insert(tx, n); err != nil {
			return err
		}
		note = &n
		return nil
	})
	if err != nil {
		return false, err
	}
	if note != nil {
		s.queue.Enqueue(ctx, notify.Message{
			Recipient:   note.Recipient,
			SenderType:  note.SenderType,
			SenderID:    note.SenderID,
			Title:       note.Title,
			Description: note.Description,
			CreatedAt:   note.CreatedAt,
		})
	}
	return accepted, nil
}

// RemoveFriend drops the friendship and any requests in either direction.
func (s *Service) RemoveFriend(userID, otherID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		key := store.NewFriendship(userID, otherID, time.Time{}).RecordID()
		if err := store.Friendships.Delete(tx, key); err != nil {
			return err
		}
		_, err := store.FriendRequests.DeleteWhere(tx, func(r store.FriendRequest) bool {
			return (r.From == userID && r.To == otherID) || (r.From == otherID && r.To == userID)
		})
		return err
	})
}

// Block toggles: a fresh block severs the friendship and both requests in
// the same closure; blocking again removes the block.
func (s *Service) Block(userID, targetID string) (blocked bool, err error) {
	if userID == targetID {
		return false, apperr.Validation("Cannot block yourself")
	}
	err = s.store.Execute(func(tx *store.Tx) error {
		if _, found, err := store.Profiles.Get(tx, targetID); err != nil {
			return err
		} else if !found {
			return apperr.NotFound("User not found")
		}

		rec := store.Block{UserID: userID, BlockedID: targetID}
		if _, found, err := store.Blocks.Get(tx, rec.RecordID()); err != nil {
			return err
		} else if found {
			return store.Blocks.Delete(tx, rec.RecordID())
		}

		rec.CreatedAt = s.now()
		if err := store.Blocks.Insert(tx, rec); err != nil {
			return err
		}
		key := store.NewFriendship(userID, targetID, time.Time{}).RecordID()
		if err := store.Friendships.Delete(tx, key); err != nil {
			return err
		}
		if _, err := store.FriendRequests.DeleteWhere(tx, func(r store.FriendRequest) bool {
			return (r.From == userID && r.To == targetID) || (r.From == targetID && r.To == userID)
		}); err != nil {
			return err
		}
		blocked = true
		return nil
	})
	return blocked, err
}

// UserView is a profile as one user sees another.
type UserView struct {
	ID            string    `json:"id"`
	Handle        string    `json:"handle"`
	DisplayName   string    `json:"displayName"`
	Bio           string    `json:"bio"`
	Status        string    `json:"status"`
	DoNotDisturb  bool      `json:"doNotDisturb"`
	LastActiveAt  time.Time `json:"lastActiveAt"`
	IsFriend      bool      `json:"isFriend"`
	Blocked       bool      `json:"blocked"`
	MutualFriends []string  `json:"mutualFriends"`
}

// User resolves a profile together with relationship state and mutual
// friend handles, as seen by viewerID.
func (s *Service) User(viewerID, targetID string) (*UserView, error) {
	var view UserView
	err := s.store.Execute(func(tx *store.Tx) error {
		prof, found, err := store.Profiles.Get(tx, targetID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("User not found")
		}
		view = UserView{
			ID:           prof.ID,
			Handle:       prof.Handle,
			DisplayName:  prof.DisplayName,
			Bio:          prof.Bio,
			Status:       prof.Status,
			DoNotDisturb: prof.DoNotDisturb,
			LastActiveAt: prof.LastActiveAt,
		}
		return s.decorate(tx, viewerID, &view)
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) decorate(tx *store.Tx, viewerID string, view *UserView) error {
	if viewerID == "" || viewerID == view.ID {
		view.MutualFriends = []string{}
		return nil
	}
	key := store.NewFriendship(viewerID, view.ID, time.Time{}).RecordID()
	if _, found, err := store.Friendships.Get(tx, key); err != nil {
		return err
	} else if found {
		view.IsFriend = true
	}
	blockRec := store.Block{UserID: viewerID, BlockedID: view.ID}
	if _, found, err := store.Blocks.Get(tx, blockRec.RecordID()); err != nil {
		return err
	} else if found {
		view.Blocked = true
	}
	mutual, err := s.mutualFriends(tx, viewerID, view.ID)
	if err != nil {
		return err
	}
	view.MutualFriends = mutual
	return nil
}

// mutualFriends intersects the two friend-id sets and resolves handles,
// skipping ids whose profile has gone away.
func (s *Service) mutualFriends(tx *store.Tx, a, b string) ([]string, error) {
	friendsOf := func(id string) (map[string]bool, error) {
		rows, err := store.Friendships.Find(tx, func(f store.Friendship) bool {
			return f.User1 == id || f.User2 == id
		})
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(rows))
		for _, f := range rows {
			set[f.Other(id)] = true
		}
		return set, nil
	}
	setA, err := friendsOf(a)
	if err != nil {
		return nil, err
	}
	setB, err := friendsOf(b)
	if err != nil {
		return nil, err
	}
	handles := []string{}
	for id := range setA {
		if !setB[id] {
			continue
		}
		prof, found, err := store.Profiles.Get(tx, id)
		if err != nil {
			return nil, err
		}
		if found {
			handles = append(handles, prof.Handle)
		}
	}
	sort.Strings(handles)
	return handles, nil
}

// Friends lists the viewer's friends as decorated views.
func (s *Service) Friends(userID string) ([]UserView, error) {
	views := []UserView{}
	err := s.store.Execute(func(tx *store.Tx) error {
		rows, err := store.Friendships.Find(tx, func(f store.Friendship) bool {
			return f.User1 == userID || f.User2 == userID
		})
		if err != nil {
			return err
		}
		for _, f := range rows {
			prof, found, err := store.Profiles.Get(tx, f.Other(userID))
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			view := UserView{
				ID:           prof.ID,
				Handle:       prof.Handle,
				DisplayName:  prof.DisplayName,
				Bio:          prof.Bio,
				Status:       prof.Status,
				DoNotDisturb: prof.DoNotDisturb,
				LastActiveAt: prof.LastActiveAt,
			}
			if err := s.decorate(tx, userID, &view); err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	return views, err
}

// FriendRequestView is an incoming or outgoing pending request.
type FriendRequestView struct {
	User      UserView  `json:"user"`
	Incoming  bool      `json:"incoming"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Service) FriendRequests(userID string) ([]FriendRequestView, error) {
	views := []FriendRequestView{}
	err := s.store.Execute(func(tx *store.Tx) error {
		rows, err := store.FriendRequests.Find(tx, func(r store.FriendRequest) bool {
			return r.From == userID || r.To == userID
		})
		if err != nil {
			return err
		}
		for _, r := range rows {
			other := r.From
			incoming := true
			if r.From == userID {
				other = r.To
				incoming = false
			}
			prof, found, err := store.Profiles.Get(tx, other)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			view := UserView{
				ID:           prof.ID,
				Handle:       prof.Handle,
				DisplayName:  prof.DisplayName,
				Bio:          prof.Bio,
				Status:       prof.Status,
				LastActiveAt: prof.LastActiveAt,
			}
			if err := s.decorate(tx, userID, &view); err != nil {
				return err
			}
			views = append(views, FriendRequestView{User: view, Incoming: incoming, CreatedAt: r.CreatedAt})
		}
		return nil
	})
	return views, err
}

// BlockedEither reports whether either side blocks the other.
func (s *Service) BlockedEither(a, b string) (bool, error) {
	var blocked bool
	err := s.store.Execute(func(tx *store.Tx) error {
		var err error
		blocked, err = store.Blocks.Exists(tx, func(rec store.Block) bool {
			return (rec.UserID == a && rec.BlockedID == b) || (rec.UserID == b && rec.BlockedID == a)
		})
		return err
	})
	return blocked, err
}
