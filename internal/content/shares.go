package content

import (
	"strings"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/store"
	"vrhub/api/internal/util"
)

// Groups lists the owner's share groups. Default groups are internal
// anchors and never appear here.
func (s *Service) Groups(ownerID string) ([]store.ShareGroup, error) {
	groups := []store.ShareGroup{}
	err := s.store.Execute(func(tx *store.Tx) error {
		rows, err := store.ShareGroups.Find(tx, func(g store.ShareGroup) bool {
			return g.OwnerID == ownerID && !g.Default
		})
		if err != nil {
			return err
		}
		groups = rows
		return nil
	})
	return groups, err
}

func (s *Service) CreateGroup(ownerID, name string) (store.ShareGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.ShareGroup{}, apperr.Validation("Name is required")
	}
	group := store.ShareGroup{
		ID:        util.NewID(),
		OwnerID:   ownerID,
		Name:      name,
		MemberIDs: []string{},
		CreatedAt: s.now(),
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		return store.ShareGroups.Insert(tx, group)
	})
	if err != nil {
		return store.ShareGroup{}, err
	}
	return group, nil
}

// DeleteGroup removes a non-default group and detaches it from every
// content item referencing it.
func (s *Service) DeleteGroup(ownerID, groupID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		g, err := s.ownedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		attached, err := store.Contents.Find(tx, func(c store.Content) bool {
			return containsString(c.ShareGroupIDs, g.ID)
		})
		if err != nil {
			return err
		}
		for _, c := range attached {
			c.ShareGroupIDs = removeString(c.ShareGroupIDs, g.ID)
			if err := store.Contents.Update(tx, c); err != nil {
				return err
			}
		}
		return store.ShareGroups.Delete(tx, g.ID)
	})
}

// AttachGroup requires the caller to own both the content and the group.
func (s *Service) AttachGroup(ownerID, contentID, groupID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		g, err := s.ownedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		if containsString(c.ShareGroupIDs, g.ID) {
			return nil
		}
		c.ShareGroupIDs = append(c.ShareGroupIDs, g.ID)
		return store.Contents.Update(tx, c)
	})
}

func (s *Service) DetachGroup(ownerID, contentID, groupID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		g, err := s.ownedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		c.ShareGroupIDs = removeString(c.ShareGroupIDs, g.ID)
		return store.Contents.Update(tx, c)
	})
}

func (s *Service) AddGroupMember(ownerID, groupID, userID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		g, err := s.ownedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		if _, found, err := store.Profiles.Get(tx, userID); err != nil {
			return err
		} else if !found {
			return apperr.NotFound("User not found")
		}
		if containsString(g.MemberIDs, userID) {
			return nil
		}
		g.MemberIDs = append(g.MemberIDs, userID)
		return store.ShareGroups.Update(tx, g)
	})
}

func (s *Service) RemoveGroupMember(ownerID, groupID, userID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		g, err := s.ownedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		g.MemberIDs = removeString(g.MemberIDs, userID)
		return store.ShareGroups.Update(tx, g)
	})
}

// SetSharedUsers replaces the content's directly-shared user list.
func (s *Service) SetSharedUsers(ownerID, contentID string, userIDs []string) error {
	if userIDs == nil {
		userIDs = []string{}
	}
	return s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		for _, id := range userIDs {
			if _, found, err := store.Profiles.Get(tx, id); err != nil {
				return err
			} else if !found {
				return apperr.NotFound("User not found")
			}
		}
		c.SharedUserIDs = userIDs
		c.UpdatedAt = s.now()
		return store.Contents.Update(tx, c)
	})
}

// ContentGroups lists the non-default groups attached to one content item.
func (s *Service) ContentGroups(ownerID, contentID string) ([]store.ShareGroup, error) {
	groups := []store.ShareGroup{}
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		for _, gid := range c.ShareGroupIDs {
			g, found, err := store.ShareGroups.Get(tx, gid)
			if err != nil {
				return err
			}
			if found && !g.Default {
				groups = append(groups, g)
			}
		}
		return nil
	})
	return groups, err
}

// AddSharedUser appends one user to the content's direct-share list.
func (s *Service) AddSharedUser(ownerID, contentID, userID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		if _, found, err := store.Profiles.Get(tx, userID); err != nil {
			return err
		} else if !found {
			return apperr.NotFound("User not found")
		}
		if containsString(c.SharedUserIDs, userID) {
			return nil
		}
		c.SharedUserIDs = append(c.SharedUserIDs, userID)
		c.UpdatedAt = s.now()
		return store.Contents.Update(tx, c)
	})
}

func (s *Service) RemoveSharedUser(ownerID, contentID, userID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		c.SharedUserIDs = removeString(c.SharedUserIDs, userID)
		c.UpdatedAt = s.now()
		return store.Contents.Update(tx, c)
	})
}

// ownedGroup resolves a non-default group owned by ownerID. Default groups
// are invisible to every group operation.
func (s *Service) ownedGroup(tx *store.Tx, ownerID, groupID string) (store.ShareGroup, error) {
	g, found, err := store.ShareGroups.Get(tx, groupID)
	if err != nil {
		return store.ShareGroup{}, err
	}
	if !found || g.OwnerID != ownerID || g.Default {
		return store.ShareGroup{}, apperr.NotFound("Share group not found")
	}
	return g, nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
