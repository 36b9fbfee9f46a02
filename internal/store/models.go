package store

import "time"

const (
	RankUser      = "user"
	RankModerator = "moderator"
	RankAdmin     = "admin"
	RankDeveloper = "developer"
)

const (
	ContentAvatar   = "avatar"
	ContentProp     = "prop"
	ContentWorld    = "world"
	ContentGameMode = "gamemode"
)

func ValidContentType(t string) bool {
	switch t {
	case ContentAvatar, ContentProp, ContentWorld, ContentGameMode:
		return true
	}
	return false
}

type Account struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Verified     bool      `json:"verified"`
	VerifyCode   string    `json:"verifyCode,omitempty"`
	Rank         string    `json:"rank"`
	GameToken    string    `json:"gameToken"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (a Account) RecordID() string { return a.ID }

type Profile struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle"`
	DisplayName  string    `json:"displayName"`
	Bio          string    `json:"bio"`
	Status       string    `json:"status"`
	DoNotDisturb bool      `json:"doNotDisturb"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

func (p Profile) RecordID() string { return p.ID }

type Session struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	Device     string    `json:"device"`
	TokenID    string    `json:"tokenId"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

func (s Session) RecordID() string { return s.ID }

// JoinToken is keyed by account id: issuing a new one replaces the old.
type JoinToken struct {
	AccountID string    `json:"accountId"`
	Secret    string    `json:"secret"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (j JoinToken) RecordID() string { return j.AccountID }

type FriendRequest struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r FriendRequest) RecordID() string { return r.From + "/" + r.To }

// Friendship holds the unordered pair in canonical order (User1 < User2),
// so each pair has exactly one possible record id.
type Friendship struct {
	User1     string    `json:"user1"`
	User2     string    `json:"user2"`
	CreatedAt time.Time `json:"createdAt"`
}

func (f Friendship) RecordID() string { return f.User1 + "/" + f.User2 }

// NewFriendship canonicalizes the pair.
func NewFriendship(a, b string, at time.Time) Friendship {
	if b < a {
		a, b = b, a
	}
	return Friendship{User1: a, User2: b, CreatedAt: at}
}

// Other returns the friend of id, or "" when id is not part of the pair.
func (f Friendship) Other(id string) string {
	switch id {
	case f.User1:
		return f.User2
	case f.User2:
		return f.User1
	}
	return ""
}

type Block struct {
	UserID    string    `json:"userId"`
	BlockedID string    `json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b Block) RecordID() string { return b.UserID + "/" + b.BlockedID }

type Notification struct {
	ID          string    `json:"id"`
	Recipient   string    `json:"recipient"`
	SenderType  string    `json:"senderType"`
	SenderID    string    `json:"senderId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (n Notification) RecordID() string { return n.ID }

type Content struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"ownerId"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Type           string     `json:"type"`
	Public         bool       `json:"public"`
	WarningTags    []string   `json:"warningTags"`
	ActiveBundleID string     `json:"activeBundleId,omitempty"`
	BundleIDs      []string   `json:"bundleIds"`
	ShareGroupIDs  []string   `json:"shareGroupIds"`
	SharedUserIDs  []string   `json:"sharedUserIds"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	PublicAt       *time.Time `json:"publicAt,omitempty"`
}

func (c Content) RecordID() string { return c.ID }

// Bundle records are immutable once written.
type Bundle struct {
	ID        string    `json:"id"`
	ContentID string    `json:"contentId"`
	Key       string    `json:"key"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b Bundle) RecordID() string { return b.ID }

type ShareGroup struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Default   bool      `json:"default"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g ShareGroup) RecordID() string { return g.ID }

type Ticket struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	ContentID string    `json:"contentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t Ticket) RecordID() string { return t.ID }

type TicketMessage struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m TicketMessage) RecordID() string { return m.ID }

var (
	Accounts       = collection[Account]("accounts")
	Profiles       = collection[Profile]("profiles")
	Sessions       = collection[Session]("sessions")
	JoinTokens     = collection[JoinToken]("join_tokens")
	FriendRequests = collection[FriendRequest]("friend_requests")
	Friendships    = collection[Friendship]("friendships")
	Blocks         = collection[Block]("blocks")
	Notifications  = collection[Notification]("notifications")
	Contents       = collection[Content]("content")
	Bundles        = collection[Bundle]("bundles")
	ShareGroups    = collection[ShareGroup]("share_groups")
	Tickets        = collection[Ticket]("tickets")
	TicketMessages = collection[TicketMessage]("ticket_messages")
)
