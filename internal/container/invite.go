package container

import (
	"crypto/hmac"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// Invite is a one-shot, expiring admission token for an org. The token
// is an HMAC under the org invites key, so only a party holding the org
// secrets can mint or validate one. The token itself is handed to the
// invitee out of band and is never persisted server side; only its
// metadata is.
type Invite struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`

	// Token is populated on creation and on successful validation. It
	// travels to the invitee, not to storage.
	Token []byte `json:"-"`
}

// inviteMessage builds the byte string the invite token authenticates:
// the invitee email, the invite id, and the expiry as a unix timestamp.
// Any change to one of them invalidates the token.
func inviteMessage(email, id string, expiresAt time.Time) []byte {
	msg := make([]byte, 0, len(email)+len(id)+20)
	msg = append(msg, email...)
	msg = append(msg, id...)
	msg = append(msg, strconv.FormatInt(expiresAt.Unix(), 10)...)
	return msg
}

// CreateInvite mints an invite for email valid for ttl. Requires the org
// to be unlocked; the invites key never leaves org secrets.
func (o *Org) CreateInvite(email string, ttl time.Duration) (*Invite, error) {
	o.mu.Lock()
	key := o.invitesKey
	o.mu.Unlock()
	if key == nil {
		return nil, model.ErrInsufficientPermissions
	}
	if email == "" {
		return nil, model.NewError(model.CodeInvalidRequest, "invite email is empty")
	}
	if ttl <= 0 {
		return nil, model.NewError(model.CodeInvalidRequest, "invite ttl must be positive")
	}

	inv := &Invite{
		ID:        uuid.NewString(),
		OrgID:     o.Container.ID(),
		Email:     email,
		ExpiresAt: time.Now().Add(ttl).Truncate(time.Second),
	}
	inv.Token = o.provider.HMAC(key, inviteMessage(inv.Email, inv.ID, inv.ExpiresAt))
	return inv, nil
}

// ValidateInvite recomputes the invite token and compares it to proof in
// constant time. Expiry and reuse both surface as InviteExpired so a
// caller cannot probe which one tripped.
func (o *Org) ValidateInvite(inv *Invite, proof []byte) error {
	o.mu.Lock()
	key := o.invitesKey
	o.mu.Unlock()
	if key == nil {
		return model.ErrInsufficientPermissions
	}

	if inv.Used || time.Now().After(inv.ExpiresAt) {
		return model.ErrInviteExpired
	}

	want := o.provider.HMAC(key, inviteMessage(inv.Email, inv.ID, inv.ExpiresAt))
	if len(proof) == 0 || !hmac.Equal(want, proof) {
		return model.ErrAuthenticationFailed
	}
	return nil
}

// AcceptInvite validates the invite proof, marks the invite used, and
// enrolls the account as a member. The account email must match the
// invitee email.
func (o *Org) AcceptInvite(inv *Invite, proof []byte, account *AccountAccessor) error {
	if err := o.ValidateInvite(inv, proof); err != nil {
		return err
	}
	if account.Email != inv.Email {
		return model.ErrAuthenticationFailed
	}

	if err := o.AddMember(account); err != nil {
		return err
	}
	inv.Used = true
	return nil
}
