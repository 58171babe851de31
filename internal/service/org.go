package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/codec"
	"github.com/keysmith-dev/keysmith-server/internal/container"
	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// Org implements org, group, and invite persistence. Orgs arrive fully
// initialized from the client; the server verifies coarse membership and
// stores the serialized state opaquely. Cryptographic control (who can
// sign, who can unwrap) lives inside the state, not here.
type Org struct {
	orgStore    model.OrgStore
	groupStore  model.GroupStore
	inviteStore model.InviteStore
	logger      *logger.Logger
}

// NewOrg creates the org service.
func NewOrg(orgStore model.OrgStore, groupStore model.GroupStore, inviteStore model.InviteStore, logger *logger.Logger) *Org {
	return &Org{
		orgStore:    orgStore,
		groupStore:  groupStore,
		inviteStore: inviteStore,
		logger:      logger,
	}
}

// CreateOrg persists a client-initialized org. The creator must appear in
// the org's member list; an org no one belongs to is unrecoverable.
func (o *Org) CreateOrg(ctx context.Context, accountID uuid.UUID, data []byte) (model.StoredOrg, error) {
	state, id, err := decodeOrgState(data)
	if err != nil {
		return model.StoredOrg{}, err
	}

	if !stateHasMember(state, accountID) {
		return model.StoredOrg{}, model.ErrInsufficientPermissions
	}

	wrapped, err := wrapRecord(id.String(), recordKindOrg, data)
	if err != nil {
		return model.StoredOrg{}, err
	}

	stored, err := o.orgStore.Create(ctx, model.StoredOrg{
		ID:      id,
		Name:    state.Name,
		Version: 1,
		Data:    wrapped,
	})
	if err != nil {
		o.logger.Error("org service: failed to create org",
			"org_id", id,
			"error", err.Error())
		return model.StoredOrg{}, fmt.Errorf("failed to create org: %w", err)
	}
	stored.Data = data

	o.logger.Info("org service: org created",
		"org_id", stored.ID,
		"account_id", accountID)
	return stored, nil
}

// GetOrg returns a stored org to one of its members.
func (o *Org) GetOrg(ctx context.Context, accountID, orgID uuid.UUID) (model.StoredOrg, error) {
	stored, _, err := o.getForMember(ctx, accountID, orgID)
	return stored, err
}

// UpdateOrg replaces an org's state with optimistic version checking. The
// caller must be a member of the stored state; membership of the incoming
// state alone proves nothing.
func (o *Org) UpdateOrg(ctx context.Context, accountID, orgID uuid.UUID, version int16, data []byte) (model.StoredOrg, error) {
	stored, _, err := o.getForMember(ctx, accountID, orgID)
	if err != nil {
		return model.StoredOrg{}, err
	}

	if stored.Version != version {
		return model.StoredOrg{}, model.NewError(model.CodeInvalidRequest, "org version conflict")
	}

	state, id, err := decodeOrgState(data)
	if err != nil {
		return model.StoredOrg{}, err
	}
	if id != orgID {
		return model.StoredOrg{}, model.NewError(model.CodeInvalidRequest, "org id mismatch")
	}

	wrapped, err := wrapRecord(orgID.String(), recordKindOrg, data)
	if err != nil {
		return model.StoredOrg{}, err
	}

	stored.Name = state.Name
	stored.Data = wrapped
	stored.Version = version + 1
	stored, err = o.orgStore.Update(ctx, stored)
	if err != nil {
		return model.StoredOrg{}, fmt.Errorf("failed to update org: %w", err)
	}
	stored.Data = data

	o.logger.Info("org service: org updated",
		"org_id", orgID,
		"version", stored.Version)
	return stored, nil
}

// DeleteOrg removes an org and its dependent groups.
func (o *Org) DeleteOrg(ctx context.Context, accountID, orgID uuid.UUID) error {
	if _, _, err := o.getForMember(ctx, accountID, orgID); err != nil {
		return err
	}

	groups, err := o.groupStore.GetByOrgID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list org groups: %w", err)
	}
	for _, g := range groups {
		if err := o.groupStore.Delete(ctx, g.ID); err != nil {
			return fmt.Errorf("failed to delete group %s: %w", g.ID, err)
		}
	}

	if err := o.orgStore.Delete(ctx, orgID); err != nil {
		return fmt.Errorf("failed to delete org: %w", err)
	}

	o.logger.Info("org service: org deleted", "org_id", orgID)
	return nil
}

// CreateGroup persists a client-serialized group belonging to an org.
func (o *Org) CreateGroup(ctx context.Context, accountID, orgID uuid.UUID, data []byte) (model.StoredGroup, error) {
	if _, _, err := o.getForMember(ctx, accountID, orgID); err != nil {
		return model.StoredGroup{}, err
	}

	var state container.GroupState
	if err := codec.Unmarshal(data, &state); err != nil {
		return model.StoredGroup{}, model.NewError(model.CodeInvalidRequest, "group payload is not valid")
	}
	id, err := uuid.Parse(state.Container.ID)
	if err != nil {
		return model.StoredGroup{}, model.NewError(model.CodeInvalidRequest, "group id is not a uuid")
	}

	wrapped, err := wrapRecord(id.String(), recordKindGroup, data)
	if err != nil {
		return model.StoredGroup{}, err
	}

	stored, err := o.groupStore.Create(ctx, model.StoredGroup{
		ID:      id,
		OrgID:   orgID,
		Name:    state.Name,
		Version: 1,
		Data:    wrapped,
	})
	if err != nil {
		return model.StoredGroup{}, fmt.Errorf("failed to create group: %w", err)
	}
	stored.Data = data

	o.logger.Info("org service: group created",
		"org_id", orgID,
		"group_id", stored.ID)
	return stored, nil
}

// GetGroup returns a stored group to a member of its org.
func (o *Org) GetGroup(ctx context.Context, accountID, groupID uuid.UUID) (model.StoredGroup, error) {
	stored, err := o.groupStore.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.StoredGroup{}, model.NewError(model.CodeNotFound, "group not found")
		}
		return model.StoredGroup{}, fmt.Errorf("failed to get group: %w", err)
	}
	if _, _, err := o.getForMember(ctx, accountID, stored.OrgID); err != nil {
		return model.StoredGroup{}, err
	}

	payload, err := unwrapRecord(stored.Data, recordKindGroup)
	if err != nil {
		return model.StoredGroup{}, fmt.Errorf("group %s: %w", groupID, err)
	}
	stored.Data = payload
	return stored, nil
}

// ListGroups returns an org's groups to one of its members.
func (o *Org) ListGroups(ctx context.Context, accountID, orgID uuid.UUID) ([]model.StoredGroup, error) {
	if _, _, err := o.getForMember(ctx, accountID, orgID); err != nil {
		return nil, err
	}
	groups, err := o.groupStore.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	for i := range groups {
		payload, err := unwrapRecord(groups[i].Data, recordKindGroup)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", groups[i].ID, err)
		}
		groups[i].Data = payload
	}
	return groups, nil
}

// UpdateGroup replaces a group's state with optimistic version checking.
func (o *Org) UpdateGroup(ctx context.Context, accountID, groupID uuid.UUID, version int16, data []byte) (model.StoredGroup, error) {
	stored, err := o.GetGroup(ctx, accountID, groupID)
	if err != nil {
		return model.StoredGroup{}, err
	}

	if stored.Version != version {
		return model.StoredGroup{}, model.NewError(model.CodeInvalidRequest, "group version conflict")
	}

	var state container.GroupState
	if err := codec.Unmarshal(data, &state); err != nil {
		return model.StoredGroup{}, model.NewError(model.CodeInvalidRequest, "group payload is not valid")
	}
	if state.Container.ID != groupID.String() {
		return model.StoredGroup{}, model.NewError(model.CodeInvalidRequest, "group id mismatch")
	}

	wrapped, err := wrapRecord(groupID.String(), recordKindGroup, data)
	if err != nil {
		return model.StoredGroup{}, err
	}

	stored.Name = state.Name
	stored.Data = wrapped
	stored.Version = version + 1
	stored, err = o.groupStore.Update(ctx, stored)
	if err != nil {
		return model.StoredGroup{}, fmt.Errorf("failed to update group: %w", err)
	}
	stored.Data = data
	return stored, nil
}

// DeleteGroup removes a group.
func (o *Org) DeleteGroup(ctx context.Context, accountID, groupID uuid.UUID) error {
	stored, err := o.GetGroup(ctx, accountID, groupID)
	if err != nil {
		return err
	}
	if err := o.groupStore.Delete(ctx, stored.ID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	o.logger.Info("org service: group deleted", "group_id", groupID)
	return nil
}

// CreateInvite persists invite metadata minted by an org member. The
// invite token itself travels out of band and is never stored.
func (o *Org) CreateInvite(ctx context.Context, accountID, orgID uuid.UUID, data []byte) (model.StoredInvite, error) {
	if _, _, err := o.getForMember(ctx, accountID, orgID); err != nil {
		return model.StoredInvite{}, err
	}

	var inv container.Invite
	if err := codec.Unmarshal(data, &inv); err != nil {
		return model.StoredInvite{}, model.NewError(model.CodeInvalidRequest, "invite payload is not valid")
	}
	id, err := uuid.Parse(inv.ID)
	if err != nil {
		return model.StoredInvite{}, model.NewError(model.CodeInvalidRequest, "invite id is not a uuid")
	}
	if inv.OrgID != orgID.String() {
		return model.StoredInvite{}, model.NewError(model.CodeInvalidRequest, "invite org mismatch")
	}
	if inv.Email == "" || !inv.ExpiresAt.After(time.Now()) {
		return model.StoredInvite{}, model.NewError(model.CodeInvalidRequest, "invite email and future expiry are required")
	}

	wrapped, err := wrapRecord(id.String(), recordKindInvite, data)
	if err != nil {
		return model.StoredInvite{}, err
	}

	stored, err := o.inviteStore.Create(ctx, model.StoredInvite{
		ID:        id,
		OrgID:     orgID,
		Email:     inv.Email,
		Version:   1,
		Data:      wrapped,
		ExpiresAt: inv.ExpiresAt,
	})
	if err != nil {
		return model.StoredInvite{}, fmt.Errorf("failed to create invite: %w", err)
	}
	stored.Data = data

	o.logger.Info("org service: invite created",
		"org_id", orgID,
		"invite_id", stored.ID,
		"email", inv.Email)
	return stored, nil
}

// GetInvite returns invite metadata to the invited address.
func (o *Org) GetInvite(ctx context.Context, email string, inviteID uuid.UUID) (model.StoredInvite, error) {
	stored, err := o.inviteStore.GetByID(ctx, inviteID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.StoredInvite{}, model.NewError(model.CodeNotFound, "invite not found")
		}
		return model.StoredInvite{}, fmt.Errorf("failed to get invite: %w", err)
	}
	if stored.Email != email {
		return model.StoredInvite{}, model.NewError(model.CodeNotFound, "invite not found")
	}

	payload, err := unwrapRecord(stored.Data, recordKindInvite)
	if err != nil {
		return model.StoredInvite{}, fmt.Errorf("invite %s: %w", inviteID, err)
	}
	stored.Data = payload
	return stored, nil
}

// AcceptInvite consumes an invite on behalf of the invited account. The
// invite becomes unusable immediately; the admitting admin completes the
// membership on the next org update.
func (o *Org) AcceptInvite(ctx context.Context, email string, inviteID uuid.UUID) (model.StoredInvite, error) {
	stored, err := o.GetInvite(ctx, email, inviteID)
	if err != nil {
		return model.StoredInvite{}, err
	}

	if stored.Used || time.Now().After(stored.ExpiresAt) {
		return model.StoredInvite{}, model.ErrInviteExpired
	}

	if err := o.inviteStore.MarkUsed(ctx, stored.ID); err != nil {
		return model.StoredInvite{}, fmt.Errorf("failed to mark invite used: %w", err)
	}
	stored.Used = true

	o.logger.Info("org service: invite accepted",
		"invite_id", inviteID,
		"email", email)
	return stored, nil
}

func (o *Org) getForMember(ctx context.Context, accountID, orgID uuid.UUID) (model.StoredOrg, container.OrgState, error) {
	stored, err := o.orgStore.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.StoredOrg{}, container.OrgState{}, model.NewError(model.CodeNotFound, "org not found")
		}
		return model.StoredOrg{}, container.OrgState{}, fmt.Errorf("failed to get org: %w", err)
	}

	payload, err := unwrapRecord(stored.Data, recordKindOrg)
	if err != nil {
		return model.StoredOrg{}, container.OrgState{}, fmt.Errorf("org %s: %w", orgID, err)
	}
	stored.Data = payload

	var state container.OrgState
	if err := codec.Unmarshal(stored.Data, &state); err != nil {
		return model.StoredOrg{}, container.OrgState{}, fmt.Errorf("failed to decode org state: %w", err)
	}
	if !stateHasMember(state, accountID) {
		return model.StoredOrg{}, container.OrgState{}, model.ErrInsufficientPermissions
	}
	return stored, state, nil
}

func stateHasMember(state container.OrgState, accountID uuid.UUID) bool {
	for _, m := range state.Members {
		if m.ID == accountID.String() {
			return true
		}
	}
	return false
}

func decodeOrgState(data []byte) (container.OrgState, uuid.UUID, error) {
	var state container.OrgState
	if err := codec.Unmarshal(data, &state); err != nil {
		return container.OrgState{}, uuid.Nil, model.NewError(model.CodeInvalidRequest, "org payload is not valid")
	}
	id, err := uuid.Parse(state.Container.ID)
	if err != nil {
		return container.OrgState{}, uuid.Nil, model.NewError(model.CodeInvalidRequest, "org id is not a uuid")
	}
	return state, id, nil
}
