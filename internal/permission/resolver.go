package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Stage string

const (
	StageOverrideGrant Stage = "override_grant"
	StageOverrideDeny  Stage = "override_deny"
	StageRoleGrant     Stage = "role_grant"
	StageDefaultDeny   Stage = "default_deny"
)

// Decision explains one resolution. GrantingRoleID is for diagnostics only and
// must not be echoed to end users.
type Decision struct {
	Allowed        bool                  `json:"allowed"`
	Capability     string                `json:"capability"`
	Stage          Stage                 `json:"stage"`
	GrantingRoleID int64                 `json:"-"`
	Mismatches     []TenantMismatchError `json:"-"`
	MissingRoleIDs []int64               `json:"-"`
}

// RoleGrants is the outcome of the role stage for a set of candidate roles.
type RoleGrants struct {
	Granted    map[int64]bool
	Names      map[int64]string
	Mismatches []TenantMismatchError
	Missing    []int64
}

func (g RoleGrants) Grants(roleID int64) bool {
	return g.Granted[roleID]
}

type Resolver struct {
	store  Store
	logger *slog.Logger
	cache  *expirable.LRU[string, Capability]
	now    func() time.Time
}

type ResolverOption func(*Resolver)

// WithCatalogCache caches catalog lookups. A size of zero disables caching.
func WithCatalogCache(size int, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if size <= 0 {
			r.cache = nil
			return
		}
		r.cache = expirable.NewLRU[string, Capability](size, nil, ttl)
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(store Store, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasCapability reports whether the principal holds capability ("module:action").
// A missing grant is false with a nil error.
func (r *Resolver) HasCapability(ctx context.Context, principal Principal, capability string) (bool, error) {
	decision, err := r.Resolve(ctx, principal, capability)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

func (r *Resolver) Resolve(ctx context.Context, principal Principal, capability string) (Decision, error) {
	if err := principal.Validate(); err != nil {
		return Decision{}, err
	}

	parsed, err := ParseCapability(capability)
	if err != nil {
		return Decision{}, err
	}

	if err := r.EnsureTenant(ctx, principal.TenantID); err != nil {
		return Decision{}, err
	}

	entry, err := r.LookupCapability(ctx, parsed.Module, parsed.Action)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{Capability: entry.Key()}
	log := r.logger.With("user_id", principal.UserID, "tenant_id", principal.TenantID, "capability", entry.Key())

	override, err := r.ActiveOverride(ctx, principal.UserID, entry.ID)
	if err != nil {
		return Decision{}, err
	}
	if override != nil {
		decision.Allowed = override.Allowed
		decision.Stage = StageOverrideDeny
		if override.Allowed {
			decision.Stage = StageOverrideGrant
		}
		log.Debug("capability resolved by override", "stage", decision.Stage)
		return decision, nil
	}

	roleIDs := principal.RoleIDs()
	grants, err := r.GrantedRoles(ctx, principal.TenantID, roleIDs, entry.ID)
	if err != nil {
		return Decision{}, err
	}
	decision.Mismatches = grants.Mismatches
	decision.MissingRoleIDs = grants.Missing

	for _, roleID := range roleIDs {
		if grants.Grants(roleID) {
			decision.Allowed = true
			decision.Stage = StageRoleGrant
			decision.GrantingRoleID = roleID
			log.Debug("capability resolved by role", "stage", decision.Stage, "role_id", roleID)
			return decision, nil
		}
	}

	decision.Stage = StageDefaultDeny
	log.Debug("capability denied", "stage", decision.Stage, "candidate_roles", len(roleIDs))
	return decision, nil
}

func (r *Resolver) EnsureTenant(ctx context.Context, tenantID int64) error {
	if tenantID == 0 {
		return ErrTenantRequired
	}
	exists, err := r.store.TenantExists(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("check tenant %d: %w", tenantID, err)
	}
	if !exists {
		return ErrTenantNotFound
	}
	return nil
}

// LookupCapability normalizes module and action and finds the catalog entry.
func (r *Resolver) LookupCapability(ctx context.Context, module, action string) (*Capability, error) {
	module, action = NormalizeName(module), NormalizeName(action)
	if module == "" || action == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCapability, module+":"+action)
	}

	key := module + ":" + action
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return &cached, nil
		}
	}

	entry, err := r.store.FindCapability(ctx, module, action)
	if err != nil {
		if errors.Is(err, ErrCapabilityNotFound) {
			r.logger.Warn("capability missing from catalog", "capability", key)
		}
		return nil, err
	}

	if r.cache != nil {
		r.cache.Add(key, *entry)
	}
	return entry, nil
}

// ActiveOverride returns the principal's non-expired override, or nil.
func (r *Resolver) ActiveOverride(ctx context.Context, userID, permissionID int64) (*Override, error) {
	now := r.now()
	override, err := r.store.FindActiveOverride(ctx, userID, permissionID, now)
	if err != nil {
		return nil, fmt.Errorf("find override: %w", err)
	}
	if override == nil || !override.ActiveAt(now) {
		return nil, nil
	}
	return override, nil
}

// ActiveOverrides is the bulk form of ActiveOverride, keyed by user id.
func (r *Resolver) ActiveOverrides(ctx context.Context, userIDs []int64, permissionID int64) (map[int64]Override, error) {
	result := make(map[int64]Override)
	if len(userIDs) == 0 {
		return result, nil
	}
	now := r.now()
	overrides, err := r.store.FindActiveOverrides(ctx, userIDs, permissionID, now)
	if err != nil {
		return nil, fmt.Errorf("find overrides: %w", err)
	}
	for _, o := range overrides {
		if o.ActiveAt(now) {
			result[o.UserID] = o
		}
	}
	return result, nil
}

// GrantedRoles applies the role stage: roles outside tenantID never grant,
// and the remaining roles grant when an allowed RolePermission row exists.
func (r *Resolver) GrantedRoles(ctx context.Context, tenantID int64, roleIDs []int64, permissionID int64) (RoleGrants, error) {
	grants := RoleGrants{Granted: make(map[int64]bool), Names: make(map[int64]string)}
	if len(roleIDs) == 0 {
		return grants, nil
	}

	roles, err := r.store.FindRoles(ctx, roleIDs)
	if err != nil {
		return RoleGrants{}, fmt.Errorf("find roles: %w", err)
	}

	found := make(map[int64]Role, len(roles))
	for _, role := range roles {
		found[role.ID] = role
	}

	owned := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		role, ok := found[id]
		if !ok {
			grants.Missing = append(grants.Missing, id)
			continue
		}
		if role.TenantID != tenantID {
			mismatch := TenantMismatchError{RoleID: id, RoleTenantID: role.TenantID, PrincipalTenantID: tenantID}
			grants.Mismatches = append(grants.Mismatches, mismatch)
			r.logger.Warn("ignoring role from another tenant", "error", mismatch)
			continue
		}
		grants.Names[id] = role.Name
		owned = append(owned, id)
	}

	if len(owned) == 0 {
		return grants, nil
	}

	granting, err := r.store.GrantingRoleIDs(ctx, owned, permissionID)
	if err != nil {
		return RoleGrants{}, fmt.Errorf("find role grants: %w", err)
	}
	for _, id := range granting {
		grants.Granted[id] = true
	}
	return grants, nil
}
