package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/saas-access-core/internal/model"
	"github.com/iliyamo/saas-access-core/internal/repository"
)

// Requirement lists the privileges an API demands.  Most APIs carry a flat
// list; a few multi-resource APIs key their lists by sub-resource and the
// caller selects which one applies.
type Requirement struct {
	Privileges   []string
	SubResources map[string][]string
}

// APIPermissions is the static permission table, immutable after process
// start and read concurrently without locking.
var APIPermissions = map[string]Requirement{
	"user_invite":             {Privileges: []string{"user_management:create"}},
	"get_users":               {Privileges: []string{"user_management:view"}},
	"assign_privilege":        {Privileges: []string{"privilege:assign"}},
	"check_templates_exist":   {Privileges: []string{"user_management:view"}},
	"create_role":             {Privileges: []string{"user_management:create"}},
	"get_privilege":           {Privileges: []string{"user_management:view"}},
	"list_resource_privilege": {Privileges: []string{"user_management:view"}},
	"remove_privilege":        {Privileges: []string{"privilege:revoke"}},
	"list_user_privilege":     {Privileges: []string{"user_management:view"}},
	"bulk_status_update":      {Privileges: []string{"user_management:edit"}},
	"list_user_details":       {Privileges: []string{"user_management:view"}},
	"update_user":             {Privileges: []string{"user_management:edit"}},
	"user_statuses":           {Privileges: []string{"user_management:view"}},
	"check_email_exist":       {Privileges: []string{"user_management:create"}},
	"user_delete":             {Privileges: []string{"user_management:delete"}},
	"bulk_delete":             {Privileges: []string{"user_management:delete"}},
	"check_template_name":     {Privileges: []string{"user_management:view"}},

	"add_freight_rate":                {Privileges: []string{"freight_rate:create"}},
	"update_freight_rate":             {Privileges: []string{"freight_rate:edit"}},
	"list_freight_rates":              {Privileges: []string{"freight_rate:view"}},
	"get_freight_rate_by_id":          {Privileges: []string{"freight_rate:view"}},
	"bulk_freight_rate_status_change": {Privileges: []string{"freight_rate:enable_disable"}},
	"add_container_type":              {Privileges: []string{"freight_rate:create"}},
	"delete_container_type":           {Privileges: []string{"freight_rate:delete"}},
	"list_container_types":            {Privileges: []string{"freight_rate:view"}},
	"add_freight_rate_comment":        {Privileges: []string{"freight_rate:create"}},
	"list_freight_rate_comments":      {Privileges: []string{"freight_rate:view"}},
	"freight_change_history":          {Privileges: []string{"freight_rate:view"}},
	"freight_rate_change":             {Privileges: []string{"freight_rate:view"}},

	"add_tariff_rate":                {Privileges: []string{"tariff_rate:create"}},
	"update_tariff_rate":             {Privileges: []string{"tariff_rate:edit"}},
	"list_tariff_rates":              {Privileges: []string{"tariff_rate:view"}},
	"get_tariff_rate_by_id":          {Privileges: []string{"tariff_rate:view"}},
	"bulk_tariff_rate_status_change": {Privileges: []string{"tariff_rate:enable_disable"}},
	"add_tariff_rate_comment":        {Privileges: []string{"tariff_rate:create"}},
	"list_tariff_rate_comments":      {Privileges: []string{"tariff_rate:view"}},
	"tariff_change_history":          {Privileges: []string{"tariff_rate:view"}},
	"tariff_rate_change":             {Privileges: []string{"tariff_rate:view"}},

	"upload_to_s3": {SubResources: map[string][]string{
		"freight_rate": {"freight_rate:import"},
		"tariff_rate":  {"tariff_rate:import"},
	}},
	"upload_summary_counts": {SubResources: map[string][]string{
		"freight_rate": {"freight_rate:view"},
		"tariff_rate":  {"tariff_rate:view"},
	}},
	"get_feature_template": {SubResources: map[string][]string{
		"freight_rate": {"freight_rate:view"},
		"tariff_rate":  {"tariff_rate:view"},
	}},
	"list_uploads": {SubResources: map[string][]string{
		"freight_rate": {"freight_rate:view"},
		"tariff_rate":  {"tariff_rate:view"},
	}},

	"raise_request":     {Privileges: []string{"request:create"}},
	"review_request":    {Privileges: []string{"request:review"}},
	"get_request_by_id": {Privileges: []string{"request:detailed_view"}},
	"list_requests":     {Privileges: []string{"request:view"}},
}

// Required selects the flat privilege list for an API.  subResource is
// ignored for flat APIs and mandatory for multi-resource ones; an
// unregistered API or sub-resource yields ErrUnknownAPI.
func Required(apiName, subResource string) ([]string, error) {
	req, ok := APIPermissions[apiName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAPI, apiName)
	}
	if req.SubResources == nil {
		return req.Privileges, nil
	}
	privs, ok := req.SubResources[subResource]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no sub-resource %q", ErrUnknownAPI, apiName, subResource)
	}
	return privs, nil
}

// Gate enforces per-API permission requirements against a resolved
// user-context.  It is a pure guard with no side effects.
type Gate struct {
	Memberships MembershipStore
}

func NewGate(memberships MembershipStore) *Gate { return &Gate{Memberships: memberships} }

// Check enforces a flat-list API.
func (g *Gate) Check(ctx context.Context, apiName string, uc UserContext) error {
	required, err := Required(apiName, "")
	if err != nil {
		return err
	}
	return g.check(ctx, apiName, required, uc)
}

// CheckSubResource enforces a multi-resource API for one sub-resource.
func (g *Gate) CheckSubResource(ctx context.Context, apiName, subResource string, uc UserContext) error {
	required, err := Required(apiName, subResource)
	if err != nil {
		return err
	}
	return g.check(ctx, apiName, required, uc)
}

func (g *Gate) check(ctx context.Context, apiName string, required []string, uc UserContext) error {
	// Privilege caches can outlive a tenant suspension, so membership is
	// revalidated against the live row on every call.
	if uc.TenantID != "" && uc.TenantID != TenantNone {
		tu, err := g.Memberships.FindMembership(ctx, uc.UserID, uc.TenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNoMembership) {
				return ErrTenantMembershipInactive
			}
			return err
		}
		if tu.Status != model.StatusActive {
			return ErrTenantMembershipInactive
		}
	}

	var missing []string
	for _, p := range required {
		if !uc.HasPrivilege(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: you don't have permission for: %s (missing %s)",
			ErrForbidden, apiName, strings.Join(missing, ", "))
	}
	return nil
}
