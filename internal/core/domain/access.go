package domain

// ExternalAccess is the provider-agnostic permission model for a synced item.
// It is either empty (no exposure data available, treated as private),
// public (anyone with the link), or an enumerated set of user emails and
// optionally group IDs. Use the constructors; the zero value equals Empty().
type ExternalAccess struct {
	// ExternalUserEmails lists users the item is shared with.
	ExternalUserEmails []string

	// ExternalGroupIDs lists groups the item is shared with.
	ExternalGroupIDs []string

	// Public indicates the item is reachable by anyone with the link.
	// When true, the enumerated grants are irrelevant and left empty.
	Public bool
}

// EmptyAccess returns the fail-safe access value: no exposure data, private.
func EmptyAccess() ExternalAccess {
	return ExternalAccess{}
}

// PublicAccess returns an anyone-with-link access value.
func PublicAccess() ExternalAccess {
	return ExternalAccess{Public: true}
}

// AccessForUsers returns an access value scoped to the given user emails.
func AccessForUsers(emails []string) ExternalAccess {
	return ExternalAccess{ExternalUserEmails: dedupeStrings(emails)}
}

// AccessForUsersAndGroups returns an access value scoped to the given user
// emails and group IDs.
func AccessForUsersAndGroups(emails, groupIDs []string) ExternalAccess {
	return ExternalAccess{
		ExternalUserEmails: dedupeStrings(emails),
		ExternalGroupIDs:   dedupeStrings(groupIDs),
	}
}

// IsEmpty reports whether the access value carries no exposure data.
func (a ExternalAccess) IsEmpty() bool {
	return !a.Public && len(a.ExternalUserEmails) == 0 && len(a.ExternalGroupIDs) == 0
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
