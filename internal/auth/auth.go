// Package auth knows which users are bot administrators. Everyone may use the
// bot; admins only receive diagnostics such as panic reports.
package auth

import "sort"

type Authorizer struct {
	adminIDs map[int64]bool
}

func NewAuthorizer(admins []int64) *Authorizer {
	adminMap := make(map[int64]bool, len(admins))
	for _, id := range admins {
		adminMap[id] = true
	}
	return &Authorizer{adminIDs: adminMap}
}

// Admins returns the admin ids in ascending order.
func (a *Authorizer) Admins() []int64 {
	if a == nil {
		return nil
	}
	ids := make([]int64, 0, len(a.adminIDs))
	for id := range a.adminIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
