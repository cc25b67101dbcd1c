package auth

import "testing"

func TestAuthorizer(t *testing.T) {
	a := NewAuthorizer([]int64{30, 10, 10})
	ids := a.Admins()
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 30 {
		t.Errorf("Admins = %v", ids)
	}
}

func TestNilAuthorizer(t *testing.T) {
	var a *Authorizer
	if a.Admins() != nil {
		t.Error("nil authorizer should know no admins")
	}
}
