package ports

import "testing"

func TestAuthContextHasRole(t *testing.T) {
	ctx := AuthContext{Roles: []string{"staff"}}
	if !ctx.HasRole("staff") {
		t.Fatal("expected staff role")
	}
	if ctx.HasRole("owner") {
		t.Fatal("did not expect owner role")
	}
}

func TestAuthContextPlatformOperator(t *testing.T) {
	if !(AuthContext{UserID: "ops"}).PlatformOperator() {
		t.Fatal("expected caller without business to be a platform operator")
	}
	if (AuthContext{UserID: "u", BusinessID: "biz_1"}).PlatformOperator() {
		t.Fatal("did not expect tenant caller to be a platform operator")
	}
}
