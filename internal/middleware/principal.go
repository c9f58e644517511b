package middleware

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/huangang/meridian/internal/services"
)

// PrincipalHeader carries the identity validated by the hosting edge.
const PrincipalHeader = "X-MS-CLIENT-PRINCIPAL"

const (
	claimObjectID = "http://schemas.microsoft.com/identity/claims/objectidentifier"
	claimTenantID = "http://schemas.microsoft.com/identity/claims/tenantid"
	claimEmail    = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
)

// DevIdentity is the synthetic caller used when auth.dev_bypass is on.
var DevIdentity = services.Identity{
	Provider:   "dev",
	ExternalID: "dev-local-00000000-0000-0000-0000-000000000000",
	Email:      "dev@meridian.local",
	Name:       "Dev User",
}

var errNoIdentity = errors.New("principal carries no user id")

type clientPrincipal struct {
	IdentityProvider string `json:"identityProvider"`
	UserID           string `json:"userId"`
	UserDetails      string `json:"userDetails"`
	Claims           []struct {
		Typ string `json:"typ"`
		Val string `json:"val"`
	} `json:"claims"`
}

func (p *clientPrincipal) claim(types ...string) string {
	for _, typ := range types {
		for _, c := range p.Claims {
			if c.Typ == typ && c.Val != "" {
				return c.Val
			}
		}
	}
	return ""
}

// DecodePrincipal parses the base64 JSON principal forwarded by the edge.
func DecodePrincipal(header string) (*services.Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return nil, err
	}
	var p clientPrincipal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	id := &services.Identity{
		Provider:   p.IdentityProvider,
		ExternalID: firstNonEmpty(p.claim(claimObjectID, "oid"), p.UserID),
		TenantID:   p.claim(claimTenantID, "tid"),
		Email:      firstNonEmpty(p.claim(claimEmail, "preferred_username"), p.UserDetails),
		Name:       firstNonEmpty(p.claim("name"), p.UserDetails),
	}
	if id.ExternalID == "" {
		return nil, errNoIdentity
	}
	return id, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
