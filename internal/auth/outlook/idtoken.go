package outlook

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pysugar/calsync/internal/auth/exchange"
)

// parseIDToken extracts id_token claims. The token arrived over TLS straight
// from the token endpoint, so the signature is not checked here.
func parseIDToken(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse id_token: %w", err)
	}
	return claims, nil
}

type clientInfo struct {
	UID  string `json:"uid"`
	UTID string `json:"utid"`
}

func decodeClientInfo(raw string) (clientInfo, bool) {
	var info clientInfo
	raw = strings.TrimRight(strings.TrimSpace(raw), "=")
	if raw == "" {
		return info, false
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return info, false
	}
	if err := json.Unmarshal(data, &info); err != nil || info.UID == "" || info.UTID == "" {
		return info, false
	}
	return info, true
}

// homeAccountID derives the stable account key: uid.utid from client_info,
// then oid.tid from the claims, then sub.
func homeAccountID(claims jwt.MapClaims, rawClientInfo string) string {
	if info, ok := decodeClientInfo(rawClientInfo); ok {
		return info.UID + "." + info.UTID
	}
	oid, tid := claimString(claims, "oid"), claimString(claims, "tid")
	if oid != "" && tid != "" {
		return oid + "." + tid
	}
	return claimString(claims, "sub")
}

func accountFromClaims(claims jwt.MapClaims, rawClientInfo, environment string) *exchange.Account {
	tenantID := claimString(claims, "tid")
	localID := claimString(claims, "oid")
	if localID == "" {
		localID = claimString(claims, "sub")
	}

	username := claimString(claims, "preferred_username")
	if username == "" {
		username = claimString(claims, "upn")
	}

	var profiles []string
	if tenantID != "" {
		profiles = []string{tenantID}
	}

	return &exchange.Account{
		HomeAccountID:  homeAccountID(claims, rawClientInfo),
		Environment:    environment,
		TenantID:       tenantID,
		LocalAccountID: localID,
		Username:       username,
		Name:           claimString(claims, "name"),
		AuthorityType:  authorityType,
		TenantProfiles: profiles,
		IDTokenClaims:  map[string]any(claims),
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
