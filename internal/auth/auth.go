package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	ErrInvalidToken       = apperrors.ErrInvalidToken
	ErrTokenExpired       = apperrors.ErrTokenExpired
)

// ClaimedRole is one role assignment carried in an access token.
// DepartmentID is nil for tenant-wide roles.
type ClaimedRole struct {
	RoleID       int64  `json:"rid"`
	DepartmentID *int64 `json:"did,omitempty"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID   int64         `json:"user_id"`
	TenantID int64         `json:"tenant_id"`
	Email    string        `json:"email,omitempty"`
	Roles    []ClaimedRole `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Principal rebuilds the permission principal from the token.
func (c *Claims) Principal() permission.Principal {
	assignments := make([]permission.RoleAssignment, 0, len(c.Roles))
	for _, r := range c.Roles {
		if r.DepartmentID != nil {
			assignments = append(assignments, permission.DepartmentScoped(r.RoleID, *r.DepartmentID))
			continue
		}
		assignments = append(assignments, permission.TenantWide(r.RoleID))
	}
	return permission.Principal{UserID: c.UserID, TenantID: c.TenantID, Assignments: assignments}
}

func claimedRoles(assignments []permission.RoleAssignment) []ClaimedRole {
	roles := make([]ClaimedRole, 0, len(assignments))
	for _, a := range assignments {
		role := ClaimedRole{RoleID: a.RoleID}
		if a.IsDepartmentScoped() {
			deptID := a.DepartmentID
			role.DepartmentID = &deptID
		}
		roles = append(roles, role)
	}
	return roles
}

type TokenGenerator interface {
	GenerateAccessToken(principal permission.Principal, email string) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	Secret         []byte
	Issuer         string
	AccessTokenTTL time.Duration
	now            func() time.Time
}

func NewJWTTokenGenerator(secret, issuer string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		Issuer:         issuer,
		AccessTokenTTL: ttl,
		now:            time.Now,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(principal permission.Principal, email string) (string, time.Time, error) {
	issuedAt := j.now()
	expiresAt := issuedAt.Add(j.AccessTokenTTL)

	claims := &Claims{
		UserID:   principal.UserID,
		TenantID: principal.TenantID,
		Email:    email,
		Roles:    claimedRoles(principal.Assignments),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.Issuer,
			Subject:   strconv.FormatInt(principal.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.TenantID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
