package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

const contextAccountKey = "account"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher    bool   `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsParent     bool   `json:"is_parent,omitempty"`  // -> PARENT PORTAL
	IsAdmin      bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL

	// Students carries the guardian's linked students so parent portals can
	// render without an extra round trip.
	Students []account.StudentSummary `json:"students,omitempty"`

	// PendingChange marks the restricted token issued after a login with a
	// temporary credential. It only grants the credential-change endpoint.
	PendingChange bool `json:"pending_change,omitempty"`
}

// jwtAuth bundles the JWT middleware config with the token helpers.
type jwtAuth struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newJWTAuth(conf *core.Config) *jwtAuth {
	return &jwtAuth{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "accountToken",
			Claims:        new(Claims),
		},
	}
}

func (a *jwtAuth) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.jwtConfig)
}

func (a *jwtAuth) getAccountClaims(login account.Login, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	acct := login.Account
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   acct.ID,
			Audience:  "Escolar",
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         acct.Name,
		Username:     acct.Username,
		Email:        acct.Email,
		Role:         acct.Role,
		IsStudent:    acct.IsStudent(),
		IsTeacher:    acct.IsTeacher(),
		IsParent:     acct.IsParent(),
		IsAdmin:      acct.IsAdmin(),
		Students:     login.Students,
	}
}

// getPendingChangeClaims builds the short-lived, single-purpose token issued
// when a temporary credential is accepted but must still be changed.
func (a *jwtAuth) getPendingChangeClaims(acct account.Account) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   acct.ID,
			Audience:  "Escolar",
			ExpiresAt: now.Add(a.conf.Server.JWTPendingChangeDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:          acct.Name,
		Username:      acct.Username,
		Role:          acct.Role,
		PendingChange: true,
	}
}

// generateToken generates a signed JWT token string representing the account Claims.
func (a *jwtAuth) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey.([]byte))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func (a *jwtAuth) getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(a.jwtConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func (a *jwtAuth) getContextAccount(ctx echo.Context, svc account.ServiceInterface, clms ...Claims) (account.Account, error) {
	if acct, ok := ctx.Get(contextAccountKey).(account.Account); ok {
		return acct, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = a.getContextClaims(ctx)
		if err != nil {
			return account.Account{}, errors.Wrap(err, "getting context claims")
		}
	}

	acct, err := svc.GetByID(claims.Subject)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "finding account by ID")
	}
	ctx.Set(contextAccountKey, acct)
	return acct, nil
}

func (a *jwtAuth) refreshToken(ctx echo.Context, svc account.ServiceInterface) (string, error) {
	claims, err := a.getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// a pending-change token only grants the credential change; it cannot be
	// traded for a fresh one
	if claims.PendingChange {
		return "", errHttpForbidden
	}

	acct, err := a.getContextAccount(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context account")
	}

	// check if account is still active
	if !acct.Active() {
		return "", errAccountDisabled
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	login := account.Login{Account: acct}
	if acct.IsParent() {
		if login.Students, err = svc.LinkedStudents(acct.ID); err != nil {
			return "", errors.Wrap(err, "querying linked students")
		}
	}

	newClaims := a.getAccountClaims(login, claims.OrigIssuedAt)
	token, err := a.generateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
