package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

type accountApi struct {
	svc        account.ServiceInterface
	auth       *jwtAuth
	validate   *validator.Validate
	translator ut.Translator
}

func registerAccountAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *jwtAuth,
	svc account.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
	rdb *redis.Client,
	conf *core.Config,
	logger core.Logger,
) {
	api := accountApi{
		svc:        svc,
		auth:       auth,
		validate:   validate,
		translator: translator,
	}

	ag := g.Group("/accounts")

	// un-authed endpoints
	ag.POST("/login", api.login, loginRateLimitMiddleware(rdb, conf, logger))
	ag.GET("/check-email/:email", api.checkEmail)

	// authed endpoints
	authed := ag.Group("", jwt)
	authed.POST("/token-refresh", api.refreshToken)
	authed.POST("", api.create, adminMiddleware(auth))
	authed.GET("", api.query, adminMiddleware(auth))
	authed.GET("/roles", api.queryRoles, adminMiddleware(auth))

	// the pending-change token grants this endpoint and nothing else
	authed.POST("/:id/change-temporary-credential", api.changeTemporaryCredential, selfMiddleware(auth))

	// detail endpoints
	authed.GET("/:id", api.retrieve, selfOrAdminMiddleware(auth))
	authed.PUT("/:id", api.update, adminMiddleware(auth))
	authed.DELETE("/:id", api.destroy, adminMiddleware(auth))

	// guardian provisioning
	gg := g.Group("/guardians", jwt)
	gg.POST("/complete", api.completeGuardian, adminMiddleware(auth))
}

// Handlers

func (api *accountApi) create(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	acct, err := api.svc.Create(data)
	if err != nil {
		switch errors.Cause(err).(type) {
		case *core.ValidationError, *core.ConflictError:
			return err
		}
		return errors.Wrap(err, "creating account")
	}
	return ctx.JSON(http.StatusCreated, acct)
}

func (api *accountApi) completeGuardian(ctx echo.Context) error {
	var data account.NewGuardian
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGuardian")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prov, err := api.svc.CreateGuardian(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err).(type) {
		case *core.ValidationError, *core.ConflictError:
			return err
		}
		if errors.Cause(err) == account.ErrStudentNotFound {
			return errStudentNotFound
		}
		return errors.Wrap(err, "provisioning guardian")
	}
	return ctx.JSON(http.StatusCreated, prov)
}

func (api *accountApi) login(ctx echo.Context) error {
	var data account.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	login, err := api.svc.Authenticate(data)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrInvalidCredentials:
			return errAuthenticationFailed
		case account.ErrAccountDisabled:
			return errAccountDisabled
		case account.ErrTemporaryCredentialExpired:
			return errTempCredExpired
		}
		return errors.Wrap(err, "authenticating")
	}

	var claims *Claims
	if login.PendingChange {
		claims = api.auth.getPendingChangeClaims(login.Account)
	} else {
		claims = api.auth.getAccountClaims(login)
	}
	token, err := api.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:                token,
		MustChangeCredential: login.PendingChange,
		AccountID:            login.Account.ID,
		Students:             login.Students,
	})
}

func (api *accountApi) update(ctx echo.Context) error {
	var data account.UpdateAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acct, err := api.svc.Update(ctx.Param("id"), data)
	if err != nil {
		switch errors.Cause(err).(type) {
		case *core.ValidationError, *core.ConflictError:
			return err
		}
		if errors.Cause(err) == account.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) changeTemporaryCredential(ctx echo.Context) error {
	var data account.ChangeTemporaryCredential
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangeTemporaryCredential")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ChangeTemporaryCredential(ctx.Param("id"), data); err != nil {
		switch errors.Cause(err) {
		case account.ErrNotFound:
			return errHttpNotFound
		case account.ErrChangeNotRequired:
			return errChangeNotRequired
		case account.ErrTemporaryCredentialExpired:
			return errTempCredExpired
		}
		return errors.Wrap(err, "changing temporary credential")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "Password has been changed. Sign in with your new password.",
	})
}

func (api *accountApi) checkEmail(ctx echo.Context) error {
	email := core.CleanString(ctx.Param("email"), true /* lower */)
	if err := api.validate.Var(email, "required,email"); err != nil {
		return core.NewValidationError(errors.New("invalid email"),
			core.FieldError{Field: "email", Error: "invalid email address"})
	}

	available, err := api.svc.EmailAvailable(email)
	if err != nil {
		return errors.Wrap(err, "checking email availability")
	}
	return ctx.JSON(http.StatusOK, CheckEmailResponse{Email: email, Available: available})
}

func (api *accountApi) query(ctx echo.Context) error {
	filter := new(account.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.Account{})
	}

	accts, err := api.svc.Query(*filter)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accts == nil {
		accts = []account.Account{}
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	acct, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding account by ID")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) destroy(ctx echo.Context) error {
	// ctxAccount cannot delete themselves
	claims, err := api.auth.getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject == ctx.Param("id") {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Param("id")); err != nil {
		switch errors.Cause(err) {
		case account.ErrNotFound:
			return errHttpNotFound
		case account.ErrAccountReferenced:
			return errAccountReferenced
		}
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, account.Roles)
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

type (
	LoginResponse struct {
		Token                string                   `json:"token"`
		MustChangeCredential bool                     `json:"must_change_credential,omitempty"`
		AccountID            string                   `json:"account_id,omitempty"`
		Students             []account.StudentSummary `json:"students,omitempty"`
	}

	CheckEmailResponse struct {
		Email     string `json:"email"`
		Available bool   `json:"available"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)
