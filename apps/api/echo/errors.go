package echoapi

import (
	"fmt"
	"net/http"

	"github.com/dgrijalva/jwt-go"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "account not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errAccountDisabled      = echo.NewHTTPError(http.StatusForbidden, "account disabled")
	// distinct from errAuthenticationFailed so clients can direct the user to
	// an administrator instead of a retry
	errTempCredExpired   = echo.NewHTTPError(http.StatusUnauthorized, "temporary password has expired; contact the administrator")
	errChangeNotRequired = echo.NewHTTPError(http.StatusBadRequest, "no password change is pending for this account")
	errRefreshExpired    = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden     = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound      = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyLogins     = echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts; retry later")
	errStudentNotFound   = echo.NewHTTPError(http.StatusNotFound, "no student matches this enrollment code")
	errAccountReferenced = echo.NewHTTPError(http.StatusConflict, "account has dependent records and cannot be deleted")
)

// errorKinds maps each well-known error to its stable machine-readable
// discriminator; clients switch on kind, never on the English message.
var errorKinds = map[*echo.HTTPError]string{
	errUnauthorized:         "unauthenticated",
	errAuthenticationFailed: "invalid_credentials",
	errAccountDisabled:      "account_disabled",
	errTempCredExpired:      "temporary_credential_expired",
	errChangeNotRequired:    "change_not_required",
	errRefreshExpired:       "refresh_expired",
	errHttpForbidden:        "permission_denied",
	errHttpNotFound:         "not_found",
	errTooManyLogins:        "too_many_login_attempts",
	errStudentNotFound:      "referenced_entity_not_found",
	errAccountReferenced:    "account_referenced",
}

func errorKind(err *echo.HTTPError) string {
	if kind, ok := errorKinds[err]; ok {
		return kind
	}
	switch err.Code {
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "permission_denied"
	case http.StatusNotFound:
		return "not_found"
	}
	return "error"
}

// errorResponse is the error body shape: Kind is a stable discriminator,
// Error a human-readable message, Fields optional per-field detail
// (validation messages, or conflict records with the colliding account IDs).
type errorResponse struct {
	Kind   string      `json:"kind"`
	Error  string      `json:"error"`
	Fields interface{} `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp errorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				origErr = errUnauthorized
			} else if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			resp = errorResponse{Kind: errorKind(origErr), Error: fmt.Sprint(origErr.Message)}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			resp = errorResponse{Kind: "validation", Error: "invalid input", Fields: fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp = errorResponse{Kind: "validation", Error: origErr.Error()}
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				resp.Fields = fldErrs
			}
		case *core.ConflictError:
			code = http.StatusConflict
			resp = errorResponse{Kind: "conflict", Error: origErr.Error(), Fields: origErr.Fields}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			resp = errorResponse{Kind: "server_error", Error: msg}

			var acct account.Account
			if claims, cErr := getClaimsForLogging(ctx); cErr == nil {
				acct.ID = claims.Subject
				acct.Username = claims.Username
				acct.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), acct)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			resp.Error = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// getClaimsForLogging extracts claims without a jwtAuth instance; used only to
// attribute server errors to an account.
func getClaimsForLogging(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get("accountToken").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
