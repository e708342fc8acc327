package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	"github.com/pkg/errors"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
	inmemdb "github.com/escolarapp/escolar/storage/database/inmem"
	testutil "github.com/escolarapp/escolar/tests"
)

type testApp struct {
	server   Server
	auth     *jwtAuth
	conf     *core.Config
	repo     account.Repository
	db       *inmemdb.DB
	svc      account.ServiceInterface
	notifier *testutil.Notifier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	db := inmemdb.NewDB()
	repo := inmemdb.NewAccountRepository(db)
	notifier := testutil.NewNotifier()
	svc := account.NewService(repo, notifier, testutil.Logger{}, conf)

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     testutil.Logger{},
		AccountSvc: svc,
		Validate:   validate,
		Translator: translator,
	})
	return &testApp{
		server:   server,
		auth:     newJWTAuth(conf),
		conf:     conf,
		repo:     repo,
		db:       db,
		svc:      svc,
		notifier: notifier,
	}
}

func (app *testApp) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) token(t *testing.T, acct account.Account) string {
	t.Helper()
	token, err := app.auth.generateToken(app.auth.getAccountClaims(account.Login{Account: acct}))
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return token
}

func (app *testApp) pendingToken(t *testing.T, acct account.Account) string {
	t.Helper()
	token, err := app.auth.generateToken(app.auth.getPendingChangeClaims(acct))
	if err != nil {
		t.Fatalf("generating pending token: %v", err)
	}
	return token
}

func (app *testApp) admin(t *testing.T) account.Account {
	t.Helper()
	return testutil.CreateAccount(t, app.repo, "Admin", "admin", "admin@test.test", "Adm1n&Pass", account.RoleAdmin, true)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestAccountAPI_login(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateAccount(t, app.repo, "Laura", "laura", "laura@test.test", "Str0ng&Pass", account.RoleTeacher, true)
	testutil.CreateAccount(t, app.repo, "Gone", "gone", "gone@test.test", "Str0ng&Pass", account.RoleTeacher, false)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantKind string
	}{
		{name: "by username", body: jsonMap{"login": "laura", "password": "Str0ng&Pass"}, wantCode: http.StatusOK},
		{name: "by email", body: jsonMap{"login": "laura@test.test", "password": "Str0ng&Pass"}, wantCode: http.StatusOK},
		{name: "mixed case login", body: jsonMap{"login": "LAURA", "password": "Str0ng&Pass"}, wantCode: http.StatusOK},
		{name: "wrong password", body: jsonMap{"login": "laura", "password": "nope"}, wantCode: http.StatusUnauthorized, wantKind: "invalid_credentials"},
		{name: "unknown account", body: jsonMap{"login": "nobody", "password": "nope"}, wantCode: http.StatusUnauthorized, wantKind: "invalid_credentials"},
		{name: "disabled account", body: jsonMap{"login": "gone", "password": "Str0ng&Pass"}, wantCode: http.StatusForbidden, wantKind: "account_disabled"},
		{name: "missing fields", body: jsonMap{}, wantCode: http.StatusBadRequest, wantKind: "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.request(t, http.MethodPost, "/api/accounts/login", "", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				decode(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				assert.False(t, resp.MustChangeCredential)
			}
			if tt.wantKind != "" {
				var resp errorResponse
				decode(t, rec, &resp)
				assert.Equal(t, tt.wantKind, resp.Kind)
			}
		})
	}
}

func TestAccountAPI_loginParentListsStudents(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.repo, "Pedro Páramo", "pedro", "pedro@test.test", "Str0ng&Pass", "C1234567890123")

	prov, err := app.svc.CreateGuardian(context.Background(), account.NewGuardian{
		Name: "Dolores", Email: "dolores@test.test", EnrollmentCode: "C1234567890123", Homoclave: "1AB",
	})
	require.NoError(t, err)
	_, err = app.svc.ChangeTemporaryCredential(prov.Account.ID, account.ChangeTemporaryCredential{NewCredential: "N3w&Secret"})
	require.NoError(t, err)

	// the stored handle is uppercase; login input gets lowered and must still match
	rec := app.request(t, http.MethodPost, "/api/accounts/login", "", jsonMap{"login": prov.Account.Username, "password": "N3w&Secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Students, 1)
	assert.Equal(t, "C1234567890123", resp.Students[0].EnrollmentCode)
	assert.Equal(t, "Pedro Páramo", resp.Students[0].Name)
}

func TestAccountAPI_loginPendingChange(t *testing.T) {
	app := newTestApp(t)
	acct := testutil.CreateAccount(t, app.repo, "Dolores", "dolores", "dolores@test.test", "", account.RoleParent, true)
	testutil.SetTempCredential(t, app.repo, acct, "ABCD1234", time.Now().Add(24*time.Hour))

	rec := app.request(t, http.MethodPost, "/api/accounts/login", "", jsonMap{"login": "dolores", "password": "ABCD1234"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.MustChangeCredential)
	assert.Equal(t, acct.ID, resp.AccountID)
}

func TestAccountAPI_loginExpiredTempCredential(t *testing.T) {
	app := newTestApp(t)
	acct := testutil.CreateAccount(t, app.repo, "Dolores", "dolores", "dolores@test.test", "", account.RoleParent, true)
	testutil.SetTempCredential(t, app.repo, acct, "ABCD1234", time.Now().Add(-time.Minute))

	rec := app.request(t, http.MethodPost, "/api/accounts/login", "", jsonMap{"login": "dolores", "password": "ABCD1234"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())

	// distinguishable from a plain credential failure without parsing the message
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "temporary_credential_expired", resp.Kind)
}

func TestAccountAPI_create(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	teacher := testutil.CreateAccount(t, app.repo, "Laura", "laura", "laura@test.test", "Str0ng&Pass", account.RoleTeacher, true)

	body := jsonMap{
		"name":     "Nuevo Profesor",
		"email":    "nuevo@test.test",
		"password": "Str0ng&Pass",
		"role":     "teacher",
	}

	t.Run("requires auth", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("requires admin", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts", app.token(t, teacher), body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("created", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts", app.token(t, admin), body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created account.Account
		decode(t, rec, &created)
		assert.Equal(t, "nuevo_profesor", created.Username)
		assert.NotContains(t, rec.Body.String(), "password_hash")
	})
	t.Run("duplicate email is a conflict", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts", app.token(t, admin), body)
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

		var resp struct {
			Kind   string               `json:"kind"`
			Fields []core.FieldConflict `json:"fields"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, "conflict", resp.Kind)
		require.NotEmpty(t, resp.Fields)
		assert.Equal(t, "email", resp.Fields[0].Field)
		assert.NotEmpty(t, resp.Fields[0].AccountID)
	})
	t.Run("student payload provisions enrollment", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts", app.token(t, admin), jsonMap{
			"name":     "Pedro Páramo",
			"email":    "pedro@test.test",
			"password": "Str0ng&Pass",
			"role":     "student",
			"student": jsonMap{
				"enrollment_code": "C1234567890123",
				"group_number":    1,
				"year_level":      2,
			},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		student, err := app.repo.GetStudentByEnrollmentCode("C1234567890123")
		require.NoError(t, err)
		assert.Equal(t, "Pedro Páramo", student.Name)
	})
	t.Run("student without attributes rejected", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts", app.token(t, admin), jsonMap{
			"name":     "Pedro Dos",
			"email":    "pedro2@test.test",
			"password": "Str0ng&Pass",
			"role":     "student",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
	t.Run("invalid enrollment code writes nothing", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts", app.token(t, admin), jsonMap{
			"name":     "Pedro Tres",
			"email":    "pedro3@test.test",
			"password": "Str0ng&Pass",
			"role":     "student",
			"student": jsonMap{
				"enrollment_code": "X123",
				"group_number":    1,
				"year_level":      1,
			},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		_, err := app.repo.GetAccount(account.GetFilter{Email: "pedro3@test.test"})
		assert.Equal(t, account.ErrNotFound, errors.Cause(err), "the rejected request must not persist an account")
	})
}

func TestAccountAPI_update(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	teacher := testutil.CreateAccount(t, app.repo, "Laura", "laura", "laura@test.test", "Str0ng&Pass", account.RoleTeacher, true)
	other := testutil.CreateAccount(t, app.repo, "Other", "other", "other@test.test", "Str0ng&Pass", account.RoleTeacher, true)

	body := jsonMap{
		"name":     "Laura Jiménez",
		"username": "laura",
		"email":    "laura@test.test",
		"role":     "teacher",
	}
	path := "/api/accounts/" + teacher.ID

	t.Run("requires admin", func(t *testing.T) {
		rec := app.request(t, http.MethodPut, path, app.token(t, teacher), body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("updated keeping own email", func(t *testing.T) {
		rec := app.request(t, http.MethodPut, path, app.token(t, admin), body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var acct account.Account
		decode(t, rec, &acct)
		assert.Equal(t, "Laura Jiménez", acct.Name)
		assert.Equal(t, "laura@test.test", acct.Email)
	})
	t.Run("taking another account's email is a conflict", func(t *testing.T) {
		taken := jsonMap{"name": "Laura", "username": "laura", "email": "other@test.test", "role": "teacher"}
		rec := app.request(t, http.MethodPut, path, app.token(t, admin), taken)
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

		var resp struct {
			Kind   string               `json:"kind"`
			Fields []core.FieldConflict `json:"fields"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, "conflict", resp.Kind)
		require.NotEmpty(t, resp.Fields)
		assert.Equal(t, "email", resp.Fields[0].Field)
		assert.Equal(t, other.ID, resp.Fields[0].AccountID)
	})
	t.Run("unknown account", func(t *testing.T) {
		rec := app.request(t, http.MethodPut, "/api/accounts/nope", app.token(t, admin), body)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}

func TestAccountAPI_completeGuardian(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	testutil.CreateStudent(t, app.repo, "Pedro Páramo", "pedro", "pedro@test.test", "Str0ng&Pass", "C1234567890123")

	body := jsonMap{
		"name":            "Dolores Preciado",
		"email":           "dolores@test.test",
		"enrollment_code": "C1234567890123",
		"homoclave":       "1AB",
	}

	t.Run("requires admin", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/guardians/complete", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("provisioned", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/guardians/complete", app.token(t, admin), body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var prov account.GuardianProvision
		decode(t, rec, &prov)
		assert.Equal(t, "C12345678901231AB", prov.Account.Username)
		assert.True(t, prov.NotificationDelivered)
		assert.Equal(t, "C1234567890123", prov.Student.EnrollmentCode)
		assert.NotContains(t, rec.Body.String(), "temp_credential")
		require.Len(t, app.notifier.Sent, 1)
	})
	t.Run("unknown enrollment code", func(t *testing.T) {
		bad := jsonMap{
			"name": "Dolores", "email": "d2@test.test", "enrollment_code": "C9999999999999", "homoclave": "1AB",
		}
		rec := app.request(t, http.MethodPost, "/api/guardians/complete", app.token(t, admin), bad)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
	t.Run("bad homoclave", func(t *testing.T) {
		bad := jsonMap{
			"name": "Dolores", "email": "d3@test.test", "enrollment_code": "C1234567890123", "homoclave": "ABC",
		}
		rec := app.request(t, http.MethodPost, "/api/guardians/complete", app.token(t, admin), bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func TestAccountAPI_changeTemporaryCredential(t *testing.T) {
	app := newTestApp(t)
	acct := testutil.CreateAccount(t, app.repo, "Dolores", "dolores", "dolores@test.test", "", account.RoleParent, true)
	acct = testutil.SetTempCredential(t, app.repo, acct, "ABCD1234", time.Now().Add(24*time.Hour))
	other := testutil.CreateAccount(t, app.repo, "Other", "other", "other@test.test", "Str0ng&Pass", account.RoleTeacher, true)

	body := jsonMap{"new_credential": "N3w&Secret"}
	path := "/api/accounts/" + acct.ID + "/change-temporary-credential"

	t.Run("requires auth", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, path, "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("other account forbidden", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, path, app.token(t, other), body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("weak password rejected", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, path, app.pendingToken(t, acct), jsonMap{"new_credential": "weak"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
	t.Run("changed with pending token", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, path, app.pendingToken(t, acct), body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// full login now works with the new password
		rec = app.request(t, http.MethodPost, "/api/accounts/login", "", jsonMap{"login": "dolores", "password": "N3w&Secret"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		decode(t, rec, &resp)
		assert.False(t, resp.MustChangeCredential)
	})
	t.Run("second change not required", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, path, app.pendingToken(t, acct), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func TestAccountAPI_checkEmail(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateAccount(t, app.repo, "Laura", "laura", "taken@test.test", "Str0ng&Pass", account.RoleTeacher, true)

	tests := []struct {
		name          string
		email         string
		wantCode      int
		wantAvailable bool
	}{
		{name: "available", email: "free@test.test", wantCode: http.StatusOK, wantAvailable: true},
		{name: "taken", email: "taken@test.test", wantCode: http.StatusOK},
		{name: "case-insensitive", email: "TAKEN@test.test", wantCode: http.StatusOK},
		{name: "invalid email", email: "nope", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.request(t, http.MethodGet, "/api/accounts/check-email/"+tt.email, "", nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				var resp CheckEmailResponse
				decode(t, rec, &resp)
				assert.Equal(t, tt.wantAvailable, resp.Available)
			}
		})
	}
}

func TestAccountAPI_queryAndRoles(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	teacher := testutil.CreateAccount(t, app.repo, "Laura", "laura", "laura@test.test", "Str0ng&Pass", account.RoleTeacher, true)

	t.Run("query requires admin", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/api/accounts", app.token(t, teacher), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("query all", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/api/accounts", app.token(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var accts []account.Account
		decode(t, rec, &accts)
		assert.Len(t, accts, 2)
	})
	t.Run("query filtered by role", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/api/accounts?role=teacher", app.token(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var accts []account.Account
		decode(t, rec, &accts)
		require.Len(t, accts, 1)
		assert.Equal(t, "laura", accts[0].Username)
	})
	t.Run("roles", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/api/accounts/roles", app.token(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var roles []account.Role
		decode(t, rec, &roles)
		assert.Len(t, roles, len(account.AllRoles))
	})
}

func TestAccountAPI_retrieveAndDestroy(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	teacher := testutil.CreateAccount(t, app.repo, "Laura", "laura", "laura@test.test", "Str0ng&Pass", account.RoleTeacher, true)
	other := testutil.CreateAccount(t, app.repo, "Other", "other", "other@test.test", "Str0ng&Pass", account.RoleTeacher, true)

	t.Run("retrieve self", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/api/accounts/"+teacher.ID, app.token(t, teacher), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var acct account.Account
		decode(t, rec, &acct)
		assert.Equal(t, teacher.ID, acct.ID)
	})
	t.Run("retrieve other forbidden", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/api/accounts/"+other.ID, app.token(t, teacher), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("retrieve as admin", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/api/accounts/"+teacher.ID, app.token(t, admin), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("destroy requires admin", func(t *testing.T) {
		rec := app.request(t, http.MethodDelete, "/api/accounts/"+other.ID, app.token(t, teacher), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("admin cannot destroy self", func(t *testing.T) {
		rec := app.request(t, http.MethodDelete, "/api/accounts/"+admin.ID, app.token(t, admin), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("destroyed", func(t *testing.T) {
		rec := app.request(t, http.MethodDelete, "/api/accounts/"+other.ID, app.token(t, admin), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})
	t.Run("destroy blocked by dependents", func(t *testing.T) {
		app.db.AddDependent(teacher.ID)
		rec := app.request(t, http.MethodDelete, "/api/accounts/"+teacher.ID, app.token(t, admin), nil)
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})
}

func TestAccountAPI_tokenRefresh(t *testing.T) {
	app := newTestApp(t)
	teacher := testutil.CreateAccount(t, app.repo, "Laura", "laura", "laura@test.test", "Str0ng&Pass", account.RoleTeacher, true)

	t.Run("refreshed", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/api/accounts/token-refresh", app.token(t, teacher), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
	t.Run("pending-change token refused", func(t *testing.T) {
		acct := testutil.CreateAccount(t, app.repo, "Dolores", "dolores", "dolores@test.test", "", account.RoleParent, true)
		acct = testutil.SetTempCredential(t, app.repo, acct, "ABCD1234", time.Now().Add(24*time.Hour))

		rec := app.request(t, http.MethodPost, "/api/accounts/token-refresh", app.pendingToken(t, acct), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})
}

type jsonMap = map[string]interface{}
