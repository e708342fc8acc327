package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

// Logger is a no-op core.Logger for tests.
type Logger struct{}

func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

var _ core.Logger = Logger{}

// Notifier records every credentials envelope it is handed. Deliver controls
// the reported outcome.
type Notifier struct {
	mu      sync.Mutex
	Deliver bool
	Sent    []core.CredentialsEnvelope
}

func NewNotifier() *Notifier { return &Notifier{Deliver: true} }

func (n *Notifier) SendCredentials(_ context.Context, env core.CredentialsEnvelope) core.NotificationResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, env)
	if !n.Deliver {
		return core.NotificationResult{}
	}
	return core.NotificationResult{Delivered: true, Reference: "test"}
}

var _ core.CredentialNotifier = (*Notifier)(nil)

// NewConfig returns a config with test-friendly durations.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:                    "TEST",
		TestMode:               true,
		AppName:                "Escolar",
		SecretKey:              "secret",
		FrontendBaseURL:        "http://localhost:3000",
		TempCredentialValidity: 3 * 24 * time.Hour,
	}
	conf.Server.JWTExpirationDelta = 4 * time.Hour
	conf.Server.JWTRefreshExpirationDelta = 24 * time.Hour
	conf.Server.JWTPendingChangeDelta = 15 * time.Minute
	conf.Redis.LoginRateLimit = 10
	conf.Redis.LoginRateWindow = time.Minute
	return conf
}

func CreateAccount(
	t *testing.T,
	repo account.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) account.Account {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acct := account.Account{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	acct.SetActive(isActive)
	if pwd != "" {
		if err := acct.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acct, err := repo.CreateAccount(acct)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acct
}

// CreateStudent provisions a student account with its enrollment record.
func CreateStudent(
	t *testing.T,
	repo account.Repository,
	name, uname, email, pwd, enrollmentCode string,
) account.Account {
	t.Helper()

	now := time.Now().UTC()
	acct := account.Account{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      account.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	acct.SetActive(true)
	if err := acct.SetPassword(pwd); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	acct, err := repo.CreateStudentAccount(
		acct,
		account.StudentEnrollment{AccountID: acct.ID, EnrollmentCode: enrollmentCode},
		account.Group{YearLevel: 1, ShiftLabel: "Grupo 1 - 1° año"},
	)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return acct
}

// SetTempCredential puts an account into the pending-change state.
func SetTempCredential(t *testing.T, repo account.Repository, acct account.Account, cred string, expiry time.Time) account.Account {
	t.Helper()

	acct.TempCredential = null.StringFrom(cred)
	acct.TempCredentialExpires = null.TimeFrom(expiry.UTC())
	acct.MustChangeCredential = true
	acct.FirstLogin = true
	if err := acct.SetPassword(cred); err != nil {
		t.Fatalf("SetTempCredential() failed: %v", err)
	}
	acct.UpdatedAt = time.Now().UTC()
	acct, err := repo.UpdateAccount(acct)
	if err != nil {
		t.Fatalf("SetTempCredential() failed: %v", err)
	}
	return acct
}
