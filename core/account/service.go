package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/escolarapp/escolar/core"
)

var (
	// errors
	ErrNotFound                   = errors.New("account not found")
	ErrEmailExists                = errors.New("an account with this email already exists")
	ErrUsernameExists             = errors.New("an account with this username already exists")
	ErrEnrollmentCodeExists       = errors.New("a student with this enrollment code already exists")
	ErrStudentNotFound            = errors.New("no student matches this enrollment code")
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrAccountDisabled            = errors.New("this account has been disabled")
	ErrTemporaryCredentialExpired = errors.New("temporary password has expired; contact the administrator")
	ErrChangeNotRequired          = errors.New("this account has no pending password change")
	ErrAccountReferenced          = errors.New("account has dependent records and cannot be deleted")
)

type (
	Repository interface {
		// CheckUniqueness reports every unique-field collision of (username, email)
		// with existing accounts, excluding excludedAccounts. An empty slice means
		// both values are free.
		CheckUniqueness(username, email string, excludedAccounts ...Account) ([]core.FieldConflict, error)
		UsernameTaken(username string) (bool, error)
		CreateAccount(acct Account) (Account, error)
		// CreateStudentAccount atomically inserts the account, finds or creates
		// the (yearLevel, shiftLabel) group, and inserts the enrollment record.
		CreateStudentAccount(acct Account, enr StudentEnrollment, grp Group) (Account, error)
		// CreateGuardianAccount atomically inserts the account, the guardian
		// record and the guardian-student link.
		CreateGuardianAccount(acct Account, homoclave, studentID string) (Account, error)
		GetAccount(filter GetFilter) (Account, error)
		GetStudentByEnrollmentCode(code string) (StudentSummary, error)
		LinkedStudents(guardianID string) ([]StudentSummary, error)
		// QueryAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Account.Name,
		// Account.Username or Account.Email.
		QueryAccounts(filter QueryFilter) ([]Account, error)
		UpdateAccount(acct Account) (Account, error)
		// SetPermanentCredential stores the new hash and clears the temporary
		// credential state in one statement.
		SetPermanentCredential(id string, hash []byte) (Account, error)
		// DeleteAccount removes the account and its role records; it fails with
		// ErrAccountReferenced when dependent records still point at it.
		DeleteAccount(id string) error
	}

	ServiceInterface interface {
		CheckUniqueness(username, email string, excludedAccounts ...Account) error
		Create(na NewAccount) (Account, error)
		Update(id string, ua UpdateAccount) (Account, error)
		CreateGuardian(ctx context.Context, ng NewGuardian) (GuardianProvision, error)
		Authenticate(creds Credentials) (Login, error)
		ChangeTemporaryCredential(accountID string, cc ChangeTemporaryCredential) (Account, error)
		EmailAvailable(email string) (bool, error)
		GetByID(id string) (Account, error)
		Query(filter QueryFilter) ([]Account, error)
		LinkedStudents(guardianID string) ([]StudentSummary, error)
		Delete(id string) error
	}

	service struct {
		repo                   Repository
		notifier               core.CredentialNotifier
		logger                 core.Logger
		tempCredentialValidity time.Duration
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, notifier core.CredentialNotifier, logger core.Logger, conf *core.Config) ServiceInterface {
	return &service{
		repo:                   repo,
		notifier:               notifier,
		logger:                 logger,
		tempCredentialValidity: conf.TempCredentialValidity,
	}
}

func (svc *service) CheckUniqueness(uname, email string, exclAccts ...Account) error {
	conflicts, err := svc.repo.CheckUniqueness(uname, email, exclAccts...)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return core.NewConflictError(errors.New("an account with these details already exists"), conflicts...)
	}
	return nil
}

func (svc *service) Create(na NewAccount) (Account, error) {
	if na.Username == "" {
		base, err := DeriveHandleFromName(na.Name)
		if err != nil {
			return Account{}, err
		}
		uname, err := ResolveHandleConflict(base, svc.repo.UsernameTaken)
		if err != nil {
			return Account{}, err
		}
		na.Username = uname
	}
	if err := svc.CheckUniqueness(na.Username, na.Email); err != nil {
		return Account{}, err
	}

	now := time.Now().UTC()
	acct := Account{
		ID:        uuid.New().String(),
		Name:      na.Name,
		Username:  na.Username,
		Email:     na.Email,
		Role:      na.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	acct.SetActive(true)
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, err
	}

	if na.Role == RoleStudent {
		if na.Student == nil {
			return Account{}, core.NewValidationError(errors.New("student attributes are required"),
				core.FieldError{Field: "student", Error: "required for the student role"})
		}
		enr := StudentEnrollment{
			AccountID:      acct.ID,
			EnrollmentCode: na.Student.EnrollmentCode,
		}
		grp := Group{
			YearLevel:  na.Student.YearLevel,
			ShiftLabel: fmt.Sprintf("Grupo %d - %d° año", na.Student.GroupNumber, na.Student.YearLevel),
		}
		return svc.repo.CreateStudentAccount(acct, enr, grp)
	}
	return svc.repo.CreateAccount(acct)
}

// Update edits an existing account's admin-editable fields, excluding the
// account itself from the uniqueness check.
func (svc *service) Update(id string, ua UpdateAccount) (Account, error) {
	acct, err := svc.repo.GetAccount(GetFilter{ID: id})
	if err != nil {
		return Account{}, err
	}

	if ua.Username == "" {
		ua.Username = acct.Username
	}
	if err = svc.CheckUniqueness(ua.Username, ua.Email, acct); err != nil {
		return Account{}, err
	}

	acct.Name = ua.Name
	acct.Username = ua.Username
	acct.Email = ua.Email
	acct.Role = ua.Role
	if ua.IsActive != nil {
		acct.IsActive = ua.IsActive
	}
	acct.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAccount(acct)
}

func (svc *service) CreateGuardian(ctx context.Context, ng NewGuardian) (GuardianProvision, error) {
	student, err := svc.repo.GetStudentByEnrollmentCode(ng.EnrollmentCode)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return GuardianProvision{}, ErrStudentNotFound
		}
		return GuardianProvision{}, err
	}

	uname := DeriveGuardianHandle(ng.EnrollmentCode, ng.Homoclave)
	if err = svc.CheckUniqueness(uname, ng.Email); err != nil {
		return GuardianProvision{}, err
	}

	tempCred, err := GenerateTemporaryCredential()
	if err != nil {
		return GuardianProvision{}, err
	}

	now := time.Now().UTC()
	expiry := ComputeTempCredentialExpiry(now, svc.tempCredentialValidity)
	acct := Account{
		ID:                    uuid.New().String(),
		Name:                  ng.Name,
		Username:              uname,
		Email:                 ng.Email,
		Role:                  RoleParent,
		TempCredential:        null.StringFrom(tempCred),
		TempCredentialExpires: null.TimeFrom(expiry),
		MustChangeCredential:  true,
		FirstLogin:            true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	acct.SetActive(true)
	if err = acct.SetPassword(tempCred); err != nil {
		return GuardianProvision{}, err
	}

	acct, err = svc.repo.CreateGuardianAccount(acct, ng.Homoclave, student.AccountID)
	if err != nil {
		return GuardianProvision{}, err
	}

	// the account exists either way; a bounced email is reported, not fatal
	res := svc.notifier.SendCredentials(ctx, core.CredentialsEnvelope{
		RecipientEmail:      acct.Email,
		RecipientName:       acct.Name,
		LoginHandle:         acct.Username,
		TemporaryCredential: tempCred,
		Expiry:              expiry,
		StudentName:         student.Name,
		EnrollmentCode:      student.EnrollmentCode,
	})
	if !res.Delivered {
		svc.logger.Warn(fmt.Sprintf("credentials email to %s not delivered", acct.Email))
	}

	return GuardianProvision{
		Account:               acct,
		Student:               student,
		TempCredential:        tempCred,
		NotificationDelivered: res.Delivered,
		NotificationRef:       res.Reference,
	}, nil
}

// Authenticate resolves the login against both username and email, then runs
// the credential state machine:
// disabled account -> ErrAccountDisabled;
// pending change + valid temporary credential -> PendingChange login;
// pending change + expired temporary credential -> ErrTemporaryCredentialExpired;
// otherwise the permanent password is checked.
func (svc *service) Authenticate(creds Credentials) (Login, error) {
	acct, err := svc.repo.GetAccount(GetFilter{UsernameOrEmail: creds.Login})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Login{}, ErrInvalidCredentials
		}
		return Login{}, err
	}
	if !acct.Active() {
		return Login{}, ErrAccountDisabled
	}

	now := time.Now().UTC()
	if acct.MustChangeCredential {
		if acct.TempCredentialExpired(now) {
			return Login{}, ErrTemporaryCredentialExpired
		}
		if !acct.MatchesTempCredential(creds.Password, now) {
			return Login{}, ErrInvalidCredentials
		}
		// no LastLogin update until the change completes and a full login happens
		return Login{Account: acct, PendingChange: true}, nil
	}

	if err = acct.CheckPassword(creds.Password); err != nil {
		return Login{}, ErrInvalidCredentials
	}

	acct.LastLogin = now
	acct.FirstLogin = false
	acct.UpdatedAt = now
	if acct, err = svc.repo.UpdateAccount(acct); err != nil {
		return Login{}, err
	}

	login := Login{Account: acct}
	if acct.IsParent() {
		if login.Students, err = svc.repo.LinkedStudents(acct.ID); err != nil {
			return Login{}, err
		}
	}
	return login, nil
}

func (svc *service) ChangeTemporaryCredential(accountID string, cc ChangeTemporaryCredential) (Account, error) {
	acct, err := svc.repo.GetAccount(GetFilter{ID: accountID})
	if err != nil {
		return Account{}, err
	}
	if !acct.MustChangeCredential || !acct.TempCredential.Valid {
		return Account{}, ErrChangeNotRequired
	}
	if acct.TempCredentialExpired(time.Now().UTC()) {
		return Account{}, ErrTemporaryCredentialExpired
	}

	tmp := Account{}
	if err = tmp.SetPassword(cc.NewCredential); err != nil {
		return Account{}, err
	}
	return svc.repo.SetPermanentCredential(acct.ID, tmp.PasswordHash)
}

func (svc *service) EmailAvailable(email string) (bool, error) {
	_, err := svc.repo.GetAccount(GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (svc *service) GetByID(id string) (Account, error) {
	return svc.repo.GetAccount(GetFilter{ID: id})
}

func (svc *service) Query(filter QueryFilter) ([]Account, error) {
	filter.Clean()
	return svc.repo.QueryAccounts(filter)
}

func (svc *service) LinkedStudents(guardianID string) ([]StudentSummary, error) {
	return svc.repo.LinkedStudents(guardianID)
}

func (svc *service) Delete(id string) error {
	return svc.repo.DeleteAccount(id)
}
