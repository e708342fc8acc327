package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/escolarapp/escolar/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Parent", Value: RoleParent},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Account struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Username              string      `json:"username"`
	Email                 string      `json:"email"`
	Role                  string      `json:"role"`
	IsActive              *bool       `json:"is_active"`
	PasswordHash          []byte      `json:"-"`
	TempCredential        null.String `json:"-"`
	TempCredentialExpires null.Time   `json:"-"`
	MustChangeCredential  bool        `json:"must_change_credential"`
	FirstLogin            bool        `json:"first_login"`
	CreatedAt             time.Time   `json:"created_at"` // UTC
	UpdatedAt             time.Time   `json:"updated_at"` // UTC
	LastLogin             time.Time   `json:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a *Account) SetActive(active bool) { a.IsActive = &active }

func (a *Account) Active() bool { return a.IsActive == nil || *a.IsActive }

func (a *Account) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a *Account) IsTeacher() bool { return a.Role == RoleTeacher }
func (a *Account) IsStudent() bool { return a.Role == RoleStudent }
func (a *Account) IsParent() bool  { return a.Role == RoleParent }

// TempCredentialExpired reports whether a temporary credential was issued and
// has passed its expiry.
func (a *Account) TempCredentialExpired(now time.Time) bool {
	return a.TempCredentialExpires.Valid && now.After(a.TempCredentialExpires.Time)
}

// MatchesTempCredential reports whether pwd equals a still-valid temporary credential.
func (a *Account) MatchesTempCredential(pwd string, now time.Time) bool {
	return a.TempCredential.Valid &&
		a.TempCredentialExpires.Valid &&
		!now.After(a.TempCredentialExpires.Time) &&
		pwd == a.TempCredential.String
}

// StudentEnrollment is the student-role child record, owned 1:1 by its Account.
type StudentEnrollment struct {
	AccountID      string      `json:"account_id"`
	EnrollmentCode string      `json:"enrollment_code"`
	GroupID        null.String `json:"group_id"`
	WorkshopID     null.String `json:"workshop_id"`
}

// Group is looked up or lazily created by (yearLevel, shiftLabel) during
// student provisioning.
type Group struct {
	ID         string `json:"id"`
	YearLevel  int    `json:"year_level"`
	ShiftLabel string `json:"shift_label"`
}

// StudentSummary is the linked-student view embedded in guardian logins.
type StudentSummary struct {
	AccountID      string `json:"id"`
	Name           string `json:"name"`
	EnrollmentCode string `json:"enrollment_code"`
}

// StudentAttributes are the role-specific fields required to provision a
// student enrollment alongside the account.
type StudentAttributes struct {
	EnrollmentCode string `json:"enrollment_code" validate:"omitempty,enrollcode"`
	GroupNumber    int    `json:"group_number" validate:"omitempty,oneof=1 2"`
	YearLevel      int    `json:"year_level" validate:"omitempty,oneof=1 2 3"`
}

// NewAccount contains information needed to create a new Account.
// Role-specific attributes come as their own sub-struct per role, so a field
// required only for one role is a shape concern, not a runtime check.
type NewAccount struct {
	Name     string             `json:"name" validate:"required"`
	Username string             `json:"username" validate:"omitempty,max=20,alphanum_"`
	Email    string             `json:"email" validate:"required,email"`
	Password string             `json:"password" validate:"required"`
	Role     string             `json:"role" validate:"required,role"`
	Student  *StudentAttributes `json:"student,omitempty"`
}

func (na *NewAccount) Validate(validate *validator.Validate, svc ServiceInterface) error {
	na.Name = core.CleanString(na.Name)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(na.Username, na.Email)
}

// UpdateAccount carries the admin-editable fields of an existing Account.
// Uniqueness is re-checked by the service, excluding the account itself.
type UpdateAccount struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"omitempty,max=20,alphanum_"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,role"`
	IsActive *bool  `json:"is_active"`
}

func (ua *UpdateAccount) Validate(validate *validator.Validate) error {
	ua.Name = core.CleanString(ua.Name)
	ua.Username = core.CleanString(ua.Username, true /* lower */)
	ua.Email = core.CleanString(ua.Email, true /* lower */)
	return validate.Struct(ua)
}

// NewGuardian contains information needed to provision a guardian account
// linked to an existing student, with emailed temporary credentials.
type NewGuardian struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	EnrollmentCode string `json:"enrollment_code" validate:"required,enrollcode"`
	Homoclave      string `json:"homoclave" validate:"required,homoclave"`
}

func (ng *NewGuardian) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Email = core.CleanString(ng.Email, true /* lower */)
	ng.EnrollmentCode = core.CleanString(ng.EnrollmentCode)
	ng.Homoclave = core.CleanString(ng.Homoclave)
	return validate.Struct(ng)
}

// GuardianProvision is the outcome of a guardian provisioning run. Notification
// delivery is reported, never fatal: the account stays usable either way.
type GuardianProvision struct {
	Account               Account        `json:"account"`
	Student               StudentSummary `json:"student"`
	TempCredential        string         `json:"-"`
	NotificationDelivered bool           `json:"notification_delivered"`
	NotificationRef       string         `json:"notification_ref,omitempty"`
}

// Credentials is a login request: a single login string matched against both
// username and email, plus the password.
type Credentials struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Login = core.CleanString(c.Login, true /* lower */)
	return validate.Struct(c)
}

// Login is the outcome of an authentication run.
type Login struct {
	Account       Account
	Students      []StudentSummary // linked students; parent role only
	PendingChange bool             // temporary credential accepted, change still required
}

// ChangeTemporaryCredential swaps a temporary credential for a permanent one.
type ChangeTemporaryCredential struct {
	NewCredential string `json:"new_credential" validate:"required"`
}

func (cc *ChangeTemporaryCredential) Validate(validate *validator.Validate) error {
	return validate.Struct(cc)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single account. Exactly one selector should be set;
// UsernameOrEmail matches the value against both columns.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
