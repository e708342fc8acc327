package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

// unique constraint names from the migrations; pq unique violations are
// translated back into domain errors with these
const (
	usernameConstraint       = "account_username_key"
	emailConstraint          = "account_email_key"
	enrollmentCodeConstraint = "student_enrollment_code_key"

	pqUniqueViolation = "23505"
	pqFKViolation     = "23503"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sql.DB) *accountRepository {
	return &accountRepository{db: sqlx.NewDb(db, "postgres")}
}

// accountRow mirrors the account table.
type accountRow struct {
	ID                    string      `db:"id"`
	Name                  string      `db:"name"`
	Username              string      `db:"username"`
	Email                 string      `db:"email"`
	Role                  string      `db:"role"`
	PasswordHash          []byte      `db:"password_hash"`
	TempCredential        null.String `db:"temp_credential"`
	TempCredentialExpires null.Time   `db:"temp_credential_expires"`
	MustChangeCredential  bool        `db:"must_change_credential"`
	FirstLogin            bool        `db:"first_login"`
	IsActive              null.Bool   `db:"is_active"`
	CreatedAt             null.Time   `db:"created_at"`
	UpdatedAt             null.Time   `db:"updated_at"`
	LastLogin             null.Time   `db:"last_login"`
}

func (repo accountRepository) row(acct account.Account) accountRow {
	return accountRow{
		ID:                    acct.ID,
		Name:                  acct.Name,
		Username:              acct.Username,
		Email:                 acct.Email,
		Role:                  acct.Role,
		PasswordHash:          acct.PasswordHash,
		TempCredential:        acct.TempCredential,
		TempCredentialExpires: acct.TempCredentialExpires,
		MustChangeCredential:  acct.MustChangeCredential,
		FirstLogin:            acct.FirstLogin,
		IsActive:              null.BoolFromPtr(acct.IsActive),
		CreatedAt:             null.NewTime(acct.CreatedAt.UTC(), !acct.CreatedAt.IsZero()),
		UpdatedAt:             null.NewTime(acct.UpdatedAt.UTC(), !acct.UpdatedAt.IsZero()),
		LastLogin:             null.NewTime(acct.LastLogin.UTC(), !acct.LastLogin.IsZero()),
	}
}

func (repo accountRepository) unrow(row accountRow) account.Account {
	return account.Account{
		ID:                    row.ID,
		Name:                  row.Name,
		Username:              row.Username,
		Email:                 row.Email,
		Role:                  row.Role,
		PasswordHash:          row.PasswordHash,
		TempCredential:        row.TempCredential,
		TempCredentialExpires: row.TempCredentialExpires,
		MustChangeCredential:  row.MustChangeCredential,
		FirstLogin:            row.FirstLogin,
		IsActive:              row.IsActive.Ptr(),
		CreatedAt:             row.CreatedAt.Time,
		UpdatedAt:             row.UpdatedAt.Time,
		LastLogin:             row.LastLogin.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to account.ErrNotFound
func (repo accountRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return account.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr catches a unique violation raced past the pre-insert
// uniqueness check and translates it by constraint name.
func (repo accountRepository) trapUniqueErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		switch pqErr.Constraint {
		case usernameConstraint:
			return core.NewConflictError(account.ErrUsernameExists, core.FieldConflict{Field: "username"})
		case emailConstraint:
			return core.NewConflictError(account.ErrEmailExists, core.FieldConflict{Field: "email"})
		case enrollmentCodeConstraint:
			return core.NewConflictError(account.ErrEnrollmentCodeExists, core.FieldConflict{Field: "enrollment_code"})
		}
	}
	return errors.Wrap(err, msg)
}

const insertAccountQuery = `
INSERT INTO account (id, name, username, email, role, password_hash, temp_credential, temp_credential_expires,
                     must_change_credential, first_login, is_active, created_at, updated_at)
VALUES (:id, :name, :username, :email, :role, :password_hash, :temp_credential, :temp_credential_expires,
        :must_change_credential, :first_login, :is_active, :created_at, :updated_at)`

// uniquenessQuery builds the collision probe with ? bindvars throughout so
// sqlx.In can expand the optional NOT IN clause; the caller must Rebind.
func uniquenessQuery(username, email string, excludedIDs []string) (string, []interface{}, error) {
	query := `SELECT id, username, email FROM account WHERE (username = ? OR email = ?)`
	args := []interface{}{username, email}
	if len(excludedIDs) > 0 {
		query += ` AND id NOT IN (?)`
		args = append(args, excludedIDs)
	}
	return sqlx.In(query, args...)
}

func (repo accountRepository) CheckUniqueness(username, email string, exclAccts ...account.Account) ([]core.FieldConflict, error) {
	ids := make([]string, 0, len(exclAccts))
	for _, a := range exclAccts {
		ids = append(ids, a.ID)
	}
	query, args, err := uniquenessQuery(username, email, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building uniqueness query")
	}

	var rows []struct {
		ID       string `db:"id"`
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := repo.db.Select(&rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "checking account uniqueness")
	}

	var conflicts []core.FieldConflict
	for _, row := range rows {
		if row.Username == username {
			conflicts = append(conflicts, core.FieldConflict{Field: "username", AccountID: row.ID})
		}
		if row.Email == email {
			conflicts = append(conflicts, core.FieldConflict{Field: "email", AccountID: row.ID})
		}
	}
	return conflicts, nil
}

func (repo accountRepository) UsernameTaken(username string) (bool, error) {
	var taken bool
	err := repo.db.Get(&taken, `SELECT EXISTS (SELECT 1 FROM account WHERE username = $1)`, username)
	return taken, errors.Wrap(err, "checking username")
}

func (repo accountRepository) CreateAccount(acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if _, err := repo.db.NamedExec(insertAccountQuery, repo.row(acct)); err != nil {
		return account.Account{}, repo.trapUniqueErr(err, "inserting account")
	}
	return acct, nil
}

func (repo accountRepository) CreateStudentAccount(acct account.Account, enr account.StudentEnrollment, grp account.Group) (account.Account, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return account.Account{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if _, err = tx.NamedExec(insertAccountQuery, repo.row(acct)); err != nil {
		return account.Account{}, repo.trapUniqueErr(err, "inserting account")
	}

	groupID, err := repo.findOrCreateGroup(tx, grp)
	if err != nil {
		return account.Account{}, err
	}

	_, err = tx.Exec(
		`INSERT INTO student (account_id, enrollment_code, group_id) VALUES ($1, $2, $3)`,
		acct.ID, enr.EnrollmentCode, groupID,
	)
	if err != nil {
		return account.Account{}, repo.trapUniqueErr(err, "inserting student")
	}

	if err = tx.Commit(); err != nil {
		return account.Account{}, errors.Wrap(err, "committing student account")
	}
	return acct, nil
}

// findOrCreateGroup resolves a (yearLevel, shiftLabel) pair to a group ID,
// creating the group on first sight. A concurrent insert of the same pair is
// settled by the unique constraint and a re-read.
func (repo accountRepository) findOrCreateGroup(tx *sqlx.Tx, grp account.Group) (string, error) {
	const getQuery = `SELECT id FROM school_group WHERE year_level = $1 AND shift_label = $2`

	var id string
	err := tx.Get(&id, getQuery, grp.YearLevel, grp.ShiftLabel)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", errors.Wrap(err, "finding group")
	}

	id = uuid.New().String()
	_, err = tx.Exec(
		`INSERT INTO school_group (id, year_level, shift_label) VALUES ($1, $2, $3)
		 ON CONFLICT ON CONSTRAINT school_group_year_shift_key DO NOTHING`,
		id, grp.YearLevel, grp.ShiftLabel,
	)
	if err != nil {
		return "", errors.Wrap(err, "creating group")
	}
	if err = tx.Get(&id, getQuery, grp.YearLevel, grp.ShiftLabel); err != nil {
		return "", errors.Wrap(err, "re-reading group")
	}
	return id, nil
}

func (repo accountRepository) CreateGuardianAccount(acct account.Account, homoclave, studentID string) (account.Account, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return account.Account{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if _, err = tx.NamedExec(insertAccountQuery, repo.row(acct)); err != nil {
		return account.Account{}, repo.trapUniqueErr(err, "inserting account")
	}
	if _, err = tx.Exec(`INSERT INTO guardian (account_id, homoclave) VALUES ($1, $2)`, acct.ID, homoclave); err != nil {
		return account.Account{}, errors.Wrap(err, "inserting guardian")
	}
	if _, err = tx.Exec(
		`INSERT INTO guardian_student (guardian_id, student_id) VALUES ($1, $2)`, acct.ID, studentID,
	); err != nil {
		return account.Account{}, errors.Wrap(err, "linking guardian to student")
	}

	if err = tx.Commit(); err != nil {
		return account.Account{}, errors.Wrap(err, "committing guardian account")
	}
	return acct, nil
}

func (repo accountRepository) GetAccount(filter account.GetFilter) (account.Account, error) {
	const base = `SELECT * FROM account WHERE `

	var (
		query string
		args  []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return account.Account{}, account.ErrNotFound
		}
		query, args = base+`id = $1`, []interface{}{filter.ID}
	// guardian handles are stored uppercase while login input is lowered,
	// so username matching folds case
	case filter.Username != "":
		query, args = base+`LOWER(username) = LOWER($1)`, []interface{}{filter.Username}
	case filter.Email != "":
		query, args = base+`email = $1`, []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		query, args = base+`LOWER(username) = LOWER($1) OR email = $1`, []interface{}{filter.UsernameOrEmail}
	default:
		return account.Account{}, account.ErrNotFound
	}

	var row accountRow
	if err := repo.db.Get(&row, query, args...); err != nil {
		return account.Account{}, repo.trapNoRowsErr(err, "finding account")
	}
	return repo.unrow(row), nil
}

func (repo accountRepository) GetStudentByEnrollmentCode(code string) (account.StudentSummary, error) {
	var row struct {
		AccountID      string `db:"account_id"`
		Name           string `db:"name"`
		EnrollmentCode string `db:"enrollment_code"`
	}
	err := repo.db.Get(&row,
		`SELECT s.account_id, a.name, s.enrollment_code
		 FROM student s JOIN account a ON a.id = s.account_id
		 WHERE s.enrollment_code = $1`, code)
	if err != nil {
		return account.StudentSummary{}, repo.trapNoRowsErr(err, "finding student")
	}
	return account.StudentSummary{AccountID: row.AccountID, Name: row.Name, EnrollmentCode: row.EnrollmentCode}, nil
}

func (repo accountRepository) LinkedStudents(guardianID string) ([]account.StudentSummary, error) {
	var rows []struct {
		AccountID      string `db:"account_id"`
		Name           string `db:"name"`
		EnrollmentCode string `db:"enrollment_code"`
	}
	err := repo.db.Select(&rows,
		`SELECT s.account_id, a.name, s.enrollment_code
		 FROM guardian_student gs
		 JOIN student s ON s.account_id = gs.student_id
		 JOIN account a ON a.id = s.account_id
		 WHERE gs.guardian_id = $1
		 ORDER BY a.name`, guardianID)
	if err != nil {
		return nil, errors.Wrap(err, "querying linked students")
	}

	students := make([]account.StudentSummary, 0, len(rows))
	for _, row := range rows {
		students = append(students, account.StudentSummary{
			AccountID:      row.AccountID,
			Name:           row.Name,
			EnrollmentCode: row.EnrollmentCode,
		})
	}
	return students, nil
}

func (repo accountRepository) QueryAccounts(filter account.QueryFilter) ([]account.Account, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		conds = append(conds, `(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`)
		args = append(args, val, val, val)
	}
	if len(filter.Roles) > 0 {
		conds = append(conds, `role IN (?)`)
		args = append(args, filter.Roles)
	}
	if filter.IsActive != nil {
		conds = append(conds, `is_active = ?`)
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, `created_at >= ?`)
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, `created_at <= ?`)
		args = append(args, filter.CreatedTo.UTC())
	}

	query := `SELECT * FROM account`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY ` + core.DBOrdering{Field: "created_at"}.String()

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building account query")
	}

	var rows []accountRow
	if err = repo.db.Select(&rows, repo.db.Rebind(query), inArgs...); err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}

	accts := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accts = append(accts, repo.unrow(row))
	}
	return accts, nil
}

func (repo accountRepository) UpdateAccount(acct account.Account) (account.Account, error) {
	res, err := repo.db.NamedExec(
		`UPDATE account
		 SET name = :name, username = :username, email = :email, role = :role,
		     password_hash = :password_hash, temp_credential = :temp_credential,
		     temp_credential_expires = :temp_credential_expires,
		     must_change_credential = :must_change_credential, first_login = :first_login,
		     is_active = :is_active, updated_at = :updated_at, last_login = :last_login
		 WHERE id = :id`, repo.row(acct))
	if err != nil {
		return account.Account{}, repo.trapUniqueErr(err, "updating account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return acct, nil
}

func (repo accountRepository) SetPermanentCredential(id string, hash []byte) (account.Account, error) {
	res, err := repo.db.Exec(
		`UPDATE account
		 SET password_hash = $2, temp_credential = NULL, temp_credential_expires = NULL,
		     must_change_credential = FALSE, first_login = FALSE, updated_at = NOW()
		 WHERE id = $1`, id, hash)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "setting permanent credential")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return repo.GetAccount(account.GetFilter{ID: id})
}

// DeleteAccount removes the account with its role records, unless dependent
// records still reference it.
func (repo accountRepository) DeleteAccount(id string) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var referenced bool
	err = tx.Get(&referenced,
		`SELECT EXISTS (SELECT 1 FROM guardian_student WHERE student_id = $1)
		     OR EXISTS (SELECT 1 FROM attendance WHERE account_id = $1)
		     OR EXISTS (SELECT 1 FROM incident WHERE account_id = $1)`, id)
	if err != nil {
		return errors.Wrap(err, "checking account dependents")
	}
	if referenced {
		return account.ErrAccountReferenced
	}

	if _, err = tx.Exec(`DELETE FROM guardian_student WHERE guardian_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting guardian links")
	}
	if _, err = tx.Exec(`DELETE FROM guardian WHERE account_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting guardian record")
	}
	if _, err = tx.Exec(`DELETE FROM student WHERE account_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting student record")
	}

	res, err := tx.Exec(`DELETE FROM account WHERE id = $1`, id)
	if err != nil {
		// dependents inserted after the check still block the delete
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqFKViolation {
			return account.ErrAccountReferenced
		}
		return errors.Wrap(err, "deleting account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "committing account delete")
}
