// Package inmemdb provides map-backed repositories for tests and local
// development, mirroring the SQL repositories' behavior including conflict
// detection and provisioning atomicity.
package inmemdb

import (
	"sync"

	"github.com/escolarapp/escolar/core/account"
)

type (
	studentRecord struct {
		accountID      string
		enrollmentCode string
		groupID        string
	}

	guardianLink struct {
		guardianID string
		studentID  string
	}

	DB struct {
		mutex sync.RWMutex

		accounts  map[string]*account.Account // by account ID
		students  map[string]*studentRecord   // by account ID
		groups    map[string]*account.Group   // by group ID
		guardians map[string]string           // account ID -> homoclave
		links     []guardianLink

		// dependent record counts per account ID; stand-ins for the
		// attendance and incident tables that block deletion
		dependents map[string]int

		// FailEnrollmentInsert makes the student-record insert of
		// CreateStudentAccount fail, to exercise provisioning rollback.
		FailEnrollmentInsert bool
	}
)

func NewDB() *DB {
	return &DB{
		accounts:   make(map[string]*account.Account),
		students:   make(map[string]*studentRecord),
		groups:     make(map[string]*account.Group),
		guardians:  make(map[string]string),
		dependents: make(map[string]int),
	}
}

// AddDependent registers a dependent record (an attendance entry or an
// incident) against an account, blocking its deletion.
func (db *DB) AddDependent(accountID string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.dependents[accountID]++
}
