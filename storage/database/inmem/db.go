package inmemdb

import (
	"sync"

	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/syncrun"
	"github.com/trezcool/ushauri/core/user"
)

type (
	// DB is an in-memory store, used by tests & the dev server. Rows are stored by value.
	DB struct {
		user   *userTable
		roster *rosterTables
		run    *runTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]user.User // by ID
	}

	rosterTables struct {
		sync.RWMutex
		institutions map[string]roster.Institution // by external ID
		departments  map[string]roster.Department
		staff        map[string]roster.StaffProfile
		students     map[string]roster.StudentProfile
	}

	runTable struct {
		sync.RWMutex
		table map[string]syncrun.SyncRun // by ID
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]user.User)},
		roster: &rosterTables{
			institutions: make(map[string]roster.Institution),
			departments:  make(map[string]roster.Department),
			staff:        make(map[string]roster.StaffProfile),
			students:     make(map[string]roster.StudentProfile),
		},
		run: &runTable{table: make(map[string]syncrun.SyncRun)},
	}
}
