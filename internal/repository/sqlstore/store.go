package sqlstore

import (
	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/repository"
)

// New wires every repository to the same database handle
func New(db *sqlx.DB) repository.Repositories {
	return repository.Repositories{
		Users:      NewUserRepository(db),
		Branches:   NewBranchRepository(db),
		Trainers:   NewTrainerRepository(db),
		Groups:     NewGroupRepository(db),
		Children:   NewChildRepository(db),
		Sessions:   NewSessionRepository(db),
		Attendance: NewAttendanceRepository(db),
		Payments:   NewPaymentRepository(db),
		Logs:       NewLogRepository(db),
		Stats:      NewStatsRepository(db),
	}
}
