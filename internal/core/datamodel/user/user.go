package user

import (
	"database/sql"
	"time"
)

// User is the row shape of the users table.
type User struct {
	ID           string         `db:"id" gorm:"primaryKey;type:uuid"`
	Email        string         `db:"email" gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string         `db:"password_hash" gorm:"column:password_hash;not null"`
	Role         string         `db:"role" gorm:"column:role;not null"`
	Name         string         `db:"name" gorm:"column:name;not null"`
	RollNumber   sql.NullString `db:"roll_number" gorm:"column:roll_number"`
	Department   sql.NullString `db:"department" gorm:"column:department"`
	CreatedAt    time.Time      `db:"created_at" gorm:"column:created_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}
