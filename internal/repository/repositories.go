package repository

import "github.com/jmoiron/sqlx"

type Repositories struct {
	ActivityRepo ActivityRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		ActivityRepo: NewActivityRepository(db),
	}
}
