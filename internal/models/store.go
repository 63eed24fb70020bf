package models

import "database/sql"

// Store is the mysql-backed persistence layer for the automation
// engine
type Store struct {
	Db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{Db: db}
}
