package models

// HomeroomRole marks the homeroom link in classes_teacher.
const HomeroomRole = "HOMEROOM"

// Class represents a school class.
type Class struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
