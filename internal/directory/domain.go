package directory

import (
	"errors"
	"time"
)

// Grade classifies a customer and selects which margin formula applies.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// Grades lists every grade in rank order.
var Grades = []Grade{GradeS, GradeA, GradeB, GradeC, GradeD, GradeE}

// Valid reports whether the grade is a known classification.
func (g Grade) Valid() bool {
	switch g {
	case GradeS, GradeA, GradeB, GradeC, GradeD, GradeE:
		return true
	}
	return false
}

// Customer is a buyer registered in the directory.
type Customer struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Grade     Grade     `json:"grade"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BaseAdjustment is a standing per-customer-per-product price offset that
// adds directly to every resolved sell price.
type BaseAdjustment struct {
	CustomerID int64   `json:"customer_id"`
	ProductID  int64   `json:"product_id"`
	Amount     float64 `json:"amount"`
}

// GradeChange records a grade transition. Changing the grade wipes all of the
// customer's base adjustments, so the previous grade is kept for reference.
type GradeChange struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	FromGrade  Grade     `json:"from_grade"`
	ToGrade    Grade     `json:"to_grade"`
	Actor      string    `json:"actor"`
	ChangedAt  time.Time `json:"changed_at"`
}

var (
	// ErrNotFound indicates a missing customer.
	ErrNotFound = errors.New("directory: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("directory: invalid input")
	// ErrDuplicateCode occurs when a customer code is already taken.
	ErrDuplicateCode = errors.New("directory: code already exists")
)
