/*
Copyright 2025 Stoolap Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package storage

// ConstraintType enumerates the bound constraint kinds the storage layer verifies
type ConstraintType int

const (
	// ConstraintNotNull rejects NULL in a column
	ConstraintNotNull ConstraintType = iota
	// ConstraintCheck evaluates a boolean-ish expression per row
	ConstraintCheck
	// ConstraintUnique enforces key uniqueness through an index
	ConstraintUnique
	// ConstraintForeignKey enforces referential integrity across tables
	ConstraintForeignKey
)

// Constraint is a bound constraint: column references and expressions are
// already resolved against the catalog
type Constraint interface {
	ConstraintType() ConstraintType
}

// NotNullConstraint rejects NULL values in one column
type NotNullConstraint struct {
	// ColumnIndex is the logical ordinal of the constrained column
	ColumnIndex int
	// StorageIndex is the physical position of the column inside append chunks
	StorageIndex int
}

func (c *NotNullConstraint) ConstraintType() ConstraintType { return ConstraintNotNull }

// CheckConstraint evaluates an integer-yielding expression per row; a zero
// result at a valid row is a violation, a NULL result is not
type CheckConstraint struct {
	Expression Expression
	// BoundColumns lists the physical columns the expression reads
	BoundColumns []int
}

func (c *CheckConstraint) ConstraintType() ConstraintType { return ConstraintCheck }

// UniqueConstraint enforces uniqueness over a set of physical columns,
// backed by a unique index on the table
type UniqueConstraint struct {
	Columns      []int
	IsPrimaryKey bool
}

func (c *UniqueConstraint) ConstraintType() ConstraintType { return ConstraintUnique }

// ForeignKeyType distinguishes which side of a foreign key a table plays
type ForeignKeyType int

const (
	// ForeignKeyPrimaryTable marks the referenced (primary key) side
	ForeignKeyPrimaryTable ForeignKeyType = iota
	// ForeignKeyForeignTable marks the referencing (foreign key) side
	ForeignKeyForeignTable
	// ForeignKeySelfReference marks a table referencing itself
	ForeignKeySelfReference
)

// ForeignKeyConstraint is a bound foreign key. SchemaName/TableName name the
// other table of the relationship; FKKeys are physical key columns on the
// referencing side, PKKeys on the referenced side.
type ForeignKeyConstraint struct {
	Type       ForeignKeyType
	SchemaName string
	TableName  string
	FKKeys     []int
	PKKeys     []int
}

func (c *ForeignKeyConstraint) ConstraintType() ConstraintType { return ConstraintForeignKey }
