package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incisive-io/tabled/internal/errs"
	"github.com/incisive-io/tabled/internal/storage"
)

func TestWrite_UniqueViolation(t *testing.T) {
	err := Write(&storage.Error{
		Code:    storage.CodeUniqueViolation,
		Message: `duplicate key value violates unique constraint "users_email_key"`,
		Meta:    storage.Meta{Target: []string{"email"}},
	}, map[string]any{"email": "x@y.z", "name": "X"})

	require.True(t, errs.IsConflict(err))
	assert.Contains(t, err.Error(), "'x@y.z' for email already exists")

	var domainErr *errs.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, []string{"email"}, domainErr.Fields)
}

func TestWrite_UniqueViolationCompositeTarget(t *testing.T) {
	err := Write(&storage.Error{
		Code: storage.CodeUniqueViolation,
		Meta: storage.Meta{Target: []string{"lab_id", "lab_product_id"}},
	}, map[string]any{"lab_id": int64(4), "lab_product_id": "p1"})

	require.True(t, errs.IsConflict(err))
	assert.Contains(t, err.Error(), "lab_id, lab_product_id")
}

func TestWrite_ForeignKeyViolation(t *testing.T) {
	err := Write(&storage.Error{
		Code: storage.CodeForeignKeyViolation,
		Meta: storage.Meta{FieldName: "lab_product_mapping_incisive_product_id_fkey"},
	}, nil)

	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(),
		"Invalid value for 'incisive_product_id'. The referenced record does not exist.")
}

func TestWrite_ForeignKeyByMessageOnly(t *testing.T) {
	err := Write(&storage.Error{
		Code:    storage.CodeQueryFailed,
		Message: "insert or update violates foreign key constraint",
	}, nil)

	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "referenced record does not exist")
}

func TestWrite_CheckViolation(t *testing.T) {
	err := Write(&storage.Error{
		Code:    storage.CodeCheckViolation,
		Message: `new row for relation "labs" violates check constraint "labs_partner_model_check"`,
		Meta:    storage.Meta{FieldName: "labs_partner_model_check"},
	}, nil)

	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(),
		"Invalid value for 'partner_model'. Please check allowed values.")
}

func TestWrite_CheckViolationMySQLMessage(t *testing.T) {
	err := Write(&storage.Error{
		Code:    storage.CodeQueryFailed,
		Message: `Check constraint 'labs_partner_model_check' is violated.`,
	}, nil)

	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "partner_model")
}

func TestWrite_InvalidValueUsesLastLine(t *testing.T) {
	err := Write(&storage.Error{
		Code:    storage.CodeInvalidValue,
		Message: "something failed\n\n  column age is out of range  \n",
	}, nil)

	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "column age is out of range")
}

func TestWrite_PassthroughCases(t *testing.T) {
	// Non-storage errors and non-constraint storage errors come back as-is.
	plain := errors.New("boom")
	assert.Equal(t, plain, Write(plain, nil))

	connErr := &storage.Error{Code: storage.CodeConnectionFailed, Message: "down"}
	assert.Equal(t, error(connErr), Write(connErr, nil))
}

func TestDelete_ForeignKeyNamesReferencingTable(t *testing.T) {
	err := Delete(&storage.Error{
		Code: storage.CodeForeignKeyViolation,
		Meta: storage.Meta{FieldName: "product_lab_rev_share_fee_schedule_name_fkey"},
	})

	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(),
		"Cannot delete this record. It is referenced by product_lab_rev_share_fee_schedule.")
}

func TestDelete_ForeignKeyWithoutConstraintName(t *testing.T) {
	err := Delete(&storage.Error{
		Code:    storage.CodeForeignKeyViolation,
		Message: "delete violates foreign key constraint",
	})

	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "referenced by other records")
}

func TestDelete_Passthrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, Delete(plain))

	serr := &storage.Error{Code: storage.CodeQueryFailed, Message: "syntax error"}
	assert.Equal(t, error(serr), Delete(serr))
}
