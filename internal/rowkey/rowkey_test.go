package rowkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incisive-io/tabled/internal/catalog"
	"github.com/incisive-io/tabled/internal/errs"
)

func usersDesc() *catalog.TableDescriptor {
	return &catalog.TableDescriptor{
		Name: "users",
		Fields: []catalog.FieldDescriptor{
			{Name: "id", Type: catalog.TypeString, IsIdentifier: true},
			{Name: "email", Type: catalog.TypeString},
		},
		PrimaryKey: []string{"id"},
	}
}

func revShareDesc() *catalog.TableDescriptor {
	return &catalog.TableDescriptor{
		Name: "product_lab_rev_share",
		Fields: []catalog.FieldDescriptor{
			{Name: "lab_id", Type: catalog.TypeInt64, IsIdentifier: true},
			{Name: "lab_product_id", Type: catalog.TypeString, IsIdentifier: true},
			{Name: "fee_schedule_name", Type: catalog.TypeString, IsIdentifier: true},
			{Name: "revenue_share", Type: catalog.TypeFloat},
		},
		PrimaryKey: []string{"lab_id", "lab_product_id", "fee_schedule_name"},
	}
}

func TestDecode_SingleKey(t *testing.T) {
	key, err := Decode(usersDesc(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "abc-123"}, key)
}

func TestDecode_SingleIntKey(t *testing.T) {
	desc := &catalog.TableDescriptor{
		Name: "labs",
		Fields: []catalog.FieldDescriptor{
			{Name: "lab_id", Type: catalog.TypeInt64, IsIdentifier: true},
		},
		PrimaryKey: []string{"lab_id"},
	}

	key, err := Decode(desc, "42")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lab_id": int64(42)}, key)

	// A non-numeric identifier for an integer key cannot match any row.
	_, err = Decode(desc, "not-a-number")
	assert.True(t, errs.IsNotFound(err))
}

func TestDecode_CompositeKey(t *testing.T) {
	key, err := Decode(revShareDesc(), `{"lab_id": 4, "lab_product_id": "p1", "fee_schedule_name": "Standard"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"lab_id":            int64(4),
		"lab_product_id":    "p1",
		"fee_schedule_name": "Standard",
	}, key)
}

func TestDecode_CompositeKeyFieldOrderIrrelevant(t *testing.T) {
	a, err := Decode(revShareDesc(), `{"lab_id": 4, "lab_product_id": "p1", "fee_schedule_name": "Standard"}`)
	require.NoError(t, err)
	b, err := Decode(revShareDesc(), `{"fee_schedule_name": "Standard", "lab_product_id": "p1", "lab_id": 4}`)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecode_CompositeKeyNotJSON(t *testing.T) {
	_, err := Decode(revShareDesc(), "just-a-string")
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "lab_id, lab_product_id, fee_schedule_name")
}

func TestDecode_CompositeKeyMissingFields(t *testing.T) {
	_, err := Decode(revShareDesc(), `{"lab_id": 4}`)
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "lab_product_id")
	assert.Contains(t, err.Error(), "fee_schedule_name")
	assert.NotContains(t, err.Error(), "missing fields: lab_id")
}

func TestDecode_NoPrimaryKey(t *testing.T) {
	desc := &catalog.TableDescriptor{
		Name:   "no_pk",
		Fields: []catalog.FieldDescriptor{{Name: "value", Type: catalog.TypeString}},
	}
	_, err := Decode(desc, "x")
	assert.True(t, errs.IsNotFound(err))
}

func TestEncode_SingleKey(t *testing.T) {
	id := Encode(usersDesc(), map[string]any{"id": "abc", "email": "x@y.z"})
	assert.Equal(t, "abc", id)
}

func TestEncodeDecode_CompositeRoundTrip(t *testing.T) {
	desc := revShareDesc()
	row := map[string]any{
		"lab_id":            int64(7),
		"lab_product_id":    "crown-x",
		"fee_schedule_name": "Premium",
		"revenue_share":     0.2,
	}

	encoded := Encode(desc, row)
	key, err := Decode(desc, encoded)
	require.NoError(t, err)

	assert.Equal(t, int64(7), key["lab_id"])
	assert.Equal(t, "crown-x", key["lab_product_id"])
	assert.Equal(t, "Premium", key["fee_schedule_name"])
	// Non-key fields never leak into the identity.
	assert.NotContains(t, key, "revenue_share")
}
