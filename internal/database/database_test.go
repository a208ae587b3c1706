package database_test

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database/dbtest"
)

func TestDecodeSample(t *testing.T) {
	db := dbtest.Sample(t)

	assert.Equal(t, database.StandardTypes, db.Types())
	assert.Equal(t, []string{"Deprecated", "Hidden", "NotCreatable"}, db.Tags())
	assert.Equal(t, []string{"None", "PluginSecurity"}, db.Securities())
	assert.Equal(t, []string{"ReadSafe", "Safe", "Unsafe"}, db.ThreadSafeties())
	assert.Equal(t, []string{"Class", "Group", "Primitive"}, db.Categories())
	assert.Equal(t, "", db.String(0))

	lens := map[string]int{
		database.TypeClass:    5,
		database.TypeProperty: 2,
		database.TypeFunction: 5,
		database.TypeEvent:    3,
		database.TypeCallback: 1,
		database.TypeEnum:     2,
		database.TypeEnumItem: 4,
		database.TypeType:     3,
		"Bogus":               0,
	}
	for typ, n := range lens {
		assert.Equal(t, n, db.Len(typ), typ)
	}

	bit, ok := db.TagBit("deprecated")
	assert.True(t, ok)
	assert.Equal(t, 1, bit)
	_, ok = db.TagBit("bogus")
	assert.False(t, ok)
}

func TestRowFields(t *testing.T) {
	db := dbtest.Sample(t)

	row, ok := db.Row(database.TypeClass, 0)
	require.True(t, ok)
	assert.Equal(t, database.TypeClass, row.Type())
	assert.Equal(t, "Instance", row.Primary().Str())
	assert.False(t, row.Secondary().Valid())
	assert.Equal(t, float64(3), row.Field(database.Members).Num())
	assert.False(t, row.Field(database.Ancestor).Valid())
	assert.Equal(t, "Instance", row.Field(database.MemCat).Str())
	assert.Equal(t, []string{"NotCreatable"}, row.Tags())

	set, ok := row.HasTag("notcreatable")
	assert.True(t, ok)
	assert.True(t, set)
	_, ok = row.HasTag("bogus")
	assert.False(t, ok)
	removed, ok := row.Removed()
	assert.True(t, ok)
	assert.False(t, removed)

	detail, ok := db.Row(database.TypeClass, 3)
	require.True(t, ok)
	assert.Equal(t, "Instance", detail.Field(database.Superclass).Str())
	assert.Equal(t, float64(0), detail.Field(database.Ancestor).Num())
	_, ok = detail.Removed()
	assert.False(t, ok, "detail rows carry no flags")

	prop, ok := db.Row(database.TypeProperty, 1)
	require.True(t, ok)
	assert.Equal(t, "Archivable", prop.Secondary().Str())
	assert.Equal(t, "ReadSafe", prop.Field(database.ThreadSafety).Str())
	assert.Equal(t, "None", prop.Field(database.ReadSecurity).Str())
	assert.Equal(t, "PluginSecurity", prop.Field(database.WriteSecurity).Str())
	assert.Equal(t, "Primitive", prop.Field(database.ValueTypeCat).Str())
	canSave := prop.Field(database.CanSave)
	assert.True(t, canSave.Valid())
	assert.False(t, canSave.Bool())

	event, ok := db.Row(database.TypeEvent, 2)
	require.True(t, ok)
	removed, ok = event.Removed()
	assert.True(t, ok)
	assert.True(t, removed)

	item, ok := db.Row(database.TypeEnumItem, 1)
	require.True(t, ok)
	assert.Equal(t, float64(512), item.Field(database.ItemValue).Num())
	assert.Equal(t, any(float64(512)), item.Field(database.ItemValue).Interface())
	assert.Nil(t, item.Field(database.LegacyName).Interface())

	_, ok = db.Row(database.TypeClass, 5)
	assert.False(t, ok)
}

func TestRowKey(t *testing.T) {
	db := dbtest.Sample(t)

	part, _ := db.Row(database.TypeClass, 2)
	partSuper, _ := db.Row(database.TypeClass, 3)
	instance, _ := db.Row(database.TypeClass, 0)
	assert.Equal(t, part.Key(), partSuper.Key())
	assert.NotEqual(t, part.Key(), instance.Key())

	fn, _ := db.Row(database.TypeFunction, 0)
	fnReturn, _ := db.Row(database.TypeFunction, 1)
	other, _ := db.Row(database.TypeFunction, 2)
	assert.Equal(t, fn.Key(), fnReturn.Key())
	assert.NotEqual(t, fn.Key(), other.Key())
}

func TestRecordsRoundTrip(t *testing.T) {
	db := dbtest.Sample(t)

	var got []database.Record
	for _, typ := range db.Types() {
		db.Scan(typ, func(r database.Row) bool {
			got = append(got, r.Record())
			return true
		})
	}
	assert.Equal(t, dbtest.Records(), got)

	// Re-encoding the decoded records yields the same bytes.
	b := database.NewBuilder()
	require.NoError(t, b.Add(got...))
	buf, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, dbtest.Bytes(t), buf)

	again, err := database.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, db.Strings(), again.Strings())
	assert.Equal(t, db.Checksum(), again.Checksum())
}

func TestScanStops(t *testing.T) {
	db := dbtest.Sample(t)
	n := 0
	db.Scan(database.TypeClass, func(database.Row) bool {
		n++
		return n < 2
	})
	assert.Equal(t, 2, n)
}

func TestStringsRoundTripUTF8(t *testing.T) {
	long := strings.Repeat("é", 150)
	names := []string{"Ünïcødé✓", "日本語", "plain", long}

	b := database.NewBuilder()
	for _, name := range names {
		require.NoError(t, b.Add(&database.TypeRecord{Name: name}))
	}
	buf, err := b.Bytes()
	require.NoError(t, err)
	db, err := database.Decode(buf)
	require.NoError(t, err)

	for i, name := range names[:3] {
		row, ok := db.Row(database.TypeType, i)
		require.True(t, ok)
		assert.Equal(t, name, row.Primary().Str())
	}

	row, _ := db.Row(database.TypeType, 3)
	truncated := row.Primary().Str()
	assert.True(t, utf8.ValidString(truncated))
	assert.Equal(t, strings.Repeat("é", 127), truncated)

	for i, s := range db.Strings() {
		assert.Equal(t, s, db.String(i))
	}
}

func TestDecodeEmpty(t *testing.T) {
	buf, err := database.NewBuilder().Bytes()
	require.NoError(t, err)
	db, err := database.Decode(buf)
	require.NoError(t, err)
	for _, typ := range database.StandardTypes {
		assert.Zero(t, db.Len(typ))
	}
	assert.Empty(t, db.Tags())
}

func TestDecodeCorrupt(t *testing.T) {
	good := dbtest.Bytes(t)

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short header", good[:5]},
		{"missing row bytes", good[:len(good)-1]},
		{"trailing bytes", append(append([]byte{}, good...), 0)},
		{"type index out of range", []byte{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 5}},
		{"string overruns blob", []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := database.Decode(tt.buf)
			assert.ErrorIs(t, err, database.ErrCorrupt)
		})
	}

	_, err := database.Decode(good[:3])
	assert.ErrorIs(t, err, database.ErrTruncated)
}

func TestBuilderLimits(t *testing.T) {
	t.Run("undeclared type", func(t *testing.T) {
		b := database.NewBuilder(database.TypeClass)
		assert.Error(t, b.Add(&database.EnumRecord{Name: "Material"}))
	})

	t.Run("member record of entity type", func(t *testing.T) {
		b := database.NewBuilder()
		assert.Error(t, b.Add(&database.MemberRecord{Kind: database.TypeClass, Name: "x"}))
	})

	t.Run("too many tags", func(t *testing.T) {
		b := database.NewBuilder()
		var tags []string
		for i := 0; i <= database.MaxTags; i++ {
			tags = append(tags, strings.Repeat("t", i+1))
		}
		require.NoError(t, b.Add(&database.TypeRecord{Name: "x", Flags: database.Some(database.EntityFlags{Tags: tags})}))
		_, err := b.Bytes()
		assert.Error(t, err)
	})

	t.Run("too many categories", func(t *testing.T) {
		b := database.NewBuilder()
		for i := 0; i <= database.MaxEnumEntries; i++ {
			require.NoError(t, b.Add(&database.TypeRecord{Name: "x", Category: database.Some(strings.Repeat("c", i+1))}))
		}
		_, err := b.Bytes()
		assert.Error(t, err)
	})

	t.Run("value out of range", func(t *testing.T) {
		b := database.NewBuilder()
		require.NoError(t, b.Add(&database.ClassRecord{Name: "x", Superclasses: database.Some(255)}))
		_, err := b.Bytes()
		assert.Error(t, err)
	})
}

func TestTypeSets(t *testing.T) {
	sets := database.DefaultTypeSets()
	assert.Equal(t, []string{"Class", "Enum", "Type"}, sets.Primary)
	assert.Equal(t, []string{"Property", "Function", "Event", "Callback"}, sets.Members)
	assert.Equal(t, []string{"Property", "Function", "Event", "Callback", "EnumItem"}, sets.Secondary)
	assert.Equal(t, database.StandardTypes, sets.All)

	typ, ok := sets.Lookup("enumitem")
	assert.True(t, ok)
	assert.Equal(t, "EnumItem", typ)
	_, ok = sets.Lookup("bogus")
	assert.False(t, ok)

	assert.Equal(t, sets, dbtest.Sample(t).TypeSets())
}

func TestListing(t *testing.T) {
	db := dbtest.Sample(t)

	values, ok := db.Listing("TAG")
	assert.True(t, ok)
	assert.Equal(t, db.Tags(), values)

	values, ok = db.Listing(database.AxisTypeCat)
	assert.True(t, ok)
	assert.Equal(t, db.Categories(), values)

	_, ok = db.Listing("bogus")
	assert.False(t, ok)
}

func TestChecksum(t *testing.T) {
	a := dbtest.Sample(t)
	b := dbtest.Sample(t)
	assert.Len(t, a.Checksum(), 64)
	assert.Equal(t, a.Checksum(), b.Checksum())
}

func TestRecordJSON(t *testing.T) {
	db := dbtest.Sample(t)
	row, _ := db.Row(database.TypeClass, 3)

	out, err := json.Marshal(row.Record())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Part","ancestor":0,"superclass":"Instance"}`, string(out))
}
