// Package dbtest builds small record databases for tests.
package dbtest

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
)

func tags(removed bool, tags ...string) database.Opt[database.EntityFlags] {
	return database.Some(database.EntityFlags{Removed: removed, Tags: tags})
}

func str(s string) database.Opt[string] { return database.Some(s) }
func num(n int) database.Opt[int]       { return database.Some(n) }
func boolean(b bool) database.Opt[bool] { return database.Some(b) }

// Records returns the sample records in table order. Entity rows come first
// within each type, followed by their detail rows.
func Records() []database.Record {
	return []database.Record{
		&database.ClassRecord{Name: "Instance", Flags: tags(false, "NotCreatable"), Superclasses: num(0), Subclasses: num(1), Members: num(3), MemCat: str("Instance")},
		&database.ClassRecord{Name: "Instance", Subclass: str("Part")},
		&database.ClassRecord{Name: "Part", Flags: tags(false), Superclasses: num(1), Subclasses: num(0), Members: num(1), MemCat: str("PhysicsParts")},
		&database.ClassRecord{Name: "Part", Ancestor: num(0), Superclass: str("Instance")},
		&database.ClassRecord{Name: "Workspace", Flags: tags(false, "Deprecated"), Superclasses: num(1), Subclasses: num(0), Members: num(0), MemCat: str("Instance")},

		&database.MemberRecord{Kind: database.TypeProperty, Class: "Instance", Name: "Name", Flags: tags(false),
			CanSave: boolean(true), CanLoad: boolean(true), ThreadSafety: str("ReadSafe"),
			ReadSecurity: str("None"), WriteSecurity: str("None"), ValueTypeCat: str("Primitive"),
			ValueTypeName: str("string"), Category: str("Data"), Default: str("Instance")},
		&database.MemberRecord{Kind: database.TypeProperty, Class: "Instance", Name: "Archivable", Flags: tags(false, "Hidden"),
			CanSave: boolean(false), CanLoad: boolean(true), ThreadSafety: str("ReadSafe"),
			ReadSecurity: str("None"), WriteSecurity: str("PluginSecurity"), ValueTypeCat: str("Primitive"),
			ValueTypeName: str("bool"), Category: str("Behavior"), Default: str("true")},

		&database.MemberRecord{Kind: database.TypeFunction, Class: "Instance", Name: "GetChildren", Flags: tags(false),
			Returns: num(1), Parameters: num(0), Security: str("None"), ThreadSafety: str("Safe")},
		&database.MemberRecord{Kind: database.TypeFunction, Class: "Instance", Name: "GetChildren",
			ReturnTypeOpt: boolean(false), ReturnTypeCat: str("Group"), ReturnTypeName: str("Objects")},
		&database.MemberRecord{Kind: database.TypeFunction, Class: "Instance", Name: "FindFirstChild", Flags: tags(false),
			Returns: num(1), Parameters: num(2), Security: str("None"), ThreadSafety: str("Safe")},
		&database.MemberRecord{Kind: database.TypeFunction, Class: "Instance", Name: "FindFirstChild",
			ParamTypeOpt: boolean(false), ParamTypeCat: str("Primitive"), ParamTypeName: str("string"), ParamName: str("name")},
		&database.MemberRecord{Kind: database.TypeFunction, Class: "Instance", Name: "FindFirstChild",
			ParamTypeOpt: boolean(true), ParamTypeCat: str("Primitive"), ParamTypeName: str("bool"), ParamName: str("recursive"), ParamDefault: str("false")},

		&database.MemberRecord{Kind: database.TypeEvent, Class: "Part", Name: "Touched", Flags: tags(false),
			Parameters: num(1), Security: str("None"), ThreadSafety: str("Unsafe")},
		&database.MemberRecord{Kind: database.TypeEvent, Class: "Part", Name: "Touched",
			ParamTypeCat: str("Class"), ParamTypeName: str("BasePart"), ParamName: str("otherPart")},
		&database.MemberRecord{Kind: database.TypeEvent, Class: "Part", Name: "LocalSimulationTouched", Flags: tags(true, "Deprecated"),
			Parameters: num(0), Security: str("None"), ThreadSafety: str("Unsafe")},

		&database.MemberRecord{Kind: database.TypeCallback, Class: "Workspace", Name: "OnInvoke", Flags: tags(false),
			Returns: num(0), Parameters: num(0), Security: str("None"), ThreadSafety: str("Unsafe")},

		&database.EnumRecord{Name: "Material", Flags: tags(false), Items: num(2)},
		&database.EnumRecord{Name: "KeyCode", Flags: tags(false), Items: num(1)},
		&database.EnumItemRecord{Enum: "Material", Name: "Plastic", Flags: tags(false), LegacyNames: num(0), Value: num(256)},
		&database.EnumItemRecord{Enum: "Material", Name: "Wood", Flags: tags(false), LegacyNames: num(1), Value: num(512)},
		&database.EnumItemRecord{Enum: "Material", Name: "Wood", LegacyName: str("WoodPlanks")},
		&database.EnumItemRecord{Enum: "KeyCode", Name: "Unknown", Flags: tags(false), LegacyNames: num(0), Value: num(0)},

		&database.TypeRecord{Name: "string", Flags: tags(false), Category: str("Primitive")},
		&database.TypeRecord{Name: "Objects", Flags: tags(false), Category: str("Group")},
		&database.TypeRecord{Name: "Instance", Flags: tags(false), Category: str("Class")},
	}
}

// Bytes encodes Records.
func Bytes(t testing.TB) []byte {
	t.Helper()
	b := database.NewBuilder()
	if err := b.Add(Records()...); err != nil {
		t.Fatalf("adding sample records: %v", err)
	}
	buf, err := b.Bytes()
	if err != nil {
		t.Fatalf("encoding sample database: %v", err)
	}
	return buf
}

// Sample returns the decoded sample database.
func Sample(t testing.TB) *database.Database {
	t.Helper()
	db, err := database.Decode(Bytes(t))
	if err != nil {
		t.Fatalf("decoding sample database: %v", err)
	}
	return db
}
