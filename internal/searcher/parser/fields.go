package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
)

// ValueKind is the kind of value a field selector accepts.
type ValueKind uint8

const (
	NumberValue ValueKind = iota
	StringValue
	BoolValue
)

func (k ValueKind) String() string {
	switch k {
	case NumberValue:
		return "number"
	case StringValue:
		return "string"
	case BoolValue:
		return "bool"
	}
	return "unknown"
}

// FieldSpec is the selector form of a row field.
type FieldSpec struct {
	Name  string
	Field database.Field
	Kind  ValueKind
	Types []string
}

const membersGroup = "*members"

var (
	classTypes    = []string{database.TypeClass}
	propertyTypes = []string{database.TypeProperty}
	returnTypes   = []string{database.TypeFunction, database.TypeCallback}
	paramTypes    = []string{database.TypeFunction, database.TypeEvent, database.TypeCallback}
	memberTypes   = []string{membersGroup}
)

var fieldTable = []FieldSpec{
	{"superclasses", database.Superclasses, NumberValue, classTypes},
	{"subclasses", database.Subclasses, NumberValue, classTypes},
	{"members", database.Members, NumberValue, classTypes},
	{"ancestor", database.Ancestor, NumberValue, classTypes},
	{"superclass", database.Superclass, StringValue, classTypes},
	{"subclass", database.Subclass, StringValue, classTypes},
	{"memcat", database.MemCat, StringValue, classTypes},
	{"threadsafety", database.ThreadSafety, StringValue, memberTypes},
	{"readsecurity", database.ReadSecurity, StringValue, propertyTypes},
	{"writesecurity", database.WriteSecurity, StringValue, propertyTypes},
	{"cansave", database.CanSave, BoolValue, propertyTypes},
	{"canload", database.CanLoad, BoolValue, propertyTypes},
	{"valuetypecat", database.ValueTypeCat, StringValue, propertyTypes},
	{"valuetypename", database.ValueTypeName, StringValue, propertyTypes},
	{"category", database.Category, StringValue, propertyTypes},
	{"default", database.Default, StringValue, propertyTypes},
	{"returns", database.Returns, NumberValue, returnTypes},
	{"parameters", database.Parameters, NumberValue, paramTypes},
	{"returntypecat", database.ReturnTypeCat, StringValue, returnTypes},
	{"returntypename", database.ReturnTypeName, StringValue, returnTypes},
	{"returntypeopt", database.ReturnTypeOpt, BoolValue, returnTypes},
	{"paramtypecat", database.ParamTypeCat, StringValue, paramTypes},
	{"paramtypename", database.ParamTypeName, StringValue, paramTypes},
	{"paramname", database.ParamName, StringValue, paramTypes},
	{"paramtypeopt", database.ParamTypeOpt, BoolValue, paramTypes},
	{"paramdefault", database.ParamDefault, StringValue, []string{database.TypeFunction}},
	{"enumitems", database.EnumItems, NumberValue, []string{database.TypeEnum}},
	{"itemvalue", database.ItemValue, NumberValue, []string{database.TypeEnumItem}},
	{"legacynames", database.LegacyNames, NumberValue, []string{database.TypeEnumItem}},
	{"legacyname", database.LegacyName, StringValue, []string{database.TypeEnumItem}},
	{"typecat", database.TypeCat, StringValue, []string{database.TypeType}},
}

// Fields returns the field selectors in grammar order, with their types
// resolved against sets.
func Fields(sets database.TypeSets) []FieldSpec {
	out := make([]FieldSpec, len(fieldTable))
	for i, spec := range fieldTable {
		if len(spec.Types) == 1 && spec.Types[0] == membersGroup {
			spec.Types = sets.Members
		}
		out[i] = spec
	}
	return out
}

// column resolves a has: or sort: argument to a field and the types that
// declare it.
func (p *Parser) column(name string) (FieldSpec, bool) {
	name = strings.ToLower(name)
	switch name {
	case "primary", "name":
		return FieldSpec{Name: name, Field: database.Primary, Kind: StringValue, Types: p.sets.All}, true
	case "secondary":
		return FieldSpec{Name: name, Field: database.Secondary, Kind: StringValue, Types: p.sets.All}, true
	case "flags":
		return FieldSpec{Name: name, Field: database.Flags, Kind: NumberValue, Types: p.sets.All}, true
	}
	for _, spec := range p.fields {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}
