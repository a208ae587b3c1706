package database

// RowSize is the width in bytes of every row.
const RowSize = 23

// headerSize is the fixed part of the header, before the per-type row counts.
const headerSize = 10

// Entity type names.
const (
	TypeClass    = "Class"
	TypeProperty = "Property"
	TypeFunction = "Function"
	TypeEvent    = "Event"
	TypeCallback = "Callback"
	TypeEnum     = "Enum"
	TypeEnumItem = "EnumItem"
	TypeType     = "Type"
)

// StandardTypes is the declared type order written by the indexer.
var StandardTypes = []string{
	TypeClass,
	TypeProperty,
	TypeFunction,
	TypeEvent,
	TypeCallback,
	TypeEnum,
	TypeEnumItem,
	TypeType,
}

// Kind is the encoding of a field within a row.
type Kind uint8

const (
	KindU8       Kind = iota // uint8, 0xFF absent
	KindU16                  // uint16, 0xFFFF absent
	KindU32                  // uint32, 0xFFFFFFFF absent
	KindString               // uint16 string index, 0xFFFF absent
	KindFlags                // uint32 bit field, 0xFFFFFFFF absent
	KindBool                 // uint8, 0 false, 0xFF absent, otherwise true
	KindEnumLow              // low nibble indexing a side table, 0xF absent
	KindEnumHigh             // high nibble indexing a side table, 0xF absent
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindString:
		return "string"
	case KindFlags:
		return "flags"
	case KindBool:
		return "bool"
	case KindEnumLow:
		return "enum_low"
	case KindEnumHigh:
		return "enum_high"
	}
	return "unknown"
}

// Numeric reports whether values of the kind are numbers.
func (k Kind) Numeric() bool {
	return k == KindU8 || k == KindU16 || k == KindU32
}

// Stringlike reports whether values of the kind are strings.
func (k Kind) Stringlike() bool {
	return k == KindString || k == KindEnumLow || k == KindEnumHigh
}

// Table names the side table an enum field indexes.
type Table uint8

const (
	NoTable Table = iota
	TableSecurities
	TableThreadSafeties
	TableCategories
)

// Field describes where and how one attribute is stored in a row. Offsets are
// shared between entity types, so a field is only meaningful for the types
// that declare it.
type Field struct {
	Name   string
	Kind   Kind
	Offset int
	Table  Table
}

func (f Field) String() string { return f.Name }

// Width returns the number of bytes the field occupies.
func (f Field) Width() int {
	switch f.Kind {
	case KindU16, KindString:
		return 2
	case KindU32, KindFlags:
		return 4
	}
	return 1
}

// Fields shared by every entity.
var (
	Primary   = Field{"PRIMARY", KindString, 0, NoTable}
	Secondary = Field{"SECONDARY", KindString, 2, NoTable}
	Flags     = Field{"FLAGS", KindFlags, 4, NoTable}
)

// Class fields.
var (
	ClassName    = Field{"CLASS_NAME", KindString, 0, NoTable}
	Superclasses = Field{"SUPERCLASSES", KindU8, 8, NoTable}
	Subclasses   = Field{"SUBCLASSES", KindU16, 9, NoTable}
	Members      = Field{"MEMBERS", KindU16, 11, NoTable}
	Ancestor     = Field{"ANCESTOR", KindU8, 13, NoTable}
	Superclass   = Field{"SUPERCLASS", KindString, 15, NoTable}
	Subclass     = Field{"SUBCLASS", KindString, 17, NoTable}
	MemCat       = Field{"MEM_CAT", KindString, 19, NoTable}
)

// Member fields.
var (
	MemberName   = Field{"MEMBER_NAME", KindString, 2, NoTable}
	ThreadSafety = Field{"THREAD_SAFETY", KindEnumLow, 13, TableThreadSafeties}
	Security     = Field{"SECURITY", KindEnumHigh, 13, TableSecurities}
)

// Property fields.
var (
	CanSave       = Field{"CAN_SAVE", KindBool, 11, NoTable}
	CanLoad       = Field{"CAN_LOAD", KindBool, 12, NoTable}
	ReadSecurity  = Field{"READ_SECURITY", KindEnumHigh, 13, TableSecurities}
	WriteSecurity = Field{"WRITE_SECURITY", KindEnumLow, 14, TableSecurities}
	ValueTypeCat  = Field{"VALUE_TYPE_CAT", KindEnumHigh, 14, TableCategories}
	ValueTypeName = Field{"VALUE_TYPE_NAME", KindString, 15, NoTable}
	Category      = Field{"CATEGORY", KindString, 19, NoTable}
	Default       = Field{"DEFAULT", KindString, 21, NoTable}
)

// Function, event and callback fields.
var (
	Returns        = Field{"RETURNS", KindU8, 8, NoTable}
	Parameters     = Field{"PARAMETERS", KindU16, 9, NoTable}
	ParamTypeOpt   = Field{"PARAM_TYPE_OPT", KindBool, 11, NoTable}
	ReturnTypeOpt  = Field{"RETURN_TYPE_OPT", KindBool, 12, NoTable}
	ParamTypeCat   = Field{"PARAM_TYPE_CAT", KindEnumLow, 14, TableCategories}
	ReturnTypeCat  = Field{"RETURN_TYPE_CAT", KindEnumHigh, 14, TableCategories}
	ReturnTypeName = Field{"RETURN_TYPE_NAME", KindString, 15, NoTable}
	ParamTypeName  = Field{"PARAM_TYPE_NAME", KindString, 17, NoTable}
	ParamName      = Field{"PARAM_NAME", KindString, 19, NoTable}
	ParamDefault   = Field{"PARAM_DEFAULT", KindString, 21, NoTable}
)

// Enum and enum item fields.
var (
	EnumName    = Field{"ENUM_NAME", KindString, 0, NoTable}
	EnumItems   = Field{"ENUM_ITEMS", KindU16, 9, NoTable}
	ItemName    = Field{"ITEM_NAME", KindString, 2, NoTable}
	LegacyNames = Field{"LEGACY_NAMES", KindU8, 8, NoTable}
	ItemValue   = Field{"ITEM_VALUE", KindU32, 9, NoTable}
	LegacyName  = Field{"LEGACY_NAME", KindString, 15, NoTable}
)

// Type fields.
var (
	TypeName = Field{"TYPE_NAME", KindString, 0, NoTable}
	TypeCat  = Field{"TYPE_CAT", KindEnumLow, 14, TableCategories}
)

// TypeFields lists the fields each standard entity type declares, besides
// PRIMARY, SECONDARY and FLAGS.
var TypeFields = map[string][]Field{
	TypeClass: {
		ClassName, Superclasses, Subclasses, Members, Ancestor,
		Superclass, Subclass, MemCat,
	},
	TypeProperty: {
		ClassName, MemberName, CanSave, CanLoad, ThreadSafety,
		ReadSecurity, WriteSecurity, ValueTypeCat, ValueTypeName,
		Category, Default,
	},
	TypeFunction: {
		ClassName, MemberName, Returns, Parameters, ParamTypeOpt,
		ReturnTypeOpt, ThreadSafety, Security, ParamTypeCat,
		ReturnTypeCat, ReturnTypeName, ParamTypeName, ParamName,
		ParamDefault,
	},
	TypeEvent: {
		ClassName, MemberName, Parameters, ParamTypeOpt, ThreadSafety,
		Security, ParamTypeCat, ParamTypeName, ParamName,
	},
	TypeCallback: {
		ClassName, MemberName, Returns, Parameters, ParamTypeOpt,
		ReturnTypeOpt, ThreadSafety, Security, ParamTypeCat,
		ReturnTypeCat, ReturnTypeName, ParamTypeName, ParamName,
	},
	TypeEnum:     {EnumName, EnumItems},
	TypeEnumItem: {EnumName, ItemName, LegacyNames, ItemValue, LegacyName},
	TypeType:     {TypeName, TypeCat},
}
