package vm

import (
	"strconv"

	"github.com/kristofer/ember/pkg/value"
)

// Stringify renders v the way OP_PRINT/OP_PRINTLN do. It is exported;
// within this module only the dispatch loop and list rendering call it.
func Stringify(v value.Value) string {
	switch v.Type {
	case value.TypeNil:
		return "nil"
	case value.TypeBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.TypeNumber:
		return strconv.FormatFloat(v.AsNumber(), 'g', -1, 64)
	case value.TypeObj:
		return stringifyObj(v.AsObj())
	default:
		return "<?>"
	}
}

func stringifyObj(o value.Obj) string {
	switch obj := o.(type) {
	case *value.ObjStringVal:
		return obj.Chars
	case *value.ObjFunctionVal:
		if obj.Name == nil {
			return "<script>"
		}
		return "<fn " + obj.Name.Chars + ">"
	case *value.ObjClosureVal:
		return stringifyObj(obj.Function)
	case *value.ObjNativeVal:
		return "<native fn " + obj.Name + ">"
	case *value.ObjClassVal:
		return obj.Name.Chars
	case *value.ObjInstanceVal:
		return obj.Class.Name.Chars + " instance"
	case *value.ObjBoundMethodVal:
		return stringifyObj(obj.Method)
	case *value.ObjUpvalueVal:
		return "<upvalue>"
	case *value.ObjListVal:
		s := "["
		for i, item := range obj.Items {
			if i > 0 {
				s += ", "
			}
			s += Stringify(item)
		}
		return s + "]"
	default:
		return "<obj>"
	}
}
