package elrpc

import (
	"context"
	"fmt"
	"reflect"
)

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errType = reflect.TypeOf((*error)(nil)).Elem()

// RegisterFunc registers fn, a Go function, as a typed handler for name.
// It is the reflection-based counterpart to Register, grounded on
// capnweb/reflection.go's createMethodImpl: argument Values are coerced
// positionally into fn's parameters (skipping a leading context.Context
// parameter if present), and fn's return values are coerced back into a
// result Value. fn may return nothing, a single value, a single error, or
// (value, error); more than two results, or a second result that is not
// an error, is a programmer error and RegisterFunc panics, matching
// reflection.go's own validation-at-registration-time behavior.
func RegisterFunc(r *Registry, name string, argSpec, docstring string, fn interface{}) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		panic(fmt.Sprintf("elrpc: RegisterFunc(%q): not a function", name))
	}

	takesCtx := fnType.NumIn() > 0 && fnType.In(0) == ctxType
	firstArg := 0
	if takesCtx {
		firstArg = 1
	}
	variadic := fnType.IsVariadic()
	fixedArgs := fnType.NumIn() - firstArg
	if variadic {
		fixedArgs--
	}

	numOut := fnType.NumOut()
	if numOut > 2 {
		panic(fmt.Sprintf("elrpc: RegisterFunc(%q): handler may return at most (value, error)", name))
	}
	returnsErr := numOut > 0 && fnType.Out(numOut-1) == errType
	if numOut == 2 && !returnsErr {
		panic(fmt.Sprintf("elrpc: RegisterFunc(%q): second return value must be error", name))
	}

	r.Register(name, argSpec, docstring, func(ctx context.Context, args Value) (Value, error) {
		items, ok := args.Slice()
		if !ok {
			return Nil(), &SerializationError{Reason: fmt.Sprintf("%s: arguments must be a proper list", name)}
		}
		if variadic {
			if len(items) < fixedArgs {
				return Nil(), &SerializationError{Reason: fmt.Sprintf("%s: expected at least %d arguments, got %d", name, fixedArgs, len(items))}
			}
		} else if len(items) != fixedArgs {
			return Nil(), &SerializationError{Reason: fmt.Sprintf("%s: expected %d arguments, got %d", name, fixedArgs, len(items))}
		}

		callArgs := make([]reflect.Value, 0, fnType.NumIn())
		if takesCtx {
			callArgs = append(callArgs, reflect.ValueOf(ctx))
		}
		for i, item := range items {
			var paramType reflect.Type
			switch {
			case variadic && i >= fixedArgs:
				paramType = fnType.In(fnType.NumIn() - 1).Elem()
			default:
				paramType = fnType.In(firstArg + i)
			}
			argVal, err := valueToReflect(item, paramType)
			if err != nil {
				return Nil(), &SerializationError{Reason: fmt.Sprintf("%s: argument %d: %s", name, i, err.Error())}
			}
			callArgs = append(callArgs, argVal)
		}

		results := fnVal.Call(callArgs)

		if returnsErr {
			if errVal := results[len(results)-1]; !errVal.IsNil() {
				return Nil(), errVal.Interface().(error)
			}
			results = results[:len(results)-1]
		}
		if len(results) == 0 {
			return Nil(), nil
		}
		out, err := reflectToValue(results[0])
		if err != nil {
			return Nil(), &SerializationError{Reason: fmt.Sprintf("%s: return value: %s", name, err.Error())}
		}
		return out, nil
	})
}

// valueToReflect coerces a wire Value into a reflect.Value assignable to
// target, the corresponding Go parameter type.
func valueToReflect(v Value, target reflect.Type) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.String:
		s, ok := v.StringValue()
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected a string, got %s", kindName(v.Kind()))
		}
		return reflect.ValueOf(s).Convert(target), nil

	case reflect.Bool:
		truthy, ok := symbolTruthy(v)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected a boolean (nil or t), got %s", kindName(v.Kind()))
		}
		return reflect.ValueOf(truthy), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := v.IntegerValue()
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected an integer, got %s", kindName(v.Kind()))
		}
		return reflect.ValueOf(i).Convert(target), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, ok := v.IntegerValue()
		if !ok || i < 0 {
			return reflect.Value{}, fmt.Errorf("expected a non-negative integer, got %s", kindName(v.Kind()))
		}
		return reflect.ValueOf(i).Convert(target), nil

	case reflect.Float32, reflect.Float64:
		if f, ok := v.FloatValue(); ok {
			return reflect.ValueOf(f).Convert(target), nil
		}
		if i, ok := v.IntegerValue(); ok {
			return reflect.ValueOf(float64(i)).Convert(target), nil
		}
		return reflect.Value{}, fmt.Errorf("expected a number, got %s", kindName(v.Kind()))

	case reflect.Slice:
		items, ok := v.Slice()
		if !ok {
			items, ok = v.VectorItems()
		}
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected a list or vector, got %s", kindName(v.Kind()))
		}
		slice := reflect.MakeSlice(target, len(items), len(items))
		for i, item := range items {
			elemVal, err := valueToReflect(item, target.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			slice.Index(i).Set(elemVal)
		}
		return slice, nil

	case reflect.Interface:
		if target.NumMethod() == 0 {
			return reflect.ValueOf(v), nil
		}
		return reflect.Value{}, fmt.Errorf("unsupported handler parameter type %s", target)

	default:
		if target == reflect.TypeOf(Value{}) {
			return reflect.ValueOf(v), nil
		}
		return reflect.Value{}, fmt.Errorf("unsupported handler parameter type %s", target)
	}
}

// reflectToValue coerces a Go return value back into the wire Value shape.
func reflectToValue(rv reflect.Value) (Value, error) {
	if rv.Type() == reflect.TypeOf(Value{}) {
		return rv.Interface().(Value), nil
	}
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return boolSymbol(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Integer(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := reflectToValue(rv.Index(i))
			if err != nil {
				return Nil(), err
			}
			items[i] = elem
		}
		return List(items...), nil
	default:
		return Nil(), fmt.Errorf("unsupported handler return type %s", rv.Type())
	}
}

func kindName(k Kind) string {
	switch k {
	case KindNil:
		return "nil"
	case KindSymbol:
		return "symbol"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindCons:
		return "cons"
	case KindVector:
		return "vector"
	default:
		return "unknown"
	}
}
